package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository on PostgreSQL.
type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// UpsertRoom inserts or replaces a room, keeping its original creation time.
func (r *RoomRepository) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	facilities := room.Facilities
	if facilities == nil {
		facilities = []string{}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, location, capacity, facilities, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			capacity = EXCLUDED.capacity,
			facilities = EXCLUDED.facilities,
			updated_at = EXCLUDED.updated_at
	`, room.ID, room.Name, room.Location, room.Capacity, facilities, room.CreatedAt.UTC(), room.UpdatedAt.UTC())
	if err != nil {
		return mapError(fmt.Errorf("upsert room %s: %w", room.ID, err))
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, location, capacity, facilities, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`, id)
	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, location, capacity, facilities, created_at, updated_at
		FROM rooms
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

func scanRoom(row pgx.Row) (persistence.Room, error) {
	var room persistence.Room
	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Location,
		&room.Capacity,
		&room.Facilities,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return persistence.Room{}, err
	}
	if len(room.Facilities) == 0 {
		room.Facilities = nil
	}
	room.CreatedAt = room.CreatedAt.UTC()
	room.UpdatedAt = room.UpdatedAt.UTC()
	return room, nil
}
