package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/room-booking/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// UpsertRoom inserts or replaces a room together with its facility tags.
// The stored creation time survives updates.
func (r *RoomRepository) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO rooms (id, name, location, capacity, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					name = excluded.name,
					location = excluded.location,
					capacity = excluded.capacity,
					updated_at = excluded.updated_at
			`,
				room.ID,
				room.Name,
				room.Location,
				room.Capacity,
				formatTime(room.CreatedAt),
				formatTime(room.UpdatedAt),
			)
			if err != nil {
				return fmt.Errorf("upsert room %s: %w", room.ID, err)
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM room_facilities WHERE room_id = ?`, room.ID); err != nil {
				return fmt.Errorf("clear facilities for room %s: %w", room.ID, err)
			}
			for _, facility := range room.Facilities {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO room_facilities (room_id, facility) VALUES (?, ?)`,
					room.ID, facility,
				); err != nil {
					return fmt.Errorf("insert facility %q for room %s: %w", facility, room.ID, err)
				}
			}
			return nil
		})
	})
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT id, name, location, capacity, created_at, updated_at
		FROM rooms
		WHERE id = ?
	`, id)

	room, err := scanRoom(row)
	if err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}

	facilities, err := r.facilities(ctx, `WHERE room_id = ?`, id)
	if err != nil {
		return persistence.Room{}, err
	}
	room.Facilities = facilities[room.ID]
	return room, nil
}

// ListRooms returns all rooms ordered by name.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, name, location, capacity, created_at, updated_at
		FROM rooms
		ORDER BY name, id
	`)
	if err != nil {
		return nil, r.mapper.MapError(fmt.Errorf("list rooms: %w", err))
	}

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	rows.Close()

	facilities, err := r.facilities(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		rooms[i].Facilities = facilities[rooms[i].ID]
	}
	return rooms, nil
}

func (r *RoomRepository) facilities(ctx context.Context, where string, args ...interface{}) (map[string][]string, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT room_id, facility FROM room_facilities `+where+` ORDER BY room_id, facility`,
		args...,
	)
	if err != nil {
		return nil, r.mapper.MapError(fmt.Errorf("load facilities: %w", err))
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var roomID, facility string
		if err := rows.Scan(&roomID, &facility); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		out[roomID] = append(out[roomID], facility)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facilities: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	var createdAt, updatedAt string
	if err := row.Scan(&room.ID, &room.Name, &room.Location, &room.Capacity, &createdAt, &updatedAt); err != nil {
		return persistence.Room{}, err
	}

	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}
