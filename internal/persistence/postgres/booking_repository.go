package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/room-booking/internal/persistence"
)

const bookingColumns = `id, room_id, requester_id, start_at, end_at, purpose, attendees,
	status, rejection_reason, confirmed_at, created_at, updated_at`

// BookingRepository implements persistence.BookingRepository on PostgreSQL.
type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.Attendees <= 0 || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		booking.ID,
		booking.RoomID,
		booking.RequesterID,
		booking.Start.UTC(),
		booking.End.UTC(),
		booking.Purpose,
		booking.Attendees,
		booking.Status,
		booking.RejectionReason,
		booking.ConfirmedAt,
		booking.CreatedAt.UTC(),
		booking.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapError(fmt.Errorf("create booking %s: %w", booking.ID, err))
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, mapError(err)
	}
	return booking, nil
}

// UpdateBookingStatus applies a compare-and-set status change.
func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id string, update persistence.StatusUpdate) (persistence.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return persistence.Booking{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $1, rejection_reason = $2, confirmed_at = $3, updated_at = $4
		WHERE id = $5 AND status = $6
		RETURNING `+bookingColumns,
		update.ToStatus,
		update.RejectionReason,
		update.ConfirmedAt,
		update.UpdatedAt.UTC(),
		id,
		update.FromStatus,
	)
	updated, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var current string
		err = tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		if err != nil {
			return persistence.Booking{}, fmt.Errorf("read booking %s status: %w", id, err)
		}
		return persistence.Booking{}, persistence.ErrStaleStatus
	}
	if err != nil {
		return persistence.Booking{}, mapError(fmt.Errorf("update booking %s status: %w", id, err))
	}

	if err := tx.Commit(ctx); err != nil {
		return persistence.Booking{}, fmt.Errorf("commit transaction: %w", err)
	}
	return updated, nil
}

// ListBookingsForRoom returns the room's bookings in statuses overlapping [start, end).
func (r *BookingRepository) ListBookingsForRoom(ctx context.Context, roomID string, statuses []string, start, end time.Time) ([]persistence.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	return r.query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE room_id = $1 AND start_at < $2 AND end_at > $3 AND status = ANY($4)
		ORDER BY start_at, id
	`, roomID, end.UTC(), start.UTC(), statuses)
}

// ListBookings returns bookings matching filter ordered by start time.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var clauses []string
	var args []interface{}
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RequesterID != "" {
		clauses = append(clauses, "requester_id = "+arg(filter.RequesterID))
	}
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = "+arg(filter.RoomID))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status = ANY("+arg(filter.Statuses)+")")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_at, id`
	return r.query(ctx, query, args...)
}

func (r *BookingRepository) query(ctx context.Context, query string, args ...interface{}) ([]persistence.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var booking persistence.Booking
	if err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.RequesterID,
		&booking.Start,
		&booking.End,
		&booking.Purpose,
		&booking.Attendees,
		&booking.Status,
		&booking.RejectionReason,
		&booking.ConfirmedAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}
	booking.Start = booking.Start.UTC()
	booking.End = booking.End.UTC()
	booking.CreatedAt = booking.CreatedAt.UTC()
	booking.UpdatedAt = booking.UpdatedAt.UTC()
	if booking.ConfirmedAt != nil {
		at := booking.ConfirmedAt.UTC()
		booking.ConfirmedAt = &at
	}
	return booking, nil
}
