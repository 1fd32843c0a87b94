package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

const bookingColumns = `id, room_id, requester_id, start_at, end_at, purpose, attendees,
	status, rejection_reason, confirmed_at, created_at, updated_at`

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateBooking inserts a new booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.Attendees <= 0 || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			booking.ID,
			booking.RoomID,
			booking.RequesterID,
			formatTime(booking.Start),
			formatTime(booking.End),
			booking.Purpose,
			booking.Attendees,
			booking.Status,
			nullString(booking.RejectionReason),
			nullTime(booking.ConfirmedAt),
			formatTime(booking.CreatedAt),
			formatTime(booking.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert booking %s: %w", booking.ID, err)
		}
		return nil
	})
}

// GetBooking retrieves a booking by ID.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}

	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return booking, nil
}

// UpdateBookingStatus applies a compare-and-set status change: the row is
// written only while it still carries update.FromStatus.
func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id string, update persistence.StatusUpdate) (persistence.Booking, error) {
	var updated persistence.Booking

	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := tx.ExecContext(ctx, `
				UPDATE bookings
				SET status = ?, rejection_reason = ?, confirmed_at = ?, updated_at = ?
				WHERE id = ? AND status = ?
			`,
				update.ToStatus,
				nullString(update.RejectionReason),
				nullTime(update.ConfirmedAt),
				formatTime(update.UpdatedAt),
				id,
				update.FromStatus,
			)
			if err != nil {
				return fmt.Errorf("update booking %s status: %w", id, err)
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				var current string
				err := tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = ?`, id).Scan(&current)
				if errors.Is(err, sql.ErrNoRows) {
					return persistence.ErrNotFound
				}
				if err != nil {
					return fmt.Errorf("read booking %s status: %w", id, err)
				}
				return persistence.ErrStaleStatus
			}

			row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
			updated, err = scanBooking(row)
			return err
		})
	})
	if err != nil {
		return persistence.Booking{}, err
	}
	return updated, nil
}

// ListBookingsForRoom returns the room's bookings in statuses whose window
// overlaps [start, end).
func (r *BookingRepository) ListBookingsForRoom(ctx context.Context, roomID string, statuses []string, start, end time.Time) ([]persistence.Booking, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := []interface{}{roomID, formatTime(end), formatTime(start)}
	for _, status := range statuses {
		args = append(args, status)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE room_id = ? AND start_at < ? AND end_at > ? AND status IN (` + placeholders(len(statuses)) + `)
		ORDER BY start_at, id`
	return r.query(ctx, query, args...)
}

// ListBookings returns bookings matching filter ordered by start time.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var clauses []string
	var args []interface{}

	if filter.RequesterID != "" {
		clauses = append(clauses, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_at, id`
	return r.query(ctx, query, args...)
}

func (r *BookingRepository) query(ctx context.Context, query string, args ...interface{}) ([]persistence.Booking, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(fmt.Errorf("query bookings: %w", err))
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var (
		booking                    persistence.Booking
		start, end                 string
		createdAt, updatedAt       string
		rejectionReason, confirmed sql.NullString
	)
	if err := row.Scan(
		&booking.ID,
		&booking.RoomID,
		&booking.RequesterID,
		&start,
		&end,
		&booking.Purpose,
		&booking.Attendees,
		&booking.Status,
		&rejectionReason,
		&confirmed,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}

	var err error
	if booking.Start, err = parseTime(start); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime(end); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	if rejectionReason.Valid {
		reason := rejectionReason.String
		booking.RejectionReason = &reason
	}
	if confirmed.Valid {
		at, err := parseTime(confirmed.String)
		if err != nil {
			return persistence.Booking{}, err
		}
		booking.ConfirmedAt = &at
	}
	return booking, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*value), Valid: true}
}
