package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/persistence"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: codeUniqueViolation}), persistence.ErrDuplicate)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: codeForeignKeyViolation}), persistence.ErrConstraintViolation)
	assert.ErrorIs(t, mapError(&pgconn.PgError{Code: codeCheckViolation}), persistence.ErrConstraintViolation)

	other := errors.New("boom")
	assert.Same(t, other, mapError(other))
}

// openTestStore connects to BOOKING_TEST_POSTGRES_DSN or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("BOOKING_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOOKING_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_BookingLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	roomID := "room-" + uuid.NewString()
	require.NoError(t, store.UpsertRoom(ctx, persistence.Room{
		ID: roomID, Name: "Orion", Location: "Floor 2", Capacity: 6,
		Facilities: []string{"projector"}, CreatedAt: now, UpdatedAt: now,
	}))

	room, err := store.GetRoom(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, []string{"projector"}, room.Facilities)

	start := now.Add(24 * time.Hour)
	booking := persistence.Booking{
		ID: uuid.NewString(), RoomID: roomID, RequesterID: "emp-1",
		Start: start, End: start.Add(time.Hour), Purpose: "sync", Attendees: 3,
		Status: "PENDING_ADMIN_APPROVAL", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateBooking(ctx, booking))
	assert.ErrorIs(t, store.CreateBooking(ctx, booking), persistence.ErrDuplicate)

	overlapping, err := store.ListBookingsForRoom(ctx, roomID, []string{"PENDING_ADMIN_APPROVAL"}, start.Add(30*time.Minute), start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)

	adjacent, err := store.ListBookingsForRoom(ctx, roomID, []string{"PENDING_ADMIN_APPROVAL"}, start.Add(time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, adjacent)

	updated, err := store.UpdateBookingStatus(ctx, booking.ID, persistence.StatusUpdate{
		FromStatus: "PENDING_ADMIN_APPROVAL", ToStatus: "PENDING_EMPLOYEE_CONFIRMATION", UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING_EMPLOYEE_CONFIRMATION", updated.Status)

	_, err = store.UpdateBookingStatus(ctx, booking.ID, persistence.StatusUpdate{
		FromStatus: "PENDING_ADMIN_APPROVAL", ToStatus: "REJECTED", UpdatedAt: now,
	})
	assert.ErrorIs(t, err, persistence.ErrStaleStatus)

	_, err = store.UpdateBookingStatus(ctx, "missing", persistence.StatusUpdate{FromStatus: "CONFIRMED", ToStatus: "CANCELLED_BY_EMPLOYEE"})
	assert.ErrorIs(t, err, persistence.ErrNotFound)

	listed, err := store.ListBookings(ctx, persistence.BookingFilter{RoomID: roomID, Statuses: []string{"PENDING_EMPLOYEE_CONFIRMATION"}})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, booking.ID, listed[0].ID)
}

func TestAdvisoryLocker_Serializes(t *testing.T) {
	store := openTestStore(t)
	locker := NewAdvisoryLocker(store.Pool(), 5*time.Second, zap.NewNop())
	roomID := "room-" + uuid.NewString()

	var inside, violations atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.LockRoom(context.Background(), roomID)
			if !assert.NoError(t, err) {
				return
			}
			if inside.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	assert.Zero(t, violations.Load())
}
