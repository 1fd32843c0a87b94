// Package memory implements the persistence repositories with process-local
// maps. It backs tests and single-node demo deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// Storage provides an in-memory persistence layer implementation.
type Storage struct {
	mu       sync.RWMutex
	rooms    map[string]persistence.Room
	bookings map[string]persistence.Booking
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		rooms:    make(map[string]persistence.Room),
		bookings: make(map[string]persistence.Booking),
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- RoomRepository implementation ---

// UpsertRoom stores a room, keeping the original creation time on update.
func (s *Storage) UpsertRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rooms[room.ID]; ok {
		room.CreatedAt = existing.CreatedAt
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}

	return cloneRoom(room), nil
}

// ListRooms returns all rooms ordered by name.
func (s *Storage) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, cloneRoom(room))
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})

	return rooms, nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking. The room must exist.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || booking.Attendees <= 0 || !booking.Start.Before(booking.End) {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[booking.ID]; ok {
		return fmt.Errorf("memory: booking %s: %w", booking.ID, persistence.ErrDuplicate)
	}
	if _, ok := s.rooms[booking.RoomID]; !ok {
		return fmt.Errorf("memory: booking %s references unknown room %s: %w", booking.ID, booking.RoomID, persistence.ErrConstraintViolation)
	}

	s.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return cloneBooking(booking), nil
}

// UpdateBookingStatus applies a compare-and-set status change.
func (s *Storage) UpdateBookingStatus(ctx context.Context, id string, update persistence.StatusUpdate) (persistence.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	if booking.Status != update.FromStatus {
		return persistence.Booking{}, persistence.ErrStaleStatus
	}

	booking.Status = update.ToStatus
	booking.RejectionReason = cloneString(update.RejectionReason)
	booking.ConfirmedAt = cloneTime(update.ConfirmedAt)
	booking.UpdatedAt = update.UpdatedAt
	s.bookings[id] = booking

	return cloneBooking(booking), nil
}

// ListBookingsForRoom returns the room's bookings in statuses overlapping [start, end).
func (s *Storage) ListBookingsForRoom(ctx context.Context, roomID string, statuses []string, start, end time.Time) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Booking
	for _, booking := range s.bookings {
		if booking.RoomID != roomID || !containsString(statuses, booking.Status) {
			continue
		}
		if booking.Start.Before(end) && start.Before(booking.End) {
			out = append(out, cloneBooking(booking))
		}
	}
	sortBookings(out)
	return out, nil
}

// ListBookings returns bookings matching filter ordered by start time.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Booking, 0, len(s.bookings))
	for _, booking := range s.bookings {
		if filter.RequesterID != "" && booking.RequesterID != filter.RequesterID {
			continue
		}
		if filter.RoomID != "" && booking.RoomID != filter.RoomID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsString(filter.Statuses, booking.Status) {
			continue
		}
		out = append(out, cloneBooking(booking))
	}
	sortBookings(out)
	return out, nil
}

func sortBookings(bookings []persistence.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Start.Equal(bookings[j].Start) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].Start.Before(bookings[j].Start)
	})
}

func cloneRoom(room persistence.Room) persistence.Room {
	cloned := room
	if room.Facilities != nil {
		cloned.Facilities = append([]string(nil), room.Facilities...)
	}
	return cloned
}

func cloneBooking(booking persistence.Booking) persistence.Booking {
	cloned := booking
	cloned.RejectionReason = cloneString(booking.RejectionReason)
	cloned.ConfirmedAt = cloneTime(booking.ConfirmedAt)
	return cloned
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
