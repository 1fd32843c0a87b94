package persistence

import (
	"context"
	"time"
)

// RoomRepository stores the room catalog.
type RoomRepository interface {
	UpsertRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// BookingFilter narrows booking listings. Empty fields do not filter.
type BookingFilter struct {
	RequesterID string
	RoomID      string
	Statuses    []string
}

// StatusUpdate is a compare-and-set status write. It applies only while the
// stored status equals FromStatus, otherwise ErrStaleStatus is returned.
type StatusUpdate struct {
	FromStatus      string
	ToStatus        string
	RejectionReason *string
	ConfirmedAt     *time.Time
	UpdatedAt       time.Time
}

// BookingRepository stores bookings. Bookings are never deleted.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, update StatusUpdate) (Booking, error)
	// ListBookingsForRoom returns the room's bookings holding one of statuses
	// whose [Start, End) overlaps [start, end).
	ListBookingsForRoom(ctx context.Context, roomID string, statuses []string, start, end time.Time) ([]Booking, error)
	// ListBookings returns matching bookings ordered by start time, then id.
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// Store bundles the repositories of one storage engine with its lifecycle.
type Store interface {
	RoomRepository
	BookingRepository
	Ping(ctx context.Context) error
	Close() error
}
