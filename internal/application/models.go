package application

import (
	"time"

	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   booking.Role
}

// IsAdmin reports whether the principal holds the administrator role.
func (p Principal) IsAdmin() bool {
	return p.Role == booking.RoleAdmin
}

func (p Principal) actor() booking.Actor {
	return booking.Actor{ID: p.UserID, Role: p.Role}
}

// RoomInput captures the attributes of a room supplied by the catalog seed.
type RoomInput struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities []string
}

// Room represents a catalog entry for a physical meeting room.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomSummary is the room view embedded in booking listings.
type RoomSummary struct {
	ID       string
	Name     string
	Location string
	Capacity int
}

func summarizeRoom(room Room) *RoomSummary {
	return &RoomSummary{ID: room.ID, Name: room.Name, Location: room.Location, Capacity: room.Capacity}
}

// BookingInput captures caller provided booking request fields.
type BookingInput struct {
	RoomID    string
	Start     time.Time
	End       time.Time
	Purpose   string
	Attendees int
}

// Booking is a room reservation moving through the approval workflow.
type Booking struct {
	ID              string
	RoomID          string
	RequesterID     string
	Start           time.Time
	End             time.Time
	Purpose         string
	Attendees       int
	Status          booking.Status
	RejectionReason *string
	ConfirmedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Room is filled in on reads when the catalog still knows the room.
	Room *RoomSummary
}

// Interval returns the booking's half-open time range.
func (b Booking) Interval() scheduler.Interval {
	return scheduler.Interval{Start: b.Start, End: b.End}
}

// BookingStatusUpdate describes a compare-and-set status write. The update
// applies only while the stored status still equals From.
type BookingStatusUpdate struct {
	From            booking.Status
	To              booking.Status
	RejectionReason *string
	ConfirmedAt     *time.Time
	UpdatedAt       time.Time
}

// BookingFilter narrows ListBookings. An empty RequesterID means unrestricted.
type BookingFilter struct {
	RequesterID string
	RoomID      string
	Statuses    booking.StatusSet
}

// CreateBookingParams wraps the data required to request a booking.
type CreateBookingParams struct {
	Principal Principal
	Input     BookingInput
}

// DecideBookingParams wraps an administrator's approval or rejection.
type DecideBookingParams struct {
	Principal Principal
	BookingID string
	Target    booking.Status
	Reason    string
}

// BookingActionParams identifies a booking acted on by a principal.
type BookingActionParams struct {
	Principal Principal
	BookingID string
}

// ListBookingsParams wraps the data required to list bookings.
type ListBookingsParams struct {
	Principal Principal
	RoomID    string
	Statuses  []booking.Status
}
