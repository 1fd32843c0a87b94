package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/booking"
	"github.com/example/room-booking/internal/persistence"
)

var (
	roomCounter    uint64
	bookingCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Employee returns a principal holding the employee role.
func Employee(id string) application.Principal {
	return application.Principal{UserID: id, Role: booking.RoleEmployee}
}

// Admin returns a principal holding the administrator role.
func Admin(id string) application.Principal {
	return application.Principal{UserID: id, Role: booking.RoleAdmin}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic meeting room record.
type RoomFixture struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Location:  "Main Office",
		Capacity:  int(4 + idx%4),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) { f.ID = id }
}

func WithRoomName(name string) RoomOption {
	return func(f *RoomFixture) { f.Name = name }
}

func WithRoomLocation(location string) RoomOption {
	return func(f *RoomFixture) { f.Location = location }
}

func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) { f.Capacity = capacity }
}

func WithRoomFacilities(facilities ...string) RoomOption {
	return func(f *RoomFixture) { f.Facilities = append([]string(nil), facilities...) }
}

// WithRoomTimestamps sets both created and updated timestamps on the fixture.
func WithRoomTimestamps(created, updated time.Time) RoomOption {
	return func(f *RoomFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: append([]string(nil), f.Facilities...),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: append([]string(nil), f.Facilities...),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Input returns the fixture as seed input.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{
		ID:         f.ID,
		Name:       f.Name,
		Location:   f.Location,
		Capacity:   f.Capacity,
		Facilities: append([]string(nil), f.Facilities...),
	}
}

// --------------------------- Booking fixtures ----------------------------

// BookingFixture represents a deterministic booking record.
type BookingFixture struct {
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
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a pending booking one day after ReferenceTime,
// staggered by an hour per fixture so defaults never overlap.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	start := referenceTime.Add(24*time.Hour + time.Duration(idx)*time.Hour)
	fixture := BookingFixture{
		ID:          fmt.Sprintf("booking-%03d", idx),
		RoomID:      "room-001",
		RequesterID: "employee-1",
		Start:       start,
		End:         start.Add(time.Hour),
		Purpose:     fmt.Sprintf("Meeting %03d", idx),
		Attendees:   2,
		Status:      booking.Initial(),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) { f.ID = id }
}

func WithBookingRoom(roomID string) BookingOption {
	return func(f *BookingFixture) { f.RoomID = roomID }
}

func WithBookingRequester(userID string) BookingOption {
	return func(f *BookingFixture) { f.RequesterID = userID }
}

// WithBookingWindow sets the half-open [start, end) window.
func WithBookingWindow(start, end time.Time) BookingOption {
	return func(f *BookingFixture) {
		f.Start = start
		f.End = end
	}
}

func WithBookingAttendees(n int) BookingOption {
	return func(f *BookingFixture) { f.Attendees = n }
}

func WithBookingStatus(status booking.Status) BookingOption {
	return func(f *BookingFixture) { f.Status = status }
}

func WithBookingRejection(reason string) BookingOption {
	return func(f *BookingFixture) {
		f.Status = booking.StatusRejected
		f.RejectionReason = &reason
	}
}

// Application returns the fixture as an application.Booking value.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:              f.ID,
		RoomID:          f.RoomID,
		RequesterID:     f.RequesterID,
		Start:           f.Start,
		End:             f.End,
		Purpose:         f.Purpose,
		Attendees:       f.Attendees,
		Status:          f.Status,
		RejectionReason: copyStringPtr(f.RejectionReason),
		ConfirmedAt:     copyTimePtr(f.ConfirmedAt),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Booking value.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:              f.ID,
		RoomID:          f.RoomID,
		RequesterID:     f.RequesterID,
		Start:           f.Start,
		End:             f.End,
		Purpose:         f.Purpose,
		Attendees:       f.Attendees,
		Status:          f.Status.String(),
		RejectionReason: copyStringPtr(f.RejectionReason),
		ConfirmedAt:     copyTimePtr(f.ConfirmedAt),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Input returns the fixture as a booking request.
func (f BookingFixture) Input() application.BookingInput {
	return application.BookingInput{
		RoomID:    f.RoomID,
		Start:     f.Start,
		End:       f.End,
		Purpose:   f.Purpose,
		Attendees: f.Attendees,
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
