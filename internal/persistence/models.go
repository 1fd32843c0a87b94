package persistence

import "time"

// Room represents a meeting room catalog entry.
type Room struct {
	ID         string
	Name       string
	Location   string
	Capacity   int
	Facilities []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Booking is the stored form of a room reservation. Status holds the wire
// value of the lifecycle state.
type Booking struct {
	ID              string
	RoomID          string
	RequesterID     string
	Start           time.Time
	End             time.Time
	Purpose         string
	Attendees       int
	Status          string
	RejectionReason *string
	ConfirmedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
