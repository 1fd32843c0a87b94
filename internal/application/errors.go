package application

import (
	"errors"
	"fmt"

	"github.com/example/room-booking/internal/booking"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrCapacityExceeded is matched by CapacityExceededError.
	ErrCapacityExceeded = errors.New("application: capacity exceeded")
	// ErrConflict is matched by ConflictError.
	ErrConflict = errors.New("application: slot conflict")
	// ErrInvalidTransition is matched by InvalidTransitionError.
	ErrInvalidTransition = errors.New("application: invalid state transition")
)

const (
	msgMissingFields          = "Please provide all required fields: roomId, startTime, endTime, purpose, attendees"
	msgStartInPast            = "Cannot book a room in the past"
	msgEndBeforeStart         = "End time must be after start time"
	msgRejectionReason        = "A rejection reason is required when rejecting a booking"
	msgInvalidDecision        = "Invalid status update. Admin can only move to PENDING_EMPLOYEE_CONFIRMATION or REJECTED."
	msgNotAwaitingConfirm     = "Booking is not waiting for confirmation"
	msgCreationConflict       = "Room is already booked (or approved for another user) for this time slot"
	msgConfirmationConflict   = "Slot no longer available"
	msgConcurrentStatusChange = "Booking status changed while the request was processed"
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	Message     string
	FieldErrors map[string]string
}

func newValidationError(message string, fields ...string) *ValidationError {
	vErr := &ValidationError{Message: message}
	for _, field := range fields {
		vErr.add(field, message)
	}
	return vErr
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Message != "" {
		return v.Message
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// Entity names the kind of record a NotFoundError refers to.
type Entity string

const (
	EntityRoom    Entity = "Room"
	EntityBooking Entity = "Booking"
)

// NotFoundError reports a missing room or booking.
type NotFoundError struct {
	Entity Entity
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Entity)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CapacityExceededError is returned when a request brings more attendees than the room seats.
type CapacityExceededError struct {
	RoomID    string
	Capacity  int
	Requested int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("Room capacity exceeded. Max capacity is %d", e.Capacity)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// ConflictPhase distinguishes the two points where a slot can be lost.
type ConflictPhase string

const (
	ConflictAtCreation     ConflictPhase = "creation"
	ConflictAtConfirmation ConflictPhase = "confirmation"
)

// ConflictError reports that a blocking booking already holds an overlapping slot.
type ConflictError struct {
	Phase         ConflictPhase
	RoomID        string
	ConflictingID string
}

func (e *ConflictError) Error() string {
	if e.Phase == ConflictAtConfirmation {
		return msgConfirmationConflict
	}
	return msgCreationConflict
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// InvalidTransitionError reports a status change outside the lifecycle table.
type InvalidTransitionError struct {
	From    booking.Status
	To      booking.Status
	Message string
}

func (e *InvalidTransitionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.From == "" {
		return fmt.Sprintf("booking cannot move to %s", e.To)
	}
	return fmt.Sprintf("booking cannot move from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// InternalError wraps collaborator failures (storage, lock backends) so they
// are never mistaken for a domain outcome.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func internalError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *InternalError
	if errors.As(err, &existing) {
		return err
	}
	return &InternalError{Op: op, Err: err}
}
