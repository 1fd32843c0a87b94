// Package booking defines the booking lifecycle: the statuses a reservation
// moves through, the transitions between them, and the policy table that
// decides which principals may trigger each operation.
package booking

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	// StatusPendingAdminApproval is the initial state of every new request.
	StatusPendingAdminApproval Status = "PENDING_ADMIN_APPROVAL"
	// StatusPendingEmployeeConfirmation marks a request an administrator approved
	// that still awaits the requester's confirmation. It blocks the slot.
	StatusPendingEmployeeConfirmation Status = "PENDING_EMPLOYEE_CONFIRMATION"
	// StatusConfirmed is a booking the requester committed to.
	StatusConfirmed Status = "CONFIRMED"
	// StatusRejected is a request an administrator turned down.
	StatusRejected Status = "REJECTED"
	// StatusCancelledByEmployee is a booking withdrawn by its requester or an administrator.
	StatusCancelledByEmployee Status = "CANCELLED_BY_EMPLOYEE"
)

var allStatuses = []Status{
	StatusPendingAdminApproval,
	StatusPendingEmployeeConfirmation,
	StatusConfirmed,
	StatusRejected,
	StatusCancelledByEmployee,
}

// Initial returns the status assigned to newly created bookings.
func Initial() Status {
	return StatusPendingAdminApproval
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a wire value into a Status. Matching ignores case and
// surrounding whitespace.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	if normalized.Valid() {
		return normalized, nil
	}
	return "", fmt.Errorf("booking: unknown status %q", value)
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	for _, candidate := range allStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	return len(transitionsFrom(s)) == 0
}

func (s Status) String() string {
	return string(s)
}

// StatusSet is an unordered group of statuses used for blocking rules and filters.
type StatusSet []Status

// Contains reports whether the set includes s.
func (set StatusSet) Contains(s Status) bool {
	for _, candidate := range set {
		if candidate == s {
			return true
		}
	}
	return false
}

// Strings returns the wire values of the set, in set order.
func (set StatusSet) Strings() []string {
	out := make([]string, 0, len(set))
	for _, s := range set {
		out = append(out, string(s))
	}
	return out
}

// CreationBlocking lists the statuses that prevent a new overlapping request.
// Pending admin approval is absent so competing requests can coexist until an
// administrator picks one.
func CreationBlocking() StatusSet {
	return StatusSet{StatusConfirmed, StatusPendingEmployeeConfirmation}
}

// ConfirmationBlocking lists the statuses checked when a requester confirms.
// The candidate itself is pending confirmation, so only confirmed bookings count.
func ConfirmationBlocking() StatusSet {
	return StatusSet{StatusConfirmed}
}
