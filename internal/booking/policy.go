package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the authorization role of a principal.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole converts a wire value into a Role.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleEmployee:
		return RoleEmployee, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("booking: unknown role %q", value)
}

// Actor identifies who is attempting an operation.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Operation names a workflow operation subject to the policy table.
type Operation string

const (
	OpCreate  Operation = "create"
	OpDecide  Operation = "decide"
	OpConfirm Operation = "confirm"
	OpCancel  Operation = "cancel"
	OpList    Operation = "list"
	OpGet     Operation = "get"
)

// Permission describes which actors an operation admits.
type Permission int

const (
	// PermitAuthenticated admits any actor with an identity.
	PermitAuthenticated Permission = iota + 1
	// PermitAdmin admits administrators only.
	PermitAdmin
	// PermitOwnerOrAdmin admits the booking's requester and administrators.
	PermitOwnerOrAdmin
)

var policy = map[Operation]Permission{
	OpCreate:  PermitAuthenticated,
	OpDecide:  PermitAdmin,
	OpConfirm: PermitOwnerOrAdmin,
	OpCancel:  PermitOwnerOrAdmin,
	OpList:    PermitAuthenticated,
	OpGet:     PermitOwnerOrAdmin,
}

// PermissionFor returns the permission registered for op.
func PermissionFor(op Operation) (Permission, bool) {
	p, ok := policy[op]
	return p, ok
}

// Allows evaluates the permission for actor against the owning requester.
// ownerID is ignored for permissions that do not depend on ownership.
func (p Permission) Allows(actor Actor, ownerID string) bool {
	if strings.TrimSpace(actor.ID) == "" {
		return false
	}
	switch p {
	case PermitAuthenticated:
		return true
	case PermitAdmin:
		return actor.IsAdmin()
	case PermitOwnerOrAdmin:
		return actor.IsAdmin() || (ownerID != "" && actor.ID == ownerID)
	}
	return false
}

// Authorize evaluates the policy table once for op. Unknown operations are denied.
func Authorize(op Operation, actor Actor, ownerID string) bool {
	p, ok := policy[op]
	if !ok {
		return false
	}
	return p.Allows(actor, ownerID)
}

// ErrTransitionNotAllowed reports a status change absent from the transition table.
var ErrTransitionNotAllowed = errors.New("booking: transition not allowed")

// Transition is one row of the lifecycle table.
type Transition struct {
	From Status
	To   Status
	Op   Operation
}

var transitions = []Transition{
	{From: StatusPendingAdminApproval, To: StatusPendingEmployeeConfirmation, Op: OpDecide},
	{From: StatusPendingAdminApproval, To: StatusRejected, Op: OpDecide},
	{From: StatusPendingEmployeeConfirmation, To: StatusConfirmed, Op: OpConfirm},
	{From: StatusPendingEmployeeConfirmation, To: StatusCancelledByEmployee, Op: OpCancel},
	{From: StatusPendingAdminApproval, To: StatusCancelledByEmployee, Op: OpCancel},
	{From: StatusConfirmed, To: StatusCancelledByEmployee, Op: OpCancel},
}

// Transitions returns a copy of the lifecycle table.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

func transitionsFrom(from Status) []Transition {
	var out []Transition
	for _, t := range transitions {
		if t.From == from {
			out = append(out, t)
		}
	}
	return out
}

// Lookup finds the table row for from -> to.
func Lookup(from, to Status) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// CheckTransition verifies that op may move a booking from -> to.
func CheckTransition(op Operation, from, to Status) error {
	t, ok := Lookup(from, to)
	if !ok || t.Op != op {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	return nil
}

// DecisionTargets lists the statuses an administrator may choose when deciding.
func DecisionTargets() StatusSet {
	var out StatusSet
	for _, t := range transitions {
		if t.Op == OpDecide && !out.Contains(t.To) {
			out = append(out, t.To)
		}
	}
	return out
}

// CancellableFrom lists the statuses from which a cancellation is permitted.
func CancellableFrom() StatusSet {
	var out StatusSet
	for _, t := range transitions {
		if t.Op == OpCancel {
			out = append(out, t.From)
		}
	}
	return out
}
