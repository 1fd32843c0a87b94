// Package http provides HTTP handlers and middleware for the room booking API.
//
// The router exposes the following endpoints:
//   - GET /healthz: unauthenticated liveness probe. Response:
//     {"status","role","storage"}; 503 when the storage ping fails.
//   - GET /rooms, GET /rooms/{id}: read-only room catalog exchanging the
//     `roomDTO` payload defined in room_handler.go.
//   - GET /bookings, POST /bookings: list the caller's bookings (every booking
//     for administrators) or request a new one. List accepts `status` (repeated
//     or comma separated) and `room_id` query parameters. Create takes
//     {"room_id","start_time","end_time","purpose","attendees"} with RFC 3339
//     timestamps.
//   - GET /bookings/{id}: one booking, visible to its requester and administrators.
//   - PATCH /bookings/{id}/status: administrator decision. Body:
//     {"status","rejection_reason"} where status is PENDING_EMPLOYEE_CONFIRMATION
//     or REJECTED.
//   - PATCH /bookings/{id}/confirm, PATCH /bookings/{id}/cancel: requester actions.
//
// Every route except /healthz requires a principal resolved by a
// PrincipalResolver; requests without one are rejected with 401. Errors use
// the body {"error_code","message","errors"}.
package http
