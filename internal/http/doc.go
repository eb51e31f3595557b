// Package http exposes the advising engine over a JSON API built on gin.
//
// All routes except GET /healthz expect "Authorization: Bearer <jwt>" where
// the token carries the user id in "sub" and advisor, student or system in
// "role".
//
//   - GET /staff/{staffID}/availability?mode=day|week&date=YYYY-MM-DD: resolved
//     open, leave and booked intervals.
//   - GET /staff/{staffID}/calendar?mode=day|week&date=YYYY-MM-DD&granularity_minutes=60:
//     the same window rendered as fixed-size cells.
//   - GET, POST /staff/{staffID}/weekly-slots and PUT, DELETE
//     /staff/{staffID}/weekly-slots/{slotID}: the weekly template. POST takes
//     {"slots":[...]} and an optional split_minutes query parameter.
//   - GET, POST /staff/{staffID}/leaves and PUT, DELETE
//     /staff/{staffID}/leaves/{leaveID}: dated absences. POST takes
//     {"leaves":[...]}; cancel_conflicting=true cancels Pending meetings
//     beneath the new leave.
//   - POST /meetings, POST /meetings/batch, GET /meetings, GET /meetings/{id}:
//     booking and listing. Batches are all-or-nothing.
//   - POST /meetings/{id}/confirm|cancel|complete|advisor-missed|feedback:
//     lifecycle actions. The check-in code is only returned to the meeting's
//     student and is required by complete.
//   - GET /students/{studentID}/ban-status: cancellation standing.
//
// Errors are returned as {"error_code","message","errors"?,"conflicts"?,"failures"?}.
package http
