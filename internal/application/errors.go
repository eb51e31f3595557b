package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal does not own the resource.
	ErrUnauthorized = errors.New("not authorized for this transition")
	// ErrNotFound is matched by every NotFoundError.
	ErrNotFound = errors.New("not found")
)

// InvalidTransitionError and CheckInCodeMismatchError are produced by the
// meeting state machine and surface unchanged.
type (
	InvalidTransitionError   = meeting.InvalidTransitionError
	CheckInCodeMismatchError = meeting.CheckInCodeMismatchError
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// NotFoundError names the missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports a proposal rejected by availability or overlap checks.
type ConflictError struct {
	Reason    string
	Conflicts []scheduler.Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "conflict: " + e.Reason
	}
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return fmt.Sprintf("conflict: %s [%s]", e.Reason, strings.Join(parts, "; "))
}

// BanLimitExceededError blocks new bookings for students at their cancellation limit.
type BanLimitExceededError struct {
	StudentID    string
	CurrentCount int
	MaxAllowed   int
}

func (e *BanLimitExceededError) Error() string {
	return fmt.Sprintf("student %s reached the cancellation limit (%d of %d)", e.StudentID, e.CurrentCount, e.MaxAllowed)
}

// BatchFailure is the error recorded for one item of a rejected batch.
type BatchFailure struct {
	Index int
	Err   error
}

// PartialBatchError rejects a whole batch because at least one item failed.
// Nothing from the batch is committed.
type PartialBatchError struct {
	Total    int
	Failures []BatchFailure
}

func (e *PartialBatchError) Error() string {
	indexes := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		indexes[i] = fmt.Sprintf("#%d", f.Index)
	}
	return fmt.Sprintf("batch rejected: %d of %d items failed (%s)", len(e.Failures), e.Total, strings.Join(indexes, ", "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *PartialBatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

func conflictsToBatch(total int, conflicts []scheduler.Conflict) *PartialBatchError {
	byIndex := make(map[int][]scheduler.Conflict)
	for _, c := range conflicts {
		byIndex[c.Index] = append(byIndex[c.Index], c)
	}
	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	batch := &PartialBatchError{Total: total}
	for _, idx := range indexes {
		items := byIndex[idx]
		batch.Failures = append(batch.Failures, BatchFailure{
			Index: idx,
			Err:   &ConflictError{Reason: items[0].Reason, Conflicts: items},
		})
	}
	return batch
}
