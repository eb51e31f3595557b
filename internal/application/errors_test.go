package application

import (
	"errors"
	"fmt"
	"testing"

	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	assert.Empty(t, err.Error())

	assert.Equal(t, "validation failed", (&ValidationError{}).Error())

	withFields := &ValidationError{FieldErrors: map[string]string{"start": "is required", "end": "must be after start"}}
	assert.Equal(t, "validation failed: end, start", withFields.Error())
}

func TestValidationError_Add(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("start", "first")
	base.add("start", "second")
	assert.Equal(t, "first", base.FieldErrors["start"], "first message per field wins")

	base.add("end", "must be after start")
	assert.Len(t, base.FieldErrors, 2)
	assert.True(t, base.HasErrors())
}

func TestNotFoundErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", &NotFoundError{Resource: "meeting", ID: "m-1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), `meeting "m-1" not found`)
}

func TestPartialBatchErrorUnwrapsFailures(t *testing.T) {
	t.Parallel()

	batch := conflictsToBatch(5, []scheduler.Conflict{
		{Index: 2, Reason: scheduler.ReasonSlotOverlap},
		{Index: 0, Reason: scheduler.ReasonSlotOverlap},
		{Index: 2, Reason: scheduler.ReasonBooked},
	})

	require.Len(t, batch.Failures, 2)
	assert.Equal(t, 0, batch.Failures[0].Index)
	assert.Equal(t, 2, batch.Failures[1].Index)
	assert.Equal(t, "batch rejected: 2 of 5 items failed (#0, #2)", batch.Error())

	var conflict *ConflictError
	require.ErrorAs(t, batch, &conflict)
	assert.Equal(t, scheduler.ReasonSlotOverlap, conflict.Reason)
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "unauthorized", err: ErrUnauthorized, want: "unauthorized"},
		{name: "not found", err: &NotFoundError{Resource: "leave", ID: "x"}, want: "not_found"},
		{name: "validation", err: &ValidationError{}, want: "validation"},
		{name: "conflict", err: &ConflictError{Reason: "busy"}, want: "conflict"},
		{name: "transition", err: &meeting.InvalidTransitionError{}, want: "invalid_transition"},
		{name: "code", err: &meeting.CheckInCodeMismatchError{}, want: "check_in_code_mismatch"},
		{name: "ban", err: &BanLimitExceededError{}, want: "ban_limit_exceeded"},
		{name: "batch", err: &PartialBatchError{Failures: []BatchFailure{{Err: &ConflictError{}}}}, want: "partial_batch"},
		{name: "other", err: errors.New("boom"), want: "unexpected"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ErrorKind(tc.err))
		})
	}
}
