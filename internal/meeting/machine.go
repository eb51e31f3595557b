package meeting

import (
	"fmt"
	"time"
)

// Action names a lifecycle command.
type Action string

const (
	ActionConfirm             Action = "confirm"
	ActionAdvisorCancel       Action = "advisor_cancel"
	ActionStudentCancel       Action = "student_cancel"
	ActionComplete            Action = "complete"
	ActionReportAdvisorMissed Action = "report_advisor_missed"
	ActionFeedback            Action = "feedback"
	ActionMarkOverdue         Action = "mark_overdue"
)

type transition struct {
	action Action
	role   Role
	from   Status
}

type effect struct {
	to           Status
	incrementBan bool
}

// Feedback transitions leave the status untouched and are resolved separately.
var transitions = map[transition]effect{
	{ActionConfirm, RoleAdvisor, StatusPending}:               {to: StatusConfirmed},
	{ActionAdvisorCancel, RoleAdvisor, StatusPending}:         {to: StatusAdvisorCanceled},
	{ActionComplete, RoleAdvisor, StatusConfirmed}:            {to: StatusCompleted},
	{ActionStudentCancel, RoleStudent, StatusPending}:         {to: StatusStudentCanceled, incrementBan: true},
	{ActionStudentCancel, RoleStudent, StatusConfirmed}:       {to: StatusStudentCanceled, incrementBan: true},
	{ActionReportAdvisorMissed, RoleStudent, StatusConfirmed}: {to: StatusAdvisorMissed},
	{ActionMarkOverdue, RoleSystem, StatusConfirmed}:          {to: StatusOverdue},
}

var feedbackStatuses = map[Status]struct{}{
	StatusCompleted:     {},
	StatusStudentMissed: {},
	StatusAdvisorMissed: {},
}

// State is the part of a meeting the machine needs to decide a transition.
type State struct {
	Status      Status
	CheckInCode string
	End         time.Time
}

// Request is one lifecycle command issued by a role.
type Request struct {
	Action      Action
	Role        Role
	CheckInCode string
	Note        *string
	Feedback    *string
	Suggestion  *string
	At          time.Time
}

// Outcome describes the result of an accepted request. Callers persist it;
// the machine itself holds no state.
type Outcome struct {
	From         Status
	To           Status
	Changed      bool
	CompletedAt  *time.Time
	Note         *string
	Feedback     *string
	Suggestion   *string
	IncrementBan bool
}

// InvalidTransitionError reports a (role, action, status) combination outside
// the transition table.
type InvalidTransitionError struct {
	Role   Role
	Action Action
	From   Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s cannot %s a %s meeting: %s", e.Role, e.Action, e.From, e.Reason)
	}
	return fmt.Sprintf("%s cannot %s a %s meeting", e.Role, e.Action, e.From)
}

// CheckInCodeMismatchError is returned when completion is attempted with a
// code that differs from the stored one.
type CheckInCodeMismatchError struct{}

func (e *CheckInCodeMismatchError) Error() string {
	return "check-in code does not match"
}

// Apply validates req against the transition table and returns the outcome.
// It never mutates its inputs.
func Apply(state State, req Request) (Outcome, error) {
	if req.Action == ActionFeedback {
		return applyFeedback(state, req)
	}

	eff, ok := transitions[transition{action: req.Action, role: req.Role, from: state.Status}]
	if !ok {
		return Outcome{}, &InvalidTransitionError{Role: req.Role, Action: req.Action, From: state.Status}
	}

	out := Outcome{From: state.Status, To: eff.to, Changed: true, IncrementBan: eff.incrementBan}

	switch req.Action {
	case ActionComplete:
		if state.CheckInCode == "" || req.CheckInCode != state.CheckInCode {
			return Outcome{}, &CheckInCodeMismatchError{}
		}
		at := req.At
		out.CompletedAt = &at
	case ActionMarkOverdue:
		if state.End.IsZero() || state.End.After(req.At) {
			return Outcome{}, &InvalidTransitionError{
				Role:   req.Role,
				Action: req.Action,
				From:   state.Status,
				Reason: "meeting has not ended yet",
			}
		}
	case ActionAdvisorCancel, ActionStudentCancel, ActionReportAdvisorMissed:
		out.Note = req.Note
	}

	return out, nil
}

func applyFeedback(state State, req Request) (Outcome, error) {
	if req.Role != RoleStudent {
		return Outcome{}, &InvalidTransitionError{Role: req.Role, Action: req.Action, From: state.Status}
	}
	if _, ok := feedbackStatuses[state.Status]; !ok {
		return Outcome{}, &InvalidTransitionError{Role: req.Role, Action: req.Action, From: state.Status}
	}
	return Outcome{
		From:       state.Status,
		To:         state.Status,
		Feedback:   req.Feedback,
		Suggestion: req.Suggestion,
	}, nil
}

// Allowed reports whether role may move a meeting from one status to another.
// A from==to pair is allowed only for feedback.
func Allowed(role Role, from, to Status) bool {
	if from == to {
		_, ok := feedbackStatuses[from]
		return ok && role == RoleStudent
	}
	for key, eff := range transitions {
		if key.role == role && key.from == from && eff.to == to {
			return true
		}
	}
	return false
}

// Actions lists every lifecycle command.
func Actions() []Action {
	return []Action{
		ActionConfirm,
		ActionAdvisorCancel,
		ActionStudentCancel,
		ActionComplete,
		ActionReportAdvisorMissed,
		ActionFeedback,
		ActionMarkOverdue,
	}
}
