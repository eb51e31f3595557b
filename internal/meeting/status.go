// Package meeting implements the advising meeting lifecycle: the closed set of
// statuses and roles, and the table of transitions each role may perform.
package meeting

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the persisted meeting status code.
type Status int

const (
	StatusPending         Status = 1
	StatusConfirmed       Status = 2
	StatusAdvisorCanceled Status = 3
	StatusCompleted       Status = 4
	StatusStudentMissed   Status = 5
	StatusAdvisorMissed   Status = 6
	// 7 is reserved and never assigned.
	StatusOverdue         Status = 8
	StatusStudentCanceled Status = 9
)

var statusNames = map[Status]string{
	StatusPending:         "pending",
	StatusConfirmed:       "confirmed",
	StatusAdvisorCanceled: "advisor_canceled",
	StatusCompleted:       "completed",
	StatusStudentMissed:   "student_missed",
	StatusAdvisorMissed:   "advisor_missed",
	StatusOverdue:         "overdue",
	StatusStudentCanceled: "student_canceled",
}

// Statuses lists every valid status in code order.
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusConfirmed,
		StatusAdvisorCanceled,
		StatusCompleted,
		StatusStudentMissed,
		StatusAdvisorMissed,
		StatusOverdue,
		StatusStudentCanceled,
	}
}

// Valid reports whether s is one of the defined codes.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Active reports whether the meeting still occupies the advisor's time.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Terminal reports whether no further status change is possible.
func (s Status) Terminal() bool {
	return s.Valid() && !s.Active()
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus accepts either the numeric code or the lowercase name.
func ParseStatus(value string) (Status, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if code, err := strconv.Atoi(value); err == nil {
		if s := Status(code); s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("meeting: unknown status code %d", code)
	}
	for s, name := range statusNames {
		if name == value {
			return s, nil
		}
	}
	return 0, fmt.Errorf("meeting: unknown status %q", value)
}

// Role identifies who is acting on a meeting.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdvisor
	RoleStudent
	// RoleSystem is used by scheduled jobs.
	RoleSystem
)

func (r Role) String() string {
	switch r {
	case RoleAdvisor:
		return "advisor"
	case RoleStudent:
		return "student"
	case RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ParseRole maps a role name to a Role.
func ParseRole(value string) (Role, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "advisor", "staff":
		return RoleAdvisor, nil
	case "student":
		return RoleStudent, nil
	case "system":
		return RoleSystem, nil
	default:
		return RoleUnknown, fmt.Errorf("meeting: unknown role %q", value)
	}
}
