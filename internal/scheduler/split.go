package scheduler

import (
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/recurrence"
)

// SplitWeeklySlots breaks every slot longer than maxLength into consecutive
// chunks of maxLength, with a shorter remainder at the end. IDs are cleared on
// split chunks. A non-positive maxLength returns the input unchanged.
func SplitWeeklySlots(slots []recurrence.WeeklyRule, maxLength time.Duration) []recurrence.WeeklyRule {
	step := calendar.TimeOfDay(maxLength / time.Minute)
	if step <= 0 {
		return append([]recurrence.WeeklyRule(nil), slots...)
	}

	out := make([]recurrence.WeeklyRule, 0, len(slots))
	for _, slot := range slots {
		if slot.End-slot.Start <= step {
			out = append(out, slot)
			continue
		}
		for start := slot.Start; start < slot.End; start += step {
			end := start + step
			if end > slot.End {
				end = slot.End
			}
			out = append(out, recurrence.WeeklyRule{
				StaffID: slot.StaffID,
				Day:     slot.Day,
				Start:   start,
				End:     end,
			})
		}
	}
	return out
}
