package scheduler

import (
	"testing"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_DayGrid(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Slots:    []recurrence.WeeklyRule{slot("mon", calendar.Monday, "09:00", "17:00")},
		Leaves:   []Leave{leave("lunch", span(monday, "12:00", "13:00"))},
		Bookings: []Booking{booking("m1", meeting.StatusConfirmed, span(monday, "14:00", "15:00"))},
	}
	gen := NewGenerator(NewResolver(time.UTC), GridConfig{})

	grid, err := gen.Generate("staff-1", ModeDay, monday.Add(15*time.Hour), 0, snap)
	require.NoError(t, err)
	require.Len(t, grid.Days, 1)
	assert.Equal(t, time.Hour, grid.Granularity)
	assert.Equal(t, calendar.Monday, grid.Days[0].Day)

	cells := grid.Days[0].Cells
	require.Len(t, cells, 10)

	want := map[int]CellState{
		0: CellClosed, // 08:00
		1: CellOpen,   // 09:00
		4: CellLeave,  // 12:00
		5: CellOpen,   // 13:00
		6: CellBooked, // 14:00
		9: CellClosed, // 17:00
	}
	for idx, state := range want {
		assert.Equal(t, state, cells[idx].State, "cell %d", idx)
	}
	assert.Equal(t, "m1", cells[6].MeetingID)
	assert.Equal(t, "lunch", cells[4].LeaveID)
}

func TestGenerator_MidpointDecidesPartialCells(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Slots: []recurrence.WeeklyRule{slot("mon", calendar.Monday, "09:00", "10:20")},
	}
	gen := NewGenerator(NewResolver(time.UTC), GridConfig{WorkdayStart: 9 * 60, WorkdayEnd: 11 * 60})

	grid, err := gen.Generate("staff-1", ModeDay, monday, 40*time.Minute, snap)
	require.NoError(t, err)
	cells := grid.Days[0].Cells
	require.Len(t, cells, 3)
	// 09:00-09:40, 09:40-10:20, 10:20-11:00
	assert.Equal(t, CellOpen, cells[0].State)
	assert.Equal(t, CellOpen, cells[1].State)
	assert.Equal(t, CellClosed, cells[2].State)
}

func TestGenerator_TruncatesLastCell(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(NewResolver(time.UTC), GridConfig{WorkdayStart: 9 * 60, WorkdayEnd: 10*60 + 30})
	grid, err := gen.Generate("staff-1", ModeDay, monday, time.Hour, Snapshot{})
	require.NoError(t, err)
	cells := grid.Days[0].Cells
	require.Len(t, cells, 2)
	assert.Equal(t, at(monday, "10:30"), cells[1].End)
}

func TestGenerator_WeekGridStartsAtWeekStart(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(NewResolver(time.UTC), GridConfig{WeekStart: calendar.Sunday})
	thursday := monday.AddDate(0, 0, 3)

	grid, err := gen.Generate("staff-1", ModeWeek, thursday, 0, Snapshot{})
	require.NoError(t, err)
	require.Len(t, grid.Days, 7)
	assert.Equal(t, calendar.Sunday, grid.Days[0].Day)
	assert.Equal(t, monday.AddDate(0, 0, -1), grid.Days[0].Date)
	assert.Equal(t, calendar.Saturday, grid.Days[6].Day)
}

func TestGenerator_IsDeterministic(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		Slots:    []recurrence.WeeklyRule{slot("mon", calendar.Monday, "09:00", "17:00")},
		Bookings: []Booking{booking("m1", meeting.StatusPending, span(monday, "09:00", "09:30"))},
	}
	gen := NewGenerator(NewResolver(time.UTC), DefaultGridConfig())

	first, err := gen.Generate("staff-1", ModeWeek, monday, 30*time.Minute, snap)
	require.NoError(t, err)
	second, err := gen.Generate("staff-1", ModeWeek, monday, 30*time.Minute, snap)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerator_RejectsBadInput(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(NewResolver(time.UTC), GridConfig{})

	_, err := gen.Generate("staff-1", ModeDay, monday, 30*time.Second, Snapshot{})
	assert.ErrorIs(t, err, ErrInvalidGranularity)

	_, err = gen.Generate("staff-1", Mode("month"), monday, 0, Snapshot{})
	assert.Error(t, err)

	_, err = ParseMode("year")
	assert.Error(t, err)
}
