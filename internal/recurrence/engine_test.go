package recurrence

import (
	"testing"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Expand(t *testing.T) {
	t.Parallel()

	// Monday 2024-03-04
	monday := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	week := calendar.Interval{Start: monday, End: monday.AddDate(0, 0, 7)}

	t.Run("respects day of week selections", func(t *testing.T) {
		t.Parallel()

		rules := []WeeklyRule{
			{ID: "mon", StaffID: "s1", Day: calendar.Monday, Start: calendar.MustTimeOfDay("09:00"), End: calendar.MustTimeOfDay("11:00")},
			{ID: "wed", StaffID: "s1", Day: calendar.Wednesday, Start: calendar.MustTimeOfDay("13:00"), End: calendar.MustTimeOfDay("15:00")},
		}

		got, err := NewEngine(time.UTC).Expand(rules, week)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC), got[0].Start)
		assert.Equal(t, time.Date(2024, time.March, 6, 15, 0, 0, 0, time.UTC), got[1].End)
		assert.Equal(t, "wed", got[1].RuleID)
		assert.Equal(t, "s1", got[1].StaffID)
	})

	t.Run("clips occurrences to the requested window", func(t *testing.T) {
		t.Parallel()

		rules := []WeeklyRule{
			{ID: "mon", Day: calendar.Monday, Start: calendar.MustTimeOfDay("09:00"), End: calendar.MustTimeOfDay("11:00")},
		}
		window := calendar.Interval{Start: monday.Add(10 * time.Hour), End: monday.AddDate(0, 0, 14)}

		got, err := NewEngine(time.UTC).Expand(rules, window)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, monday.Add(10*time.Hour), got[0].Start)
		assert.Equal(t, monday.AddDate(0, 0, 7).Add(9*time.Hour), got[1].Start)
	})

	t.Run("anchors wall clock time in the engine zone", func(t *testing.T) {
		t.Parallel()

		ny, err := time.LoadLocation("America/New_York")
		if err != nil {
			t.Skipf("tzdata unavailable: %v", err)
		}
		rules := []WeeklyRule{
			{ID: "sun", Day: calendar.Sunday, Start: calendar.MustTimeOfDay("09:00"), End: calendar.MustTimeOfDay("10:00")},
		}
		// DST starts 2024-03-10 in New York.
		window := calendar.Interval{
			Start: time.Date(2024, time.March, 3, 0, 0, 0, 0, ny),
			End:   time.Date(2024, time.March, 17, 0, 0, 0, 0, ny),
		}

		got, err := NewEngine(ny).Expand(rules, window)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, occ := range got {
			assert.Equal(t, 9, occ.Start.In(ny).Hour())
			assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))
		}
		assert.NotEqual(t, got[0].Start.UTC().Hour(), got[1].Start.UTC().Hour())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(nil)
		_, err := engine.Expand(nil, calendar.Interval{Start: monday, End: monday})
		assert.ErrorIs(t, err, ErrInvalidWindow)

		_, err = engine.Expand([]WeeklyRule{{Day: calendar.Monday, Start: 600, End: 600}}, week)
		assert.ErrorIs(t, err, ErrInvalidDuration)

		_, err = engine.Expand([]WeeklyRule{{Day: 9, Start: 600, End: 660}}, week)
		assert.ErrorIs(t, err, ErrInvalidDay)
	})

	t.Run("returns no occurrences without rules", func(t *testing.T) {
		t.Parallel()

		got, err := NewEngine(nil).Expand(nil, week)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
