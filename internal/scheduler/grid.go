package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/advising-portal/internal/calendar"
)

// Mode selects a day or week grid.
type Mode string

const (
	ModeDay  Mode = "day"
	ModeWeek Mode = "week"
)

// ParseMode accepts "day" or "week"; empty means day.
func ParseMode(value string) (Mode, error) {
	switch Mode(value) {
	case "", ModeDay:
		return ModeDay, nil
	case ModeWeek:
		return ModeWeek, nil
	default:
		return "", fmt.Errorf("scheduler: unknown grid mode %q", value)
	}
}

// CellState is the display state of one grid cell.
type CellState int

const (
	// CellClosed marks cells outside the advisor's weekly template.
	CellClosed CellState = iota
	CellOpen
	CellLeave
	CellBooked
)

func (s CellState) String() string {
	switch s {
	case CellOpen:
		return "open"
	case CellLeave:
		return "leave"
	case CellBooked:
		return "booked"
	default:
		return "closed"
	}
}

// MarshalText renders the lowercase name.
func (s CellState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Cell is one fixed-size time box in a grid.
type Cell struct {
	Start     time.Time
	End       time.Time
	State     CellState
	MeetingID string
	LeaveID   string
}

// Day is a row of cells for one calendar day.
type Day struct {
	Date  time.Time
	Day   calendar.DayOfWeek
	Cells []Cell
}

// Grid is the rendered calendar for a day or week.
type Grid struct {
	StaffID     string
	Mode        Mode
	Range       calendar.Interval
	Granularity time.Duration
	Days        []Day
}

// GridConfig holds the display defaults.
type GridConfig struct {
	WorkdayStart calendar.TimeOfDay
	WorkdayEnd   calendar.TimeOfDay
	Granularity  time.Duration
	WeekStart    calendar.DayOfWeek
}

// DefaultGridConfig is 08:00-18:00 in one hour cells with Monday weeks.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		WorkdayStart: 8 * 60,
		WorkdayEnd:   18 * 60,
		Granularity:  time.Hour,
		WeekStart:    calendar.Monday,
	}
}

// ErrInvalidGranularity is returned for cell sizes below one minute.
var ErrInvalidGranularity = errors.New("scheduler: granularity must be at least one minute")

// ErrInvalidWorkday is returned when the working window is empty.
var ErrInvalidWorkday = errors.New("scheduler: workday end must be after start")

// Generator renders resolved availability into grids.
type Generator struct {
	resolver *Resolver
	config   GridConfig
}

// NewGenerator applies defaults for zero config fields.
func NewGenerator(resolver *Resolver, cfg GridConfig) *Generator {
	defaults := DefaultGridConfig()
	if cfg.WorkdayStart == 0 && cfg.WorkdayEnd == 0 {
		cfg.WorkdayStart, cfg.WorkdayEnd = defaults.WorkdayStart, defaults.WorkdayEnd
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = defaults.Granularity
	}
	if !cfg.WeekStart.Valid() {
		cfg.WeekStart = defaults.WeekStart
	}
	return &Generator{resolver: resolver, config: cfg}
}

// Config returns the effective configuration.
func (g *Generator) Config() GridConfig {
	return g.config
}

// Range returns the day or week containing date.
func (g *Generator) Range(mode Mode, date time.Time) (calendar.Interval, error) {
	loc := g.resolver.Location()
	switch mode {
	case ModeDay:
		return calendar.DayRange(date, loc), nil
	case ModeWeek:
		return calendar.WeekRange(date, loc, g.config.WeekStart), nil
	default:
		return calendar.Interval{}, fmt.Errorf("scheduler: unknown grid mode %q", mode)
	}
}

// Generate renders the grid for the day or week containing date. A zero
// granularity uses the configured default. The state of each cell is taken
// from the resolved interval containing its midpoint.
func (g *Generator) Generate(staffID string, mode Mode, date time.Time, granularity time.Duration, snap Snapshot) (Grid, error) {
	if granularity == 0 {
		granularity = g.config.Granularity
	}
	if granularity < time.Minute {
		return Grid{}, ErrInvalidGranularity
	}
	if g.config.WorkdayEnd <= g.config.WorkdayStart {
		return Grid{}, ErrInvalidWorkday
	}

	window, err := g.Range(mode, date)
	if err != nil {
		return Grid{}, err
	}
	intervals, err := g.resolver.Resolve(staffID, window, snap)
	if err != nil {
		return Grid{}, err
	}

	loc := g.resolver.Location()
	grid := Grid{StaffID: staffID, Mode: mode, Range: window, Granularity: granularity}
	for _, day := range calendar.Days(window, loc) {
		grid.Days = append(grid.Days, Day{
			Date:  day,
			Day:   calendar.FromWeekday(day.Weekday()),
			Cells: g.cells(day, granularity, intervals),
		})
	}
	return grid, nil
}

func (g *Generator) cells(day time.Time, granularity time.Duration, intervals []Interval) []Cell {
	loc := g.resolver.Location()
	start := g.config.WorkdayStart.On(day, loc)
	end := g.config.WorkdayEnd.On(day, loc)

	cells := make([]Cell, 0, int(end.Sub(start)/granularity)+1)
	for cellStart := start; cellStart.Before(end); cellStart = cellStart.Add(granularity) {
		cellEnd := cellStart.Add(granularity)
		if cellEnd.After(end) {
			cellEnd = end
		}
		cell := Cell{Start: cellStart, End: cellEnd, State: CellClosed}
		if iv, ok := intervalAt(intervals, cellStart.Add(cellEnd.Sub(cellStart)/2)); ok {
			cell.MeetingID = iv.MeetingID
			cell.LeaveID = iv.LeaveID
			switch iv.Kind {
			case KindOpen:
				cell.State = CellOpen
			case KindLeave:
				cell.State = CellLeave
			case KindBooked:
				cell.State = CellBooked
			}
		}
		cells = append(cells, cell)
	}
	return cells
}

// intervalAt finds the interval containing t in a sorted, non-overlapping list.
func intervalAt(intervals []Interval, t time.Time) (Interval, bool) {
	idx := sort.Search(len(intervals), func(i int) bool {
		return intervals[i].End.After(t)
	})
	if idx < len(intervals) && !intervals[idx].Start.After(t) {
		return intervals[idx], true
	}
	return Interval{}, false
}
