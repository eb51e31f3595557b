package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/scheduler"
	"go.uber.org/zap"
)

// CalendarService answers read-only availability and grid queries. Reads are
// not synchronised with mutations; bookings re-validate under the staff lock.
type CalendarService struct {
	deps      Deps
	generator *scheduler.Generator
}

// NewCalendarService wires dependencies for calendar queries.
func NewCalendarService(deps Deps, grid scheduler.GridConfig) *CalendarService {
	deps = deps.withDefaults()
	return &CalendarService{deps: deps, generator: scheduler.NewGenerator(deps.Resolver, grid)}
}

func (s *CalendarService) loggerWith(ctx context.Context, operation string, fields ...zap.Field) *zap.Logger {
	return serviceLogger(ctx, s.deps.Logger, "CalendarService", operation, fields...)
}

// Availability resolves the staff member's day or week containing date.
func (s *CalendarService) Availability(ctx context.Context, staffID string, mode scheduler.Mode, date time.Time) (calendar.Interval, []scheduler.Interval, error) {
	window, err := s.generator.Range(mode, date)
	if err != nil {
		return calendar.Interval{}, nil, &ValidationError{FieldErrors: map[string]string{"mode": err.Error()}}
	}

	snap, err := loadSnapshot(ctx, s.deps.Store, staffID, window)
	if err != nil {
		s.loggerWith(ctx, "Availability", zap.String("staff_id", staffID)).
			Error("failed to load availability", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
		return calendar.Interval{}, nil, err
	}
	intervals, err := s.deps.Resolver.Resolve(staffID, window, snap)
	if err != nil {
		return calendar.Interval{}, nil, &ValidationError{FieldErrors: map[string]string{"date": err.Error()}}
	}
	return window, intervals, nil
}

// Grid renders the day or week containing date into cells. A zero
// granularity uses the configured default.
func (s *CalendarService) Grid(ctx context.Context, staffID string, mode scheduler.Mode, date time.Time, granularity time.Duration) (scheduler.Grid, error) {
	window, err := s.generator.Range(mode, date)
	if err != nil {
		return scheduler.Grid{}, &ValidationError{FieldErrors: map[string]string{"mode": err.Error()}}
	}
	if granularity == 0 {
		granularity = s.generator.Config().Granularity
	}

	key := calendarCacheKey(staffID, mode, window.Start, granularity)
	if grid, ok := s.deps.Cache.get(key); ok {
		return grid, nil
	}

	snap, err := loadSnapshot(ctx, s.deps.Store, staffID, window)
	if err != nil {
		s.loggerWith(ctx, "Grid", zap.String("staff_id", staffID)).
			Error("failed to load availability", zap.Error(err), zap.String("error_kind", ErrorKind(err)))
		return scheduler.Grid{}, err
	}

	grid, err := s.generator.Generate(staffID, mode, date, granularity, snap)
	switch {
	case errors.Is(err, scheduler.ErrInvalidGranularity):
		return scheduler.Grid{}, &ValidationError{FieldErrors: map[string]string{"granularity_minutes": "must be at least 1"}}
	case err != nil:
		return scheduler.Grid{}, fmt.Errorf("generate grid: %w", err)
	}

	s.deps.Cache.store(key, grid)
	return grid, nil
}
