package application

import (
	"strings"
	"sync"
	"time"

	"github.com/example/advising-portal/internal/scheduler"
)

// CalendarCache keeps recently rendered grids for display. Booking decisions
// never read it; every mutation of a staff member's data drops their entries.
type CalendarCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]calendarCacheEntry
}

type calendarCacheEntry struct {
	staffID   string
	grid      scheduler.Grid
	expiresAt time.Time
}

// NewCalendarCache returns a cache; a non-positive ttl disables it.
func NewCalendarCache(ttl time.Duration, maxEntries int, now func() time.Time) *CalendarCache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &CalendarCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]calendarCacheEntry),
	}
}

func (c *CalendarCache) get(key string) (scheduler.Grid, bool) {
	if c == nil {
		return scheduler.Grid{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return scheduler.Grid{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return scheduler.Grid{}, false
	}
	return cloneGrid(entry.grid), true
}

func (c *CalendarCache) store(key string, grid scheduler.Grid) {
	if c == nil {
		return
	}
	cloned := cloneGrid(grid)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = calendarCacheEntry{staffID: grid.StaffID, grid: cloned, expiresAt: expiry}
}

// InvalidateStaff drops every grid cached for the given staff members.
func (c *CalendarCache) InvalidateStaff(staffIDs ...string) {
	if c == nil || len(staffIDs) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(staffIDs))
	for _, id := range staffIDs {
		drop[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if _, ok := drop[entry.staffID]; ok {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of live entries.
func (c *CalendarCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *CalendarCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *CalendarCache) evictOneLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func cloneGrid(grid scheduler.Grid) scheduler.Grid {
	out := grid
	out.Days = make([]scheduler.Day, len(grid.Days))
	for i, day := range grid.Days {
		out.Days[i] = day
		out.Days[i].Cells = append([]scheduler.Cell(nil), day.Cells...)
	}
	return out
}

func calendarCacheKey(staffID string, mode scheduler.Mode, rangeStart time.Time, granularity time.Duration) string {
	builder := strings.Builder{}
	builder.WriteString(staffID)
	builder.WriteString("|")
	builder.WriteString(string(mode))
	builder.WriteString("|")
	builder.WriteString(rangeStart.UTC().Format(time.RFC3339))
	builder.WriteString("|")
	builder.WriteString(granularity.String())
	return builder.String()
}
