package application

import (
	"testing"
	"time"

	"github.com/example/advising-portal/internal/scheduler"
)

func sampleGrid(staffID string) scheduler.Grid {
	return scheduler.Grid{
		StaffID: staffID,
		Mode:    scheduler.ModeDay,
		Days: []scheduler.Day{{
			Cells: []scheduler.Cell{{State: scheduler.CellOpen}},
		}},
	}
}

func TestCalendarCacheStoresAndReturnsCopies(t *testing.T) {
	current := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	cache := NewCalendarCache(time.Minute, 4, func() time.Time { return current })

	cache.store("key", sampleGrid("staff-1"))

	cached, ok := cache.get("key")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	cached.Days[0].Cells[0].State = scheduler.CellBooked

	again, ok := cache.get("key")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if again.Days[0].Cells[0].State != scheduler.CellOpen {
		t.Fatalf("expected cache to return independent copy, got %v", again.Days[0].Cells[0].State)
	}
}

func TestCalendarCacheExpiresEntries(t *testing.T) {
	current := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	cache := NewCalendarCache(time.Second, 4, func() time.Time { return current })

	cache.store("key", sampleGrid("staff-1"))
	if _, ok := cache.get("key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestCalendarCacheInvalidateStaff(t *testing.T) {
	cache := NewCalendarCache(time.Minute, 4, time.Now)
	cache.store("a", sampleGrid("staff-1"))
	cache.store("b", sampleGrid("staff-2"))

	cache.InvalidateStaff("staff-1")

	if _, ok := cache.get("a"); ok {
		t.Fatalf("expected staff-1 entry to be dropped")
	}
	if _, ok := cache.get("b"); !ok {
		t.Fatalf("expected staff-2 entry to survive")
	}
}

func TestCalendarCacheEvictsWhenFull(t *testing.T) {
	cache := NewCalendarCache(time.Minute, 2, time.Now)
	cache.store("a", sampleGrid("staff-1"))
	cache.store("b", sampleGrid("staff-1"))
	cache.store("c", sampleGrid("staff-1"))

	if got := cache.Len(); got != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", got)
	}
}

func TestCalendarCacheDisabled(t *testing.T) {
	cache := NewCalendarCache(0, 0, nil)
	if cache != nil {
		t.Fatalf("expected nil cache for zero ttl")
	}
	cache.store("key", sampleGrid("staff-1"))
	cache.InvalidateStaff("staff-1")
	if _, ok := cache.get("key"); ok {
		t.Fatalf("expected disabled cache to miss")
	}
}
