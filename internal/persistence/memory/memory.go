// Package memory provides an in-process persistence.Store used for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
)

type dataset struct {
	slots    map[string]persistence.WeeklySlot
	leaves   map[string]persistence.LeavePeriod
	meetings map[string]persistence.Meeting
	bans     map[string]persistence.BanCounter
}

func newDataset() *dataset {
	return &dataset{
		slots:    make(map[string]persistence.WeeklySlot),
		leaves:   make(map[string]persistence.LeavePeriod),
		meetings: make(map[string]persistence.Meeting),
		bans:     make(map[string]persistence.BanCounter),
	}
}

func (d *dataset) clone() *dataset {
	out := newDataset()
	for k, v := range d.slots {
		out.slots[k] = v
	}
	for k, v := range d.leaves {
		out.leaves[k] = cloneLeave(v)
	}
	for k, v := range d.meetings {
		out.meetings[k] = cloneMeeting(v)
	}
	for k, v := range d.bans {
		out.bans[k] = v
	}
	return out
}

// Store keeps every record in maps. Writes are serialised and a transaction
// works on a private copy that replaces the live data on commit.
type Store struct {
	repos

	mu   sync.RWMutex
	txMu sync.Mutex
	data *dataset
}

var _ persistence.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	s := &Store{data: newDataset()}
	s.repos = repos{store: s}
	return s
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// WithinTx implements persistence.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &repos{store: s, tx: working}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = working
	s.mu.Unlock()
	return nil
}

type repos struct {
	store *Store
	tx    *dataset
}

func (r *repos) read(fn func(d *dataset)) {
	if r.tx != nil {
		fn(r.tx)
		return
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	fn(r.store.data)
}

func (r *repos) write(ctx context.Context, fn func(d *dataset) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.WithinTx(ctx, func(_ context.Context, inner persistence.Repositories) error {
		return fn(inner.(*repos).tx)
	})
}

// --- SlotRepository implementation ---

func (r *repos) CreateWeeklySlot(ctx context.Context, slot persistence.WeeklySlot) error {
	return r.write(ctx, func(d *dataset) error {
		if _, ok := d.slots[slot.ID]; ok {
			return fmt.Errorf("memory: weekly slot %s: %w", slot.ID, persistence.ErrDuplicate)
		}
		d.slots[slot.ID] = slot
		return nil
	})
}

func (r *repos) UpdateWeeklySlot(ctx context.Context, slot persistence.WeeklySlot) error {
	return r.write(ctx, func(d *dataset) error {
		current, ok := d.slots[slot.ID]
		if !ok {
			return persistence.ErrNotFound
		}
		slot.StaffID = current.StaffID
		slot.CreatedAt = current.CreatedAt
		d.slots[slot.ID] = slot
		return nil
	})
}

func (r *repos) GetWeeklySlot(_ context.Context, id string) (persistence.WeeklySlot, error) {
	var (
		slot persistence.WeeklySlot
		ok   bool
	)
	r.read(func(d *dataset) { slot, ok = d.slots[id] })
	if !ok {
		return persistence.WeeklySlot{}, persistence.ErrNotFound
	}
	return slot, nil
}

// ListWeeklySlots returns the staff member's slots ordered by day then start.
func (r *repos) ListWeeklySlots(_ context.Context, staffID string) ([]persistence.WeeklySlot, error) {
	slots := make([]persistence.WeeklySlot, 0)
	r.read(func(d *dataset) {
		for _, slot := range d.slots {
			if slot.StaffID == staffID {
				slots = append(slots, slot)
			}
		}
	})
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.ID < b.ID
	})
	return slots, nil
}

func (r *repos) DeleteWeeklySlot(ctx context.Context, id string) error {
	return r.write(ctx, func(d *dataset) error {
		if _, ok := d.slots[id]; !ok {
			return persistence.ErrNotFound
		}
		delete(d.slots, id)
		return nil
	})
}

// --- LeaveRepository implementation ---

func (r *repos) CreateLeave(ctx context.Context, leave persistence.LeavePeriod) error {
	return r.write(ctx, func(d *dataset) error {
		if _, ok := d.leaves[leave.ID]; ok {
			return fmt.Errorf("memory: leave %s: %w", leave.ID, persistence.ErrDuplicate)
		}
		d.leaves[leave.ID] = cloneLeave(leave)
		return nil
	})
}

func (r *repos) UpdateLeave(ctx context.Context, leave persistence.LeavePeriod) error {
	return r.write(ctx, func(d *dataset) error {
		current, ok := d.leaves[leave.ID]
		if !ok {
			return persistence.ErrNotFound
		}
		leave.StaffID = current.StaffID
		leave.CreatedAt = current.CreatedAt
		d.leaves[leave.ID] = cloneLeave(leave)
		return nil
	})
}

func (r *repos) GetLeave(_ context.Context, id string) (persistence.LeavePeriod, error) {
	var (
		leave persistence.LeavePeriod
		ok    bool
	)
	r.read(func(d *dataset) { leave, ok = d.leaves[id] })
	if !ok {
		return persistence.LeavePeriod{}, persistence.ErrNotFound
	}
	return cloneLeave(leave), nil
}

func (r *repos) ListLeaves(_ context.Context, filter persistence.LeaveFilter) ([]persistence.LeavePeriod, error) {
	leaves := make([]persistence.LeavePeriod, 0)
	r.read(func(d *dataset) {
		for _, leave := range d.leaves {
			if leave.StaffID != filter.StaffID {
				continue
			}
			if !overlapsWindow(leave.Start, leave.End, filter.From, filter.To) {
				continue
			}
			leaves = append(leaves, cloneLeave(leave))
		}
	})
	sort.Slice(leaves, func(i, j int) bool {
		if leaves[i].Start.Equal(leaves[j].Start) {
			return leaves[i].ID < leaves[j].ID
		}
		return leaves[i].Start.Before(leaves[j].Start)
	})
	return leaves, nil
}

func (r *repos) DeleteLeave(ctx context.Context, id string) error {
	return r.write(ctx, func(d *dataset) error {
		if _, ok := d.leaves[id]; !ok {
			return persistence.ErrNotFound
		}
		delete(d.leaves, id)
		return nil
	})
}

// --- MeetingRepository implementation ---

func (r *repos) CreateMeeting(ctx context.Context, m persistence.Meeting) error {
	return r.write(ctx, func(d *dataset) error {
		if _, ok := d.meetings[m.ID]; ok {
			return fmt.Errorf("memory: meeting %s: %w", m.ID, persistence.ErrDuplicate)
		}
		d.meetings[m.ID] = cloneMeeting(m)
		return nil
	})
}

func (r *repos) GetMeeting(_ context.Context, id string) (persistence.Meeting, error) {
	var (
		m  persistence.Meeting
		ok bool
	)
	r.read(func(d *dataset) { m, ok = d.meetings[id] })
	if !ok {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (r *repos) ListMeetings(_ context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, int, error) {
	matches := make([]persistence.Meeting, 0)
	r.read(func(d *dataset) {
		for _, m := range d.meetings {
			if matchesMeeting(filter, m) {
				matches = append(matches, cloneMeeting(m))
			}
		}
	})
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start.Equal(matches[j].Start) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Start.Before(matches[j].Start)
	})

	total := len(matches)
	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return []persistence.Meeting{}, total, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, total, nil
}

func (r *repos) UpdateMeeting(ctx context.Context, m persistence.Meeting, expected meeting.Status) error {
	return r.write(ctx, func(d *dataset) error {
		current, ok := d.meetings[m.ID]
		if !ok {
			return persistence.ErrNotFound
		}
		if current.Status != expected {
			return persistence.ErrStaleState
		}
		m.CreatedAt = current.CreatedAt
		d.meetings[m.ID] = cloneMeeting(m)
		return nil
	})
}

// --- BanCounterRepository implementation ---

func (r *repos) GetBanCounter(_ context.Context, studentID string) (persistence.BanCounter, error) {
	var (
		counter persistence.BanCounter
		ok      bool
	)
	r.read(func(d *dataset) { counter, ok = d.bans[studentID] })
	if !ok {
		return persistence.BanCounter{}, persistence.ErrNotFound
	}
	return counter, nil
}

func (r *repos) IncrementBanCounter(ctx context.Context, studentID string, defaultMax int, at time.Time) (persistence.BanCounter, error) {
	var out persistence.BanCounter
	err := r.write(ctx, func(d *dataset) error {
		counter, ok := d.bans[studentID]
		if !ok {
			counter = persistence.BanCounter{StudentID: studentID, MaxAllowed: defaultMax}
		}
		counter.CurrentCount++
		counter.UpdatedAt = at
		d.bans[studentID] = counter
		out = counter
		return nil
	})
	return out, err
}

// SetBanCounter seeds a counter directly.
func (s *Store) SetBanCounter(counter persistence.BanCounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.bans[counter.StudentID] = counter
}

func matchesMeeting(filter persistence.MeetingFilter, m persistence.Meeting) bool {
	if filter.StaffID != "" && m.StaffID != filter.StaffID {
		return false
	}
	if filter.StudentID != "" && m.StudentID != filter.StudentID {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, m.Status) {
		return false
	}
	return overlapsWindow(m.Start, m.End, filter.From, filter.To)
}

func overlapsWindow(start, end time.Time, from, to *time.Time) bool {
	if from != nil && !end.After(*from) {
		return false
	}
	if to != nil && !start.Before(*to) {
		return false
	}
	return true
}

func cloneLeave(leave persistence.LeavePeriod) persistence.LeavePeriod {
	leave.Note = cloneString(leave.Note)
	return leave
}

func cloneMeeting(m persistence.Meeting) persistence.Meeting {
	m.Note = cloneString(m.Note)
	m.Feedback = cloneString(m.Feedback)
	m.SuggestionFromAdvisor = cloneString(m.SuggestionFromAdvisor)
	if m.CompletedAt != nil {
		completed := *m.CompletedAt
		m.CompletedAt = &completed
	}
	return m
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
