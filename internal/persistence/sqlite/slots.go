package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/persistence"
)

const slotColumns = `id, staff_id, day_of_week, start_minute, end_minute, created_at, updated_at`

func (q *queries) CreateWeeklySlot(ctx context.Context, slot persistence.WeeklySlot) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO weekly_slots (`+slotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		slot.ID,
		slot.StaffID,
		int(slot.DayOfWeek),
		int(slot.StartTime),
		int(slot.EndTime),
		formatTime(slot.CreatedAt),
		formatTime(slot.UpdatedAt),
	)
	return mapError(err)
}

// UpdateWeeklySlot changes the day and times; the owner is immutable.
func (q *queries) UpdateWeeklySlot(ctx context.Context, slot persistence.WeeklySlot) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE weekly_slots
		SET day_of_week = ?, start_minute = ?, end_minute = ?, updated_at = ?
		WHERE id = ?`,
		int(slot.DayOfWeek),
		int(slot.StartTime),
		int(slot.EndTime),
		formatTime(slot.UpdatedAt),
		slot.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

func (q *queries) GetWeeklySlot(ctx context.Context, id string) (persistence.WeeklySlot, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM weekly_slots WHERE id = ?`, id)
	return scanSlot(row)
}

func (q *queries) ListWeeklySlots(ctx context.Context, staffID string) ([]persistence.WeeklySlot, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+slotColumns+`
		FROM weekly_slots
		WHERE staff_id = ?
		ORDER BY day_of_week, start_minute, id`, staffID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	slots := make([]persistence.WeeklySlot, 0)
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, mapError(rows.Err())
}

func (q *queries) DeleteWeeklySlot(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM weekly_slots WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(row scanner) (persistence.WeeklySlot, error) {
	var (
		slot                 persistence.WeeklySlot
		day, start, end      int
		createdAt, updatedAt string
	)
	if err := row.Scan(&slot.ID, &slot.StaffID, &day, &start, &end, &createdAt, &updatedAt); err != nil {
		return persistence.WeeklySlot{}, mapError(err)
	}
	slot.DayOfWeek = calendar.DayOfWeek(day)
	slot.StartTime = calendar.TimeOfDay(start)
	slot.EndTime = calendar.TimeOfDay(end)

	var err error
	if slot.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.WeeklySlot{}, err
	}
	if slot.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.WeeklySlot{}, err
	}
	return slot, nil
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
