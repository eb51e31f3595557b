package sqlite

import (
	"context"
	"time"

	"github.com/example/advising-portal/internal/persistence"
)

func (q *queries) GetBanCounter(ctx context.Context, studentID string) (persistence.BanCounter, error) {
	var (
		counter   persistence.BanCounter
		updatedAt string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT student_id, current_count, max_allowed, updated_at
		FROM ban_counters
		WHERE student_id = ?`, studentID,
	).Scan(&counter.StudentID, &counter.CurrentCount, &counter.MaxAllowed, &updatedAt)
	if err != nil {
		return persistence.BanCounter{}, mapError(err)
	}
	if counter.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.BanCounter{}, err
	}
	return counter, nil
}

// IncrementBanCounter upserts the counter in a single statement.
func (q *queries) IncrementBanCounter(ctx context.Context, studentID string, defaultMax int, at time.Time) (persistence.BanCounter, error) {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO ban_counters (student_id, current_count, max_allowed, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (student_id) DO UPDATE
		SET current_count = current_count + 1, updated_at = excluded.updated_at`,
		studentID, defaultMax, formatTime(at),
	)
	if err != nil {
		return persistence.BanCounter{}, mapError(err)
	}
	return q.GetBanCounter(ctx, studentID)
}
