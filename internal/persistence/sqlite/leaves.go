package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/advising-portal/internal/persistence"
)

const leaveColumns = `id, staff_id, start_at, end_at, note, created_at, updated_at`

func (q *queries) CreateLeave(ctx context.Context, leave persistence.LeavePeriod) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO leave_periods (`+leaveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		leave.ID,
		leave.StaffID,
		formatTime(leave.Start),
		formatTime(leave.End),
		nullString(leave.Note),
		formatTime(leave.CreatedAt),
		formatTime(leave.UpdatedAt),
	)
	return mapError(err)
}

func (q *queries) UpdateLeave(ctx context.Context, leave persistence.LeavePeriod) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE leave_periods
		SET start_at = ?, end_at = ?, note = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(leave.Start),
		formatTime(leave.End),
		nullString(leave.Note),
		formatTime(leave.UpdatedAt),
		leave.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

func (q *queries) GetLeave(ctx context.Context, id string) (persistence.LeavePeriod, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM leave_periods WHERE id = ?`, id)
	return scanLeave(row)
}

func (q *queries) ListLeaves(ctx context.Context, filter persistence.LeaveFilter) ([]persistence.LeavePeriod, error) {
	clauses := []string{"staff_id = ?"}
	args := []any{filter.StaffID}
	if filter.From != nil {
		clauses = append(clauses, "end_at > ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "start_at < ?")
		args = append(args, formatTime(*filter.To))
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_periods
		WHERE `+strings.Join(clauses, " AND ")+`
		ORDER BY start_at, id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	leaves := make([]persistence.LeavePeriod, 0)
	for rows.Next() {
		leave, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leave)
	}
	return leaves, mapError(rows.Err())
}

func (q *queries) DeleteLeave(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM leave_periods WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(result)
}

func scanLeave(row scanner) (persistence.LeavePeriod, error) {
	var (
		leave                            persistence.LeavePeriod
		start, end, createdAt, updatedAt string
		note                             sql.NullString
	)
	if err := row.Scan(&leave.ID, &leave.StaffID, &start, &end, &note, &createdAt, &updatedAt); err != nil {
		return persistence.LeavePeriod{}, mapError(err)
	}
	leave.Note = stringPtr(note)

	var err error
	if leave.Start, err = parseTime(start); err != nil {
		return persistence.LeavePeriod{}, err
	}
	if leave.End, err = parseTime(end); err != nil {
		return persistence.LeavePeriod{}, err
	}
	if leave.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.LeavePeriod{}, err
	}
	if leave.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.LeavePeriod{}, err
	}
	return leave, nil
}
