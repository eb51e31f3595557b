package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
)

const meetingColumns = `id, staff_id, student_id, start_at, end_at, status, title_student_issue, content_issue,
	note, feedback, suggestion_from_advisor, check_in_code, completed_at, created_at, updated_at`

func (q *queries) CreateMeeting(ctx context.Context, m persistence.Meeting) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.StaffID,
		m.StudentID,
		formatTime(m.Start),
		formatTime(m.End),
		int(m.Status),
		m.TitleStudentIssue,
		m.ContentIssue,
		nullString(m.Note),
		nullString(m.Feedback),
		nullString(m.SuggestionFromAdvisor),
		m.CheckInCode,
		nullTime(m.CompletedAt),
		formatTime(m.CreatedAt),
		formatTime(m.UpdatedAt),
	)
	return mapError(err)
}

func (q *queries) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id)
	return scanMeeting(row)
}

func (q *queries) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, int, error) {
	where, args := meetingWhere(filter)

	var total int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings` + where + ` ORDER BY start_at, id`
	pageArgs := append([]any(nil), args...)
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		pageArgs = append(pageArgs, limit, filter.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	meetings := make([]persistence.Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, 0, err
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return meetings, total, nil
}

// UpdateMeeting performs a compare-and-set on the status column.
func (q *queries) UpdateMeeting(ctx context.Context, m persistence.Meeting, expected meeting.Status) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE meetings
		SET status = ?, note = ?, feedback = ?, suggestion_from_advisor = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		int(m.Status),
		nullString(m.Note),
		nullString(m.Feedback),
		nullString(m.SuggestionFromAdvisor),
		nullTime(m.CompletedAt),
		formatTime(m.UpdatedAt),
		m.ID,
		int(expected),
	)
	if err != nil {
		return mapError(err)
	}
	if err := expectAffected(result); err == nil || !errors.Is(err, persistence.ErrNotFound) {
		return err
	}

	var exists int
	if err := q.db.QueryRowContext(ctx, `SELECT 1 FROM meetings WHERE id = ?`, m.ID).Scan(&exists); err != nil {
		return mapError(err)
	}
	return persistence.ErrStaleState
}

func meetingWhere(filter persistence.MeetingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.StaffID != "" {
		clauses = append(clauses, "staff_id = ?")
		args = append(args, filter.StaffID)
	}
	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, int(status))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.From != nil {
		clauses = append(clauses, "end_at > ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "start_at < ?")
		args = append(args, formatTime(*filter.To))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanMeeting(row scanner) (persistence.Meeting, error) {
	var (
		m                                persistence.Meeting
		status                           int
		start, end, createdAt, updatedAt string
		note, feedback, suggestion       sql.NullString
		completedAt                      sql.NullString
	)
	err := row.Scan(
		&m.ID,
		&m.StaffID,
		&m.StudentID,
		&start,
		&end,
		&status,
		&m.TitleStudentIssue,
		&m.ContentIssue,
		&note,
		&feedback,
		&suggestion,
		&m.CheckInCode,
		&completedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Meeting{}, mapError(err)
	}
	m.Status = meeting.Status(status)
	m.Note = stringPtr(note)
	m.Feedback = stringPtr(feedback)
	m.SuggestionFromAdvisor = stringPtr(suggestion)

	if m.Start, err = parseTime(start); err != nil {
		return persistence.Meeting{}, err
	}
	if m.End, err = parseTime(end); err != nil {
		return persistence.Meeting{}, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Meeting{}, err
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Meeting{}, err
	}
	if m.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return persistence.Meeting{}, err
	}
	return m, nil
}
