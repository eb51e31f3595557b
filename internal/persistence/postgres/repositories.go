package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/jackc/pgx/v5"
)

// --- SlotRepository implementation ---

const slotColumns = `id, staff_id, day_of_week, start_minute, end_minute, created_at, updated_at`

func (q *queries) CreateWeeklySlot(ctx context.Context, slot persistence.WeeklySlot) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO weekly_slots (`+slotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		slot.ID, slot.StaffID, int(slot.DayOfWeek), int(slot.StartTime), int(slot.EndTime), slot.CreatedAt, slot.UpdatedAt,
	)
	return mapError(err)
}

func (q *queries) UpdateWeeklySlot(ctx context.Context, slot persistence.WeeklySlot) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE weekly_slots
		SET day_of_week = $1, start_minute = $2, end_minute = $3, updated_at = $4
		WHERE id = $5`,
		int(slot.DayOfWeek), int(slot.StartTime), int(slot.EndTime), slot.UpdatedAt, slot.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(tag)
}

func (q *queries) GetWeeklySlot(ctx context.Context, id string) (persistence.WeeklySlot, error) {
	return scanSlot(q.db.QueryRow(ctx, `SELECT `+slotColumns+` FROM weekly_slots WHERE id = $1`, id))
}

func (q *queries) ListWeeklySlots(ctx context.Context, staffID string) ([]persistence.WeeklySlot, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+slotColumns+`
		FROM weekly_slots
		WHERE staff_id = $1
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
	tag, err := q.db.Exec(ctx, `DELETE FROM weekly_slots WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(tag)
}

func scanSlot(row pgx.Row) (persistence.WeeklySlot, error) {
	var (
		slot            persistence.WeeklySlot
		day, start, end int
	)
	if err := row.Scan(&slot.ID, &slot.StaffID, &day, &start, &end, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
		return persistence.WeeklySlot{}, mapError(err)
	}
	slot.DayOfWeek = calendar.DayOfWeek(day)
	slot.StartTime = calendar.TimeOfDay(start)
	slot.EndTime = calendar.TimeOfDay(end)
	return slot, nil
}

// --- LeaveRepository implementation ---

const leaveColumns = `id, staff_id, start_at, end_at, note, created_at, updated_at`

func (q *queries) CreateLeave(ctx context.Context, leave persistence.LeavePeriod) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO leave_periods (`+leaveColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		leave.ID, leave.StaffID, leave.Start, leave.End, leave.Note, leave.CreatedAt, leave.UpdatedAt,
	)
	return mapError(err)
}

func (q *queries) UpdateLeave(ctx context.Context, leave persistence.LeavePeriod) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE leave_periods
		SET start_at = $1, end_at = $2, note = $3, updated_at = $4
		WHERE id = $5`,
		leave.Start, leave.End, leave.Note, leave.UpdatedAt, leave.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(tag)
}

func (q *queries) GetLeave(ctx context.Context, id string) (persistence.LeavePeriod, error) {
	return scanLeave(q.db.QueryRow(ctx, `SELECT `+leaveColumns+` FROM leave_periods WHERE id = $1`, id))
}

func (q *queries) ListLeaves(ctx context.Context, filter persistence.LeaveFilter) ([]persistence.LeavePeriod, error) {
	args := []any{filter.StaffID}
	clauses := []string{"staff_id = $1"}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("end_at > $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("start_at < $%d", len(args)))
	}

	rows, err := q.db.Query(ctx, `
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
	tag, err := q.db.Exec(ctx, `DELETE FROM leave_periods WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return expectAffected(tag)
}

func scanLeave(row pgx.Row) (persistence.LeavePeriod, error) {
	var leave persistence.LeavePeriod
	if err := row.Scan(&leave.ID, &leave.StaffID, &leave.Start, &leave.End, &leave.Note, &leave.CreatedAt, &leave.UpdatedAt); err != nil {
		return persistence.LeavePeriod{}, mapError(err)
	}
	return leave, nil
}

// --- MeetingRepository implementation ---

const meetingColumns = `id, staff_id, student_id, start_at, end_at, status, title_student_issue, content_issue,
	note, feedback, suggestion_from_advisor, check_in_code, completed_at, created_at, updated_at`

func (q *queries) CreateMeeting(ctx context.Context, m persistence.Meeting) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.ID, m.StaffID, m.StudentID, m.Start, m.End, int(m.Status), m.TitleStudentIssue, m.ContentIssue,
		m.Note, m.Feedback, m.SuggestionFromAdvisor, m.CheckInCode, m.CompletedAt, m.CreatedAt, m.UpdatedAt,
	)
	return mapError(err)
}

func (q *queries) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	return scanMeeting(q.db.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
}

func (q *queries) ListMeetings(ctx context.Context, filter persistence.MeetingFilter) ([]persistence.Meeting, int, error) {
	where, args := meetingWhere(filter)

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM meetings`+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	query := `SELECT ` + meetingColumns + ` FROM meetings` + where + ` ORDER BY start_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.db.Query(ctx, query, args...)
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

func (q *queries) UpdateMeeting(ctx context.Context, m persistence.Meeting, expected meeting.Status) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE meetings
		SET status = $1, note = $2, feedback = $3, suggestion_from_advisor = $4, completed_at = $5, updated_at = $6
		WHERE id = $7 AND status = $8`,
		int(m.Status), m.Note, m.Feedback, m.SuggestionFromAdvisor, m.CompletedAt, m.UpdatedAt, m.ID, int(expected),
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists int
	if err := q.db.QueryRow(ctx, `SELECT 1 FROM meetings WHERE id = $1`, m.ID).Scan(&exists); err != nil {
		return mapError(err)
	}
	return persistence.ErrStaleState
}

func meetingWhere(filter persistence.MeetingFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.StaffID != "" {
		add("staff_id = $%d", filter.StaffID)
	}
	if filter.StudentID != "" {
		add("student_id = $%d", filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		codes := make([]int32, len(filter.Statuses))
		for i, status := range filter.Statuses {
			codes[i] = int32(status)
		}
		add("status = ANY($%d)", codes)
	}
	if filter.From != nil {
		add("end_at > $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_at < $%d", *filter.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanMeeting(row pgx.Row) (persistence.Meeting, error) {
	var (
		m      persistence.Meeting
		status int
	)
	err := row.Scan(
		&m.ID, &m.StaffID, &m.StudentID, &m.Start, &m.End, &status, &m.TitleStudentIssue, &m.ContentIssue,
		&m.Note, &m.Feedback, &m.SuggestionFromAdvisor, &m.CheckInCode, &m.CompletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return persistence.Meeting{}, mapError(err)
	}
	m.Status = meeting.Status(status)
	return m, nil
}

// --- BanCounterRepository implementation ---

func (q *queries) GetBanCounter(ctx context.Context, studentID string) (persistence.BanCounter, error) {
	var counter persistence.BanCounter
	err := q.db.QueryRow(ctx, `
		SELECT student_id, current_count, max_allowed, updated_at
		FROM ban_counters
		WHERE student_id = $1`, studentID,
	).Scan(&counter.StudentID, &counter.CurrentCount, &counter.MaxAllowed, &counter.UpdatedAt)
	if err != nil {
		return persistence.BanCounter{}, mapError(err)
	}
	return counter, nil
}

func (q *queries) IncrementBanCounter(ctx context.Context, studentID string, defaultMax int, at time.Time) (persistence.BanCounter, error) {
	var counter persistence.BanCounter
	err := q.db.QueryRow(ctx, `
		INSERT INTO ban_counters (student_id, current_count, max_allowed, updated_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (student_id) DO UPDATE
		SET current_count = ban_counters.current_count + 1, updated_at = EXCLUDED.updated_at
		RETURNING student_id, current_count, max_allowed, updated_at`,
		studentID, defaultMax, at,
	).Scan(&counter.StudentID, &counter.CurrentCount, &counter.MaxAllowed, &counter.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.BanCounter{}, fmt.Errorf("postgres: upsert ban counter returned no row")
		}
		return persistence.BanCounter{}, mapError(err)
	}
	return counter, nil
}
