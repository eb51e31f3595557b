package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/testfixtures"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

var (
	advisor = application.Principal{UserID: "staff-1", Role: meeting.RoleAdvisor}
	student = application.Principal{UserID: "student-1", Role: meeting.RoleStudent}
)

type testServer struct {
	t        *testing.T
	router   *gin.Engine
	services *testfixtures.Services
}

func newTestServer(t *testing.T, limit RateLimitConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	services := testfixtures.NewServiceFactory().NewServices(nil)
	testfixtures.Seed{Slots: []persistence.WeeklySlot{
		testfixtures.WeeklySlot("slot-mon", "staff-1", calendar.Monday, "09:00", "17:00"),
	}}.Apply(t, services.Store)

	logger := zap.NewNop()
	router := NewRouter(RouterConfig{
		Calendar:     NewCalendarHandler(services.Calendar, time.UTC, logger),
		Availability: NewAvailabilityHandler(services.Availability, logger),
		Meetings:     NewMeetingHandler(services.Bookings, services.Meetings, logger),
		Bans:         NewBanHandler(services.BanStatus, logger),
		Verifier:     NewJWTVerifier(testSecret),
		RateLimit:    limit,
		Logger:       logger,
	})
	return &testServer{t: t, router: router, services: services}
}

func (s *testServer) do(method, path string, as *application.Principal, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		token, err := SignToken(testSecret, *as, time.Hour, time.Now())
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func bookingBody(start, end time.Time) map[string]any {
	return map[string]any{
		"staff_id":            "staff-1",
		"start":               start.Format(time.RFC3339),
		"end":                 end.Format(time.RFC3339),
		"title_student_issue": "Course planning",
	}
}

func TestHealthzNeedsNoToken(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})
	rec := srv.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRequireAuth(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})

	rec := srv.do(http.MethodGet, "/meetings", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, codeUnauthenticated, decode[errorResponse](t, rec).ErrorCode)

	forged, err := SignToken("other-secret", student, time.Hour, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/meetings", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := SignToken(testSecret, student, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/meetings", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})

	rec := srv.do(http.MethodPost, "/meetings", &student, bookingBody(testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decode[meetingDTO](t, rec)
	assert.Equal(t, "pending", booked.Status)
	assert.Equal(t, int(meeting.StatusPending), booked.StatusCode)
	require.Len(t, booked.CheckInCode, 6, "the student sees the check-in code")

	rec = srv.do(http.MethodGet, "/meetings/"+booked.ID, &advisor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[meetingDTO](t, rec).CheckInCode, "the advisor never sees the code")

	rec = srv.do(http.MethodPost, "/meetings", &student, bookingBody(testfixtures.At(0, 10, 30), testfixtures.At(0, 11, 30)))
	require.Equal(t, http.StatusConflict, rec.Code)
	conflict := decode[errorResponse](t, rec)
	assert.Equal(t, codeConflict, conflict.ErrorCode)
	require.NotEmpty(t, conflict.Conflicts)
	assert.Equal(t, booked.ID, conflict.Conflicts[0].MeetingID)

	rec = srv.do(http.MethodPost, "/meetings/"+booked.ID+"/confirm", &advisor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decode[meetingDTO](t, rec).Status)

	rec = srv.do(http.MethodPost, "/meetings/"+booked.ID+"/complete", &advisor, map[string]string{"check_in_code": "ZZZZZZ"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, codeCheckInMismatch, decode[errorResponse](t, rec).ErrorCode)

	rec = srv.do(http.MethodPost, "/meetings/"+booked.ID+"/complete", &advisor, map[string]string{"check_in_code": booked.CheckInCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decode[meetingDTO](t, rec)
	assert.Equal(t, "completed", completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	rec = srv.do(http.MethodPost, "/meetings/"+booked.ID+"/feedback", &student, map[string]string{"feedback": "helpful"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "helpful", *decode[meetingDTO](t, rec).Feedback)

	rec = srv.do(http.MethodPost, "/meetings/"+booked.ID+"/cancel", &student, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, codeInvalidTransition, decode[errorResponse](t, rec).ErrorCode)
}

func TestCompleteMatchesCheckInCodeExactly(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})

	rec := srv.do(http.MethodPost, "/meetings", &student, bookingBody(testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booked := decode[meetingDTO](t, rec)
	rec = srv.do(http.MethodPost, "/meetings/"+booked.ID+"/confirm", &advisor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tests := []struct {
		name string
		code string
	}{
		{name: "lower case", code: strings.ToLower(booked.CheckInCode)},
		{name: "padded", code: "  " + booked.CheckInCode + " "},
		{name: "lower case and padded", code: " " + strings.ToLower(booked.CheckInCode) + " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code == booked.CheckInCode {
				t.Skip("code has no letters to change case")
			}
			rec := srv.do(http.MethodPost, "/meetings/"+booked.ID+"/complete", &advisor, map[string]string{"check_in_code": tt.code})
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, codeCheckInMismatch, decode[errorResponse](t, rec).ErrorCode)

			rec = srv.do(http.MethodGet, "/meetings/"+booked.ID, &advisor, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "confirmed", decode[meetingDTO](t, rec).Status)
		})
	}
}

func TestBookingValidationErrors(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})

	rec := srv.do(http.MethodPost, "/meetings", &student, map[string]any{"staff_id": "staff-1", "start": "tomorrow"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, codeValidation, body.ErrorCode)
	assert.Contains(t, body.Errors, "start")
	assert.Contains(t, body.Errors, "title_student_issue")

	req := httptest.NewRequest(http.MethodPost, "/meetings", bytes.NewBufferString("{"))
	token, err := SignToken(testSecret, student, time.Hour, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMeetingsQuery(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})
	testfixtures.Seed{Meetings: []persistence.Meeting{
		testfixtures.Meeting("m-1", "staff-1", testfixtures.At(0, 9, 0), testfixtures.At(0, 10, 0)),
		testfixtures.Meeting("m-2", "staff-1", testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0), testfixtures.WithStatus(meeting.StatusConfirmed)),
	}}.Apply(t, srv.services.Store)

	rec := srv.do(http.MethodGet, "/meetings?status=confirmed", &advisor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[meetingPageResponse](t, rec)
	require.Len(t, page.Meetings, 1)
	assert.Equal(t, "m-2", page.Meetings[0].ID)
	assert.Equal(t, 1, page.Total)

	rec = srv.do(http.MethodGet, "/meetings?status=bogus&page=x", &advisor, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Contains(t, body.Errors, "status")
	assert.Contains(t, body.Errors, "page")

	rec = srv.do(http.MethodGet, "/meetings?staff_id=staff-2", &advisor, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWeeklySlotBatchRejected(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})

	rec := srv.do(http.MethodPost, "/staff/staff-1/weekly-slots", &advisor, map[string]any{
		"slots": []map[string]any{
			{"day_of_week": int(calendar.Tuesday), "start_time": "09:00", "end_time": "10:00"},
			{"day_of_week": int(calendar.Monday), "start_time": "16:00", "end_time": "18:00"},
		},
	})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	body := decode[errorResponse](t, rec)
	assert.Equal(t, codePartialBatch, body.ErrorCode)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, 1, body.Failures[0].Index)
	assert.Equal(t, codeConflict, body.Failures[0].ErrorCode)

	rec = srv.do(http.MethodPost, "/staff/staff-1/weekly-slots?split_minutes=60", &advisor, map[string]any{
		"slots": []map[string]any{{"day_of_week": int(calendar.Tuesday), "start_time": "09:00", "end_time": "11:00"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode[listSlotsResponse](t, rec).Slots, 2)

	rec = srv.do(http.MethodPost, "/staff/staff-1/weekly-slots", &student, map[string]any{
		"slots": []map[string]any{{"day_of_week": int(calendar.Friday), "start_time": "09:00", "end_time": "11:00"}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLeaveCancelsPendingMeetings(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})
	testfixtures.Seed{Meetings: []persistence.Meeting{
		testfixtures.Meeting("m-1", "staff-1", testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0)),
	}}.Apply(t, srv.services.Store)

	leave := map[string]any{"leaves": []map[string]any{{
		"start": testfixtures.At(0, 9, 0).Format(time.RFC3339),
		"end":   testfixtures.At(0, 12, 0).Format(time.RFC3339),
	}}}

	rec := srv.do(http.MethodPost, "/staff/staff-1/leaves", &advisor, leave)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(http.MethodPost, "/staff/staff-1/leaves?cancel_conflicting=true", &advisor, leave)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[leavesResponse](t, rec)
	require.Len(t, body.Leaves, 1)
	require.Len(t, body.Cancelled, 1)
	assert.Equal(t, "advisor_canceled", body.Cancelled[0].Status)

	rec = srv.do(http.MethodGet, "/staff/staff-1/calendar?date=2024-03-04", &student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grid := decode[struct {
		Days []struct {
			Cells []struct {
				State string `json:"state"`
			} `json:"cells"`
		} `json:"days"`
	}](t, rec)
	require.Len(t, grid.Days, 1)
	assert.Equal(t, "leave", grid.Days[0].Cells[2].State)
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})

	rec := srv.do(http.MethodGet, "/staff/staff-1/availability?mode=week&date=2024-03-06", &student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Intervals []struct {
			Kind  string    `json:"kind"`
			Start time.Time `json:"start"`
		} `json:"intervals"`
	}](t, rec)
	require.Len(t, body.Intervals, 1)
	assert.Equal(t, "open", body.Intervals[0].Kind)
	assert.True(t, body.Intervals[0].Start.Equal(testfixtures.At(0, 9, 0)))

	rec = srv.do(http.MethodGet, "/staff/staff-1/availability?mode=month&date=03/04/2024", &student, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	errs := decode[errorResponse](t, rec).Errors
	assert.Contains(t, errs, "mode")
	assert.Contains(t, errs, "date")
}

func TestBanStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{})

	rec := srv.do(http.MethodGet, "/students/student-1/ban-status", &student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[banStatusDTO](t, rec)
	assert.Equal(t, 3, body.MaxAllowed)
	require.NotNil(t, body.BookingAllowed)
	assert.True(t, *body.BookingAllowed)

	rec = srv.do(http.MethodGet, "/students/student-2/ban-status", &student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, RateLimitConfig{PerMinute: 1, Burst: 1})

	rec := srv.do(http.MethodPost, "/meetings", &student, bookingBody(testfixtures.At(0, 10, 0), testfixtures.At(0, 11, 0)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(http.MethodPost, "/meetings", &student, bookingBody(testfixtures.At(0, 12, 0), testfixtures.At(0, 13, 0)))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, codeRateLimited, decode[errorResponse](t, rec).ErrorCode)

	rec = srv.do(http.MethodGet, "/meetings", &student, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")

	other := application.Principal{UserID: "student-2", Role: meeting.RoleStudent}
	rec = srv.do(http.MethodPost, "/meetings", &other, bookingBody(testfixtures.At(0, 12, 0), testfixtures.At(0, 13, 0)))
	assert.Equal(t, http.StatusCreated, rec.Code, "limits are per user")
}
