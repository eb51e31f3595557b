package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type bookingService interface {
	Book(ctx context.Context, principal application.Principal, input application.BookingInput) (persistence.Meeting, error)
	BookBatch(ctx context.Context, principal application.Principal, inputs []application.BookingInput) ([]persistence.Meeting, error)
}

type meetingService interface {
	Get(ctx context.Context, principal application.Principal, id string) (persistence.Meeting, error)
	List(ctx context.Context, params application.ListMeetingsParams) (application.MeetingPage, error)
	Confirm(ctx context.Context, params application.TransitionParams) (persistence.Meeting, error)
	Cancel(ctx context.Context, params application.TransitionParams) (persistence.Meeting, error)
	Complete(ctx context.Context, params application.TransitionParams) (persistence.Meeting, error)
	ReportAdvisorMissed(ctx context.Context, params application.TransitionParams) (persistence.Meeting, error)
	SendFeedback(ctx context.Context, params application.TransitionParams) (persistence.Meeting, error)
}

// MeetingHandler serves booking, listing and lifecycle actions.
type MeetingHandler struct {
	bookings  bookingService
	meetings  meetingService
	responder responder
}

func NewMeetingHandler(bookings bookingService, meetings meetingService, logger *zap.Logger) *MeetingHandler {
	return &MeetingHandler{bookings: bookings, meetings: meetings, responder: newResponder(logger)}
}

// Book handles POST /meetings.
func (h *MeetingHandler) Book(c *gin.Context) {
	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	principal := principalFrom(c)
	m, err := h.bookings.Book(c.Request.Context(), principal, req.toInput())
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, toMeetingDTO(principal, m))
}

// BookBatch handles POST /meetings/batch. Either every meeting is created or none.
func (h *MeetingHandler) BookBatch(c *gin.Context) {
	var req bookingBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	inputs := make([]application.BookingInput, len(req.Meetings))
	for i, item := range req.Meetings {
		inputs[i] = item.toInput()
	}
	principal := principalFrom(c)
	created, err := h.bookings.BookBatch(c.Request.Context(), principal, inputs)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, meetingListResponse{Meetings: toMeetingDTOs(principal, created)})
}

// List handles GET /meetings.
func (h *MeetingHandler) List(c *gin.Context) {
	query := newQueryParams(c)
	params := application.ListMeetingsParams{
		Principal: principalFrom(c),
		StaffID:   strings.TrimSpace(c.Query("staff_id")),
		StudentID: strings.TrimSpace(c.Query("student_id")),
		From:      query.timeParam("from"),
		To:        query.timeParam("to"),
		Page:      query.intParam("page", 0),
		PageSize:  query.intParam("page_size", 0),
	}
	for _, raw := range query.listParam("status") {
		status, err := meeting.ParseStatus(raw)
		if err != nil {
			query.fail("status", "unknown status "+raw)
			continue
		}
		params.Statuses = append(params.Statuses, status)
	}
	if err := query.err(); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	page, err := h.meetings.List(c.Request.Context(), params)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, meetingPageResponse{
		Meetings: toMeetingDTOs(params.Principal, page.Meetings),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

// Get handles GET /meetings/:id.
func (h *MeetingHandler) Get(c *gin.Context) {
	principal := principalFrom(c)
	m, err := h.meetings.Get(c.Request.Context(), principal, c.Param("id"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toMeetingDTO(principal, m))
}

func (h *MeetingHandler) Confirm(c *gin.Context) {
	h.transition(c, h.meetings.Confirm)
}

func (h *MeetingHandler) Cancel(c *gin.Context) {
	h.transition(c, h.meetings.Cancel)
}

func (h *MeetingHandler) Complete(c *gin.Context) {
	h.transition(c, h.meetings.Complete)
}

func (h *MeetingHandler) AdvisorMissed(c *gin.Context) {
	h.transition(c, h.meetings.ReportAdvisorMissed)
}

func (h *MeetingHandler) Feedback(c *gin.Context) {
	h.transition(c, h.meetings.SendFeedback)
}

func (h *MeetingHandler) transition(c *gin.Context, action func(context.Context, application.TransitionParams) (persistence.Meeting, error)) {
	var req actionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
			return
		}
	}

	principal := principalFrom(c)
	m, err := action(c.Request.Context(), application.TransitionParams{
		Principal:   principal,
		MeetingID:   c.Param("id"),
		Note:        req.Note,
		CheckInCode: req.CheckInCode,
		Feedback:    req.Feedback,
		Suggestion:  req.SuggestionFromAdvisor,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toMeetingDTO(principal, m))
}

type bookingRequest struct {
	StaffID           string `json:"staff_id"`
	StudentID         string `json:"student_id"`
	Start             string `json:"start"`
	End               string `json:"end"`
	TitleStudentIssue string `json:"title_student_issue"`
	ContentIssue      string `json:"content_issue"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		StaffID:           strings.TrimSpace(r.StaffID),
		StudentID:         strings.TrimSpace(r.StudentID),
		Start:             parseTime(r.Start),
		End:               parseTime(r.End),
		TitleStudentIssue: strings.TrimSpace(r.TitleStudentIssue),
		ContentIssue:      r.ContentIssue,
	}
}

type bookingBatchRequest struct {
	Meetings []bookingRequest `json:"meetings"`
}

type actionRequest struct {
	Note                  *string `json:"note"`
	CheckInCode           string  `json:"check_in_code"`
	Feedback              *string `json:"feedback"`
	SuggestionFromAdvisor *string `json:"suggestion_from_advisor"`
}

type meetingDTO struct {
	ID                    string     `json:"id"`
	StaffID               string     `json:"staff_id"`
	StudentID             string     `json:"student_id"`
	Start                 time.Time  `json:"start"`
	End                   time.Time  `json:"end"`
	Status                string     `json:"status"`
	StatusCode            int        `json:"status_code"`
	TitleStudentIssue     string     `json:"title_student_issue"`
	ContentIssue          string     `json:"content_issue,omitempty"`
	Note                  *string    `json:"note,omitempty"`
	Feedback              *string    `json:"feedback,omitempty"`
	SuggestionFromAdvisor *string    `json:"suggestion_from_advisor,omitempty"`
	CheckInCode           string     `json:"check_in_code,omitempty"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

type meetingListResponse struct {
	Meetings []meetingDTO `json:"meetings"`
}

type meetingPageResponse struct {
	Meetings []meetingDTO `json:"meetings"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// toMeetingDTO hides the check-in code from everyone but the meeting's student.
func toMeetingDTO(viewer application.Principal, m persistence.Meeting) meetingDTO {
	dto := meetingDTO{
		ID:                    m.ID,
		StaffID:               m.StaffID,
		StudentID:             m.StudentID,
		Start:                 m.Start,
		End:                   m.End,
		Status:                m.Status.String(),
		StatusCode:            int(m.Status),
		TitleStudentIssue:     m.TitleStudentIssue,
		ContentIssue:          m.ContentIssue,
		Note:                  m.Note,
		Feedback:              m.Feedback,
		SuggestionFromAdvisor: m.SuggestionFromAdvisor,
		CompletedAt:           m.CompletedAt,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
	if viewer.Role == meeting.RoleStudent && viewer.UserID == m.StudentID {
		dto.CheckInCode = m.CheckInCode
	}
	return dto
}

func toMeetingDTOs(viewer application.Principal, meetings []persistence.Meeting) []meetingDTO {
	out := make([]meetingDTO, len(meetings))
	for i, m := range meetings {
		out[i] = toMeetingDTO(viewer, m)
	}
	return out
}
