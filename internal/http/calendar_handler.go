package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type calendarService interface {
	Availability(ctx context.Context, staffID string, mode scheduler.Mode, date time.Time) (calendar.Interval, []scheduler.Interval, error)
	Grid(ctx context.Context, staffID string, mode scheduler.Mode, date time.Time, granularity time.Duration) (scheduler.Grid, error)
}

// CalendarHandler serves resolved availability and display grids.
type CalendarHandler struct {
	service   calendarService
	location  *time.Location
	now       func() time.Time
	responder responder
}

func NewCalendarHandler(service calendarService, location *time.Location, logger *zap.Logger) *CalendarHandler {
	if location == nil {
		location = time.UTC
	}
	return &CalendarHandler{service: service, location: location, now: time.Now, responder: newResponder(logger)}
}

// Availability handles GET /staff/:staffID/availability.
func (h *CalendarHandler) Availability(c *gin.Context) {
	query := newQueryParams(c)
	mode := parseMode(query)
	date := query.dateParam("date", h.location, h.now())
	if err := query.err(); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	staffID := c.Param("staffID")
	window, intervals, err := h.service.Availability(c.Request.Context(), staffID, mode, date)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	payload := availabilityResponse{
		StaffID:   staffID,
		Mode:      mode,
		Range:     rangeDTO{Start: window.Start, End: window.End},
		Intervals: make([]intervalDTO, len(intervals)),
	}
	for i, iv := range intervals {
		payload.Intervals[i] = intervalDTO{Kind: iv.Kind, Start: iv.Start, End: iv.End, MeetingID: iv.MeetingID, LeaveID: iv.LeaveID}
	}
	h.responder.writeJSON(c, http.StatusOK, payload)
}

// Calendar handles GET /staff/:staffID/calendar.
func (h *CalendarHandler) Calendar(c *gin.Context) {
	query := newQueryParams(c)
	mode := parseMode(query)
	date := query.dateParam("date", h.location, h.now())
	minutes := query.intParam("granularity_minutes", 0)
	if minutes < 0 {
		query.fail("granularity_minutes", "must be at least 1")
	}
	if err := query.err(); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	grid, err := h.service.Grid(c.Request.Context(), c.Param("staffID"), mode, date, time.Duration(minutes)*time.Minute)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toGridDTO(grid))
}

func parseMode(query *queryParams) scheduler.Mode {
	raw := strings.TrimSpace(query.c.Query("mode"))
	if raw == "" {
		return scheduler.ModeDay
	}
	mode, err := scheduler.ParseMode(raw)
	if err != nil {
		query.fail("mode", "must be day or week")
	}
	return mode
}

type rangeDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type intervalDTO struct {
	Kind      scheduler.Kind `json:"kind"`
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	MeetingID string         `json:"meeting_id,omitempty"`
	LeaveID   string         `json:"leave_id,omitempty"`
}

type availabilityResponse struct {
	StaffID   string         `json:"staff_id"`
	Mode      scheduler.Mode `json:"mode"`
	Range     rangeDTO       `json:"range"`
	Intervals []intervalDTO  `json:"intervals"`
}

type cellDTO struct {
	Start     time.Time           `json:"start"`
	End       time.Time           `json:"end"`
	State     scheduler.CellState `json:"state"`
	MeetingID string              `json:"meeting_id,omitempty"`
	LeaveID   string              `json:"leave_id,omitempty"`
}

type dayDTO struct {
	Date      string             `json:"date"`
	DayOfWeek calendar.DayOfWeek `json:"day_of_week"`
	Cells     []cellDTO          `json:"cells"`
}

type gridResponse struct {
	StaffID            string         `json:"staff_id"`
	Mode               scheduler.Mode `json:"mode"`
	Range              rangeDTO       `json:"range"`
	GranularityMinutes int            `json:"granularity_minutes"`
	Days               []dayDTO       `json:"days"`
}

func toGridDTO(grid scheduler.Grid) gridResponse {
	out := gridResponse{
		StaffID:            grid.StaffID,
		Mode:               grid.Mode,
		Range:              rangeDTO{Start: grid.Range.Start, End: grid.Range.End},
		GranularityMinutes: int(grid.Granularity / time.Minute),
		Days:               make([]dayDTO, len(grid.Days)),
	}
	for i, day := range grid.Days {
		cells := make([]cellDTO, len(day.Cells))
		for j, cell := range day.Cells {
			cells[j] = cellDTO{Start: cell.Start, End: cell.End, State: cell.State, MeetingID: cell.MeetingID, LeaveID: cell.LeaveID}
		}
		out.Days[i] = dayDTO{Date: day.Date.Format(dateLayout), DayOfWeek: day.Day, Cells: cells}
	}
	return out
}
