package http

import (
	"context"
	"net/http"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type availabilityService interface {
	ListWeeklySlots(ctx context.Context, staffID string) ([]persistence.WeeklySlot, error)
	CreateWeeklySlots(ctx context.Context, params application.CreateWeeklySlotsParams) ([]persistence.WeeklySlot, error)
	UpdateWeeklySlot(ctx context.Context, params application.UpdateWeeklySlotParams) (persistence.WeeklySlot, error)
	DeleteWeeklySlot(ctx context.Context, principal application.Principal, staffID, slotID string) error
	ListLeaves(ctx context.Context, principal application.Principal, staffID string, from, to *time.Time) ([]persistence.LeavePeriod, error)
	CreateLeaves(ctx context.Context, params application.CreateLeavesParams) (application.LeaveResult, error)
	UpdateLeave(ctx context.Context, params application.UpdateLeaveParams) (application.LeaveResult, error)
	DeleteLeave(ctx context.Context, principal application.Principal, staffID, leaveID string) error
}

// AvailabilityHandler manages weekly templates and leaves.
type AvailabilityHandler struct {
	service   availabilityService
	responder responder
}

func NewAvailabilityHandler(service availabilityService, logger *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, responder: newResponder(logger)}
}

func (h *AvailabilityHandler) ListSlots(c *gin.Context) {
	slots, err := h.service.ListWeeklySlots(c.Request.Context(), c.Param("staffID"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, listSlotsResponse{Slots: toSlotDTOs(slots)})
}

// CreateSlots handles bulk creation; split_minutes optionally chunks long slots.
func (h *AvailabilityHandler) CreateSlots(c *gin.Context) {
	var req createSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	query := newQueryParams(c)
	split := query.intParam("split_minutes", 0)
	if split < 0 {
		query.fail("split_minutes", "must not be negative")
	}
	if err := query.err(); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	inputs := make([]application.WeeklySlotInput, len(req.Slots))
	for i, slot := range req.Slots {
		inputs[i] = slot.toInput()
	}
	slots, err := h.service.CreateWeeklySlots(c.Request.Context(), application.CreateWeeklySlotsParams{
		Principal:   principalFrom(c),
		StaffID:     c.Param("staffID"),
		Slots:       inputs,
		SplitLength: time.Duration(split) * time.Minute,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, listSlotsResponse{Slots: toSlotDTOs(slots)})
}

func (h *AvailabilityHandler) UpdateSlot(c *gin.Context) {
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	slot, err := h.service.UpdateWeeklySlot(c.Request.Context(), application.UpdateWeeklySlotParams{
		Principal: principalFrom(c),
		StaffID:   c.Param("staffID"),
		SlotID:    c.Param("slotID"),
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, toSlotDTO(slot))
}

func (h *AvailabilityHandler) DeleteSlot(c *gin.Context) {
	if err := h.service.DeleteWeeklySlot(c.Request.Context(), principalFrom(c), c.Param("staffID"), c.Param("slotID")); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) ListLeaves(c *gin.Context) {
	query := newQueryParams(c)
	from := query.timeParam("from")
	to := query.timeParam("to")
	if err := query.err(); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	leaves, err := h.service.ListLeaves(c.Request.Context(), principalFrom(c), c.Param("staffID"), from, to)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, leavesResponse{Leaves: toLeaveDTOs(leaves)})
}

// CreateLeaves handles bulk creation; cancel_conflicting cancels Pending
// meetings under the new leaves.
func (h *AvailabilityHandler) CreateLeaves(c *gin.Context) {
	var req createLeavesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	query := newQueryParams(c)
	cancel := query.boolParam("cancel_conflicting")
	if err := query.err(); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	inputs := make([]application.LeaveInput, len(req.Leaves))
	for i, leave := range req.Leaves {
		inputs[i] = leave.toInput()
	}
	result, err := h.service.CreateLeaves(c.Request.Context(), application.CreateLeavesParams{
		Principal:         principalFrom(c),
		StaffID:           c.Param("staffID"),
		Leaves:            inputs,
		CancelConflicting: cancel,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, h.leaveResult(c, result))
}

func (h *AvailabilityHandler) UpdateLeave(c *gin.Context) {
	var req leaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}
	query := newQueryParams(c)
	cancel := query.boolParam("cancel_conflicting")
	if err := query.err(); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}

	result, err := h.service.UpdateLeave(c.Request.Context(), application.UpdateLeaveParams{
		Principal:         principalFrom(c),
		StaffID:           c.Param("staffID"),
		LeaveID:           c.Param("leaveID"),
		Input:             req.toInput(),
		CancelConflicting: cancel,
	})
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, h.leaveResult(c, result))
}

func (h *AvailabilityHandler) DeleteLeave(c *gin.Context) {
	if err := h.service.DeleteLeave(c.Request.Context(), principalFrom(c), c.Param("staffID"), c.Param("leaveID")); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *AvailabilityHandler) leaveResult(c *gin.Context, result application.LeaveResult) leavesResponse {
	return leavesResponse{
		Leaves:    toLeaveDTOs(result.Leaves),
		Cancelled: toMeetingDTOs(principalFrom(c), result.Cancelled),
	}
}

type slotRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// toInput leaves unparsable times at -1 so validation reports them.
func (r slotRequest) toInput() application.WeeklySlotInput {
	return application.WeeklySlotInput{
		DayOfWeek: calendar.DayOfWeek(r.DayOfWeek),
		StartTime: parseTimeOfDay(r.StartTime),
		EndTime:   parseTimeOfDay(r.EndTime),
	}
}

func parseTimeOfDay(value string) calendar.TimeOfDay {
	t, err := calendar.ParseTimeOfDay(value)
	if err != nil {
		return -1
	}
	return t
}

type createSlotsRequest struct {
	Slots []slotRequest `json:"slots"`
}

type leaveRequest struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Note  *string `json:"note"`
}

func (r leaveRequest) toInput() application.LeaveInput {
	return application.LeaveInput{Start: parseTime(r.Start), End: parseTime(r.End), Note: r.Note}
}

type createLeavesRequest struct {
	Leaves []leaveRequest `json:"leaves"`
}

type slotDTO struct {
	ID        string             `json:"id"`
	StaffID   string             `json:"staff_id"`
	DayOfWeek calendar.DayOfWeek `json:"day_of_week"`
	StartTime calendar.TimeOfDay `json:"start_time"`
	EndTime   calendar.TimeOfDay `json:"end_time"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type listSlotsResponse struct {
	Slots []slotDTO `json:"slots"`
}

func toSlotDTO(slot persistence.WeeklySlot) slotDTO {
	return slotDTO{
		ID:        slot.ID,
		StaffID:   slot.StaffID,
		DayOfWeek: slot.DayOfWeek,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		CreatedAt: slot.CreatedAt,
		UpdatedAt: slot.UpdatedAt,
	}
}

func toSlotDTOs(slots []persistence.WeeklySlot) []slotDTO {
	out := make([]slotDTO, len(slots))
	for i, slot := range slots {
		out[i] = toSlotDTO(slot)
	}
	return out
}

type leaveDTO struct {
	ID        string    `json:"id"`
	StaffID   string    `json:"staff_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type leavesResponse struct {
	Leaves    []leaveDTO   `json:"leaves"`
	Cancelled []meetingDTO `json:"cancelled_meetings,omitempty"`
}

func toLeaveDTOs(leaves []persistence.LeavePeriod) []leaveDTO {
	out := make([]leaveDTO, len(leaves))
	for i, leave := range leaves {
		out[i] = leaveDTO{
			ID:        leave.ID,
			StaffID:   leave.StaffID,
			Start:     leave.Start,
			End:       leave.End,
			Note:      leave.Note,
			CreatedAt: leave.CreatedAt,
			UpdatedAt: leave.UpdatedAt,
		}
	}
	return out
}
