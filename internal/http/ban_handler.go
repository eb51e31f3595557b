package http

import (
	"context"
	"net/http"

	"github.com/example/advising-portal/internal/application"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type banService interface {
	Status(ctx context.Context, principal application.Principal, studentID string) (application.BanStatus, error)
}

// BanHandler reports a student's cancellation standing.
type BanHandler struct {
	service   banService
	responder responder
}

func NewBanHandler(service banService, logger *zap.Logger) *BanHandler {
	return &BanHandler{service: service, responder: newResponder(logger)}
}

// Status handles GET /students/:studentID/ban-status.
func (h *BanHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), principalFrom(c), c.Param("studentID"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, banStatusDTO{
		StudentID:      status.StudentID,
		CurrentCount:   status.CurrentCount,
		MaxAllowed:     status.MaxAllowed,
		BookingAllowed: &status.BookingAllowed,
	})
}

type banStatusDTO struct {
	StudentID      string `json:"student_id"`
	CurrentCount   int    `json:"current_count"`
	MaxAllowed     int    `json:"max_allowed"`
	BookingAllowed *bool  `json:"booking_allowed,omitempty"`
}
