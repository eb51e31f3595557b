package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/scheduler"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errBadRequestBody = errors.New("request body is not valid JSON")
	errMissingToken   = errors.New("bearer token is required")
	errInvalidToken   = errors.New("token is invalid or expired")
)

const (
	codeBadRequest        = "BAD_REQUEST"
	codeUnauthenticated   = "UNAUTHENTICATED"
	codeForbidden         = "FORBIDDEN"
	codeNotFound          = "NOT_FOUND"
	codeValidation        = "VALIDATION_FAILED"
	codeConflict          = "CONFLICT"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeCheckInMismatch   = "CHECK_IN_CODE_MISMATCH"
	codeBanLimit          = "BAN_LIMIT_EXCEEDED"
	codePartialBatch      = "BATCH_REJECTED"
	codeRateLimited       = "RATE_LIMITED"
	codeInternal          = "INTERNAL"
)

type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(c *gin.Context, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

func (r responder) writeError(c *gin.Context, status int, code string, err error) {
	message := http.StatusText(status)
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	c.AbortWithStatusJSON(status, errorResponse{ErrorCode: code, Message: message})
}

func (r responder) handleServiceError(c *gin.Context, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	status, body := describeError(err)
	if status >= http.StatusInternalServerError {
		handlerLogger(c.Request.Context(), r.logger, "responder", "").
			Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

// describeError maps a service error to its status code and body. Batch
// errors are inspected first since they wrap the per-item errors.
func describeError(err error) (int, errorResponse) {
	var (
		batch      *application.PartialBatchError
		vErr       *application.ValidationError
		conflict   *application.ConflictError
		transition *application.InvalidTransitionError
		mismatch   *application.CheckInCodeMismatchError
		ban        *application.BanLimitExceededError
	)

	switch {
	case errors.As(err, &batch):
		status := http.StatusUnprocessableEntity
		failures := make([]batchFailureDTO, len(batch.Failures))
		for i, f := range batch.Failures {
			itemStatus, item := describeError(f.Err)
			if itemStatus != http.StatusUnprocessableEntity {
				status = http.StatusConflict
			}
			failures[i] = batchFailureDTO{Index: f.Index, errorResponse: item}
		}
		return status, errorResponse{ErrorCode: codePartialBatch, Message: batch.Error(), Failures: failures}
	case errors.Is(err, application.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{ErrorCode: codeForbidden, Message: err.Error()}
	case errors.Is(err, application.ErrNotFound):
		return http.StatusNotFound, errorResponse{ErrorCode: codeNotFound, Message: err.Error()}
	case errors.As(err, &vErr):
		return http.StatusUnprocessableEntity, errorResponse{ErrorCode: codeValidation, Message: "request validation failed", Errors: vErr.FieldErrors}
	case errors.As(err, &conflict):
		return http.StatusConflict, errorResponse{ErrorCode: codeConflict, Message: conflict.Reason, Conflicts: toConflictDTOs(conflict.Conflicts)}
	case errors.As(err, &transition):
		return http.StatusConflict, errorResponse{ErrorCode: codeInvalidTransition, Message: transition.Error()}
	case errors.As(err, &mismatch):
		return http.StatusUnprocessableEntity, errorResponse{ErrorCode: codeCheckInMismatch, Message: mismatch.Error()}
	case errors.As(err, &ban):
		return http.StatusForbidden, errorResponse{
			ErrorCode: codeBanLimit,
			Message:   ban.Error(),
			Ban:       &banStatusDTO{StudentID: ban.StudentID, CurrentCount: ban.CurrentCount, MaxAllowed: ban.MaxAllowed},
		}
	default:
		return http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: "internal server error"}
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
	Failures  []batchFailureDTO `json:"failures,omitempty"`
	Ban       *banStatusDTO     `json:"ban,omitempty"`
}

type batchFailureDTO struct {
	Index int `json:"index"`
	errorResponse
}

type conflictDTO struct {
	Index     int        `json:"index"`
	Reason    string     `json:"reason"`
	Detail    string     `json:"detail,omitempty"`
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	MeetingID string     `json:"meeting_id,omitempty"`
	SlotID    string     `json:"slot_id,omitempty"`
	LeaveID   string     `json:"leave_id,omitempty"`
}

func toConflictDTOs(conflicts []scheduler.Conflict) []conflictDTO {
	out := make([]conflictDTO, len(conflicts))
	for i, c := range conflicts {
		dto := conflictDTO{
			Index:     c.Index,
			Reason:    c.Reason,
			Detail:    c.Detail,
			MeetingID: c.MeetingID,
			SlotID:    c.SlotID,
			LeaveID:   c.LeaveID,
		}
		if !c.Interval.Start.IsZero() {
			start, end := c.Interval.Start, c.Interval.End
			dto.Start, dto.End = &start, &end
		}
		out[i] = dto
	}
	return out
}
