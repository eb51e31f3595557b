package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig lists the handlers to mount. Nil handlers leave their routes out.
type RouterConfig struct {
	Calendar     *CalendarHandler
	Availability *AvailabilityHandler
	Meetings     *MeetingHandler
	Bans         *BanHandler
	Verifier     TokenVerifier
	RateLimit    RateLimitConfig
	Logger       *zap.Logger
}

// NewRouter builds the gin engine. Every route except /healthz requires a
// bearer token; booking and lifecycle actions are rate limited.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := defaultLogger(cfg.Logger)

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))
	router.HandleMethodNotAllowed = true

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/", RequireAuth(cfg.Verifier, logger))
	limited := RateLimit(cfg.RateLimit, logger)

	if h := cfg.Calendar; h != nil {
		api.GET("/staff/:staffID/availability", h.Availability)
		api.GET("/staff/:staffID/calendar", h.Calendar)
	}

	if h := cfg.Availability; h != nil {
		slots := api.Group("/staff/:staffID/weekly-slots")
		slots.GET("", h.ListSlots)
		slots.POST("", h.CreateSlots)
		slots.PUT("/:slotID", h.UpdateSlot)
		slots.DELETE("/:slotID", h.DeleteSlot)

		leaves := api.Group("/staff/:staffID/leaves")
		leaves.GET("", h.ListLeaves)
		leaves.POST("", h.CreateLeaves)
		leaves.PUT("/:leaveID", h.UpdateLeave)
		leaves.DELETE("/:leaveID", h.DeleteLeave)
	}

	if h := cfg.Meetings; h != nil {
		meetings := api.Group("/meetings")
		meetings.GET("", h.List)
		meetings.GET("/:id", h.Get)
		meetings.POST("", limited, h.Book)
		meetings.POST("/batch", limited, h.BookBatch)
		meetings.POST("/:id/confirm", limited, h.Confirm)
		meetings.POST("/:id/cancel", limited, h.Cancel)
		meetings.POST("/:id/complete", limited, h.Complete)
		meetings.POST("/:id/advisor-missed", limited, h.AdvisorMissed)
		meetings.POST("/:id/feedback", limited, h.Feedback)
	}

	if h := cfg.Bans; h != nil {
		api.GET("/students/:studentID/ban-status", h.Status)
	}

	return router
}
