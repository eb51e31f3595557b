package http

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/advising-portal/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const requestIDHeader = "X-Request-ID"

// RequireAuth rejects requests without a valid bearer token and stores the
// principal in the request context.
func RequireAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	responder := newResponder(logger)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			responder.writeError(c, http.StatusUnauthorized, codeUnauthenticated, errMissingToken)
			return
		}

		principal, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			handlerLogger(c.Request.Context(), logger, "auth", "verify").Info("token rejected", zap.Error(err))
			responder.writeError(c, http.StatusUnauthorized, codeUnauthenticated, errInvalidToken)
			return
		}

		ctx := ContextWithPrincipal(c.Request.Context(), principal)
		if l := logging.FromContext(ctx); l != nil {
			ctx = logging.ContextWithLogger(ctx, l.With(
				zap.String("principal_id", principal.UserID),
				zap.Stringer("role", principal.Role),
			))
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger attaches a request scoped logger and logs each completed request.
func RequestLogger(base *zap.Logger) gin.HandlerFunc {
	base = defaultLogger(base)

	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		logger := base.With(
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(logging.ContextWithLogger(c.Request.Context(), logger))

		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request completed", fields...)
			return
		}
		logger.Info("request completed", fields...)
	}
}

// RateLimitConfig bounds requests per caller. A non-positive PerMinute
// disables limiting.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

type limiterEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// limiterStore drops callers idle for longer than a full refill. Their
// bucket would be full again, so a fresh limiter behaves the same.
type limiterStore struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(interval time.Duration, burst int, now func() time.Time) *limiterStore {
	return &limiterStore{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Every(interval),
		burst:   burst,
		idle:    interval * time.Duration(burst),
		now:     now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.idle {
		for k, e := range s.entries {
			if now.Sub(e.seen) >= s.idle {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}

	entry, ok := s.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = entry
	}
	entry.seen = now
	return entry.limiter
}

// RateLimit throttles each authenticated user, or the client IP when no
// principal is present.
func RateLimit(cfg RateLimitConfig, logger *zap.Logger) gin.HandlerFunc {
	if cfg.PerMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	store := newLimiterStore(time.Minute/time.Duration(cfg.PerMinute), burst, time.Now)
	responder := newResponder(logger)

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if principal, ok := PrincipalFromContext(c.Request.Context()); ok {
			key = "user:" + principal.UserID
		}
		if !store.get(key).Allow() {
			handlerLogger(c.Request.Context(), logger, "rate_limit", "").Warn("rate limit exceeded", zap.String("key", key))
			responder.writeError(c, http.StatusTooManyRequests, codeRateLimited, nil)
			return
		}
		c.Next()
	}
}
