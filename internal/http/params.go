package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

// parseTime accepts RFC 3339 timestamps. Anything else yields the zero time,
// which the services report as a missing field.
func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

// queryParams collects query string parsing failures into one ValidationError.
type queryParams struct {
	c    *gin.Context
	vErr application.ValidationError
}

func newQueryParams(c *gin.Context) *queryParams {
	return &queryParams{c: c}
}

func (q *queryParams) fail(field, message string) {
	if q.vErr.FieldErrors == nil {
		q.vErr.FieldErrors = make(map[string]string)
	}
	if _, exists := q.vErr.FieldErrors[field]; !exists {
		q.vErr.FieldErrors[field] = message
	}
}

func (q *queryParams) intParam(name string, def int) int {
	raw := strings.TrimSpace(q.c.Query(name))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, "must be an integer")
		return def
	}
	return v
}

func (q *queryParams) boolParam(name string) bool {
	raw := strings.TrimSpace(q.c.Query(name))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "must be true or false")
		return false
	}
	return v
}

func (q *queryParams) dateParam(name string, loc *time.Location, now time.Time) time.Time {
	raw := strings.TrimSpace(q.c.Query(name))
	if raw == "" {
		return now.In(loc)
	}
	v, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		q.fail(name, "must be a date formatted YYYY-MM-DD")
		return time.Time{}
	}
	return v
}

func (q *queryParams) timeParam(name string) *time.Time {
	raw := strings.TrimSpace(q.c.Query(name))
	if raw == "" {
		return nil
	}
	v := parseTime(raw)
	if v.IsZero() {
		q.fail(name, "must be an RFC 3339 timestamp")
		return nil
	}
	return &v
}

// listParam returns repeated and comma separated values of name.
func (q *queryParams) listParam(name string) []string {
	var out []string
	for _, raw := range q.c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (q *queryParams) err() error {
	if !q.vErr.HasErrors() {
		return nil
	}
	return &q.vErr
}
