package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/example/advising-portal/internal/config"
	httptransport "github.com/example/advising-portal/internal/http"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "main-test-secret"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:                "test",
		HTTPPort:           0,
		StoreDriver:        config.StoreSQLite,
		SQLiteDSN:          "file:" + filepath.Join(t.TempDir(), "advising.db") + "?_pragma=foreign_keys(1)",
		LockDriver:         config.LockMemory,
		LockTimeout:        time.Second,
		LockTTL:            time.Second,
		JWTSecret:          testSecret,
		Location:           time.UTC,
		WeekStart:          calendar.Monday,
		WorkdayStart:       8 * 60,
		WorkdayEnd:         18 * 60,
		SlotGranularity:    time.Hour,
		MaxCancellations:   3,
		OverdueSchedule:    "@every 5m",
		RateLimitPerMinute: 60,
		RateLimitBurst:     5,
	}
}

func TestNewAppServesAuthenticatedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := newApp(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/staff/adv-1/weekly-slots", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var out bytes.Buffer
	require.NoError(t, printToken(a.cfg, []string{"-sub", "adv-1", "-role", "advisor"}, &out, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/staff/adv-1/weekly-slots", nil)
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(out.String()))
	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"slots":[]}`, rec.Body.String())
}

func TestNewAppRejectsUnknownDrivers(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "mongo"
	_, err := newApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.StoreDriver = config.StoreMemory
	cfg.LockDriver = config.LockPostgres
	_, err = newApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "postgres locks require the postgres store")

	cfg = testConfig(t)
	cfg.OverdueSchedule = "every now and then"
	_, err = newApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "schedule overdue")
}

func TestPrintTokenProducesVerifiableToken(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	require.NoError(t, printToken(cfg, []string{"-sub", "stu-1", "-role", "student", "-ttl", "10m"}, &out, time.Now()))

	principal, err := httptransport.NewJWTVerifier(testSecret).Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "stu-1", principal.UserID)
	assert.Equal(t, meeting.RoleStudent, principal.Role)

	for name, args := range map[string][]string{
		"missing subject": {"-role", "student"},
		"unknown role":    {"-sub", "x", "-role", "dean"},
		"negative ttl":    {"-sub", "x", "-role", "student", "-ttl", "-1m"},
		"unknown flag":    {"-nope"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, printToken(cfg, args, &bytes.Buffer{}, time.Now()))
		})
	}
}

func TestRunPrintsUsage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"help"}, &out))
	assert.Contains(t, out.String(), "usage: advising-portal")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	t.Setenv("ADVISING_JWT_SECRET", testSecret)
	err := run(context.Background(), []string{"frobnicate"}, &bytes.Buffer{})
	require.ErrorContains(t, err, `unknown command "frobnicate"`)
}

func TestMigrateCreatesSQLiteSchema(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "development"
	require.NoError(t, migrate(context.Background(), cfg))
	// Running again is a no-op.
	require.NoError(t, migrate(context.Background(), cfg))
}
