package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/config"
	httptransport "github.com/example/advising-portal/internal/http"
	"github.com/example/advising-portal/internal/jobs"
	"github.com/example/advising-portal/internal/lock"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/persistence/memory"
	"github.com/example/advising-portal/internal/persistence/postgres"
	"github.com/example/advising-portal/internal/persistence/sqlite"
	"github.com/example/advising-portal/internal/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// overdueTimeout bounds a single overdue sweep.
const overdueTimeout = time.Minute

// app holds everything the serve command runs.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   persistence.Store
	router  *gin.Engine
	jobs    *jobs.Scheduler
	closers []func() error
}

// newApp opens the store and locker named by cfg and wires the services,
// the router and the cron jobs on top of them.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	locker, err := a.openLocker(ctx)
	if err != nil {
		return nil, err
	}

	resolver := scheduler.NewResolver(cfg.Location)
	cache := application.NewCalendarCache(cfg.CalendarCacheTTL, 0, time.Now)
	deps := application.Deps{
		Store:       store,
		Locker:      locker,
		LockTimeout: cfg.LockTimeout,
		Resolver:    resolver,
		Cache:       cache,
		IDGenerator: uuid.NewString,
		Now:         time.Now,
		Logger:      logger,
	}
	bans := application.NewBanPolicy(store, cfg.MaxCancellations, time.Now)
	grid := scheduler.GridConfig{
		WorkdayStart: cfg.WorkdayStart,
		WorkdayEnd:   cfg.WorkdayEnd,
		Granularity:  cfg.SlotGranularity,
		WeekStart:    cfg.WeekStart,
	}

	availabilityService := application.NewAvailabilityService(deps)
	bookingService := application.NewBookingService(deps, bans)
	meetingService := application.NewMeetingService(deps, bans)
	calendarService := application.NewCalendarService(deps, grid)
	banService := application.NewBanService(bans)

	a.router = httptransport.NewRouter(httptransport.RouterConfig{
		Calendar:     httptransport.NewCalendarHandler(calendarService, cfg.Location, logger),
		Availability: httptransport.NewAvailabilityHandler(availabilityService, logger),
		Meetings:     httptransport.NewMeetingHandler(bookingService, meetingService, logger),
		Bans:         httptransport.NewBanHandler(banService, logger),
		Verifier:     httptransport.NewJWTVerifier(cfg.JWTSecret),
		RateLimit: httptransport.RateLimitConfig{
			PerMinute: cfg.RateLimitPerMinute,
			Burst:     cfg.RateLimitBurst,
		},
		Logger: logger,
	})

	a.jobs = jobs.NewScheduler(logger, cfg.Location)
	overdue := jobs.NewOverdueJob(meetingService, time.Now, overdueTimeout, logger)
	if err := a.jobs.Add("overdue", cfg.OverdueSchedule, overdue); err != nil {
		return nil, err
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context) (persistence.Store, error) {
	switch a.cfg.StoreDriver {
	case config.StoreMemory:
		store := memory.New()
		a.closers = append(a.closers, store.Close)
		return store, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, a.cfg.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite store: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		store, err := postgres.Open(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", a.cfg.StoreDriver)
	}
}

// openLocker gives postgres advisory locks a pool of their own so held
// locks never take connections from the store.
func (a *app) openLocker(ctx context.Context) (lock.Locker, error) {
	switch a.cfg.LockDriver {
	case config.LockMemory:
		return lock.NewKeyedMutex(), nil
	case config.LockRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			DB:       a.cfg.RedisDB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", a.cfg.RedisAddr, err)
		}
		return lock.NewRedisLocker(client, lock.WithTTL(a.cfg.LockTTL), lock.WithLogger(a.logger)), nil
	case config.LockPostgres:
		if a.cfg.StoreDriver != config.StorePostgres {
			return nil, errors.New("postgres locks require the postgres store")
		}
		locker, err := lock.OpenPostgresLocker(ctx, a.cfg.PostgresDSN, a.logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres locker: %w", err)
		}
		a.closers = append(a.closers, locker.Close)
		return locker, nil
	default:
		return nil, fmt.Errorf("unsupported lock driver %q", a.cfg.LockDriver)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
