package testfixtures

import (
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/lock"
	"github.com/example/advising-portal/internal/persistence"
	"github.com/example/advising-portal/internal/persistence/memory"
	"github.com/example/advising-portal/internal/scheduler"
	"go.uber.org/zap"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Locker      lock.Locker
	LockTimeout time.Duration
	Location    *time.Location
	Grid        scheduler.GridConfig
	CacheTTL    time.Duration
	MaxCancels  int
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Locker:      lock.NewKeyedMutex(),
		LockTimeout: time.Second,
		Location:    time.UTC,
		Grid:        scheduler.DefaultGridConfig(),
		MaxCancels:  application.DefaultMaxCancellations,
	}
	for _, opt := range opts {
		opt(factory)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithLocker overrides the per-staff locker.
func WithLocker(locker lock.Locker, timeout time.Duration) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Locker = locker
		factory.LockTimeout = timeout
	}
}

// WithCalendarCache enables the grid cache with the given TTL.
func WithCalendarCache(ttl time.Duration) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.CacheTTL = ttl
	}
}

// Services groups every application service built over one store.
type Services struct {
	Store        persistence.Store
	Cache        *application.CalendarCache
	Bans         *application.BanPolicy
	BanStatus    *application.BanService
	Availability *application.AvailabilityService
	Bookings     *application.BookingService
	Meetings     *application.MeetingService
	Calendar     *application.CalendarService
}

// NewServices wires every service over store. A nil store uses a fresh
// in-memory store.
func (f *ServiceFactory) NewServices(store persistence.Store) *Services {
	if store == nil {
		store = memory.New()
	}
	now := f.Clock.NowFunc()
	cache := application.NewCalendarCache(f.CacheTTL, 0, now)
	deps := application.Deps{
		Store:       store,
		Locker:      f.Locker,
		LockTimeout: f.LockTimeout,
		Resolver:    scheduler.NewResolver(f.Location),
		Cache:       cache,
		IDGenerator: f.IDGenerator.NextFunc(),
		Now:         now,
		Logger:      zap.NewNop(),
	}
	bans := application.NewBanPolicy(store, f.MaxCancels, now)
	return &Services{
		Store:        store,
		Cache:        cache,
		Bans:         bans,
		BanStatus:    application.NewBanService(bans),
		Availability: application.NewAvailabilityService(deps),
		Bookings:     application.NewBookingService(deps, bans),
		Meetings:     application.NewMeetingService(deps, bans),
		Calendar:     application.NewCalendarService(deps, f.Grid),
	}
}
