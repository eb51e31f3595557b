package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/example/advising-portal/internal/calendar"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key, e.g. ADVISING_HTTP_PORT.
const EnvPrefix = "ADVISING"

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	LockMemory   = "memory"
	LockRedis    = "redis"
	LockPostgres = "postgres"
)

// Config captures environment driven configuration values for the advising portal.
type Config struct {
	Env      string
	HTTPPort int

	StoreDriver string
	SQLiteDSN   string
	PostgresDSN string

	LockDriver  string
	LockTimeout time.Duration
	LockTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	Location        *time.Location
	WeekStart       calendar.DayOfWeek
	WorkdayStart    calendar.TimeOfDay
	WorkdayEnd      calendar.TimeOfDay
	SlotGranularity time.Duration

	MaxCancellations int
	OverdueSchedule  string

	RateLimitPerMinute int
	RateLimitBurst     int
	CalendarCacheTTL   time.Duration
}

// IsProduction reports whether the process runs with ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func defaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("STORE_DRIVER", StoreSQLite)
	v.SetDefault("SQLITE_DSN", "file:advising.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("LOCK_DRIVER", LockMemory)
	v.SetDefault("LOCK_TIMEOUT", "5s")
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("WEEK_START", "monday")
	v.SetDefault("WORKDAY_START", "08:00")
	v.SetDefault("WORKDAY_END", "18:00")
	v.SetDefault("SLOT_GRANULARITY", "1h")
	v.SetDefault("MAX_CANCELLATIONS", 3)
	v.SetDefault("OVERDUE_SCHEDULE", "@every 5m")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 30)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("CALENDAR_CACHE_TTL", "0s")
}

// Load reads an optional .env file and then parses configuration values from
// the process environment.
//
// Optional fields fall back to defaults. Required values that are absent and
// values that fail to parse are collected and reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	defaults(v)

	p := parser{v: v}
	cfg := Config{
		Env:              strings.ToLower(p.str("ENV")),
		HTTPPort:         p.positiveInt("HTTP_PORT"),
		StoreDriver:      p.oneOf("STORE_DRIVER", StoreSQLite, StorePostgres, StoreMemory),
		SQLiteDSN:        p.str("SQLITE_DSN"),
		PostgresDSN:      p.str("POSTGRES_DSN"),
		LockDriver:       p.oneOf("LOCK_DRIVER", LockMemory, LockRedis, LockPostgres),
		LockTimeout:      p.duration("LOCK_TIMEOUT", false),
		LockTTL:          p.duration("LOCK_TTL", false),
		RedisAddr:        p.str("REDIS_ADDR"),
		RedisPassword:    p.str("REDIS_PASSWORD"),
		RedisDB:          p.nonNegativeInt("REDIS_DB"),
		JWTSecret:        p.required("JWT_SECRET"),
		Location:         p.location("TIMEZONE"),
		WeekStart:        p.dayOfWeek("WEEK_START"),
		WorkdayStart:     p.timeOfDay("WORKDAY_START"),
		WorkdayEnd:       p.timeOfDay("WORKDAY_END"),
		SlotGranularity:  p.duration("SLOT_GRANULARITY", false),
		MaxCancellations: p.positiveInt("MAX_CANCELLATIONS"),
		OverdueSchedule:  p.required("OVERDUE_SCHEDULE"),

		RateLimitPerMinute: p.nonNegativeInt("RATE_LIMIT_PER_MINUTE"),
		RateLimitBurst:     p.nonNegativeInt("RATE_LIMIT_BURST"),
		CalendarCacheTTL:   p.duration("CALENDAR_CACHE_TTL", true),
	}

	if len(p.invalid) == 0 && cfg.WorkdayEnd <= cfg.WorkdayStart {
		p.invalidKey("WORKDAY_END")
	}
	if cfg.SlotGranularity > 0 && cfg.SlotGranularity < time.Minute {
		p.invalidKey("SLOT_GRANULARITY")
	}
	switch {
	case cfg.StoreDriver == StorePostgres && cfg.PostgresDSN == "":
		p.missingKey("POSTGRES_DSN")
	case cfg.LockDriver == LockPostgres && cfg.StoreDriver != StorePostgres:
		p.invalidKey("LOCK_DRIVER")
	}

	if len(p.missing) > 0 {
		return Config{}, fmt.Errorf("config: required environment variables are not set: %s", strings.Join(p.missing, ", "))
	}
	if len(p.invalid) > 0 {
		return Config{}, fmt.Errorf("config: environment variables have invalid values: %s", strings.Join(p.invalid, ", "))
	}
	return cfg, nil
}

// parser reads keys from viper and records the ones that are missing or malformed.
type parser struct {
	v       *viper.Viper
	missing []string
	invalid []string
}

func (p *parser) name(key string) string {
	return EnvPrefix + "_" + key
}

func (p *parser) missingKey(key string) {
	p.missing = append(p.missing, p.name(key))
}

func (p *parser) invalidKey(key string) {
	p.invalid = append(p.invalid, p.name(key))
}

func (p *parser) str(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) required(key string) string {
	value := p.str(key)
	if value == "" {
		p.missingKey(key)
	}
	return value
}

func (p *parser) integer(key string) (int, bool) {
	value, err := strconv.Atoi(p.str(key))
	if err != nil {
		p.invalidKey(key)
		return 0, false
	}
	return value, true
}

func (p *parser) positiveInt(key string) int {
	value, ok := p.integer(key)
	if ok && value <= 0 {
		p.invalidKey(key)
	}
	return value
}

func (p *parser) nonNegativeInt(key string) int {
	value, ok := p.integer(key)
	if ok && value < 0 {
		p.invalidKey(key)
	}
	return value
}

func (p *parser) duration(key string, allowZero bool) time.Duration {
	value, err := time.ParseDuration(p.str(key))
	if err != nil || value < 0 || (value == 0 && !allowZero) {
		p.invalidKey(key)
		return 0
	}
	return value
}

func (p *parser) oneOf(key string, allowed ...string) string {
	value := strings.ToLower(p.str(key))
	for _, candidate := range allowed {
		if value == candidate {
			return value
		}
	}
	p.invalidKey(key)
	return ""
}

func (p *parser) location(key string) *time.Location {
	loc, err := time.LoadLocation(p.str(key))
	if err != nil {
		p.invalidKey(key)
		return time.UTC
	}
	return loc
}

// dayOfWeek accepts an English day name or its number (1=Sunday).
func (p *parser) dayOfWeek(key string) calendar.DayOfWeek {
	value := p.str(key)
	if n, err := strconv.Atoi(value); err == nil && calendar.DayOfWeek(n).Valid() {
		return calendar.DayOfWeek(n)
	}
	for d := calendar.Sunday; d <= calendar.Saturday; d++ {
		if strings.EqualFold(d.String(), value) {
			return d
		}
	}
	p.invalidKey(key)
	return calendar.Monday
}

func (p *parser) timeOfDay(key string) calendar.TimeOfDay {
	value, err := calendar.ParseTimeOfDay(p.str(key))
	if err != nil {
		p.invalidKey(key)
		return 0
	}
	return value
}
