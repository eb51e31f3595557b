package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/advising-portal/internal/application"
	"github.com/example/advising-portal/internal/config"
	httptransport "github.com/example/advising-portal/internal/http"
	"github.com/example/advising-portal/internal/logging"
	"github.com/example/advising-portal/internal/meeting"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const usage = `usage: advising-portal [command]

commands:
  serve    run the HTTP API and the overdue sweep (default)
  migrate  apply database migrations and exit
  token    print a signed bearer token: token -sub ID -role advisor|student|system [-ttl 1h]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	if command == "help" || command == "-h" || command == "--help" {
		_, err := io.WriteString(stdout, usage)
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	switch command {
	case "serve":
		return serve(ctx, cfg)
	case "migrate":
		return migrate(ctx, cfg)
	case "token":
		return printToken(cfg, args, stdout, time.Now())
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", zap.Error(err))
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Error("failed to close resources", zap.Error(cerr))
		}
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.jobs.Start()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", zap.Error(err))
		}
		if err := a.jobs.Stop(shutdownCtx); err != nil {
			logger.Warn("jobs did not stop in time", zap.Error(err))
		}
	}()

	logger.Info("advising portal listening",
		zap.String("addr", server.Addr),
		zap.String("store", cfg.StoreDriver),
		zap.String("lock", cfg.LockDriver),
		zap.String("timezone", cfg.Location.String()),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", zap.Error(err))
		return err
	}
	return nil
}

func migrate(ctx context.Context, cfg config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a := &app{cfg: cfg, logger: logger}
	defer func() { _ = a.Close() }()
	if _, err := a.openStore(ctx); err != nil {
		logger.Error("failed to apply migrations", zap.Error(err))
		return err
	}
	logger.Info("migrations applied", zap.String("store", cfg.StoreDriver))
	return nil
}

// printToken signs a token for local testing with the configured secret.
func printToken(cfg config.Config, args []string, stdout io.Writer, now time.Time) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	subject := flags.String("sub", "", "user ID placed in the sub claim")
	roleName := flags.String("role", "", "advisor, student or system")
	ttl := flags.Duration("ttl", time.Hour, "token lifetime")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("token: %w", err)
	}

	if *subject == "" {
		return errors.New("token: -sub is required")
	}
	role, err := meeting.ParseRole(*roleName)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	if *ttl <= 0 {
		return errors.New("token: -ttl must be positive")
	}

	token, err := httptransport.SignToken(cfg.JWTSecret, application.Principal{UserID: *subject, Role: role}, *ttl, now)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}
