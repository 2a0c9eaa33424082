// Package server assembles redprobe's components from configuration and
// runs them, either as a one-shot check or as the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/redprobe/internal/api"
	"github.com/JakeFAU/redprobe/internal/config"
	"github.com/JakeFAU/redprobe/internal/fetch"
	"github.com/JakeFAU/redprobe/internal/id/uuid"
	"github.com/JakeFAU/redprobe/internal/message"
	"github.com/JakeFAU/redprobe/internal/ratelimit"
	"github.com/JakeFAU/redprobe/internal/resource"
	"github.com/JakeFAU/redprobe/internal/robots"
	"github.com/JakeFAU/redprobe/internal/storage/local"
	"github.com/JakeFAU/redprobe/internal/storage/memory"
	"github.com/JakeFAU/redprobe/internal/storage/postgres"
	"github.com/JakeFAU/redprobe/internal/storage/sqlite"
)

// App contains the application's dependencies.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	checker *resource.Checker
	api     *api.Server
	closers []func() error
}

// NewApp creates a new App with the given configuration.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("robots", cfg.Robots.Enabled),
		zap.String("robots_store", cfg.Robots.Store),
		zap.Bool("descend", cfg.Descend.Enabled),
	)
	a := &App{cfg: cfg, logger: logger}

	engineOpts := []fetch.Option{
		fetch.WithLogger(logger.Named("fetch")),
		fetch.WithLimiter(ratelimit.New(ratelimit.Config{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst})),
	}
	if cfg.Robots.Enabled {
		cache, err := a.newRobots(ctx)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, fetch.WithRobots(cache))
	}

	engine := fetch.New(fetch.NewHTTPTransport(cfg.HTTPTimeout()), fetch.Config{
		UserAgent:    cfg.Check.UserAgent,
		SampleBytes:  cfg.Check.SampleBytes,
		MaxBodyBytes: cfg.Check.MaxBodyBytes,
	}, engineOpts...)

	a.checker = resource.NewChecker(engine, resource.Config{
		Timeout:     cfg.CheckTimeout(),
		MaxLinks:    cfg.Descend.MaxLinks,
		Concurrency: cfg.Descend.Concurrency,
	}, resource.WithLogger(logger.Named("resource")))

	a.api = api.NewServer(a.checker, uuid.New(), api.Options{
		AllowDescend:   cfg.Descend.Enabled,
		RequestTimeout: cfg.CheckTimeout() + 5*time.Second,
	}, logger.Named("api"))
	return a, nil
}

func (a *App) newRobots(ctx context.Context) (*robots.Cache, error) {
	opts := []robots.Option{robots.WithLogger(a.logger.Named("robots"))}
	switch a.cfg.Robots.Store {
	case config.StoreMemory:
		opts = append(opts, robots.WithStore(memory.New()))
	case config.StoreLocal:
		store, err := local.New(local.Config{BaseDir: a.cfg.Robots.Dir})
		if err != nil {
			return nil, fmt.Errorf("open local robots store: %w", err)
		}
		opts = append(opts, robots.WithStore(store))
	case config.StoreSQLite:
		store, err := sqlite.New(ctx, a.cfg.Robots.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite robots store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if n, err := store.Purge(ctx); err != nil {
			a.logger.Warn("robots purge failed", zap.Error(err))
		} else if n > 0 {
			a.logger.Info("purged expired robots entries", zap.Int64("count", n))
		}
		opts = append(opts, robots.WithStore(store))
	case config.StorePostgres:
		store, err := postgres.New(ctx, postgres.Config{
			DSN:   a.cfg.Robots.PostgresDSN,
			Table: a.cfg.Robots.PostgresTable,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres robots store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		if n, err := store.Purge(ctx); err != nil {
			a.logger.Warn("robots purge failed", zap.Error(err))
		} else if n > 0 {
			a.logger.Info("purged expired robots entries", zap.Int64("count", n))
		}
		opts = append(opts, robots.WithStore(store))
	}
	return robots.New(robots.Config{
		Agent:      a.cfg.Robots.UserAgent,
		UserAgent:  a.cfg.Check.UserAgent,
		TTL:        a.cfg.RobotsTTL(),
		MaxRetries: a.cfg.Robots.MaxRetries,
	}, opts...), nil
}

// Check runs one complete check.
func (a *App) Check(ctx context.Context, req *message.Request, descend bool) *resource.Resource {
	return a.checker.Check(ctx, req, descend && a.cfg.Descend.Enabled)
}

// Handler returns the API handler.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Run serves the API and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			errCh <- fmt.Errorf("serve http: %w", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	select {
	case err := <-errCh:
		return errors.Join(err, a.Close())
	default:
		return a.Close()
	}
}

// Close releases persistent resources.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
