// Package app assembles the console from a magi.Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/magiconsole/magi"
	"github.com/magiconsole/magi/counter"
	counterpg "github.com/magiconsole/magi/counter/postgres"
	counterredis "github.com/magiconsole/magi/counter/redis"
	countersqlite "github.com/magiconsole/magi/counter/sqlite"
	"github.com/magiconsole/magi/internal/profilewatch"
	"github.com/magiconsole/magi/internal/server"
	"github.com/magiconsole/magi/mail/resend"
	"github.com/magiconsole/magi/meter"
	"github.com/magiconsole/magi/provider/gemini"
	"github.com/magiconsole/magi/provider/openaicompat"
	"github.com/magiconsole/magi/ratelimit"
	ratelimitpg "github.com/magiconsole/magi/ratelimit/postgres"
	ratelimitredis "github.com/magiconsole/magi/ratelimit/redis"
)

// App owns every long-lived component of a running console.
type App struct {
	cfg      magi.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	pipeline *magi.Pipeline
	server   *server.Server
	sweeper  *ratelimit.Sweeper
	watcher  *profilewatch.Watcher

	redis   *goredis.Client
	pool    *pgxpool.Pool
	closers []func() error
}

// New connects the configured backends and builds the HTTP server.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg magi.Config, logger *zap.Logger, version string) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	profiles, err := a.buildProfiles()
	if err != nil {
		return nil, err
	}

	a.pipeline, err = BuildPipeline(cfg, profiles,
		magi.WithMeter(meter.Multi{meter.NewLogMeter(logger), meter.NewPromMeter(a.registry)}))
	if err != nil {
		return nil, err
	}

	gate, err := a.buildGate(ctx)
	if err != nil {
		return nil, err
	}

	store, err := a.buildCounter(ctx)
	if err != nil {
		return nil, err
	}

	var mailer magi.Mailer
	if cfg.Contact.ResendAPIKey != "" {
		var opts []resend.Option
		if cfg.Contact.BaseURL != "" {
			opts = append(opts, resend.WithBaseURL(cfg.Contact.BaseURL))
		}
		opts = append(opts, resend.WithRate(cfg.Contact.RatePerSecond))
		mailer = resend.New(cfg.Contact.ResendAPIKey, opts...)
	} else {
		logger.Warn("contact delivery disabled: no resend api key")
	}

	a.server = server.New(server.Options{
		Addr:            cfg.Server.Addr,
		Version:         version,
		Responder:       a.pipeline,
		Gate:            gate,
		Mailer:          mailer,
		Counter:         store,
		MailFrom:        cfg.Contact.From,
		MailTo:          splitAddrs(cfg.Contact.To),
		CounterKey:      cfg.Counter.Key,
		CounterFallback: cfg.Counter.Fallback,
		VisitCookie:     cfg.Counter.CookieName,
		Logger:          logger,
		Registry:        a.registry,
	})

	logger.Info("console assembled",
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.String("counter_backend", cfg.Counter.Backend),
		zap.Int("strategies", len(a.pipeline.Strategies())),
	)
	return a, nil
}

// BuildPipeline creates the Primary, Secondary, Local chain from cfg.
func BuildPipeline(cfg magi.Config, profiles magi.ProfileSource, opts ...magi.Option) (*magi.Pipeline, error) {
	primary, err := buildStrategy(magi.SourcePrimary, cfg.Providers.Primary)
	if err != nil {
		return nil, fmt.Errorf("app: primary provider: %w", err)
	}
	secondary, err := buildStrategy(magi.SourceSecondary, cfg.Providers.Secondary)
	if err != nil {
		return nil, fmt.Errorf("app: secondary provider: %w", err)
	}

	opts = append([]magi.Option{magi.WithProfiles(profiles)}, opts...)
	return magi.NewPipeline([]magi.Strategy{primary, secondary}, opts...), nil
}

func buildStrategy(src magi.Source, pc magi.ProviderConfig) (magi.Strategy, error) {
	var p magi.Provider
	switch pc.Kind {
	case magi.KindGemini:
		var opts []gemini.Option
		if pc.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(pc.BaseURL))
		}
		p = gemini.New(opts...)
	case magi.KindOpenAI:
		name := pc.Name
		if name == "" {
			name = "openai"
		}
		p = openaicompat.New(name, pc.BaseURL)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}

	opts := []magi.ProviderOption{magi.WithTimeout(pc.Timeout)}
	if pc.Temperature != nil {
		opts = append(opts, magi.WithTemperature(*pc.Temperature))
	}
	if pc.MaxTokens != nil {
		opts = append(opts, magi.WithMaxTokens(*pc.MaxTokens))
	}
	return magi.NewProviderStrategy(src, p, pc.Auth, pc.Model, opts...), nil
}

func (a *App) buildProfiles() (magi.ProfileSource, error) {
	pc := a.cfg.Profile
	if pc.Path == "" {
		return magi.StaticProfile(magi.DefaultProfile()), nil
	}
	if !pc.Watch {
		p, err := magi.LoadProfile(pc.Path)
		if err != nil {
			return nil, err
		}
		return magi.StaticProfile(p), nil
	}

	w, err := profilewatch.New(pc.Path, profilewatch.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.watcher = w
	return w, nil
}

func (a *App) buildGate(ctx context.Context) (magi.Gate, error) {
	rl := a.cfg.RateLimit
	switch rl.Backend {
	case magi.BackendRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return ratelimitredis.New(client,
			ratelimitredis.WithKeyPrefix(rl.KeyPrefix),
			ratelimitredis.WithMaxTokens(rl.MaxTokens),
			ratelimitredis.WithWindow(rl.Window),
			ratelimitredis.WithStaleAfter(rl.StaleAfter),
		), nil

	case magi.BackendPostgres:
		pool, err := a.pgPool(ctx)
		if err != nil {
			return nil, err
		}
		g := ratelimitpg.New(pool,
			ratelimitpg.WithMaxTokens(rl.MaxTokens),
			ratelimitpg.WithWindow(rl.Window),
			ratelimitpg.WithStaleAfter(rl.StaleAfter),
		)
		if err := g.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.sweeper = ratelimit.NewSweeper(g.Sweep, rl.SweepInterval, a.logger)
		return g, nil

	default:
		g := ratelimit.NewMemoryGate(
			ratelimit.WithMaxTokens(rl.MaxTokens),
			ratelimit.WithWindow(rl.Window),
			ratelimit.WithStaleAfter(rl.StaleAfter),
		)
		a.sweeper = ratelimit.NewSweeper(ratelimit.MemorySweep(g), rl.SweepInterval, a.logger)
		return g, nil
	}
}

func (a *App) buildCounter(ctx context.Context) (magi.CounterStore, error) {
	switch a.cfg.Counter.Backend {
	case magi.BackendRedis:
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, err
		}
		return counterredis.New(client), nil

	case magi.BackendPostgres:
		pool, err := a.pgPool(ctx)
		if err != nil {
			return nil, err
		}
		s := counterpg.New(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return s, nil

	case magi.BackendSQLite:
		s, err := countersqlite.Open(ctx, a.cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil

	default:
		return counter.NewMemory(), nil
	}
}

// redisClient returns the shared client, connecting on first use.
func (a *App) redisClient(ctx context.Context) (*goredis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	rc := a.cfg.Redis
	client := goredis.NewClient(&goredis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("app: redis ping %s: %w", rc.Addr, err)
	}
	a.redis = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// pgPool returns the shared pool, connecting on first use.
func (a *App) pgPool(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := pgxpool.New(ctx, a.cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: postgres ping: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	return pool, nil
}

// Pipeline returns the response chain.
func (a *App) Pipeline() *magi.Pipeline { return a.pipeline }

// Server returns the HTTP server.
func (a *App) Server() *server.Server { return a.server }

// Run starts the background jobs and serves HTTP until ctx is cancelled,
// then shuts the server down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	if a.sweeper != nil {
		if err := a.sweeper.Start(ctx); err != nil {
			return err
		}
		defer a.sweeper.Stop()
	}

	if a.watcher != nil {
		go func() {
			if err := a.watcher.Watch(ctx); err != nil {
				a.logger.Error("profile watcher exited", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: shutdown: %w", err)
	}
	return <-errCh
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func splitAddrs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
