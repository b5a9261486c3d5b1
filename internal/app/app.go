package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// App is the demo server: a guestbook of entries kept in each visitor's
// session.
type App struct {
	cfg    Config
	log    *slog.Logger
	engine *goSession.Engine
	srv    *http.Server

	closers []func()
}

// New wires Redis (or miniredis), the session engine and the routes. It
// does not listen.
func New(cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	rdb, err := a.openRedis()
	if err != nil {
		return nil, err
	}

	secret := []byte(cfg.CookieSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			a.Close()
			return nil, fmt.Errorf("generate cookie secret: %w", err)
		}
		log.Warn("SESSIOND_COOKIE_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	sessCfg := cfg.sessionConfig(secret)
	for _, w := range sessCfg.Lint().BySeverity(goSession.LintWarn) {
		log.Warn("session config", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	engine, err := goSession.New().
		WithConfig(sessCfg).
		WithRedis(rdb).
		WithLogger(log).
		WithAuditSink(goSession.NewSlogSink(log)).
		Build()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build session engine: %w", err)
	}
	a.engine = engine
	a.closers = append([]func(){engine.Close}, a.closers...)

	report := engine.SecurityReport()
	log.Info("session engine ready",
		"cookie", report.CookieName,
		"signing", report.CookieSigning,
		"secure", report.CookieSecure,
		"ttl", report.SessionTTL.String(),
		"flush_on_cancel", report.FlushOnCancel,
	)

	a.srv = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return a, nil
}

func (a *App) openRedis() (redis.UniversalClient, error) {
	addr := a.cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		a.closers = append(a.closers, mr.Close)
		addr = mr.Addr()
		a.log.Info("REDIS_ADDR not set, using in-process miniredis", "addr", addr)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.closers = append([]func(){func() { _ = rdb.Close() }}, a.closers...)
	return rdb, nil
}

// Handler returns the full route tree.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", middleware.Handle(a.engine, a.showEntries))
	mux.Handle("POST /{$}", middleware.Handle(a.engine, a.addEntry))
	mux.Handle("POST /clear", middleware.Handle(a.engine, a.clearEntries))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", a.ready)
	if a.cfg.MetricsEnabled {
		mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(a.engine).Handler())
	}

	return middleware.RequestLogging(a.log)(mux)
}

// Run serves until ctx is done, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("sessiond listening", "addr", a.cfg.HTTPAddr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.log.Info("server stopped")
	return nil
}

// Close releases the engine, the Redis client and any miniredis, in that order.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
