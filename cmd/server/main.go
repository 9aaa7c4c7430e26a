// Notes API server: serves the note log over the legacy, v1, v2 and v3 HTTP
// APIs and the MCP endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/notes-log/internal/api"
	"github.com/kuitang/notes-log/internal/config"
	"github.com/kuitang/notes-log/internal/mcp"
	"github.com/kuitang/notes-log/internal/notes"
	"github.com/kuitang/notes-log/internal/obs"
	"github.com/kuitang/notes-log/internal/ratelimit"
)

func main() {
	addr, configPath := config.ParseFlags()
	cfg, err := config.LoadConfig(addr, configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	obs.Init()
	obs.SetLevel(obs.ParseLevel(cfg.LogLevel))
	cfg.PrintStartupSummary()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		obs.Pkg("main").Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context, cfg *config.Config) error {
	logger := obs.Pkg("main")

	svc := notes.NewService(notes.NewStore(cfg.NotesPath), nil)

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimitConfig.Enabled() {
		limiter = ratelimit.NewRateLimiter(cfg.RateLimitConfig)
		defer limiter.Stop()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newRootHandler(cfg, svc, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "notes_path", cfg.NotesPath, "version", cfg.AppVersion)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// newRootHandler wires routes and the middleware chain: request context,
// then access log, then rate limit.
func newRootHandler(cfg *config.Config, svc *notes.Service, limiter *ratelimit.RateLimiter) http.Handler {
	mux := http.NewServeMux()

	handler := api.NewHandler(svc, api.VersionConfig{
		Version:     cfg.AppVersion,
		Environment: cfg.DeploymentEnv,
		Report:      cfg.VersionReport,
	})
	handler.RegisterRoutes(mux)

	mountMCPRoute(mux, "/mcp", mcp.NewServer(svc, cfg.AppVersion))

	var h http.Handler = mux
	h = ratelimit.RateLimitMiddleware(limiter, obs.ClientIP)(h)
	h = obs.AccessLogMiddleware("http", h)
	h = obs.RequestContextMiddleware(h)
	return h
}

// mountMCPRoute registers the Streamable HTTP endpoint for every method; the
// MCP server answers unsupported ones itself.
func mountMCPRoute(mux *http.ServeMux, path string, handler http.Handler) {
	mux.Handle(path, handler)
}
