package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"svorder/internal/core/app"
	"svorder/internal/core/config"
	"svorder/internal/output"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ObservabilityServer exposes watch-mode state over HTTP: Prometheus metrics,
// a health summary and the latest compilation order.
type ObservabilityServer struct {
	addr   string
	app    *app.App
	health *app.HealthService
	server *http.Server
	ln     net.Listener
}

func NewObservabilityServer(addr string, a *app.App) *ObservabilityServer {
	return &ObservabilityServer{
		addr:   addr,
		app:    a,
		health: app.NewHealthService(a),
	}
}

func (s *ObservabilityServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.serveHealth)
	mux.HandleFunc("GET /order", s.serveOrder)
	return mux
}

func (s *ObservabilityServer) serveHealth(w http.ResponseWriter, r *http.Request) {
	status := s.health.Check(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// serveOrder returns the last successful order even when a later rerun
// failed; 503 until the first run completes.
func (s *ObservabilityServer) serveOrder(w http.ResponseWriter, _ *http.Request) {
	last, _ := s.app.Last()
	if last == nil {
		http.Error(w, "no order computed yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := output.WriteOrder(w, config.FormatJSON, last.Order, last.Omitted); err != nil {
		slog.Warn("failed to write order response", "error", err)
	}
}

// Start binds the address before returning so a busy port is reported to the
// caller instead of only being logged.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("observability server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *ObservabilityServer) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
