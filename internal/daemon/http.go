package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/metrics"
	"git.home.luguber.info/inful/bindery/internal/version"
)

type healthResponse struct {
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Version   string       `json:"version"`
	Channels  []string     `json:"channels,omitempty"`
	LastBuild *tickSummary `json:"last_build,omitempty"`
	LastSync  *tickSummary `json:"last_sync,omitempty"`
}

// serveHTTP binds the daemon address and serves /metrics and /healthz
// until ctx is done. The returned channel closes once the server has
// shut down.
func (d *Daemon) serveHTTP(ctx context.Context) (<-chan struct{}, error) {
	addr := d.cfg.Daemon.HTTPAddr
	if addr == "" {
		addr = ":9180"
	}
	// Bind before starting so a taken port fails Run instead of a log
	// line from a goroutine.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, binderrors.ConfigInvalid("daemon.http_addr", err.Error())
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(d.reg))
	mux.HandleFunc("/healthz", d.handleHealthz)

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("daemon http server error", logfields.Error(err))
		}
	}()
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("daemon http shutdown", logfields.Error(err))
		}
	}()
	slog.Info("daemon http listening", slog.String("addr", ln.Addr().String()))
	return done, nil
}

func (d *Daemon) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	lastBuild := d.lastBuild
	lastSync := d.lastSync
	d.mu.Unlock()

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(d.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Channels:  d.syncer.Channels(),
		LastBuild: lastBuild,
		LastSync:  lastSync,
	}
	code := http.StatusOK
	if (lastBuild != nil && !lastBuild.OK) || (lastSync != nil && !lastSync.OK) {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("write health response", logfields.Error(err))
	}
}
