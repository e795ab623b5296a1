// Package preview serves one target over HTTP and rebuilds it when the
// manuscript or a manifest changes.
//
// Preview is ephemeral and state-free: no release ledger, no channel
// sync, html only. It is meant for writing sessions, not publishing.
package preview

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"git.home.luguber.info/inful/bindery/internal/build"
	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/render"
	"git.home.luguber.info/inful/bindery/internal/watch"
)

// DefaultAddr is the preview listen address when none is given.
const DefaultAddr = ":4173"

// buildStatus tracks the latest build result for the health endpoint.
type buildStatus struct {
	mu        sync.RWMutex
	outcome   build.Outcome
	lastError string
	goodBuild bool
}

func (bs *buildStatus) record(rep *build.Report, err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if rep != nil {
		bs.outcome = rep.Outcome
	}
	if err != nil {
		bs.lastError = err.Error()
		return
	}
	bs.lastError = ""
	bs.goodBuild = true
}

func (bs *buildStatus) snapshot() (build.Outcome, string, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.outcome, bs.lastError, bs.goodBuild
}

// Server watches the manuscript and serves one target's rendered html.
type Server struct {
	cfg    *config.Config
	svc    *build.Service
	target string
	addr   string
	quiet  time.Duration
	status buildStatus
}

// New creates a preview server for target. Empty target means the full
// manuscript; empty addr means DefaultAddr.
func New(cfg *config.Config, target, addr string) *Server {
	if target == "" {
		target = cfg.Manifests.FullTarget
	}
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		cfg:    cfg,
		svc:    build.NewService(cfg),
		target: target,
		addr:   addr,
		quiet:  watch.DefaultQuietWindow,
	}
}

// WithQuietWindow overrides the rebuild debounce window.
func (s *Server) WithQuietWindow(d time.Duration) *Server {
	if d > 0 {
		s.quiet = d
	}
	return s
}

// Run binds the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return binderrors.ConfigInvalid("preview.addr", err.Error())
	}
	return s.Serve(ctx, ln)
}

// Serve runs the preview on a caller-provided listener: one initial
// build, then rebuild on every coalesced manuscript change.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.rebuild(ctx)

	w, err := watch.New(s.quiet)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(s.cfg.Book.ManuscriptDir); err != nil {
		return err
	}
	if err := w.Add(s.cfg.Manifests.Dir); err != nil {
		return err
	}
	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("preview watcher stopped", logfields.Error(err))
		}
	}()

	srv := &http.Server{
		Handler:      s.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("preview server error", logfields.Error(err))
		}
	}()
	slog.Info("preview listening",
		slog.String("addr", ln.Addr().String()),
		logfields.Target(s.target))

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := srv.Shutdown(shutdownCtx)
			cancel()
			if err != nil {
				slog.Warn("preview shutdown error", logfields.Error(err))
			}
			return nil
		case <-w.Changes():
			slog.Info("change detected, rebuilding", logfields.Target(s.target))
			s.rebuild(ctx)
		}
	}
}

func (s *Server) rebuild(ctx context.Context) {
	rep, err := s.svc.Build(ctx, build.BuildRequest{
		Target:  s.target,
		Formats: []render.Format{render.FormatHTML},
	})
	s.status.record(rep, err)
	if err != nil {
		slog.Error("preview build failed", logfields.Target(s.target), logfields.Error(err))
		return
	}
	slog.Info("preview build finished",
		logfields.Target(s.target),
		logfields.Outcome(string(rep.Outcome)))
}

type healthResponse struct {
	Status    string        `json:"status"`
	Target    string        `json:"target"`
	Outcome   build.Outcome `json:"outcome,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

func (s *Server) handler() http.Handler {
	files := http.FileServer(http.Dir(filepath.Join(s.cfg.Output.Dir, s.target)))
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/"+s.target+".html", http.StatusFound)
			return
		}
		files.ServeHTTP(w, r)
	})
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	outcome, lastErr, good := s.status.snapshot()
	resp := healthResponse{Status: "ok", Target: s.target, Outcome: outcome, LastError: lastErr}
	code := http.StatusOK
	if !good || lastErr != "" {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("write health response", logfields.Error(err))
	}
}
