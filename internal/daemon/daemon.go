// Package daemon runs bindery as a long-lived service: scheduled
// builds of every target, scheduled re-sync of the latest published
// release, and an HTTP endpoint serving metrics and health.
package daemon

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/bindery/internal/build"
	"git.home.luguber.info/inful/bindery/internal/channel"
	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/events"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/metrics"
	"git.home.luguber.info/inful/bindery/internal/release"
	"git.home.luguber.info/inful/bindery/internal/render"
	"git.home.luguber.info/inful/bindery/internal/retry"
	"git.home.luguber.info/inful/bindery/internal/store"
)

// Daemon owns the scheduler, the pipeline services, and the HTTP
// endpoint. Create with New, run with Run.
type Daemon struct {
	cfg *config.Config
	reg *prom.Registry
	rec metrics.Recorder
	em  events.Emitter

	svc      *build.Service
	db       *sql.DB
	releases *release.Manager
	syncer   *channel.Syncer

	startTime time.Time

	mu        sync.Mutex
	lastBuild *tickSummary
	lastSync  *tickSummary
}

// tickSummary is the most recent outcome of one scheduled activity.
type tickSummary struct {
	At      time.Time `json:"at"`
	OK      bool      `json:"ok"`
	Detail  string    `json:"detail,omitempty"`
	Elapsed string    `json:"elapsed"`
}

// New wires the daemon from configuration: prometheus registry,
// event emitter, build service, release manager, and channel syncer.
func New(cfg *config.Config) (*Daemon, error) {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	em, err := events.FromConfig(cfg.Events)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		_ = em.Close()
		return nil, err
	}
	relStore, err := release.NewStore(db)
	if err != nil {
		_ = em.Close()
		_ = db.Close()
		return nil, err
	}
	stateStore, err := channel.NewStateStore(db)
	if err != nil {
		_ = em.Close()
		_ = db.Close()
		return nil, err
	}
	syncer, err := channel.NewSyncer(cfg.Channels, stateStore, retry.FromConfig(cfg.Retry), rec)
	if err != nil {
		_ = em.Close()
		_ = db.Close()
		return nil, err
	}

	return &Daemon{
		cfg:       cfg,
		reg:       reg,
		rec:       rec,
		em:        em,
		svc:       build.NewService(cfg).WithRecorder(rec).WithEmitter(em),
		db:        db,
		releases:  release.NewManager(relStore, cfg.Changelog, rec),
		syncer:    syncer,
		startTime: time.Now().UTC(),
	}, nil
}

// Run schedules the periodic jobs and serves HTTP until ctx is done,
// then shuts down in order: scheduler, HTTP, emitter, store.
func (d *Daemon) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return binderrors.InternalError("create scheduler", err)
	}

	buildsEnabled := d.cfg.Daemon.BuildIntervalDuration() > 0
	if buildsEnabled {
		interval := d.cfg.Daemon.BuildIntervalDuration()
		_, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { d.buildTick(ctx) }),
			gocron.WithName("scheduled-build"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return binderrors.InternalError("schedule builds", err)
		}
		slog.Info("scheduled builds enabled", slog.Duration("interval", interval))
	}
	if interval := d.cfg.Daemon.SyncIntervalDuration(); interval > 0 && len(d.cfg.Channels) > 0 {
		_, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() { d.syncTick(ctx) }),
			gocron.WithName("scheduled-sync"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return binderrors.InternalError("schedule sync", err)
		}
		slog.Info("scheduled sync enabled",
			slog.Duration("interval", interval), logfields.Count(len(d.cfg.Channels)))
	}

	httpDone, err := d.serveHTTP(ctx)
	if err != nil {
		_ = sched.Shutdown()
		return err
	}

	sched.Start()
	if buildsEnabled {
		// A fresh daemon builds immediately instead of waiting a full
		// interval.
		d.buildTick(ctx)
	}

	<-ctx.Done()
	slog.Info("daemon shutting down")
	if err := sched.Shutdown(); err != nil {
		slog.Warn("scheduler shutdown", logfields.Error(err))
	}
	<-httpDone
	if err := d.em.Close(); err != nil {
		slog.Warn("emitter close", logfields.Error(err))
	}
	if err := d.db.Close(); err != nil {
		slog.Warn("store close", logfields.Error(err))
	}
	return nil
}

// buildTick rebuilds every target in the configured formats.
func (d *Daemon) buildTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	reports, err := d.svc.BuildAll(ctx, nil, d.enabledFormats(), "")
	sum := &tickSummary{At: start.UTC(), OK: err == nil, Elapsed: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		sum.Detail = err.Error()
		slog.Error("scheduled build failed", logfields.Error(err))
	} else {
		for _, rep := range reports {
			slog.Info("scheduled build finished", logfields.Target(rep.Target), logfields.Outcome(string(rep.Outcome)))
		}
	}
	d.mu.Lock()
	d.lastBuild = sum
	d.mu.Unlock()
}

// syncTick re-syncs the latest published release to every channel.
// Channels are idempotent, so a no-change tick is cheap.
func (d *Daemon) syncTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	sum := &tickSummary{At: start.UTC(), OK: true}
	defer func() {
		sum.Elapsed = time.Since(start).Round(time.Millisecond).String()
		d.mu.Lock()
		d.lastSync = sum
		d.mu.Unlock()
	}()

	rel, err := d.releases.LatestPublished(ctx)
	if err != nil {
		sum.OK = false
		sum.Detail = err.Error()
		slog.Error("scheduled sync failed", logfields.Error(err))
		return
	}
	if rel == nil {
		sum.Detail = "no published release"
		slog.Debug("scheduled sync skipped, no published release")
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	req := channel.Request{
		Release:     rel,
		SourceDir:   cwd,
		ArtifactDir: d.cfg.Output.Dir,
		Targets:     rel.Targets(),
	}
	results := d.syncer.SyncAll(ctx, req)
	for _, res := range results {
		if res.OK() {
			continue
		}
		sum.OK = false
		if sum.Detail == "" {
			sum.Detail = res.Channel + ": " + res.Err.Error()
		}
	}
	for _, res := range results {
		ev := events.SyncEvent{
			Channel:  res.Channel,
			Type:     string(res.Type),
			Version:  rel.Version,
			Attempts: res.Attempts,
			Success:  res.OK(),
		}
		if res.Err != nil {
			ev.Error = res.Err.Error()
		}
		if err := d.em.ChannelSynced(context.WithoutCancel(ctx), ev); err != nil {
			slog.Warn("emit sync event", logfields.Channel(res.Channel), logfields.Error(err))
		}
	}
}

// enabledFormats is every format scheduled builds can actually render.
// PDF joins only when the configured converter resolves on PATH.
func (d *Daemon) enabledFormats() []render.Format {
	formats := []render.Format{render.FormatHTML, render.FormatEPUB}
	if conv := d.cfg.Formats.PDF.Converter; conv != "" {
		if _, err := exec.LookPath(conv); err == nil {
			formats = append(formats, render.FormatPDF)
		} else {
			slog.Debug("pdf excluded from scheduled builds", "converter", conv)
		}
	}
	return formats
}
