// Package build is the canonical build pipeline: resolve a target's
// manifest, assemble the document, render the requested formats, verify
// the output, and land artifacts plus a build report in the output
// directory. All execution paths (CLI, preview, daemon) route through
// Service.
package build

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/bindery/internal/config"
	"git.home.luguber.info/inful/bindery/internal/events"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/metrics"
	"git.home.luguber.info/inful/bindery/internal/render"
	"git.home.luguber.info/inful/bindery/internal/workspace"
)

// BuildRequest describes one target build.
type BuildRequest struct {
	Target  string
	Formats []render.Format
	// Version stamps the outputs; empty for working builds.
	Version string
}

// Service executes target builds against one loaded configuration.
type Service struct {
	cfg *config.Config
	rec metrics.Recorder
	em  events.Emitter
}

// NewService creates a build service with noop metrics and events.
func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg, rec: metrics.NoopRecorder{}, em: events.NoopEmitter{}}
}

// WithRecorder injects a metrics recorder.
func (s *Service) WithRecorder(rec metrics.Recorder) *Service {
	if rec != nil {
		s.rec = rec
	}
	return s
}

// WithEmitter injects an event emitter.
func (s *Service) WithEmitter(em events.Emitter) *Service {
	if em != nil {
		s.em = em
	}
	return s
}

// Build runs the full stage pipeline for one target. The returned report
// is always non-nil and persisted to the target's output directory; the
// error is non-nil only for failed or canceled builds (a partial build
// returns a nil error and Outcome partial).
func (s *Service) Build(ctx context.Context, req BuildRequest) (*Report, error) {
	formats := req.Formats
	if len(formats) == 0 {
		formats = render.Formats()
	}

	rep := NewReport(req.Target)
	rep.Version = req.Version

	st := &buildState{
		cfg:     s.cfg,
		target:  req.Target,
		formats: formats,
		version: req.Version,
		report:  rep,
		rec:     s.rec,
		ws:      workspace.NewManager(""),
		outDir:  filepath.Join(s.cfg.Output.Dir, req.Target),
	}
	if err := st.ws.Create(); err != nil {
		rep.RecordStage(string(StageRender), 0, metrics.ResultFatal, err, s.rec)
		rep.Finish()
		rep.DeriveOutcome()
		return rep, err
	}
	defer func() {
		if err := st.ws.Cleanup(); err != nil {
			slog.Warn("staging cleanup failed", logfields.Error(err))
		}
	}()

	err := runStages(ctx, st, []stageDef{
		{StageResolve, stageResolve},
		{StageAssemble, stageAssemble},
		{StageRender, stageRender},
		{StageVerify, stageVerify},
		{StageFinalize, stageFinalize},
	})
	rep.Finish()
	rep.DeriveOutcome()

	s.rec.ObserveBuildDuration(rep.Duration())
	s.rec.IncBuildOutcome(string(rep.Outcome))

	// The report is the release manager's input; losing it degrades a
	// successful build, so surface the persist failure.
	if perr := rep.Persist(st.outDir); perr != nil {
		slog.Warn("failed to persist build report",
			logfields.Target(req.Target), logfields.Error(perr))
		if err == nil {
			err = perr
		}
	}

	emitCtx := context.WithoutCancel(ctx)
	if evErr := s.em.BuildCompleted(emitCtx, events.BuildEvent{
		BuildID:    rep.BuildID,
		Target:     rep.Target,
		Outcome:    string(rep.Outcome),
		Formats:    formatNames(formats),
		Fragments:  rep.Fragments,
		Words:      rep.Words,
		DurationMS: float64(rep.Duration().Milliseconds()),
	}); evErr != nil {
		slog.Warn("build event publish failed", logfields.Error(evErr))
	}

	slog.Info("build finished",
		logfields.Target(rep.Target),
		logfields.BuildID(rep.BuildID),
		logfields.Outcome(string(rep.Outcome)),
		logfields.Count(rep.Fragments),
		logfields.DurationMS(float64(rep.Duration().Milliseconds())))
	return rep, err
}

// BuildAll builds every named target concurrently. Targets are
// independent: one target failing never cancels the others. Reports come
// back in target order, one per target, nil only if that build could not
// start.
func (s *Service) BuildAll(ctx context.Context, targets []string, formats []render.Format, version string) ([]*Report, error) {
	if len(targets) == 0 {
		var err error
		targets, err = s.cfg.Targets()
		if err != nil {
			return nil, err
		}
	}

	reports := make([]*Report, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			rep, err := s.Build(ctx, BuildRequest{Target: target, Formats: formats, Version: version})
			reports[i] = rep
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var firstErr error
	for _, e := range errs {
		if e != nil {
			failed++
			if firstErr == nil {
				firstErr = e
			}
		}
	}
	if failed > 0 {
		return reports, fmt.Errorf("%d of %d targets failed (first: %w)", failed, len(targets), firstErr)
	}
	return reports, nil
}

func formatNames(formats []render.Format) []string {
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return names
}
