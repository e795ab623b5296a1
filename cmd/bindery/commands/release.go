package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/bindery/internal/build"
	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/events"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/printer"
	"git.home.luguber.info/inful/bindery/internal/release"
)

// ReleaseCmd implements the 'release' command.
type ReleaseCmd struct {
	Version   string `arg:"" help:"Version for the release, e.g. 1.2.0."`
	Notes     string `help:"Release notes text." xor:"notes"`
	NotesFile string `name:"notes-file" help:"Read release notes from a file." xor:"notes"`
}

func (r *ReleaseCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	notes := r.Notes
	if r.NotesFile != "" {
		data, err := os.ReadFile(r.NotesFile)
		if err != nil {
			return fmt.Errorf("read notes file: %w", err)
		}
		notes = strings.TrimSpace(string(data))
	}

	artifacts, err := collectArtifacts(cfg)
	if err != nil {
		return err
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	ctx, cancel := signalContext()
	defer cancel()

	rel, err := led.releases.Create(ctx, r.Version, notes, artifacts)
	if err != nil {
		return err
	}

	emitReleaseEvent(cfg, rel, false)
	printer.Success("release %s created (draft, %d artifacts)", rel.Version, len(rel.Artifacts))
	return nil
}

// collectArtifacts gathers artifact references from the persisted build
// report of every configured target. A failed or canceled report blocks
// the release; a partial one contributes its successful formats.
func collectArtifacts(cfg *config.Config) ([]release.ArtifactRef, error) {
	targets, err := cfg.Targets()
	if err != nil {
		return nil, err
	}

	var artifacts []release.ArtifactRef
	for _, target := range targets {
		rep, err := build.LoadReport(filepath.Join(cfg.Output.Dir, target))
		if err != nil {
			return nil, err
		}
		switch rep.Outcome {
		case build.OutcomeSuccess:
		case build.OutcomePartial:
			printer.Warning("target %s built partially; releasing its successful formats only", target)
		default:
			return nil, binderrors.New(binderrors.KindConfig, binderrors.CategoryValidation,
				binderrors.SeverityError,
				fmt.Sprintf("last build of target %q ended %s; run bindery build first", target, rep.Outcome))
		}
		artifacts = append(artifacts, rep.ArtifactRefs()...)
	}

	if len(artifacts) == 0 {
		return nil, binderrors.New(binderrors.KindConfig, binderrors.CategoryValidation,
			binderrors.SeverityError, "no build artifacts to release; run bindery build first")
	}
	return artifacts, nil
}

// emitReleaseEvent publishes a release lifecycle event; failures only
// warn.
func emitReleaseEvent(cfg *config.Config, rel *release.Release, published bool) {
	em := openEmitter(cfg)
	defer func() { _ = em.Close() }()

	ev := events.ReleaseEvent{
		Version:   rel.Version,
		Status:    string(rel.Status),
		Artifacts: len(rel.Artifacts),
	}
	ctx := context.Background()

	var err error
	if published {
		err = em.ReleasePublished(ctx, ev)
	} else {
		err = em.ReleaseCreated(ctx, ev)
	}
	if err != nil {
		slog.Warn("emit release event", logfields.Error(err))
	}
}
