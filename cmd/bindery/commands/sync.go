package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"git.home.luguber.info/inful/bindery/internal/channel"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/events"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/printer"
	"git.home.luguber.info/inful/bindery/internal/retry"
)

// SyncCmd implements the 'sync' command.
type SyncCmd struct {
	Channels []string `arg:"" optional:"" help:"Channels to sync (default: all configured)."`
}

func (s *SyncCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Channels) == 0 {
		return binderrors.New(binderrors.KindConfig, binderrors.CategoryValidation,
			binderrors.SeverityError, "no channels configured")
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	syncer, err := channel.NewSyncer(cfg.Channels, led.state, retry.FromConfig(cfg.Retry), nil)
	if err != nil {
		return err
	}
	known := syncer.Channels()
	for _, name := range s.Channels {
		if !slices.Contains(known, name) {
			return binderrors.New(binderrors.KindConfig, binderrors.CategoryValidation,
				binderrors.SeverityError, fmt.Sprintf("unknown channel %q", name))
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	rel, err := led.releases.LatestPublished(ctx)
	if err != nil {
		return err
	}
	if rel == nil {
		return binderrors.New(binderrors.KindConfig, binderrors.CategoryValidation,
			binderrors.SeverityError, "no published release to sync; run bindery publish first")
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	printer.Step("syncing release %s", rel.Version)
	results := syncer.SyncAll(ctx, channel.Request{
		Release:     rel,
		SourceDir:   cwd,
		ArtifactDir: cfg.Output.Dir,
		Targets:     rel.Targets(),
	}, s.Channels...)

	em := openEmitter(cfg)
	defer func() { _ = em.Close() }()

	var firstErr error
	for _, res := range results {
		if res.OK() {
			printer.Success("%s synced (%s, %d attempt(s), %s)",
				res.Channel, res.Type, res.Attempts, res.Duration.Round(time.Millisecond))
		} else {
			printer.Failure("%s failed after %d attempt(s): %v", res.Channel, res.Attempts, res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
		}

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
		if err := em.ChannelSynced(context.WithoutCancel(ctx), ev); err != nil {
			slog.Warn("emit sync event", logfields.Channel(res.Channel), logfields.Error(err))
		}
	}
	return firstErr
}
