package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/bindery/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	dm, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	slog.Info("daemon starting",
		"build_interval", cfg.Daemon.BuildInterval,
		"sync_interval", cfg.Daemon.SyncInterval,
		"http_addr", cfg.Daemon.HTTPAddr)
	return dm.Run(ctx)
}
