// Package commands defines the bindery CLI surface.
package commands

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bindery/internal/channel"
	"git.home.luguber.info/inful/bindery/internal/config"
	"git.home.luguber.info/inful/bindery/internal/events"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/printer"
	"git.home.luguber.info/inful/bindery/internal/release"
	"git.home.luguber.info/inful/bindery/internal/store"
)

// Global carries cross-command state for kong.Bind; reserved for shared
// services.
type Global struct{}

// CLI is the root command: global flags plus one subcommand per
// operation.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path." default:"bindery.yaml"`
	LogLevel  string           `name:"log-level" help:"Minimum log level." enum:"debug,info,warn,error" default:"info"`
	LogFormat string           `name:"log-format" help:"Log output format." enum:"text,json" default:"text"`
	NoColor   bool             `name:"no-color" help:"Disable colored output."`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit."`

	Init       InitCmd    `cmd:"" help:"Scaffold a bindery project."`
	Resolve    ResolveCmd `cmd:"" help:"Resolve a target's manifest and print its fragments."`
	Build      BuildCmd   `cmd:"" help:"Assemble and render targets."`
	Release    ReleaseCmd `cmd:"" help:"Create a draft release from the latest build artifacts."`
	Publish    PublishCmd `cmd:"" help:"Promote a draft release to published."`
	Sync       SyncCmd    `cmd:"" help:"Sync the latest published release to channels."`
	Status     StatusCmd  `cmd:"" help:"Show releases, channel states, and last builds."`
	Preview    PreviewCmd `cmd:"" help:"Serve a target locally and rebuild on change."`
	Daemon     DaemonCmd  `cmd:"" help:"Run scheduled builds and sync as a service."`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Show detailed version information."`
}

// AfterApply runs once after flag parsing: logging and color setup.
func (c *CLI) AfterApply() error {
	if c.NoColor {
		printer.Disable()
	}
	level := slog.LevelInfo
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.Config)
}

// signalContext cancels on SIGINT and SIGTERM for long-running
// commands.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ledger bundles the sqlite-backed stores that the release and sync
// commands share.
type ledger struct {
	db       *sql.DB
	releases *release.Manager
	state    *channel.StateStore
}

func openLedger(cfg *config.Config) (*ledger, error) {
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	relStore, err := release.NewStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	state, err := channel.NewStateStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &ledger{
		db:       db,
		releases: release.NewManager(relStore, cfg.Changelog, nil),
		state:    state,
	}, nil
}

func (l *ledger) Close() {
	_ = l.db.Close()
}

// openEmitter returns the configured event emitter. Events are
// best-effort: an unreachable broker degrades to the noop emitter
// instead of failing the command.
func openEmitter(cfg *config.Config) events.Emitter {
	em, err := events.FromConfig(cfg.Events)
	if err != nil {
		slog.Warn("event emitter unavailable", logfields.Error(err))
		return events.NoopEmitter{}
	}
	return em
}
