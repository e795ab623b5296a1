package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/bindery/internal/build"
	"git.home.luguber.info/inful/bindery/internal/channel"
	"git.home.luguber.info/inful/bindery/internal/printer"
	"git.home.luguber.info/inful/bindery/internal/retry"
)

// StatusCmd implements the 'status' command.
type StatusCmd struct{}

func (s *StatusCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
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

	printer.Step("Builds")
	targets, err := cfg.Targets()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tOUTCOME\tBUILT\tFORMATS")
	for _, target := range targets {
		rep, err := build.LoadReport(filepath.Join(cfg.Output.Dir, target))
		if err != nil {
			fmt.Fprintf(w, "%s\tnever built\t-\t-\n", target)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
			target, rep.Outcome, ago(rep.End), len(rep.Formats))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printer.Step("Releases")
	releases, err := led.releases.List(ctx)
	if err != nil {
		return err
	}
	if len(releases) == 0 {
		printer.Info("no releases yet")
	} else {
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATUS\tCREATED\tARTIFACTS")
		for _, rel := range releases {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
				rel.Version, rel.Status, ago(rel.CreatedAt), len(rel.Artifacts))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(cfg.Channels) == 0 {
		return nil
	}

	printer.Step("Channels")
	syncer, err := channel.NewSyncer(cfg.Channels, led.state, retry.FromConfig(cfg.Retry), nil)
	if err != nil {
		return err
	}
	states, err := syncer.States(ctx)
	if err != nil {
		return err
	}
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHANNEL\tSYNCED VERSION\tSYNCED\tLAST ERROR")
	for _, st := range states {
		if st.NeverSynced() {
			fmt.Fprintf(w, "%s\tnever synced\t-\t%s\n", st.Channel, dash(st.LastError))
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			st.Channel, st.LastSyncedVersion, ago(st.LastSyncedAt), dash(st.LastError))
	}
	return w.Flush()
}

// ago renders a timestamp as a coarse relative age.
func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
