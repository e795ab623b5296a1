package commands

import (
	"fmt"
	"path/filepath"

	"git.home.luguber.info/inful/bindery/internal/build"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/printer"
	"git.home.luguber.info/inful/bindery/internal/render"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Targets []string `arg:"" optional:"" help:"Targets to build (default: every manifest, full first)."`
	Format  []string `short:"f" help:"Formats to render (html, epub, pdf). Defaults to all."`
	Output  string   `short:"o" help:"Override the configured output directory."`
	Version string   `help:"Stamp this version into the rendered output."`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if b.Output != "" {
		cfg.Output.Dir = b.Output
	}

	var formats []render.Format
	if len(b.Format) > 0 {
		formats, err = render.ParseFormats(b.Format)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	em := openEmitter(cfg)
	defer func() { _ = em.Close() }()

	svc := build.NewService(cfg).WithEmitter(em)
	reports, err := svc.BuildAll(ctx, b.Targets, formats, b.Version)
	for _, rep := range reports {
		printReport(cfg.Output.Dir, rep)
	}
	if err != nil {
		return err
	}

	partial := 0
	for _, rep := range reports {
		if rep.Outcome != build.OutcomeSuccess {
			partial++
		}
	}
	if partial > 0 {
		return binderrors.New(binderrors.KindRenderFailure, binderrors.CategoryRender,
			binderrors.SeverityError,
			fmt.Sprintf("%d of %d targets built partially", partial, len(reports)))
	}
	return nil
}

func printReport(outputDir string, rep *build.Report) {
	printer.Step("%s", rep.Target)
	for _, fr := range rep.Formats {
		if fr.Error != "" {
			printer.Failure("%s: %s", fr.Format, fr.Error)
			continue
		}
		printer.Success("%s: %s (%d bytes)", fr.Format,
			filepath.Join(outputDir, rep.Target, fr.Filename), fr.Size)
	}
	for _, w := range rep.Warnings {
		printer.Warning("%s", w)
	}
	printer.Info("%s", rep.Summary())
}
