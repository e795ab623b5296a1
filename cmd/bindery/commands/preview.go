package commands

import (
	"git.home.luguber.info/inful/bindery/internal/preview"
	"git.home.luguber.info/inful/bindery/internal/printer"
)

// PreviewCmd implements the 'preview' command.
type PreviewCmd struct {
	Target string `arg:"" optional:"" help:"Target to preview (defaults to the full manifest)."`
	Addr   string `default:":4173" help:"Listen address for the preview server."`
}

func (p *PreviewCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	printer.Step("preview listening on %s (Ctrl-C to stop)", p.Addr)
	return preview.New(cfg, p.Target, p.Addr).Run(ctx)
}
