package commands

import (
	"git.home.luguber.info/inful/bindery/internal/printer"
)

// PublishCmd implements the 'publish' command.
type PublishCmd struct {
	Version string `arg:"" help:"Version of the draft release to publish."`
}

func (p *PublishCmd) Run(_ *Global, root *CLI) error {
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

	rel, err := led.releases.Publish(ctx, p.Version)
	if err != nil {
		return err
	}

	emitReleaseEvent(cfg, rel, true)
	printer.Success("release %s published", rel.Version)
	printer.Info("run bindery sync to push it to channels")
	return nil
}
