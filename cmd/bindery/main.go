// Command bindery builds, releases, and distributes manuscripts from
// plain-text fragments.
package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bindery/cmd/bindery/commands"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("bindery"),
		kong.Description("Manifest-driven manuscript build and release pipeline."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	err := ctx.Run(&commands.Global{}, &cli)
	adapter := binderrors.NewCLIErrorAdapter(cli.LogLevel == "debug", slog.Default())
	adapter.HandleError(err)
}
