package commands

import (
	"git.home.luguber.info/inful/bindery/internal/printer"
	"git.home.luguber.info/inful/bindery/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(_ *Global, _ *CLI) error {
	printer.Printf("bindery %s\n", version.Version)
	printer.Printf("  commit: %s\n", version.GitCommit)
	printer.Printf("  built:  %s\n", version.BuildTime)
	return nil
}
