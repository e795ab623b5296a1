package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/bindery/internal/fragment"
	"git.home.luguber.info/inful/bindery/internal/manifest"
	"git.home.luguber.info/inful/bindery/internal/printer"
)

// ResolveCmd implements the 'resolve' command.
type ResolveCmd struct {
	Target string `arg:"" optional:"" help:"Target to resolve (defaults to the full manifest)."`
}

func (r *ResolveCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	store, err := fragment.NewDirStore(cfg.Book.ManuscriptDir)
	if err != nil {
		return err
	}
	resolver := manifest.NewResolver(store, cfg.Manifests.Dir, cfg.Manifests.FullTarget)

	target := r.Target
	if target == "" {
		// Whole-project view: check every manifest before showing full.
		if err := resolver.Validate(); err != nil {
			return err
		}
		target = cfg.Manifests.FullTarget
	}

	res, err := resolver.Resolve(target)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPATH\tKIND\tTITLE\tWORDS")
	for i, f := range res.Fragments {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", i+1, f.Path, f.Kind, f.Title, f.Words)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	printer.Info("")
	printer.Success("%s: %d fragments, %d words", target, len(res.Fragments), res.Words())
	return nil
}
