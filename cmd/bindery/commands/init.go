package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/bindery/internal/config"
	"git.home.luguber.info/inful/bindery/internal/printer"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file."`
}

const starterPreface = `# Preface

Say why this book exists and who it is for.
`

const starterChapter = `# Introduction

Start writing here. Each fragment is one Markdown file; the manifest
decides which fragments make it into a target and in what order.
`

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	printer.Step("Initializing bindery project")

	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	printer.Success("wrote %s", root.Config)

	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}

	if err := scaffoldManuscript(cfg); err != nil {
		return err
	}

	printer.Info("")
	printer.Info("Next steps:")
	printer.Info("  1. Edit %s (title, author, channels)", root.Config)
	printer.Info("  2. Write fragments under %s/", cfg.Book.ManuscriptDir)
	printer.Info("  3. Run: bindery build")
	return nil
}

// scaffoldManuscript lays out the manuscript tree, a starter fragment
// pair, and the full manifest. Existing files are never overwritten so
// re-running init on a live project is safe.
func scaffoldManuscript(cfg *config.Config) error {
	dirs := []string{
		filepath.Join(cfg.Book.ManuscriptDir, "front"),
		filepath.Join(cfg.Book.ManuscriptDir, "chapters"),
		cfg.Manifests.Dir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	starters := []struct {
		path    string
		content string
	}{
		{filepath.Join(cfg.Book.ManuscriptDir, "front", "01-preface.md"), starterPreface},
		{filepath.Join(cfg.Book.ManuscriptDir, "chapters", "01-introduction.md"), starterChapter},
	}
	for _, s := range starters {
		created, err := writeIfAbsent(s.path, s.content)
		if err != nil {
			return err
		}
		if created {
			printer.Success("wrote %s", s.path)
		}
	}

	manifest := "# Fragments in reading order, one per line.\n" +
		"front/01-preface.md\n" +
		"chapters/01-introduction.md\n"
	manifestPath := filepath.Join(cfg.Manifests.Dir, cfg.Manifests.FullTarget+".manifest")
	created, err := writeIfAbsent(manifestPath, manifest)
	if err != nil {
		return err
	}
	if created {
		printer.Success("wrote %s", manifestPath)
	}
	return nil
}

func writeIfAbsent(path, content string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
