// Package manifest reads target manifests and resolves them against the
// fragment store. A manifest is the single source of truth for which
// fragments a target contains and in which order.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

const ext = ".manifest"

// Entry is one manifest line: a fragment identifier plus its source line
// number for diagnostics.
type Entry struct {
	ID   string
	Line int
}

// Manifest is the ordered fragment list for one distribution target.
type Manifest struct {
	Target  string
	Path    string
	Entries []Entry
}

// IDs returns the fragment identifiers in declaration order.
func (m *Manifest) IDs() []string {
	ids := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Parse reads a manifest from r. One fragment identifier per line; blank
// lines and '#' comments are ignored. Duplicate identifiers are rejected.
func Parse(r io.Reader, target string) (*Manifest, error) {
	m := &Manifest{Target: target}
	seen := make(map[string]int)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if first, dup := seen[line]; dup {
			return nil, binderrors.DuplicateEntry(target, line, first, lineNo)
		}
		seen[line] = lineNo
		m.Entries = append(m.Entries, Entry{ID: line, Line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading manifest for %s: %w", target, err)
	}
	return m, nil
}

// ParseFile reads the manifest file for a target from a manifests dir.
func ParseFile(dir, target string) (*Manifest, error) {
	path := filepath.Join(dir, target+ext)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest for %s: %w", target, err)
	}
	defer f.Close()

	m, err := Parse(f, target)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Exists reports whether a manifest file is present for the target.
func Exists(dir, target string) bool {
	_, err := os.Stat(filepath.Join(dir, target+ext))
	return err == nil
}
