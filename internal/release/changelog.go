package release

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const changelogHeader = "# Changelog\n"

// appendChangelog inserts a dated entry for a new release at the top of
// the changelog file (newest first), creating the file when absent. The
// write is atomic: temp file in the same directory, then rename.
func appendChangelog(path, version, notes string, at time.Time) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read changelog: %w", err)
	}

	var entry strings.Builder
	fmt.Fprintf(&entry, "## %s - %s\n", version, at.UTC().Format("2006-01-02"))
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		entry.WriteString("\n")
		entry.WriteString(trimmed)
		entry.WriteString("\n")
	}

	var out strings.Builder
	body := string(existing)
	if rest, ok := strings.CutPrefix(body, changelogHeader); ok {
		out.WriteString(changelogHeader)
		out.WriteString("\n")
		out.WriteString(entry.String())
		out.WriteString("\n")
		out.WriteString(strings.TrimLeft(rest, "\n"))
	} else if body == "" {
		out.WriteString(changelogHeader)
		out.WriteString("\n")
		out.WriteString(entry.String())
	} else {
		// A changelog without our header: prepend the entry as-is.
		out.WriteString(entry.String())
		out.WriteString("\n")
		out.WriteString(body)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".changelog-*")
	if err != nil {
		return fmt.Errorf("stage changelog: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(out.String()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write changelog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close changelog: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace changelog: %w", err)
	}
	return nil
}
