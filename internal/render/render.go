// Package render converts one assembled document into per-format output
// artifacts. Formats are pluggable: each adapter registers itself under a
// Format identifier and receives its own explicit configuration record.
package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/bindery/internal/assemble"
	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

// Format identifies one output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatEPUB Format = "epub"
	FormatPDF  Format = "pdf"
)

// ParseFormats converts raw format names into typed formats, rejecting
// unknown or duplicate names.
func ParseFormats(raw []string) ([]Format, error) {
	seen := make(map[Format]bool, len(raw))
	formats := make([]Format, 0, len(raw))
	for _, r := range raw {
		f := Format(r)
		if Get(f) == nil {
			return nil, binderrors.ConfigInvalid("formats", "unknown format "+r)
		}
		if seen[f] {
			return nil, binderrors.ConfigInvalid("formats", "format "+r+" requested twice")
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}

// Artifact is one rendered output for one (target, format, version). A new
// build always produces a new Artifact value; nothing ever mutates one.
type Artifact struct {
	Target   string
	Format   Format
	Version  string
	Filename string
	Payload  []byte
	Size     int64
	// ContentHash digests the canonical output with volatile fields
	// masked; it is identical across builds of identical input and
	// configuration.
	ContentHash string
	// PayloadHash digests the exact bytes as written.
	PayloadHash string
	GeneratedAt time.Time
}

// Options carries the per-render inputs every adapter receives. Format
// configuration is explicit here; adapters never read global state.
type Options struct {
	// Version is stamped into outputs when rendering a versioned build.
	Version string
	// GeneratedAt is the volatile generation timestamp. It is excluded
	// from ContentHash via a placeholder substitution.
	GeneratedAt time.Time
	// StagingDir is a scratch directory for converter intermediates.
	// Only adapters that shell out (pdf) use it.
	StagingDir string

	HTML config.HTMLFormatConfig
	EPUB config.EPUBFormatConfig
	PDF  config.PDFFormatConfig
}

// Renderer converts an assembled document into one artifact.
type Renderer interface {
	Format() Format
	Render(ctx context.Context, doc *assemble.Document, opts Options) (*Artifact, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[Format]Renderer{}
)

// Register adds a Renderer to the registry. Duplicate formats are ignored;
// built-in adapters register via their own init().
func Register(r Renderer) {
	if r == nil {
		return
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[r.Format()]; exists {
		return
	}
	registry[r.Format()] = r
}

// Get returns the registered Renderer for a format, or nil.
func Get(f Format) Renderer {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[f]
}

// Formats returns all registered formats, sorted.
func Formats() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Format, 0, len(registry))
	for f := range registry {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// volatileStamp is rendered in place of the generation timestamp while
// ContentHash is computed, then substituted with the real value for the
// written payload. Declared volatile fields are the only difference
// permitted between byte-identical builds.
const volatileStamp = "@@bindery:generated@@"

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func stampTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
