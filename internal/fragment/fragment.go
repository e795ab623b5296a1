// Package fragment provides read-only access to manuscript content files.
// Fragments are authored externally; this package never writes them.
package fragment

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kind classifies the section a fragment belongs to.
type Kind string

const (
	KindFrontMatter Kind = "front-matter"
	KindChapter     Kind = "chapter"
	KindAppendix    Kind = "appendix"
	KindBackMatter  Kind = "back-matter"
)

// OrderKey reflects the author's filename convention (numeric prefix or
// lexical). It is advisory metadata for diagnostics; manifest order always
// decides assembly order.
type OrderKey struct {
	Numeric int    // parsed filename prefix, -1 when absent
	Lexical string // base name fallback ordering
}

// Less orders numeric keys before lexical-only ones, matching how authors
// expect 02-foo.md to sort before unnumbered files.
func (k OrderKey) Less(other OrderKey) bool {
	switch {
	case k.Numeric >= 0 && other.Numeric >= 0:
		if k.Numeric != other.Numeric {
			return k.Numeric < other.Numeric
		}
		return k.Lexical < other.Lexical
	case k.Numeric >= 0:
		return true
	case other.Numeric >= 0:
		return false
	default:
		return k.Lexical < other.Lexical
	}
}

// Fragment is one content file treated as an atomic, ordered unit of the
// assembled document. Immutable once read.
type Fragment struct {
	// Path identifies the fragment, relative to the store root,
	// slash-separated.
	Path     string
	Kind     Kind
	OrderKey OrderKey
	Content  []byte
	// Hash is the sha256 hex digest of Content.
	Hash  string
	Title string
	Words int
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// extractTitle returns the text of the first ATX heading, empty when the
// fragment has none.
func extractTitle(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "#") {
			continue
		}
		return strings.TrimSpace(strings.TrimLeft(line, "#"))
	}
	return ""
}

func countWords(content []byte) int {
	return len(bytes.Fields(content))
}
