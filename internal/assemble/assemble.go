// Package assemble concatenates resolved fragments into one logical
// document per target, injecting the title preamble and the
// table-of-contents placeholder renderers expand.
package assemble

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/fragment"
)

// TOCMarker is the placeholder line renderers replace with a table of
// contents. It sits between the preamble and the first fragment.
const TOCMarker = "<!-- bindery:toc -->"

// Meta carries the target metadata injected into the preamble.
type Meta struct {
	Target        string
	Title         string
	Subtitle      string
	Author        string
	Language      string
	CopyrightYear int
	// Version is stamped when assembling for a versioned build; empty
	// otherwise.
	Version string
}

// Section is one fragment at its position in the assembled document.
type Section struct {
	Index    int
	Fragment *fragment.Fragment
}

// Document is the assembled logical document for one target. It is
// transient and owned by exactly one render pass; nothing persists it.
type Document struct {
	Meta     Meta
	Preamble string
	Sections []Section
}

// Assemble combines fragments in the exact order given. It never reorders
// or deduplicates; manifest order is assembly order. Fails with
// EmptyManifest when no fragments are supplied.
func Assemble(fragments []*fragment.Fragment, meta Meta) (*Document, error) {
	if len(fragments) == 0 {
		return nil, binderrors.EmptyManifest(meta.Target)
	}

	doc := &Document{
		Meta:     meta,
		Preamble: buildPreamble(meta),
		Sections: make([]Section, len(fragments)),
	}
	for i, f := range fragments {
		doc.Sections[i] = Section{Index: i, Fragment: f}
	}
	return doc, nil
}

// buildPreamble renders the title/copyright block placed before the first
// content fragment.
func buildPreamble(meta Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", meta.Title)
	if meta.Subtitle != "" {
		fmt.Fprintf(&b, "\n*%s*\n", meta.Subtitle)
	}
	if meta.Author != "" {
		fmt.Fprintf(&b, "\nby %s\n", meta.Author)
	}
	if meta.CopyrightYear > 0 {
		owner := meta.Author
		if owner == "" {
			owner = meta.Title
		}
		fmt.Fprintf(&b, "\nCopyright © %d %s. All rights reserved.\n", meta.CopyrightYear, owner)
	}
	if meta.Version != "" {
		fmt.Fprintf(&b, "\nVersion %s\n", meta.Version)
	}
	return b.String()
}

// Markdown renders the document as one markdown stream: preamble, TOC
// marker, then every section in order.
func (d *Document) Markdown() string {
	var b strings.Builder
	b.WriteString(d.Preamble)
	b.WriteString("\n")
	b.WriteString(TOCMarker)
	b.WriteString("\n")
	for _, s := range d.Sections {
		b.WriteString("\n")
		content := s.Fragment.Content
		b.Write(content)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Words sums the word counts of all sections.
func (d *Document) Words() int {
	total := 0
	for _, s := range d.Sections {
		total += s.Fragment.Words
	}
	return total
}

// Hash is a stable digest over the meta and the ordered fragment hashes.
// Two assemblies of identical inputs hash identically, so artifact content
// hashes are comparable across builds.
func (d *Document) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "target=%s\ntitle=%s\nsubtitle=%s\nauthor=%s\nlang=%s\nyear=%d\nversion=%s\n",
		d.Meta.Target, d.Meta.Title, d.Meta.Subtitle, d.Meta.Author, d.Meta.Language, d.Meta.CopyrightYear, d.Meta.Version)
	for _, s := range d.Sections {
		fmt.Fprintf(h, "%s=%s\n", s.Fragment.Path, s.Fragment.Hash)
	}
	return hex.EncodeToString(h.Sum(nil))
}
