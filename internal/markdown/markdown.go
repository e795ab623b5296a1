package markdown

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Options controls how Markdown is parsed for internal analysis.
//
// Intentionally small; it exists so parsing behavior (extensions/settings)
// can evolve without rewriting call sites.
type Options struct{}

// ParseBody parses a Markdown body into a Goldmark AST.
func ParseBody(body []byte, _ Options) (gmast.Node, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))
	return root, nil
}

// Heading is one ATX/setext heading found in a Markdown body.
type Heading struct {
	Level int
	Text  string
	// TextStart is the byte offset of the heading text in the source
	// (after the leading hashes), or -1 when the heading has no text
	// segment. Numbering edits insert at this offset.
	TextStart int
}

// ExtractHeadings parses a Markdown body and returns its headings in
// document order. This is an analysis API; it does not re-render Markdown.
func ExtractHeadings(body []byte, opts Options) ([]Heading, error) {
	root, err := ParseBody(body, opts)
	if err != nil {
		return nil, err
	}

	headings := make([]Heading, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		h, ok := n.(*gmast.Heading)
		if !ok {
			return gmast.WalkContinue, nil
		}
		start := -1
		if lines := h.Lines(); lines.Len() > 0 {
			start = lines.At(0).Start
		}
		headings = append(headings, Heading{
			Level:     h.Level,
			Text:      nodeText(h, body),
			TextStart: start,
		})
		return gmast.WalkSkipChildren, nil
	})
	return headings, nil
}

// nodeText collects the plain text content of a node's inline children.
func nodeText(node gmast.Node, source []byte) string {
	var buf []byte
	_ = gmast.Walk(node, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *gmast.Text:
			buf = append(buf, t.Segment.Value(source)...)
		case *gmast.String:
			buf = append(buf, t.Value...)
		}
		return gmast.WalkContinue, nil
	})
	return string(buf)
}
