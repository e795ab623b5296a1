package render

import (
	"fmt"
	"strconv"
	"strings"

	"git.home.luguber.info/inful/bindery/internal/fragment"
	"git.home.luguber.info/inful/bindery/internal/markdown"
)

// numberer assigns hierarchical section numbers across the document:
// chapters count 1..n, appendices letter A..Z, front and back matter stay
// unnumbered. Sub-headings nest below their section number (3, 3.1, 3.1.2)
// down to the configured depth.
type numberer struct {
	depth    int
	chapter  int
	appendix int
	// prefix is the current top-level number ("3", "B"); empty inside
	// unnumbered sections.
	prefix string
	// counters[i] counts headings at level i+2 under the current prefix.
	counters []int
}

func newNumberer(depth int) *numberer {
	if depth < 1 {
		depth = 1
	}
	return &numberer{depth: depth, counters: make([]int, depth)}
}

// next returns the number for a heading, or "" when it stays unnumbered.
func (n *numberer) next(kind fragment.Kind, level int) string {
	if level == 1 {
		for i := range n.counters {
			n.counters[i] = 0
		}
		switch kind {
		case fragment.KindChapter:
			n.chapter++
			n.prefix = strconv.Itoa(n.chapter)
		case fragment.KindAppendix:
			n.appendix++
			n.prefix = string(rune('A' + (n.appendix-1)%26))
		default:
			n.prefix = ""
		}
		return n.prefix
	}

	if n.prefix == "" || level > n.depth {
		return ""
	}
	idx := level - 2
	if idx >= len(n.counters) {
		return ""
	}
	n.counters[idx]++
	for i := idx + 1; i < len(n.counters); i++ {
		n.counters[i] = 0
	}
	parts := []string{n.prefix}
	for i := 0; i <= idx; i++ {
		parts = append(parts, strconv.Itoa(n.counters[i]))
	}
	return strings.Join(parts, ".")
}

// applyNumbering rewrites section markdown with number prefixes injected
// into heading text via minimal byte edits. Sections come back in order,
// mutated copies only where a heading gained a number.
func applyNumbering(sections [][]byte, kinds []fragment.Kind, depth int) ([][]byte, error) {
	num := newNumberer(depth)
	out := make([][]byte, len(sections))
	for i, src := range sections {
		headings, err := markdown.ExtractHeadings(src, markdown.Options{})
		if err != nil {
			return nil, fmt.Errorf("numbering section %d: %w", i, err)
		}
		var edits []markdown.Edit
		for _, h := range headings {
			label := num.next(kinds[i], h.Level)
			if label == "" || h.TextStart < 0 {
				continue
			}
			if h.Level == 1 {
				label += "."
			}
			edits = append(edits, markdown.Edit{
				Start:       h.TextStart,
				End:         h.TextStart,
				Replacement: []byte(label + " "),
			})
		}
		if len(edits) == 0 {
			out[i] = src
			continue
		}
		mutated, err := markdown.ApplyEdits(src, edits)
		if err != nil {
			return nil, fmt.Errorf("numbering section %d: %w", i, err)
		}
		out[i] = mutated
	}
	return out, nil
}
