package markdown

import (
	"fmt"
	"sort"
)

// Edit is a targeted byte-range replacement. Start and End are offsets
// into the original source, End exclusive; Start == End inserts. The
// numbering pass uses these for minimal-diff mutations so fragment
// bytes never round-trip through a Markdown renderer.
type Edit struct {
	Start       int
	End         int
	Replacement []byte
}

// ApplyEdits applies non-overlapping byte-range edits to source and
// returns the rewritten content. Offsets always refer to the original
// source; the result is assembled in one pass from the unchanged spans
// between edits.
func ApplyEdits(source []byte, edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		return source, nil
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	grow := 0
	cursor := 0
	for i, e := range sorted {
		switch {
		case e.Start < 0 || e.End < e.Start:
			return nil, fmt.Errorf("invalid edit[%d]: bad range [%d,%d)", i, e.Start, e.End)
		case e.End > len(source):
			return nil, fmt.Errorf("invalid edit[%d]: range [%d,%d) beyond source", i, e.Start, e.End)
		case e.Start < cursor:
			return nil, fmt.Errorf("invalid edit[%d]: overlaps preceding edit", i)
		}
		cursor = e.End
		grow += len(e.Replacement) - (e.End - e.Start)
	}

	out := make([]byte, 0, len(source)+grow)
	cursor = 0
	for _, e := range sorted {
		out = append(out, source[cursor:e.Start]...)
		out = append(out, e.Replacement...)
		cursor = e.End
	}
	out = append(out, source[cursor:]...)
	return out, nil
}
