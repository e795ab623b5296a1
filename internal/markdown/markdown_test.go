package markdown

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractHeadings_Order(t *testing.T) {
	body := []byte("# Title\n\ntext\n\n## First\n\nmore\n\n### Nested\n\n## Second\n")

	hs, err := ExtractHeadings(body, Options{})
	require.NoError(t, err)
	require.Len(t, hs, 4)

	require.Equal(t, 1, hs[0].Level)
	require.Equal(t, "Title", hs[0].Text)
	require.Equal(t, 2, hs[1].Level)
	require.Equal(t, "First", hs[1].Text)
	require.Equal(t, 3, hs[2].Level)
	require.Equal(t, "Nested", hs[2].Text)
	require.Equal(t, "Second", hs[3].Text)
}

func TestExtractHeadings_TextStartPointsPastHashes(t *testing.T) {
	body := []byte("## Routing\n")

	hs, err := ExtractHeadings(body, Options{})
	require.NoError(t, err)
	require.Len(t, hs, 1)
	require.Equal(t, len("## "), hs[0].TextStart)
}

func TestExtractHeadings_IgnoresCodeFences(t *testing.T) {
	body := []byte("# Real\n\n```\n# not a heading\n```\n")

	hs, err := ExtractHeadings(body, Options{})
	require.NoError(t, err)
	require.Len(t, hs, 1)
	require.Equal(t, "Real", hs[0].Text)
}

func TestExtractHeadings_InlineMarkup(t *testing.T) {
	body := []byte("## The `Render` interface\n")

	hs, err := ExtractHeadings(body, Options{})
	require.NoError(t, err)
	require.Len(t, hs, 1)
	require.Equal(t, "The Render interface", hs[0].Text)
}

func TestApplyEdits_InsertionAtOffset(t *testing.T) {
	src := []byte("## Routing\n")
	hs, err := ExtractHeadings(src, Options{})
	require.NoError(t, err)

	out, err := ApplyEdits(src, []Edit{{Start: hs[0].TextStart, End: hs[0].TextStart, Replacement: []byte("2. ")}})
	require.NoError(t, err)
	require.Equal(t, "## 2. Routing\n", string(out))
}

func TestApplyEdits_MultipleInsertionsKeepOffsets(t *testing.T) {
	src := []byte("# One\n\n# Two\n\n# Three\n")
	hs, err := ExtractHeadings(src, Options{})
	require.NoError(t, err)
	require.Len(t, hs, 3)

	edits := make([]Edit, 0, len(hs))
	for i, h := range hs {
		edits = append(edits, Edit{Start: h.TextStart, End: h.TextStart, Replacement: []byte(strings.Repeat("x", i+1) + " ")})
	}
	out, err := ApplyEdits(src, edits)
	require.NoError(t, err)
	require.Equal(t, "# x One\n\n# xx Two\n\n# xxx Three\n", string(out))
}

func TestApplyEdits_RejectsOverlappingEdits(t *testing.T) {
	src := []byte("abcdef")
	_, err := ApplyEdits(src, []Edit{
		{Start: 1, End: 4, Replacement: []byte("X")},
		{Start: 3, End: 5, Replacement: []byte("Y")},
	})
	require.Error(t, err)
}

func TestApplyEdits_RejectsOutOfBounds(t *testing.T) {
	src := []byte("abc")
	_, err := ApplyEdits(src, []Edit{{Start: 2, End: 9, Replacement: []byte("X")}})
	require.Error(t, err)
}
