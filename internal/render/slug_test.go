package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Intro", "intro"},
		{"Core Ideas", "core-ideas"},
		{"What's Next?", "whats-next"},
		{"Kapitel Über Flüsse", "kapitel-uber-flusse"},
		{"C'est déjà l'été", "cest-deja-lete"},
		{"  Spaces   everywhere  ", "spaces-everywhere"},
		{"1. Intro", "1-intro"},
		{"API / CLI — Reference", "api-cli-reference"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Slug(tc.in), "Slug(%q)", tc.in)
	}
}

func TestSluggerDeduplicates(t *testing.T) {
	s := newSlugger()
	require.Equal(t, "details", s.anchor("Details"))
	require.Equal(t, "details-1", s.anchor("Details"))
	require.Equal(t, "details-2", s.anchor("Details"))
	require.Equal(t, "intro", s.anchor("Intro"))
}

func TestSluggerEmptyHeadingFallsBack(t *testing.T) {
	s := newSlugger()
	require.Equal(t, "section", s.anchor("!!!"))
	require.Equal(t, "section-1", s.anchor("???"))
}
