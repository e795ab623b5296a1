package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnstampedDefaults(t *testing.T) {
	// Without ldflags every field reads "unknown", never empty, so log
	// and version output always have something to print.
	require.Equal(t, "unknown", Version)
	require.NotEmpty(t, BuildTime)
	require.NotEmpty(t, GitCommit)
}
