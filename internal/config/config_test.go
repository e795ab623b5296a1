package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bindery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
book:
  title: Practical Systems
  author: J. Writer
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "manuscript", cfg.Book.ManuscriptDir)
	require.Equal(t, "manifests", cfg.Manifests.Dir)
	require.Equal(t, "full", cfg.Manifests.FullTarget)
	require.Equal(t, "build", cfg.Output.Dir)
	require.Equal(t, ".bindery/bindery.db", cfg.Store.Path)
	require.Equal(t, 3, cfg.Formats.HTML.TOCDepth)
	require.Equal(t, "pandoc", cfg.Formats.PDF.Converter)
	require.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	require.Equal(t, "bindery", cfg.Events.SubjectPrefix)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("BINDERY_TEST_TOKEN", "s3cret")
	path := writeConfig(t, `
book:
  title: Practical Systems
channels:
  - name: storefront
    type: storefront
    api_url: https://press.example.com/api/v1
    slug: practical-systems
    auth:
      type: token
      token: ${BINDERY_TEST_TOKEN}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Channels, 1)
	require.Equal(t, "s3cret", cfg.Channels[0].Auth.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	require.True(t, binderrors.IsCategory(err, binderrors.CategoryConfig))
}

func TestValidateChannels(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "git channel minimal",
			yaml: `
book:
  title: T
channels:
  - name: origin
    type: git
`,
			wantErr: false,
		},
		{
			name: "forge channel missing owner",
			yaml: `
book:
  title: T
channels:
  - name: forge
    type: forge
    api_url: https://forge.example.com/api/v1
`,
			wantErr: true,
		},
		{
			name: "storefront missing slug",
			yaml: `
book:
  title: T
channels:
  - name: shop
    type: storefront
    api_url: https://press.example.com
`,
			wantErr: true,
		},
		{
			name: "unknown type rejected",
			yaml: `
book:
  title: T
channels:
  - name: pigeon
    type: carrier
`,
			wantErr: true,
		},
		{
			name: "duplicate names rejected",
			yaml: `
book:
  title: T
channels:
  - name: origin
    type: git
  - name: origin
    type: git
`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestChannelDefaults(t *testing.T) {
	path := writeConfig(t, `
book:
  title: T
channels:
  - name: origin
    type: GIT
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ChannelGit, cfg.Channels[0].Type)
	require.Equal(t, "origin", cfg.Channels[0].Remote)
	require.Equal(t, "60s", cfg.Channels[0].Timeout)
}

func TestNormalizeRetryBackoff(t *testing.T) {
	cases := map[string]RetryBackoffMode{
		"fixed":       RetryBackoffFixed,
		" Linear ":    RetryBackoffLinear,
		"EXPONENTIAL": RetryBackoffExponential,
		"spiral":      "",
		"":            "",
	}
	for raw, want := range cases {
		if got := NormalizeRetryBackoff(raw); got != want {
			t.Errorf("NormalizeRetryBackoff(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTargets(t *testing.T) {
	dir := t.TempDir()
	manifests := filepath.Join(dir, "manifests")
	require.NoError(t, os.MkdirAll(manifests, 0o755))
	for _, name := range []string{"sample.manifest", "full.manifest", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(manifests, name), []byte("chapters/01.md\n"), 0o644))
	}

	cfg := &Config{Manifests: ManifestsConfig{Dir: manifests, FullTarget: "full"}}
	targets, err := cfg.Targets()
	require.NoError(t, err)
	require.Equal(t, []string{"full", "sample"}, targets)
}

func TestRetryValidation(t *testing.T) {
	path := writeConfig(t, `
book:
  title: T
retry:
  initial_delay: forever
`)
	_, err := Load(path)
	require.Error(t, err)
}
