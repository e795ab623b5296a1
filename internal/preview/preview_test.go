package preview

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bindery/internal/config"
)

func previewProject(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	manuscript := filepath.Join(root, "manuscript")
	manifests := filepath.Join(root, "manifests")

	write := func(rel, content string) {
		path := filepath.Join(manuscript, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("front/preface.md", "# Preface\n\nWhy this book exists.\n")
	write("chapters/01-intro.md", "# Intro\n\nFirst chapter.\n")
	write("chapters/02-core.md", "# Core Ideas\n\nSecond chapter.\n")

	require.NoError(t, os.MkdirAll(manifests, 0o750))
	full := "front/preface.md\nchapters/01-intro.md\nchapters/02-core.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(manifests, "full.manifest"), []byte(full), 0o644))
	sampler := "front/preface.md\nchapters/01-intro.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(manifests, "sampler.manifest"), []byte(sampler), 0o644))

	return &config.Config{
		Book: config.BookConfig{
			Title:         "Practical Systems",
			Author:        "J. Writer",
			Language:      "en",
			CopyrightYear: 2026,
			ManuscriptDir: manuscript,
		},
		Manifests: config.ManifestsConfig{Dir: manifests, FullTarget: "full"},
		Output:    config.OutputConfig{Dir: filepath.Join(root, "output")},
		Formats:   config.FormatsConfig{HTML: config.HTMLFormatConfig{TOCDepth: 3}},
	}
}

// startPreview runs a preview server on an ephemeral port and returns
// its base URL.
func startPreview(t *testing.T, cfg *config.Config, target string) string {
	t.Helper()
	srv := New(cfg, target, "").WithQuietWindow(30 * time.Millisecond)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("preview did not shut down")
		}
	})
	return "http://" + ln.Addr().String()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// bodyContains polls url until its body contains want.
func bodyContains(t *testing.T, url, want string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		return err == nil && strings.Contains(string(b), want)
	}, 5*time.Second, 100*time.Millisecond)
}

func TestPreviewServesRenderedTarget(t *testing.T) {
	cfg := previewProject(t)
	base := startPreview(t, cfg, "")

	code, body := get(t, base+"/full.html")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "Practical Systems")
	require.Contains(t, body, "First chapter.")

	// The root redirects to the target page.
	code, body = get(t, base+"/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "First chapter.")

	code, body = get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"status":"ok"`)
	require.Contains(t, body, `"outcome":"success"`)
}

func TestPreviewServesNamedTarget(t *testing.T) {
	cfg := previewProject(t)
	base := startPreview(t, cfg, "sampler")

	code, body := get(t, base+"/sampler.html")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "First chapter.")
	require.NotContains(t, body, "Second chapter.")
}

func TestPreviewRebuildsOnChange(t *testing.T) {
	cfg := previewProject(t)
	base := startPreview(t, cfg, "")

	code, body := get(t, base+"/full.html")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "First chapter.")

	chapter := filepath.Join(cfg.Book.ManuscriptDir, "chapters", "01-intro.md")
	require.NoError(t, os.WriteFile(chapter, []byte("# Intro\n\nFully revised chapter.\n"), 0o644))

	bodyContains(t, base+"/full.html", "Fully revised chapter.")
}

func TestPreviewRebuildsOnManifestChange(t *testing.T) {
	cfg := previewProject(t)
	base := startPreview(t, cfg, "")

	// Dropping a chapter from the manifest narrows the page.
	trimmed := "front/preface.md\nchapters/01-intro.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Manifests.Dir, "full.manifest"), []byte(trimmed), 0o644))

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/full.html")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		return err == nil && !strings.Contains(string(b), "Second chapter.")
	}, 5*time.Second, 100*time.Millisecond)
}

func TestPreviewDegradedThenRecovers(t *testing.T) {
	cfg := previewProject(t)
	broken := "front/preface.md\nchapters/01-intro.md\nchapters/02-core.md\nchapters/99-ghost.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Manifests.Dir, "full.manifest"), []byte(broken), 0o644))

	base := startPreview(t, cfg, "")

	code, body := get(t, base+"/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Contains(t, body, `"status":"degraded"`)
	require.Contains(t, body, "99-ghost")

	// Writing the missing chapter heals the next build.
	ghost := filepath.Join(cfg.Book.ManuscriptDir, "chapters", "99-ghost.md")
	require.NoError(t, os.WriteFile(ghost, []byte("# Ghost\n\nNow it exists.\n"), 0o644))

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 100*time.Millisecond)
}
