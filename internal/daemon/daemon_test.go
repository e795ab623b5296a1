package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bindery/internal/build"
	"git.home.luguber.info/inful/bindery/internal/config"
	"git.home.luguber.info/inful/bindery/internal/metrics"
)

func daemonProject(t *testing.T) *config.Config {
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

	require.NoError(t, os.MkdirAll(manifests, 0o750))
	full := "front/preface.md\nchapters/01-intro.md\n"
	require.NoError(t, os.WriteFile(filepath.Join(manifests, "full.manifest"), []byte(full), 0o644))

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
		Daemon:    config.DaemonConfig{HTTPAddr: "127.0.0.1:0"},
	}
}

func newTestDaemon(t *testing.T, cfg *config.Config) *Daemon {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.em.Close()
		_ = d.db.Close()
	})
	return d
}

func TestDaemonBuildTick(t *testing.T) {
	cfg := daemonProject(t)
	d := newTestDaemon(t, cfg)

	d.buildTick(context.Background())

	require.FileExists(t, filepath.Join(cfg.Output.Dir, "full", "full.html"))
	require.FileExists(t, filepath.Join(cfg.Output.Dir, "full", "full.epub"))
	require.NotNil(t, d.lastBuild)
	require.True(t, d.lastBuild.OK)
}

func TestDaemonHealthEndpoint(t *testing.T) {
	cfg := daemonProject(t)
	d := newTestDaemon(t, cfg)
	d.buildTick(context.Background())

	rr := httptest.NewRecorder()
	d.handleHealthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"healthy"`)
	require.Contains(t, rr.Body.String(), `"last_build"`)
}

func TestDaemonHealthDegradedAfterFailedBuild(t *testing.T) {
	cfg := daemonProject(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.Manifests.Dir, "full.manifest"),
		[]byte("chapters/99-missing.md\n"), 0o644))
	d := newTestDaemon(t, cfg)

	d.buildTick(context.Background())
	require.NotNil(t, d.lastBuild)
	require.False(t, d.lastBuild.OK)

	rr := httptest.NewRecorder()
	d.handleHealthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"degraded"`)
}

func TestDaemonMetricsEndpoint(t *testing.T) {
	cfg := daemonProject(t)
	d := newTestDaemon(t, cfg)
	d.buildTick(context.Background())

	rr := httptest.NewRecorder()
	metrics.HTTPHandler(d.reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "go_goroutines")
	require.Contains(t, rr.Body.String(), "bindery_build_duration_seconds")
}

func TestDaemonSyncTickNoPublishedRelease(t *testing.T) {
	cfg := daemonProject(t)
	d := newTestDaemon(t, cfg)

	d.syncTick(context.Background())
	require.NotNil(t, d.lastSync)
	require.True(t, d.lastSync.OK)
	require.Equal(t, "no published release", d.lastSync.Detail)
}

func TestDaemonSyncTickSyncsLatestPublished(t *testing.T) {
	var hits atomic.Int32
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath.Store(r.Method + " " + r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := daemonProject(t)
	cfg.Channels = []config.ChannelConfig{{
		Name:   "storefront",
		Type:   config.ChannelStorefront,
		APIURL: srv.URL + "/api",
		Slug:   "practical-systems",
		Auth:   &config.AuthConfig{Type: "token", Token: "shop-key"},
	}}
	d := newTestDaemon(t, cfg)

	ctx := context.Background()
	d.buildTick(ctx)

	rep, err := build.LoadReport(filepath.Join(cfg.Output.Dir, "full"))
	require.NoError(t, err)
	_, err = d.releases.Create(ctx, "1.0.0", "First release.", rep.ArtifactRefs())
	require.NoError(t, err)
	_, err = d.releases.Publish(ctx, "1.0.0")
	require.NoError(t, err)

	d.syncTick(ctx)
	require.EqualValues(t, 1, hits.Load())
	require.Equal(t, "POST /api/manuscripts/practical-systems/regenerate", gotPath.Load())
	require.NotNil(t, d.lastSync)
	require.True(t, d.lastSync.OK, d.lastSync.Detail)

	states, err := d.syncer.States(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	require.Equal(t, "1.0.0", states[0].LastSyncedVersion)
}

func TestDaemonRunLifecycle(t *testing.T) {
	cfg := daemonProject(t)
	cfg.Daemon.BuildInterval = "50ms"
	d := newTestDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, "full", "full.html"))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}

func TestEnabledFormats(t *testing.T) {
	cfg := daemonProject(t)
	d := newTestDaemon(t, cfg)
	require.Len(t, d.enabledFormats(), 2)

	// A converter that is not on PATH stays excluded.
	cfg.Formats.PDF.Converter = "bindery-test-no-such-converter"
	require.Len(t, d.enabledFormats(), 2)

	conv := filepath.Join(t.TempDir(), "fakeconv")
	require.NoError(t, os.WriteFile(conv, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	cfg.Formats.PDF.Converter = conv
	require.Len(t, d.enabledFormats(), 3)
}
