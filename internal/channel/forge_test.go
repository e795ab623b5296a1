package channel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/release"
)

func forgeConfig(apiURL string) config.ChannelConfig {
	return config.ChannelConfig{
		Name:   "forge",
		Type:   config.ChannelForge,
		APIURL: apiURL,
		Owner:  "inful",
		Repo:   "book",
		Auth:   &config.AuthConfig{Type: "token", Token: "sekrit"},
	}
}

// forgeRequest writes one artifact payload under a temp output root and
// returns a sync request whose ledger hash matches the file.
func forgeRequest(t *testing.T, payload []byte) Request {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "full"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "full", "full.epub"), payload, 0o644))

	sum := sha256.Sum256(payload)
	return Request{
		Release: &release.Release{
			Version: "1.0.0",
			Status:  release.StatusPublished,
			Notes:   "First stable release.",
			Artifacts: []release.ArtifactRef{{
				Target:      "full",
				Format:      "epub",
				Filename:    "full.epub",
				Size:        int64(len(payload)),
				PayloadHash: hex.EncodeToString(sum[:]),
			}},
		},
		ArtifactDir: dir,
		Targets:     []string{"full"},
	}
}

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

// recordingServer captures every request and lets each test script the
// responses by path.
func recordingServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body []byte)) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []recordedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		mu.Unlock()
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedRequest, len(seen))
		copy(out, seen)
		return out
	}
}

func TestForgeChannelCreatesReleaseAndUploadsAssets(t *testing.T) {
	srv, requests := recordingServer(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/repos/inful/book/releases":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 7, "assets": []}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/repos/inful/book/releases/7/assets":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 1, "name": "full.epub"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ch, err := newForgeChannel(forgeConfig(srv.URL + "/api/v1"))
	require.NoError(t, err)

	payload := []byte("epub bytes")
	require.NoError(t, ch.Sync(context.Background(), forgeRequest(t, payload)))

	seen := requests()
	require.Len(t, seen, 2)

	create := seen[0]
	require.Equal(t, "token sekrit", create.Auth)
	var body map[string]any
	require.NoError(t, json.Unmarshal(create.Body, &body))
	require.Equal(t, "v1.0.0", body["tag_name"])
	require.Equal(t, "First stable release.", body["body"])
	require.Equal(t, false, body["draft"])

	upload := seen[1]
	require.Equal(t, "name=full.epub", upload.Query)
	require.Contains(t, string(upload.Body), `filename="full.epub"`)
	require.Contains(t, string(upload.Body), "epub bytes")
}

func TestForgeChannelReusesExistingRelease(t *testing.T) {
	srv, requests := recordingServer(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/repos/inful/book/releases":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message": "release already exists"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/repos/inful/book/releases/tags/v1.0.0":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id": 9, "assets": [{"name": "full.epub"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ch, err := newForgeChannel(forgeConfig(srv.URL))
	require.NoError(t, err)

	// Asset already attached: the re-sync must finish without uploading.
	require.NoError(t, ch.Sync(context.Background(), forgeRequest(t, []byte("epub bytes"))))

	seen := requests()
	require.Len(t, seen, 2)
	require.Equal(t, http.MethodGet, seen[1].Method)
}

func TestForgeChannelServerErrorIsTransient(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream worker died"))
	})

	ch, err := newForgeChannel(forgeConfig(srv.URL))
	require.NoError(t, err)

	err = ch.Sync(context.Background(), forgeRequest(t, []byte("epub bytes")))
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindTransientSync))
	require.True(t, binderrors.IsRetryable(err))
	require.Contains(t, err.Error(), "502")
}

func TestForgeChannelAuthErrorIsPermanent(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "token expired"}`))
	})

	ch, err := newForgeChannel(forgeConfig(srv.URL))
	require.NoError(t, err)

	err = ch.Sync(context.Background(), forgeRequest(t, []byte("epub bytes")))
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindPermanentSync))
	require.False(t, binderrors.IsRetryable(err))
	require.Contains(t, err.Error(), "token expired")
}

func TestForgeChannelConnectionRefusedIsTransient(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusOK)
	})
	url := srv.URL
	srv.Close()

	ch, err := newForgeChannel(forgeConfig(url))
	require.NoError(t, err)

	err = ch.Sync(context.Background(), forgeRequest(t, []byte("epub bytes")))
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindTransientSync))
}

func TestForgeChannelRejectsDriftedArtifact(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 7, "assets": []}`))
	})

	ch, err := newForgeChannel(forgeConfig(srv.URL))
	require.NoError(t, err)

	req := forgeRequest(t, []byte("epub bytes"))
	// Overwrite the payload after the ledger hash was taken.
	require.NoError(t, os.WriteFile(
		filepath.Join(req.ArtifactDir, "full", "full.epub"), []byte("tampered"), 0o644))

	err = ch.Sync(context.Background(), req)
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindPermanentSync))
	require.Contains(t, err.Error(), "does not match the release record")
}

func TestForgeChannelMissingArtifactIsPermanent(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, r *http.Request, _ []byte) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 7, "assets": []}`))
	})

	ch, err := newForgeChannel(forgeConfig(srv.URL))
	require.NoError(t, err)

	req := forgeRequest(t, []byte("epub bytes"))
	require.NoError(t, os.Remove(filepath.Join(req.ArtifactDir, "full", "full.epub")))

	err = ch.Sync(context.Background(), req)
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindPermanentSync))
	require.Contains(t, err.Error(), "rebuild before syncing")
}

func TestNewForgeChannelValidation(t *testing.T) {
	_, err := newForgeChannel(config.ChannelConfig{Name: "forge", Type: config.ChannelForge, APIURL: "https://x", Owner: "inful"})
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindConfig))

	cfg := forgeConfig("https://forge.example.com/api/v1")
	cfg.Auth = &config.AuthConfig{Type: "oauth-dance"}
	_, err = newForgeChannel(cfg)
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindConfig))
}
