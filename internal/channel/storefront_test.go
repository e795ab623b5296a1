package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/release"
)

func storefrontConfig(apiURL string) config.ChannelConfig {
	return config.ChannelConfig{
		Name:   "shop",
		Type:   config.ChannelStorefront,
		APIURL: apiURL,
		Slug:   "practical-systems",
		Auth:   &config.AuthConfig{Type: "token", Token: "shop-key"},
	}
}

func storefrontRequest() Request {
	return Request{
		Release: &release.Release{Version: "2.1.0", Status: release.StatusPublished},
		Targets: []string{"full", "sampler"},
	}
}

func TestStorefrontChannelTriggersRegeneration(t *testing.T) {
	srv, requests := recordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusAccepted)
	})

	ch, err := newStorefrontChannel(storefrontConfig(srv.URL + "/api"))
	require.NoError(t, err)
	require.NoError(t, ch.Sync(context.Background(), storefrontRequest()))

	seen := requests()
	require.Len(t, seen, 1)
	require.Equal(t, http.MethodPost, seen[0].Method)
	require.Equal(t, "/api/manuscripts/practical-systems/regenerate", seen[0].Path)
	require.Equal(t, "Bearer shop-key", seen[0].Auth)

	var body regenerateRequest
	require.NoError(t, json.Unmarshal(seen[0].Body, &body))
	require.Equal(t, "2.1.0", body.Version)
	require.Equal(t, []string{"full", "sampler"}, body.Manifests)
}

func TestStorefrontChannelThrottledIsTransient(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	})

	ch, err := newStorefrontChannel(storefrontConfig(srv.URL))
	require.NoError(t, err)

	err = ch.Sync(context.Background(), storefrontRequest())
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindTransientSync))
	require.True(t, binderrors.IsRetryable(err))
}

func TestStorefrontChannelClientErrorIsPermanent(t *testing.T) {
	srv, _ := recordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error": "unknown manuscript slug"}`))
	})

	ch, err := newStorefrontChannel(storefrontConfig(srv.URL))
	require.NoError(t, err)

	err = ch.Sync(context.Background(), storefrontRequest())
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindPermanentSync))
	require.Contains(t, err.Error(), "unknown manuscript slug")
}

func TestNewStorefrontChannelValidation(t *testing.T) {
	_, err := newStorefrontChannel(config.ChannelConfig{Name: "shop", Type: config.ChannelStorefront, APIURL: "https://x"})
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindConfig))

	cfg := storefrontConfig("https://shop.example.com")
	cfg.Auth = &config.AuthConfig{Type: "basic", Username: "u", Password: "p"}
	_, err = newStorefrontChannel(cfg)
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindConfig))
}
