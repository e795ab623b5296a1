package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
)

// storefrontChannel triggers the commercial distribution platform's
// regeneration of the manuscript. The platform pulls from the already
// synced source itself; this channel only tells it which version and
// which manifests.
type storefrontChannel struct {
	name       string
	apiURL     string
	slug       string
	token      string
	httpClient *http.Client
}

func newStorefrontChannel(cfg config.ChannelConfig) (*storefrontChannel, error) {
	if cfg.APIURL == "" || cfg.Slug == "" {
		return nil, binderrors.ConfigInvalid("channels",
			fmt.Sprintf("storefront channel %q needs api_url and slug", cfg.Name))
	}
	c := &storefrontChannel{
		name:       cfg.Name,
		apiURL:     cfg.APIURL,
		slug:       cfg.Slug,
		httpClient: &http.Client{},
	}
	if auth := cfg.Auth; auth != nil {
		if auth.Type != "token" || auth.Token == "" {
			return nil, binderrors.ConfigInvalid("channels",
				fmt.Sprintf("storefront channel %q supports token authentication only", cfg.Name))
		}
		c.token = auth.Token
	}
	return c, nil
}

func (c *storefrontChannel) Name() string             { return c.name }
func (c *storefrontChannel) Type() config.ChannelType { return config.ChannelStorefront }

// regenerateRequest is the platform's trigger payload.
type regenerateRequest struct {
	Version   string   `json:"version"`
	Manifests []string `json:"manifests,omitempty"`
}

func (c *storefrontChannel) Sync(ctx context.Context, req Request) error {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return binderrors.ConfigInvalid("channels",
			fmt.Sprintf("storefront channel %q: invalid api_url: %v", c.name, err))
	}
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), "manuscripts", c.slug, "regenerate")

	payload, err := json.Marshal(regenerateRequest{
		Version:   req.Release.Version,
		Manifests: req.Targets,
	})
	if err != nil {
		return binderrors.PermanentSync(c.name, fmt.Errorf("marshal trigger: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return binderrors.PermanentSync(c.name, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "bindery")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return binderrors.TransientSync(c.name, fmt.Errorf("trigger regeneration: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := strings.ReplaceAll(strings.TrimSpace(string(limited)), "\n", " ")
		cause := fmt.Errorf("storefront returned %d: %s", resp.StatusCode, detail)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return binderrors.TransientSync(c.name, cause)
		}
		return binderrors.PermanentSync(c.name, cause)
	}

	slog.Info("storefront regeneration triggered",
		logfields.Channel(c.name),
		logfields.Version(req.Release.Version),
		slog.String("slug", c.slug))
	return nil
}
