package channel

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/release"
)

// forgeChannel creates a release on the hosting service for the pushed tag
// and attaches the rendered artifacts as named assets. The API shape is the
// common repos/{owner}/{repo}/releases surface.
type forgeChannel struct {
	name       string
	apiURL     string
	owner      string
	repo       string
	httpClient *http.Client

	// authHeader is the prebuilt Authorization value; empty means
	// unauthenticated.
	authHeader string
	basicUser  string
	basicPass  string
}

func newForgeChannel(cfg config.ChannelConfig) (*forgeChannel, error) {
	if cfg.APIURL == "" || cfg.Owner == "" || cfg.Repo == "" {
		return nil, binderrors.ConfigInvalid("channels",
			fmt.Sprintf("forge channel %q needs api_url, owner, and repo", cfg.Name))
	}
	c := &forgeChannel{
		name:       cfg.Name,
		apiURL:     cfg.APIURL,
		owner:      cfg.Owner,
		repo:       cfg.Repo,
		httpClient: &http.Client{},
	}
	if auth := cfg.Auth; auth != nil {
		switch auth.Type {
		case "token":
			if auth.Token == "" {
				return nil, binderrors.ConfigInvalid("channels",
					fmt.Sprintf("forge channel %q: token authentication requires a token", cfg.Name))
			}
			c.authHeader = "token " + auth.Token
		case "basic":
			if auth.Username == "" || auth.Password == "" {
				return nil, binderrors.ConfigInvalid("channels",
					fmt.Sprintf("forge channel %q: basic authentication requires username and password", cfg.Name))
			}
			c.basicUser, c.basicPass = auth.Username, auth.Password
		case "":
		default:
			return nil, binderrors.ConfigInvalid("channels",
				fmt.Sprintf("forge channel %q: unsupported authentication type %q", cfg.Name, auth.Type))
		}
	}
	return c, nil
}

func (c *forgeChannel) Name() string             { return c.name }
func (c *forgeChannel) Type() config.ChannelType { return config.ChannelForge }

// forgeRelease is the subset of the hosting service's release record the
// sync needs.
type forgeRelease struct {
	ID     int64 `json:"id"`
	Assets []struct {
		Name string `json:"name"`
	} `json:"assets"`
}

func (c *forgeChannel) Sync(ctx context.Context, req Request) error {
	tag := "v" + req.Release.Version

	rel, err := c.ensureRelease(ctx, req.Release, tag)
	if err != nil {
		return err
	}

	existing := make(map[string]bool, len(rel.Assets))
	for _, a := range rel.Assets {
		existing[a.Name] = true
	}

	for _, artifact := range req.Release.Artifacts {
		if existing[artifact.Filename] {
			slog.Debug("asset already attached",
				logfields.Channel(c.name),
				slog.String("asset", artifact.Filename))
			continue
		}
		if err := c.uploadAsset(ctx, rel.ID, req.ArtifactDir, artifact); err != nil {
			return err
		}
	}

	slog.Info("forge release synced",
		logfields.Channel(c.name),
		logfields.Version(req.Release.Version),
		logfields.Count(len(req.Release.Artifacts)))
	return nil
}

// ensureRelease creates the hosted release for the tag, or fetches it when
// a previous sync already created it.
func (c *forgeChannel) ensureRelease(ctx context.Context, rel *release.Release, tag string) (*forgeRelease, error) {
	body := map[string]any{
		"tag_name": tag,
		"name":     tag,
		"body":     rel.Notes,
		"draft":    false,
	}
	var created forgeRelease
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("repos/%s/%s/releases", c.owner, c.repo), body, &created)
	if err == nil {
		return &created, nil
	}

	// 409 means the release already exists for this tag; fetch and reuse
	// so re-syncs stay idempotent.
	var httpErr *forgeHTTPError
	if errors.As(err, &httpErr) && httpErr.Status == http.StatusConflict {
		var fetched forgeRelease
		getErr := c.do(ctx, http.MethodGet,
			fmt.Sprintf("repos/%s/%s/releases/tags/%s", c.owner, c.repo, url.PathEscape(tag)), nil, &fetched)
		if getErr != nil {
			return nil, getErr
		}
		return &fetched, nil
	}
	return nil, err
}

// uploadAsset attaches one artifact file to the hosted release, verifying
// the payload still matches the hash recorded at release time.
func (c *forgeChannel) uploadAsset(ctx context.Context, releaseID int64, artifactDir string, ref release.ArtifactRef) error {
	payloadPath := filepath.Join(artifactDir, ref.Target, ref.Filename)
	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return binderrors.PermanentSync(c.name,
			fmt.Errorf("artifact %s missing from output (rebuild before syncing): %w", ref.Filename, err))
	}
	if ref.PayloadHash != "" {
		sum := sha256.Sum256(payload)
		if hex.EncodeToString(sum[:]) != ref.PayloadHash {
			return binderrors.PermanentSync(c.name,
				fmt.Errorf("artifact %s on disk does not match the release record", ref.Filename))
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("attachment", ref.Filename)
	if err != nil {
		return binderrors.PermanentSync(c.name, fmt.Errorf("encode asset %s: %w", ref.Filename, err))
	}
	if _, err := part.Write(payload); err != nil {
		return binderrors.PermanentSync(c.name, fmt.Errorf("encode asset %s: %w", ref.Filename, err))
	}
	if err := mw.Close(); err != nil {
		return binderrors.PermanentSync(c.name, fmt.Errorf("encode asset %s: %w", ref.Filename, err))
	}

	endpoint := fmt.Sprintf("repos/%s/%s/releases/%d/assets?name=%s",
		c.owner, c.repo, releaseID, url.QueryEscape(ref.Filename))
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if err := c.send(req, nil); err != nil {
		return err
	}
	slog.Debug("asset uploaded",
		logfields.Channel(c.name),
		slog.String("asset", ref.Filename),
		slog.Int64("bytes", ref.Size))
	return nil
}

// newRequest builds one API request: joined URL, auth header, JSON accept.
func (c *forgeChannel) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	cleanEndpoint := strings.TrimPrefix(endpoint, "/")
	var rawQuery string
	if idx := strings.Index(cleanEndpoint, "?"); idx != -1 {
		rawQuery = cleanEndpoint[idx+1:]
		cleanEndpoint = cleanEndpoint[:idx]
	}

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, binderrors.ConfigInvalid("channels",
			fmt.Sprintf("forge channel %q: invalid api_url: %v", c.name, err))
	}
	u.Path = path.Join(strings.TrimSuffix(u.Path, "/"), cleanEndpoint)
	u.RawQuery = rawQuery

	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, binderrors.PermanentSync(c.name, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "bindery")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	} else if c.basicUser != "" {
		req.SetBasicAuth(c.basicUser, c.basicPass)
	}
	return req, nil
}

// do sends a JSON request and decodes a JSON response.
func (c *forgeChannel) do(ctx context.Context, method, endpoint string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return binderrors.PermanentSync(c.name, fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := c.newRequest(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, result)
}

// forgeHTTPError carries the status for callers that branch on it (409
// conflict handling); classification into sync error kinds happens in
// classifyForgeStatus.
type forgeHTTPError struct {
	Status int
	Detail string
}

func (e *forgeHTTPError) Error() string {
	return fmt.Sprintf("forge API returned %d: %s", e.Status, e.Detail)
}

func (c *forgeChannel) send(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport-level failures (refused, reset, timeout) are the
		// canonical transient case.
		return binderrors.TransientSync(c.name, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := strings.ReplaceAll(strings.TrimSpace(string(limited)), "\n", " ")
		return c.classifyStatus(resp.StatusCode, detail)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return binderrors.PermanentSync(c.name, fmt.Errorf("decode response: %w", err))
		}
	}
	return nil
}

// classifyStatus maps HTTP statuses onto the sync failure split: server
// trouble and throttling are transient, everything else in 4xx is an
// operator problem.
func (c *forgeChannel) classifyStatus(status int, detail string) error {
	httpErr := &forgeHTTPError{Status: status, Detail: detail}
	if status >= 500 || status == http.StatusTooManyRequests {
		return binderrors.TransientSync(c.name, httpErr)
	}
	return binderrors.PermanentSync(c.name, httpErr)
}
