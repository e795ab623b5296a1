package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
)

// gitChannel tags the source tree at HEAD with v<version> and pushes the
// tag to the configured remote. The work tree itself is authored state;
// this channel never commits or modifies it.
type gitChannel struct {
	name   string
	remote string
	auth   transport.AuthMethod
}

func newGitChannel(cfg config.ChannelConfig) (*gitChannel, error) {
	remote := cfg.Remote
	if remote == "" {
		remote = "origin"
	}
	auth, err := gitAuth(cfg.Auth)
	if err != nil {
		return nil, binderrors.ConfigInvalid("channels", fmt.Sprintf("channel %q: %v", cfg.Name, err))
	}
	return &gitChannel{name: cfg.Name, remote: remote, auth: auth}, nil
}

func (c *gitChannel) Name() string             { return c.name }
func (c *gitChannel) Type() config.ChannelType { return config.ChannelGit }

func (c *gitChannel) Sync(ctx context.Context, req Request) error {
	tag := "v" + req.Release.Version

	repo, err := git.PlainOpenWithOptions(req.SourceDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return binderrors.PermanentSync(c.name, fmt.Errorf("open repository at %s: %w", req.SourceDir, err))
	}
	head, err := repo.Head()
	if err != nil {
		return binderrors.PermanentSync(c.name, fmt.Errorf("resolve HEAD: %w", err))
	}

	_, err = repo.CreateTag(tag, head.Hash(), &git.CreateTagOptions{
		Message: fmt.Sprintf("Release %s", req.Release.Version),
		Tagger: &object.Signature{
			Name:  "bindery",
			Email: "bindery@localhost",
			When:  time.Now(),
		},
	})
	switch {
	case err == nil:
		slog.Debug("created release tag",
			logfields.Channel(c.name),
			logfields.Version(req.Release.Version))
	case errors.Is(err, git.ErrTagExists):
		// Re-syncing the same release is fine; the push below settles
		// whether the remote has it.
	default:
		return classifyGitError(c.name, "tag", err)
	}

	refspec := gitconfig.RefSpec(fmt.Sprintf("refs/tags/%s:refs/tags/%s", tag, tag))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: c.remote,
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Auth:       c.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyGitError(c.name, "push", err)
	}

	slog.Info("pushed release tag",
		logfields.Channel(c.name),
		logfields.Version(req.Release.Version),
		slog.String("remote", c.remote))
	return nil
}

// gitAuth builds the transport auth from channel config. Nil config means
// unauthenticated (local remotes, credential helpers).
func gitAuth(auth *config.AuthConfig) (transport.AuthMethod, error) {
	if auth == nil {
		return nil, nil
	}
	switch auth.Type {
	case "token":
		if auth.Token == "" {
			return nil, fmt.Errorf("token authentication requires a token")
		}
		// Hosting services accept the token as a basic-auth password.
		return &githttp.BasicAuth{Username: "token", Password: auth.Token}, nil
	case "basic":
		if auth.Username == "" || auth.Password == "" {
			return nil, fmt.Errorf("basic authentication requires username and password")
		}
		return &githttp.BasicAuth{Username: auth.Username, Password: auth.Password}, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported authentication type %q", auth.Type)
	}
}

// classifyGitError translates go-git failures into transient vs permanent
// sync errors. go-git surfaces most transport failures as strings, so the
// split is heuristic, matching how operators read the messages.
func classifyGitError(channel, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return binderrors.TransientSync(channel, fmt.Errorf("%s: %w", op, err))
	}

	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "timeout"),
		strings.Contains(l, "i/o timeout"),
		strings.Contains(l, "connection reset"),
		strings.Contains(l, "connection refused"),
		strings.Contains(l, "remote hung up"),
		strings.Contains(l, "no route to host"),
		strings.Contains(l, "temporarily unavailable"),
		strings.Contains(l, "rate limit"),
		strings.Contains(l, "too many requests"):
		return binderrors.TransientSync(channel, fmt.Errorf("%s: %w", op, err))
	default:
		// Auth failures, missing repositories, rejected refs: operator
		// action required.
		return binderrors.PermanentSync(channel, fmt.Errorf("%s: %w", op, err))
	}
}
