package channel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/release"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

// gitFixture builds a work repo with one commit and a bare repo wired up
// as its origin remote.
func gitFixture(t *testing.T) (string, *git.Repository) {
	t.Helper()
	tmp := t.TempDir()

	bareDir := filepath.Join(tmp, "remote.git")
	bare, err := git.PlainInit(bareDir, true)
	require.NoError(t, err)

	workDir := filepath.Join(tmp, "book")
	work, err := git.PlainInit(workDir, false)
	require.NoError(t, err)
	_, err = work.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{bareDir}})
	require.NoError(t, err)

	commitFile(t, work, workDir, "book.yaml", "title: Practical Systems\n")
	return workDir, bare
}

func gitRequest(sourceDir, version string) Request {
	return Request{
		Release:   &release.Release{Version: version, Status: release.StatusPublished, Notes: "Notes."},
		SourceDir: sourceDir,
	}
}

func TestGitChannelTagsAndPushes(t *testing.T) {
	workDir, bare := gitFixture(t)

	ch, err := newGitChannel(config.ChannelConfig{Name: "origin", Type: config.ChannelGit})
	require.NoError(t, err)
	require.NoError(t, ch.Sync(context.Background(), gitRequest(workDir, "1.0.0")))

	ref, err := bare.Reference(plumbing.NewTagReferenceName("v1.0.0"), true)
	require.NoError(t, err)

	tag, err := bare.TagObject(ref.Hash())
	require.NoError(t, err)
	require.Equal(t, "v1.0.0", tag.Name)
	require.Contains(t, tag.Message, "Release 1.0.0")
}

func TestGitChannelSyncIsIdempotent(t *testing.T) {
	workDir, bare := gitFixture(t)

	ch, err := newGitChannel(config.ChannelConfig{Name: "origin", Type: config.ChannelGit})
	require.NoError(t, err)

	require.NoError(t, ch.Sync(context.Background(), gitRequest(workDir, "1.0.0")))
	require.NoError(t, ch.Sync(context.Background(), gitRequest(workDir, "1.0.0")))

	_, err = bare.Reference(plumbing.NewTagReferenceName("v1.0.0"), true)
	require.NoError(t, err)
}

func TestGitChannelSecondReleaseAddsTag(t *testing.T) {
	workDir, bare := gitFixture(t)
	work, err := git.PlainOpen(workDir)
	require.NoError(t, err)

	ch, err := newGitChannel(config.ChannelConfig{Name: "origin", Type: config.ChannelGit})
	require.NoError(t, err)
	require.NoError(t, ch.Sync(context.Background(), gitRequest(workDir, "1.0.0")))

	commitFile(t, work, workDir, "chapters.md", "# More\n")
	require.NoError(t, ch.Sync(context.Background(), gitRequest(workDir, "1.1.0")))

	for _, v := range []string{"v1.0.0", "v1.1.0"} {
		_, err := bare.Reference(plumbing.NewTagReferenceName(v), true)
		require.NoError(t, err, v)
	}
}

func TestGitChannelMissingRepositoryIsPermanent(t *testing.T) {
	ch, err := newGitChannel(config.ChannelConfig{Name: "origin", Type: config.ChannelGit})
	require.NoError(t, err)

	err = ch.Sync(context.Background(), gitRequest(t.TempDir(), "1.0.0"))
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindPermanentSync))
	require.False(t, binderrors.IsRetryable(err))
}

func TestGitChannelMissingRemoteIsPermanent(t *testing.T) {
	tmp := t.TempDir()
	workDir := filepath.Join(tmp, "book")
	work, err := git.PlainInit(workDir, false)
	require.NoError(t, err)
	_, err = work.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{filepath.Join(tmp, "nowhere.git")},
	})
	require.NoError(t, err)
	commitFile(t, work, workDir, "book.yaml", "title: T\n")

	ch, err := newGitChannel(config.ChannelConfig{Name: "origin", Type: config.ChannelGit})
	require.NoError(t, err)

	err = ch.Sync(context.Background(), gitRequest(workDir, "1.0.0"))
	require.Error(t, err)
	require.True(t, binderrors.IsKind(err, binderrors.KindPermanentSync))
}

func TestGitAuthMethods(t *testing.T) {
	auth, err := gitAuth(nil)
	require.NoError(t, err)
	require.Nil(t, auth)

	auth, err = gitAuth(&config.AuthConfig{Type: "token", Token: "sekrit"})
	require.NoError(t, err)
	basic, ok := auth.(*githttp.BasicAuth)
	require.True(t, ok)
	require.Equal(t, "token", basic.Username)
	require.Equal(t, "sekrit", basic.Password)

	auth, err = gitAuth(&config.AuthConfig{Type: "basic", Username: "u", Password: "p"})
	require.NoError(t, err)
	basic, ok = auth.(*githttp.BasicAuth)
	require.True(t, ok)
	require.Equal(t, "u", basic.Username)

	_, err = gitAuth(&config.AuthConfig{Type: "ssh-agent"})
	require.Error(t, err)

	_, err = gitAuth(&config.AuthConfig{Type: "token"})
	require.Error(t, err)
}

func TestClassifyGitError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"io timeout", errors.New("dial tcp 10.0.0.1:443: i/o timeout"), true},
		{"connection refused", errors.New("connect: connection refused"), true},
		{"remote hung up", errors.New("the remote server hung up unexpectedly"), true},
		{"rate limited", errors.New("rate limit exceeded"), true},
		{"auth", errors.New("authentication required"), false},
		{"missing repo", errors.New("repository not found"), false},
		{"rejected ref", errors.New("non-fast-forward update: refs/tags/v1.0.0"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyGitError("origin", "push", tt.err)
			if tt.transient {
				require.True(t, binderrors.IsKind(err, binderrors.KindTransientSync), err)
				require.True(t, binderrors.IsRetryable(err))
			} else {
				require.True(t, binderrors.IsKind(err, binderrors.KindPermanentSync), err)
				require.False(t, binderrors.IsRetryable(err))
			}
		})
	}
}
