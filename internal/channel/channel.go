// Package channel pushes releases to external distribution channels and
// tracks per-channel sync state. Three channel types exist: git (tag the
// source tree and push the tag), forge (create a hosted release and attach
// artifact assets), and storefront (trigger the commercial platform's
// regeneration). Channels are opaque collaborators; this package only
// transfers and classifies.
package channel

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/release"
)

// DefaultTimeout bounds one sync attempt when the channel config does not
// set its own.
const DefaultTimeout = 2 * time.Minute

// Request carries everything a channel may transfer: the release record,
// the source tree (git channels tag it), and the artifact output root
// (forge channels upload from it).
type Request struct {
	Release *release.Release
	// SourceDir is the project root containing the git work tree.
	SourceDir string
	// ArtifactDir is the output root; artifact payloads live at
	// <ArtifactDir>/<target>/<filename>.
	ArtifactDir string
	// Targets names the manifests included in the release, for channels
	// that regenerate rather than receive files.
	Targets []string
}

// Channel transfers one release to one destination. Implementations must
// be safe to call repeatedly with the same release (idempotent syncs).
type Channel interface {
	Name() string
	Type() config.ChannelType
	Sync(ctx context.Context, req Request) error
}

// New constructs a channel from its config descriptor.
func New(cfg config.ChannelConfig) (Channel, error) {
	switch cfg.Type {
	case config.ChannelGit:
		return newGitChannel(cfg)
	case config.ChannelForge:
		return newForgeChannel(cfg)
	case config.ChannelStorefront:
		return newStorefrontChannel(cfg)
	default:
		return nil, binderrors.ConfigInvalid("channels",
			fmt.Sprintf("channel %q has unknown type %q", cfg.Name, cfg.Type))
	}
}

// timeoutFor parses the per-channel timeout, falling back to the default.
func timeoutFor(cfg config.ChannelConfig) time.Duration {
	if cfg.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(cfg.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}
