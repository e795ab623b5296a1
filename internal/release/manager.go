package release

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/metrics"
)

// Manager owns release creation and promotion. All creation runs behind
// one mutex so concurrent attempts cannot both pass the regression check;
// strict version monotonicity depends on it.
type Manager struct {
	store     *Store
	changelog string
	rec       metrics.Recorder

	mu sync.Mutex
}

// NewManager wires a Manager over the ledger store. changelogPath may be
// empty to skip changelog maintenance (tests); rec may be nil.
func NewManager(store *Store, changelogPath string, rec metrics.Recorder) *Manager {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Manager{store: store, changelog: changelogPath, rec: rec}
}

// Create validates the proposed version against the latest ledger entry
// (draft or published), then records an immutable draft release and a
// dated changelog entry. VersionRegression rejects any version not
// strictly greater than the latest; nothing is committed in that case.
func (m *Manager) Create(ctx context.Context, version, notes string, artifacts []ArtifactRef) (*Release, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return nil, binderrors.ConfigInvalid("version", err.Error())
	}
	if len(artifacts) == 0 {
		return nil, binderrors.ConfigInvalid("artifacts", "a release needs at least one artifact")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	latest, err := m.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		latestV, err := ParseVersion(latest.Version)
		if err != nil {
			return nil, binderrors.StoreFailed("parse ledger version", err)
		}
		if v.Compare(latestV) <= 0 {
			return nil, binderrors.VersionRegression(v.String(), latestV.String())
		}
	}

	rel := &Release{
		Version:   v.String(),
		Status:    StatusDraft,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
		Artifacts: append([]ArtifactRef(nil), artifacts...),
	}
	if err := m.store.Insert(ctx, rel); err != nil {
		return nil, err
	}

	if m.changelog != "" {
		if err := appendChangelog(m.changelog, rel.Version, notes, rel.CreatedAt); err != nil {
			// The ledger entry exists; the operator must reconcile the
			// changelog by hand.
			return rel, fmt.Errorf("release %s recorded but changelog not updated: %w", rel.Version, err)
		}
	}

	m.rec.IncReleaseCreated()
	slog.Info("release created",
		logfields.Version(rel.Version),
		logfields.Count(len(rel.Artifacts)))
	return rel, nil
}

// Publish promotes a draft release. The transition is one-way; publishing
// an already-published release fails with AlreadyPublished, a missing one
// with ReleaseNotFound.
func (m *Manager) Publish(ctx context.Context, version string) (*Release, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return nil, binderrors.ConfigInvalid("version", err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rel, err := m.store.Get(ctx, v.String())
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, binderrors.ReleaseNotFound(v.String())
	}
	if rel.Published() {
		return nil, binderrors.AlreadyPublished(v.String())
	}

	now := time.Now().UTC()
	if err := m.store.MarkPublished(ctx, rel.Version, now); err != nil {
		return nil, err
	}
	rel.Status = StatusPublished
	rel.PublishedAt = &now

	m.rec.IncReleasePublished()
	slog.Info("release published", logfields.Version(rel.Version))
	return rel, nil
}

// Get returns one release by version, ReleaseNotFound when absent.
func (m *Manager) Get(ctx context.Context, version string) (*Release, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return nil, binderrors.ConfigInvalid("version", err.Error())
	}
	rel, err := m.store.Get(ctx, v.String())
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, binderrors.ReleaseNotFound(v.String())
	}
	return rel, nil
}

// Latest returns the newest release regardless of status, nil when the
// ledger is empty.
func (m *Manager) Latest(ctx context.Context) (*Release, error) {
	return m.store.Latest(ctx)
}

// LatestPublished returns the newest published release, nil when none.
func (m *Manager) LatestPublished(ctx context.Context) (*Release, error) {
	return m.store.LatestPublished(ctx)
}

// List returns every release, newest first.
func (m *Manager) List(ctx context.Context) ([]*Release, error) {
	return m.store.List(ctx)
}
