// Package release maintains the versioned release ledger: an append-only
// record of immutable releases backed by sqlite. Versions are strictly
// increasing; the only state transition a release ever makes is the
// one-way promotion from draft to published.
package release

import "time"

// Status is the lifecycle state of a release.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ArtifactRef records one rendered artifact bound to a release. It
// references output produced by a build; the ledger never stores payload
// bytes.
type ArtifactRef struct {
	Target      string `json:"target"`
	Format      string `json:"format"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	PayloadHash string `json:"payload_hash"`
}

// Release is one immutable entry in the ledger. Corrections require a new
// version, never an edit in place.
type Release struct {
	Version     string        `json:"version"`
	Status      Status        `json:"status"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	Artifacts   []ArtifactRef `json:"artifacts"`
}

// Published reports whether the release has been promoted.
func (r *Release) Published() bool { return r.Status == StatusPublished }

// Targets lists the distinct targets covered by the release's
// artifacts, in first-seen order.
func (r *Release) Targets() []string {
	seen := make(map[string]struct{}, 2)
	var targets []string
	for _, ref := range r.Artifacts {
		if _, ok := seen[ref.Target]; ok {
			continue
		}
		seen[ref.Target] = struct{}{}
		targets = append(targets, ref.Target)
	}
	return targets
}
