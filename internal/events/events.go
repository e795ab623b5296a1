// Package events publishes pipeline lifecycle events for external
// consumers (dashboards, notification bots). Publication is best-effort:
// callers log failures and carry on, the pipeline never blocks on the
// event bus.
package events

import (
	"context"
	"time"
)

// BuildEvent reports one finished build of one target.
type BuildEvent struct {
	BuildID    string    `json:"build_id"`
	Target     string    `json:"target"`
	Outcome    string    `json:"outcome"`
	Formats    []string  `json:"formats,omitempty"`
	Fragments  int       `json:"fragments"`
	Words      int       `json:"words"`
	DurationMS float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReleaseEvent reports a release entering the ledger or being published.
type ReleaseEvent struct {
	Version   string    `json:"version"`
	Status    string    `json:"status"`
	Artifacts int       `json:"artifacts"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncEvent reports one channel sync outcome.
type SyncEvent struct {
	Channel   string    `json:"channel"`
	Type      string    `json:"type"`
	Version   string    `json:"version"`
	Attempts  int       `json:"attempts"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Emitter publishes pipeline events. Implementations must tolerate being
// called from concurrent builds.
type Emitter interface {
	BuildCompleted(ctx context.Context, ev BuildEvent) error
	ReleaseCreated(ctx context.Context, ev ReleaseEvent) error
	ReleasePublished(ctx context.Context, ev ReleaseEvent) error
	ChannelSynced(ctx context.Context, ev SyncEvent) error
	Close() error
}

// NoopEmitter drops every event. Used whenever event publication is
// disabled.
type NoopEmitter struct{}

func (NoopEmitter) BuildCompleted(context.Context, BuildEvent) error     { return nil }
func (NoopEmitter) ReleaseCreated(context.Context, ReleaseEvent) error   { return nil }
func (NoopEmitter) ReleasePublished(context.Context, ReleaseEvent) error { return nil }
func (NoopEmitter) ChannelSynced(context.Context, SyncEvent) error       { return nil }
func (NoopEmitter) Close() error                                         { return nil }
