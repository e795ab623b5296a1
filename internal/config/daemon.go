package config

import "time"

// DaemonConfig controls the long-running scheduled mode.
type DaemonConfig struct {
	// BuildInterval is how often all targets are rebuilt. Empty disables
	// scheduled builds.
	BuildInterval string `yaml:"build_interval,omitempty"`
	// SyncInterval is how often the latest published release is re-synced
	// to all channels. Empty disables scheduled sync.
	SyncInterval string `yaml:"sync_interval,omitempty"`
	// HTTPAddr serves /metrics and /healthz.
	HTTPAddr string `yaml:"http_addr,omitempty"`
}

// BuildIntervalDuration parses BuildInterval, zero when unset or invalid.
func (d DaemonConfig) BuildIntervalDuration() time.Duration {
	dur, err := time.ParseDuration(d.BuildInterval)
	if err != nil {
		return 0
	}
	return dur
}

// SyncIntervalDuration parses SyncInterval, zero when unset or invalid.
func (d DaemonConfig) SyncIntervalDuration() time.Duration {
	dur, err := time.ParseDuration(d.SyncInterval)
	if err != nil {
		return 0
	}
	return dur
}

// EventsConfig controls pipeline event publication.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty"`
	URL           string `yaml:"url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}
