package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build, render, release, and sync
// metrics. Implementations may forward to Prometheus, OpenTelemetry, etc.
// All methods must be safe on the zero NoopRecorder (allowing optional
// injection).
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(outcome string) // outcome: success|partial|failed|canceled
	ObserveRenderDuration(format string, d time.Duration, success bool)
	IncRenderResult(format string, success bool)
	ObserveSyncDuration(channel string, d time.Duration, success bool)
	IncSyncResult(channel string, result ResultLabel)
	IncSyncRetry(channel string)
	IncReleaseCreated()
	IncReleasePublished()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)        {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                {}
func (NoopRecorder) IncBuildOutcome(string)                            {}
func (NoopRecorder) ObserveRenderDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncRenderResult(string, bool)                      {}
func (NoopRecorder) ObserveSyncDuration(string, time.Duration, bool)   {}
func (NoopRecorder) IncSyncResult(string, ResultLabel)                 {}
func (NoopRecorder) IncSyncRetry(string)                               {}
func (NoopRecorder) IncReleaseCreated()                                {}
func (NoopRecorder) IncReleasePublished()                              {}
