package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyTarget     = "target"
	KeyFormat     = "format"
	KeyChannel    = "channel"
	KeyChannelTyp = "channel_type"
	KeyVersion    = "version"
	KeyStage      = "stage"
	KeyFragment   = "fragment"
	KeyManifest   = "manifest"
	KeyPath       = "path"
	KeyBuildID    = "build_id"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyAttempt    = "attempt"
	KeyOutcome    = "outcome"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Format(f string) slog.Attr       { return slog.String(KeyFormat, f) }
func Channel(c string) slog.Attr      { return slog.String(KeyChannel, c) }
func ChannelType(t string) slog.Attr  { return slog.String(KeyChannelTyp, t) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Fragment(id string) slog.Attr    { return slog.String(KeyFragment, id) }
func Manifest(m string) slog.Attr     { return slog.String(KeyManifest, m) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
