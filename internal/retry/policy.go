// Package retry defines the backoff policy the channel sync loop
// consults when an attempt fails with a retryable error.
package retry

import (
	"time"

	"git.home.luguber.info/inful/bindery/internal/config"
)

// Policy says how many retries follow a failed sync attempt and how
// long to wait before each one. Immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy is linear backoff, 1s initial delay, 30s cap, 2
// retries.
func DefaultPolicy() Policy {
	return Policy{
		Mode:       config.RetryBackoffLinear,
		Initial:    time.Second,
		Max:        30 * time.Second,
		MaxRetries: 2,
	}
}

// FromConfig builds a policy from the project retry configuration.
// Unparseable or missing fields keep the defaults; max_retries is
// taken as configured (zero means a single attempt) and Initial never
// exceeds Max.
func FromConfig(rc config.RetryConfig) Policy {
	p := DefaultPolicy()
	if m := config.NormalizeRetryBackoff(string(rc.Backoff)); m != "" {
		p.Mode = m
	}
	if d := rc.InitialDelayDuration(); d > 0 {
		p.Initial = d
	}
	if d := rc.MaxDelayDuration(); d > 0 {
		p.Max = d
	}
	if rc.MaxRetries >= 0 {
		p.MaxRetries = rc.MaxRetries
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based; n <= 0 waits
// nothing). Linear and exponential growth is capped at Max.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		if n > 32 { // shift would overflow long before this
			n = 32
		}
		d = p.Initial << (n - 1)
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max || d < 0 {
		return p.Max
	}
	return d
}
