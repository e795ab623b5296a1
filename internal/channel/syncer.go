package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/metrics"
	"git.home.luguber.info/inful/bindery/internal/retry"
)

// SyncResult is one channel's outcome for one SyncAll pass.
type SyncResult struct {
	Channel  string
	Type     config.ChannelType
	Attempts int
	Duration time.Duration
	Err      error
}

// OK reports whether the channel synced.
func (r SyncResult) OK() bool { return r.Err == nil }

type syncEntry struct {
	channel Channel
	timeout time.Duration
}

// Syncer runs all configured channels against a release. Channels are
// independent: they run concurrently, retry on transient failures per the
// configured policy, and one channel's failure never blocks another.
type Syncer struct {
	entries []syncEntry
	state   *StateStore
	policy  retry.Policy
	rec     metrics.Recorder

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSyncer builds channels from their config descriptors. state is
// required; rec may be nil.
func NewSyncer(cfgs []config.ChannelConfig, state *StateStore, policy retry.Policy, rec metrics.Recorder) (*Syncer, error) {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	s := &Syncer{state: state, policy: policy, rec: rec, sleep: sleepCtx}
	for _, cfg := range cfgs {
		ch, err := New(cfg)
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, syncEntry{channel: ch, timeout: timeoutFor(cfg)})
	}
	return s, nil
}

// Channels returns the configured channel names in config order.
func (s *Syncer) Channels() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.channel.Name()
	}
	return names
}

// States exposes the assembled channel state view.
func (s *Syncer) States(ctx context.Context) ([]ChannelState, error) {
	return s.state.States(ctx)
}

// SyncAll pushes the release to every channel concurrently and returns
// one result per channel, in config order. Only the named channels run
// when names is non-empty.
func (s *Syncer) SyncAll(ctx context.Context, req Request, names ...string) []SyncResult {
	selected := s.selectEntries(names)
	results := make([]SyncResult, len(selected))

	var wg sync.WaitGroup
	for i, e := range selected {
		wg.Add(1)
		go func(i int, e syncEntry) {
			defer wg.Done()
			results[i] = s.syncOne(ctx, e, req)
		}(i, e)
	}
	wg.Wait()
	return results
}

func (s *Syncer) selectEntries(names []string) []syncEntry {
	if len(names) == 0 {
		return s.entries
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []syncEntry
	for _, e := range s.entries {
		if want[e.channel.Name()] {
			out = append(out, e)
		}
	}
	return out
}

// syncOne runs the retry loop for a single channel. Every attempt lands
// in the attempts ledger; only success touches the channel state record.
func (s *Syncer) syncOne(ctx context.Context, e syncEntry, req Request) SyncResult {
	name := e.channel.Name()
	version := req.Release.Version
	start := time.Now()
	res := SyncResult{Channel: name, Type: e.channel.Type()}

	// State writes must land even when the run is being canceled.
	stateCtx := context.WithoutCancel(ctx)

	for attempt := 0; ; attempt++ {
		res.Attempts = attempt + 1

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.channel.Sync(attemptCtx, req)
		timedOut := attemptCtx.Err() != nil && ctx.Err() == nil
		cancel()

		if err == nil {
			res.Duration = time.Since(start)
			if stateErr := s.state.RecordSuccess(stateCtx, name, version, time.Now().UTC()); stateErr != nil {
				res.Err = stateErr
				s.rec.IncSyncResult(name, metrics.ResultFatal)
				return res
			}
			s.rec.ObserveSyncDuration(name, res.Duration, true)
			s.rec.IncSyncResult(name, metrics.ResultSuccess)
			slog.Info("channel synced",
				logfields.Channel(name),
				logfields.ChannelType(string(e.channel.Type())),
				logfields.Version(version),
				logfields.Attempt(res.Attempts))
			return res
		}

		err = s.classify(name, err, timedOut)
		if stateErr := s.state.RecordFailure(stateCtx, name, version, time.Now().UTC(), err); stateErr != nil {
			slog.Warn("failed to record sync attempt",
				logfields.Channel(name), logfields.Error(stateErr))
		}

		if ctx.Err() != nil {
			res.Duration = time.Since(start)
			res.Err = err
			s.rec.IncSyncResult(name, metrics.ResultCanceled)
			return res
		}
		if !binderrors.IsRetryable(err) || attempt >= s.policy.MaxRetries {
			res.Duration = time.Since(start)
			res.Err = err
			s.rec.ObserveSyncDuration(name, res.Duration, false)
			s.rec.IncSyncResult(name, metrics.ResultFatal)
			slog.Warn("channel sync failed",
				logfields.Channel(name),
				logfields.Version(version),
				logfields.Attempt(res.Attempts),
				logfields.Error(err))
			return res
		}

		s.rec.IncSyncRetry(name)
		delay := s.policy.Delay(attempt + 1)
		slog.Debug("retrying channel sync",
			logfields.Channel(name),
			logfields.Attempt(res.Attempts),
			logfields.DurationMS(float64(delay.Milliseconds())))
		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			res.Duration = time.Since(start)
			res.Err = err
			s.rec.IncSyncResult(name, metrics.ResultCanceled)
			return res
		}
	}
}

// classify normalizes errors from channel adapters: attempt timeouts are
// transient by definition, anything not already classified is treated as
// permanent so an unknown failure is never retried blindly.
func (s *Syncer) classify(name string, err error, timedOut bool) error {
	if timedOut || errors.Is(err, context.DeadlineExceeded) {
		if !binderrors.IsKind(err, binderrors.KindTransientSync) {
			return binderrors.TransientSync(name, err)
		}
		return err
	}
	if _, ok := binderrors.As(err); !ok {
		return binderrors.PermanentSync(name, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
