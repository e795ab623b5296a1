package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/bindery/internal/assemble"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/metrics"
)

// Result is one format's outcome within a render pass.
type Result struct {
	Format   Format
	Artifact *Artifact
	Err      error
	Duration time.Duration
}

// ResultSet carries per-format outcomes. Partial success is the contract:
// a failed format never removes another format's artifact.
type ResultSet struct {
	Target  string
	order   []Format
	results map[Format]*Result
}

// Formats returns the requested formats in request order.
func (rs *ResultSet) Formats() []Format { return rs.order }

// Result returns the outcome for one format, nil if it was not requested.
func (rs *ResultSet) Result(f Format) *Result { return rs.results[f] }

// Artifacts returns the successful artifacts in request order.
func (rs *ResultSet) Artifacts() []*Artifact {
	out := make([]*Artifact, 0, len(rs.order))
	for _, f := range rs.order {
		if r := rs.results[f]; r != nil && r.Artifact != nil {
			out = append(out, r.Artifact)
		}
	}
	return out
}

// Failed returns the formats that produced an error, in request order.
func (rs *ResultSet) Failed() []Format {
	var out []Format
	for _, f := range rs.order {
		if r := rs.results[f]; r != nil && r.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// OK reports whether every requested format succeeded.
func (rs *ResultSet) OK() bool { return len(rs.Failed()) == 0 }

// Err summarizes the failures as a single error, nil when all succeeded.
func (rs *ResultSet) Err() error {
	failed := rs.Failed()
	if len(failed) == 0 {
		return nil
	}
	first := rs.results[failed[0]].Err
	if len(failed) == 1 {
		return first
	}
	return fmt.Errorf("%d formats failed (first: %w)", len(failed), first)
}

// RunAll renders the requested formats concurrently, one worker per format.
// Formats share only the read-only document and write disjoint artifacts,
// so a deliberate WaitGroup (not errgroup) keeps one format's failure from
// cancelling its siblings.
func RunAll(ctx context.Context, doc *assemble.Document, formats []Format, opts Options, rec metrics.Recorder) *ResultSet {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	rs := &ResultSet{
		Target:  doc.Meta.Target,
		order:   append([]Format(nil), formats...),
		results: make(map[Format]*Result, len(formats)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, f := range formats {
		wg.Add(1)
		go func(f Format) {
			defer wg.Done()
			res := renderOne(ctx, doc, f, opts, rec)
			mu.Lock()
			rs.results[f] = res
			mu.Unlock()
		}(f)
	}
	wg.Wait()
	return rs
}

func renderOne(ctx context.Context, doc *assemble.Document, f Format, opts Options, rec metrics.Recorder) *Result {
	start := time.Now()
	res := &Result{Format: f}

	renderer := Get(f)
	if renderer == nil {
		res.Err = binderrors.RenderFailed(string(f), fmt.Errorf("no renderer registered for format %s", f))
		res.Duration = time.Since(start)
		rec.IncRenderResult(string(f), false)
		return res
	}

	artifact, err := renderer.Render(ctx, doc, opts)
	res.Duration = time.Since(start)
	if err != nil {
		if _, ok := binderrors.As(err); !ok {
			err = binderrors.RenderFailed(string(f), err)
		}
		res.Err = err
		rec.ObserveRenderDuration(string(f), res.Duration, false)
		rec.IncRenderResult(string(f), false)
		slog.Warn("format render failed",
			logfields.Target(doc.Meta.Target),
			logfields.Format(string(f)),
			logfields.Error(err))
		return res
	}

	res.Artifact = artifact
	rec.ObserveRenderDuration(string(f), res.Duration, true)
	rec.IncRenderResult(string(f), true)
	slog.Debug("format rendered",
		logfields.Target(doc.Meta.Target),
		logfields.Format(string(f)),
		slog.Int64("bytes", artifact.Size),
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res
}
