package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/metrics"
)

// runStages executes stages in order, recording timing and classification
// into the report. Cancellation is checked between stages; a fatal stage
// aborts, a warning stage is recorded and the run continues.
func runStages(ctx context.Context, st *buildState, stages []stageDef) error {
	for _, sd := range stages {
		select {
		case <-ctx.Done():
			err := fmt.Errorf("build canceled before stage %s: %w", sd.name, ctx.Err())
			st.report.RecordStage(string(sd.name), 0, metrics.ResultCanceled, err, st.rec)
			return err
		default:
		}

		t0 := time.Now()
		err := sd.fn(ctx, st)
		dur := time.Since(t0)
		st.rec.ObserveStageDuration(string(sd.name), dur)

		switch {
		case err == nil:
			st.report.RecordStage(string(sd.name), dur, metrics.ResultSuccess, nil, st.rec)
		case ctx.Err() != nil:
			st.report.RecordStage(string(sd.name), dur, metrics.ResultCanceled, err, st.rec)
			return err
		case isWarning(err):
			st.report.RecordStage(string(sd.name), dur, metrics.ResultWarning, err, st.rec)
			slog.Warn("stage finished with warnings",
				logfields.Target(st.target),
				logfields.Stage(string(sd.name)),
				logfields.Error(err))
		default:
			st.report.RecordStage(string(sd.name), dur, metrics.ResultFatal, err, st.rec)
			slog.Error("stage failed",
				logfields.Target(st.target),
				logfields.Stage(string(sd.name)),
				logfields.DurationMS(float64(dur.Milliseconds())),
				logfields.Error(err))
			return err
		}
	}
	return nil
}
