package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/metrics"
	"git.home.luguber.info/inful/bindery/internal/release"
	"git.home.luguber.info/inful/bindery/internal/version"
)

// ReportFilename is the per-target build record written next to the
// artifacts. Release creation reads it back instead of re-rendering.
const ReportFilename = "build-report.json"

// Outcome is the final result of one target build.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means some formats or checks failed while at least
	// the successful artifacts were written.
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// StageRecord is one stage's timing and result within a build.
type StageRecord struct {
	Name       string              `json:"name"`
	DurationMS float64             `json:"duration_ms"`
	Result     metrics.ResultLabel `json:"result"`
	Error      string              `json:"error,omitempty"`
}

// FormatRecord is one format's outcome within a build, including the
// artifact identity needed to release it later without re-rendering.
type FormatRecord struct {
	Format      string  `json:"format"`
	Filename    string  `json:"filename,omitempty"`
	Size        int64   `json:"size,omitempty"`
	ContentHash string  `json:"content_hash,omitempty"`
	PayloadHash string  `json:"payload_hash,omitempty"`
	DurationMS  float64 `json:"duration_ms"`
	Error       string  `json:"error,omitempty"`
}

// Report captures one build invocation of one target.
type Report struct {
	SchemaVersion int       `json:"schema_version"`
	BuildID       string    `json:"build_id"`
	Target        string    `json:"target"`
	Version       string    `json:"version,omitempty"`
	ToolVersion   string    `json:"tool_version,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`

	Fragments int `json:"fragments"`
	Words     int `json:"words"`

	Stages  []StageRecord  `json:"stages"`
	Formats []FormatRecord `json:"formats"`

	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Outcome  Outcome  `json:"outcome"`
}

// NewReport starts a report for one target build.
func NewReport(target string) *Report {
	return &Report{
		SchemaVersion: 1,
		BuildID:       uuid.NewString(),
		Target:        target,
		ToolVersion:   version.Version,
		Start:         time.Now().UTC(),
		Stages:        []StageRecord{},
		Formats:       []FormatRecord{},
		Errors:        []string{},
		Warnings:      []string{},
	}
}

// RecordStage appends one stage outcome and mirrors it into the error and
// warning lists plus the metrics recorder.
func (r *Report) RecordStage(name string, d time.Duration, result metrics.ResultLabel, err error, rec metrics.Recorder) {
	sr := StageRecord{Name: name, DurationMS: float64(d.Milliseconds()), Result: result}
	if err != nil {
		sr.Error = err.Error()
		switch result {
		case metrics.ResultWarning:
			r.Warnings = append(r.Warnings, err.Error())
		case metrics.ResultFatal, metrics.ResultCanceled:
			r.Errors = append(r.Errors, err.Error())
		}
	}
	r.Stages = append(r.Stages, sr)
	if rec != nil {
		rec.IncStageResult(name, result)
	}
}

// Finish stamps the end time.
func (r *Report) Finish() { r.End = time.Now().UTC() }

// Duration is the wall time of the build so far.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// DeriveOutcome settles the final outcome from recorded stage and format
// results. Canceled beats failed beats partial.
func (r *Report) DeriveOutcome() {
	anyWarning := len(r.Warnings) > 0
	for _, s := range r.Stages {
		switch s.Result {
		case metrics.ResultCanceled:
			r.Outcome = OutcomeCanceled
			return
		case metrics.ResultFatal:
			r.Outcome = OutcomeFailed
			return
		}
	}
	for _, f := range r.Formats {
		if f.Error != "" {
			anyWarning = true
		}
	}
	if anyWarning {
		r.Outcome = OutcomePartial
		return
	}
	r.Outcome = OutcomeSuccess
}

// Summary is a one-line human-readable digest.
func (r *Report) Summary() string {
	rendered := 0
	for _, f := range r.Formats {
		if f.Error == "" && f.Filename != "" {
			rendered++
		}
	}
	return fmt.Sprintf("target=%s fragments=%d words=%d formats=%d/%d duration=%s outcome=%s",
		r.Target, r.Fragments, r.Words, rendered, len(r.Formats),
		r.Duration().Truncate(time.Millisecond), r.Outcome)
}

// ArtifactRefs returns ledger references for the successfully rendered
// formats, in render order.
func (r *Report) ArtifactRefs() []release.ArtifactRef {
	refs := make([]release.ArtifactRef, 0, len(r.Formats))
	for _, f := range r.Formats {
		if f.Error != "" || f.Filename == "" {
			continue
		}
		refs = append(refs, release.ArtifactRef{
			Target:      r.Target,
			Format:      f.Format,
			Filename:    f.Filename,
			Size:        f.Size,
			ContentHash: f.ContentHash,
			PayloadHash: f.PayloadHash,
		})
	}
	return refs
}

// Persist writes the report atomically into the target's output directory.
func (r *Report) Persist(dir string) error {
	if r.End.IsZero() {
		r.Finish()
	}
	if r.Outcome == "" {
		r.DeriveOutcome()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return binderrors.StoreFailed("ensure report directory", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return binderrors.StoreFailed("marshal build report", err)
	}
	path := filepath.Join(dir, ReportFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return binderrors.StoreFailed("write build report", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return binderrors.StoreFailed("rename build report", err)
	}
	return nil
}

// LoadReport reads a persisted build report from a target's output
// directory.
func LoadReport(dir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReportFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, binderrors.StoreFailed("load build report",
				fmt.Errorf("no build report in %s (run build first)", dir))
		}
		return nil, binderrors.StoreFailed("load build report", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, binderrors.StoreFailed("decode build report", err)
	}
	return &r, nil
}
