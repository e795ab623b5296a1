package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/bindery/internal/assemble"
	"git.home.luguber.info/inful/bindery/internal/config"
	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
	"git.home.luguber.info/inful/bindery/internal/fragment"
	"git.home.luguber.info/inful/bindery/internal/logfields"
	"git.home.luguber.info/inful/bindery/internal/manifest"
	"git.home.luguber.info/inful/bindery/internal/metrics"
	"git.home.luguber.info/inful/bindery/internal/render"
	"git.home.luguber.info/inful/bindery/internal/workspace"
)

// StageName identifies one build stage.
type StageName string

const (
	StageResolve  StageName = "resolve"
	StageAssemble StageName = "assemble"
	StageRender   StageName = "render"
	StageVerify   StageName = "verify"
	StageFinalize StageName = "finalize"
)

type stageFn func(ctx context.Context, st *buildState) error

type stageDef struct {
	name StageName
	fn   stageFn
}

// warningError marks a stage failure that is recorded without aborting
// the build.
type warningError struct{ err error }

func (w warningError) Error() string { return w.err.Error() }
func (w warningError) Unwrap() error { return w.err }

func markWarning(err error) error { return warningError{err: err} }

func isWarning(err error) bool {
	var w warningError
	return errors.As(err, &w)
}

// buildState is the mutable state threaded through one target build.
type buildState struct {
	cfg     *config.Config
	target  string
	formats []render.Format
	version string
	report  *Report
	rec     metrics.Recorder

	ws      *workspace.Manager
	res     *manifest.Resolution
	doc     *assemble.Document
	results *render.ResultSet
	outDir  string
}

// stageResolve loads the fragment store and resolves the target manifest.
func stageResolve(_ context.Context, st *buildState) error {
	store, err := fragment.NewDirStore(st.cfg.Book.ManuscriptDir)
	if err != nil {
		return err
	}
	resolver := manifest.NewResolver(store, st.cfg.Manifests.Dir, st.cfg.Manifests.FullTarget)
	res, err := resolver.Resolve(st.target)
	if err != nil {
		return err
	}
	st.res = res
	st.report.Fragments = len(res.Fragments)
	slog.Debug("target resolved",
		logfields.Target(st.target),
		logfields.Count(len(res.Fragments)))
	return nil
}

// stageAssemble combines the resolved fragments into the logical document.
func stageAssemble(_ context.Context, st *buildState) error {
	book := st.cfg.Book
	doc, err := assemble.Assemble(st.res.Fragments, assemble.Meta{
		Target:        st.target,
		Title:         book.Title,
		Subtitle:      book.Subtitle,
		Author:        book.Author,
		Language:      book.Language,
		CopyrightYear: book.CopyrightYear,
		Version:       st.version,
	})
	if err != nil {
		return err
	}
	st.doc = doc
	st.report.Words = doc.Words()
	return nil
}

// stageRender runs every requested format and records per-format results.
// Some formats failing is a warning (partial build); all failing is fatal.
func stageRender(ctx context.Context, st *buildState) error {
	staging, err := st.ws.Subdir(st.target)
	if err != nil {
		return binderrors.InternalError("create staging directory", err)
	}

	opts := render.Options{
		Version:     st.version,
		GeneratedAt: time.Now().UTC(),
		StagingDir:  staging,
		HTML:        st.cfg.Formats.HTML,
		EPUB:        st.cfg.Formats.EPUB,
		PDF:         st.cfg.Formats.PDF,
	}
	rs := render.RunAll(ctx, st.doc, st.formats, opts, st.rec)
	st.results = rs

	for _, f := range rs.Formats() {
		res := rs.Result(f)
		fr := FormatRecord{
			Format:     string(f),
			DurationMS: float64(res.Duration.Milliseconds()),
		}
		if res.Err != nil {
			fr.Error = res.Err.Error()
		} else if res.Artifact != nil {
			fr.Filename = res.Artifact.Filename
			fr.Size = res.Artifact.Size
			fr.ContentHash = res.Artifact.ContentHash
			fr.PayloadHash = res.Artifact.PayloadHash
		}
		st.report.Formats = append(st.report.Formats, fr)
	}

	failed := rs.Failed()
	if len(failed) == 0 {
		return nil
	}
	if len(failed) == len(rs.Formats()) {
		return rs.Err()
	}
	return markWarning(rs.Err())
}

// stageVerify checks internal anchor integrity on the html artifact.
// Dangling anchors degrade the build to partial, they never abort it.
func stageVerify(_ context.Context, st *buildState) error {
	res := st.results.Result(render.FormatHTML)
	if res == nil || res.Artifact == nil {
		return nil
	}
	warnings, err := render.VerifyHTML(res.Artifact.Payload)
	if err != nil {
		return markWarning(fmt.Errorf("verify html anchors: %w", err))
	}
	if len(warnings) == 0 {
		return nil
	}
	for _, w := range warnings {
		slog.Warn("dangling internal anchor",
			logfields.Target(st.target),
			slog.String("href", w.Href),
			slog.String("text", w.Text))
	}
	return markWarning(fmt.Errorf("%d dangling internal anchors (first: %s)", len(warnings), warnings[0].Href))
}

// stageFinalize writes the successful artifacts into the target's output
// directory.
func stageFinalize(_ context.Context, st *buildState) error {
	if st.cfg.Output.Clean {
		if err := os.RemoveAll(st.outDir); err != nil {
			return binderrors.StoreFailed("clean output directory", err)
		}
	}
	if err := os.MkdirAll(st.outDir, 0o750); err != nil {
		return binderrors.StoreFailed("create output directory", err)
	}
	for _, a := range st.results.Artifacts() {
		if err := writeArtifact(st.outDir, a); err != nil {
			return err
		}
		slog.Debug("artifact written",
			logfields.Target(st.target),
			logfields.Format(string(a.Format)),
			logfields.Path(filepath.Join(st.outDir, a.Filename)))
	}
	return nil
}

// writeArtifact lands one artifact atomically (tmp + rename).
func writeArtifact(dir string, a *render.Artifact) error {
	path := filepath.Join(dir, a.Filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, a.Payload, 0o644); err != nil {
		return binderrors.StoreFailed("write artifact "+a.Filename, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return binderrors.StoreFailed("rename artifact "+a.Filename, err)
	}
	return nil
}
