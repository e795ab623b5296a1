package errors

import "fmt"

// Convenience constructors for the pipeline's failure conditions.

// Resolution and assembly

func MissingFragment(target, id string) *PipelineError {
	return New(KindMissingFragment, CategoryValidation, SeverityFatal, fmt.Sprintf("manifest references unknown fragment %q", id)).
		WithContext("target", target).
		WithContext("fragment", id)
}

func DuplicateEntry(target, id string, firstLine, dupLine int) *PipelineError {
	return New(KindDuplicateEntry, CategoryValidation, SeverityFatal, fmt.Sprintf("manifest lists fragment %q more than once", id)).
		WithContext("target", target).
		WithContext("fragment", id).
		WithContext("first_line", firstLine).
		WithContext("duplicate_line", dupLine)
}

func EmptyManifest(target string) *PipelineError {
	return New(KindEmptyManifest, CategoryValidation, SeverityFatal, "manifest resolves to zero fragments").
		WithContext("target", target)
}

func SubsequenceViolation(target, reason string) *PipelineError {
	return New(KindSubsequenceViolation, CategoryValidation, SeverityFatal, "manifest is not a subsequence of the full manifest").
		WithContext("target", target).
		WithContext("reason", reason)
}

// Rendering

func RenderFailed(format string, cause error) *PipelineError {
	return Wrap(cause, KindRenderFailure, CategoryRender, SeverityError, "render failed").
		WithContext("format", format)
}

// Release ledger

func VersionRegression(proposed, latest string) *PipelineError {
	return New(KindVersionRegression, CategoryRelease, SeverityFatal, fmt.Sprintf("version %s is not greater than latest release %s", proposed, latest)).
		WithContext("proposed", proposed).
		WithContext("latest", latest)
}

func ReleaseNotFound(version string) *PipelineError {
	return New(KindReleaseNotFound, CategoryRelease, SeverityError, fmt.Sprintf("no release with version %s", version)).
		WithContext("version", version)
}

func AlreadyPublished(version string) *PipelineError {
	return New(KindAlreadyPublished, CategoryRelease, SeverityError, fmt.Sprintf("release %s is already published", version)).
		WithContext("version", version)
}

// Channel sync

func TransientSync(channel string, cause error) *PipelineError {
	return WrapRetryable(cause, KindTransientSync, CategorySync, SeverityWarning, "sync failed transiently").
		WithContext("channel", channel)
}

func PermanentSync(channel string, cause error) *PipelineError {
	return Wrap(cause, KindPermanentSync, CategorySync, SeverityError, "sync failed permanently").
		WithContext("channel", channel)
}

// Configuration

func ConfigNotFound(path string) *PipelineError {
	return New(KindConfig, CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(field, reason string) *PipelineError {
	return New(KindConfig, CategoryConfig, SeverityFatal, "invalid configuration").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Storage and internals

func StoreFailed(operation string, cause error) *PipelineError {
	return Wrap(cause, KindStore, CategoryStore, SeverityFatal, "store operation failed").
		WithContext("operation", operation)
}

func InternalError(message string, cause error) *PipelineError {
	return Wrap(cause, KindInternal, CategoryInternal, SeverityFatal, message)
}
