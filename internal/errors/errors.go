// Package errors provides a lightweight structured error type (PipelineError)
// for kind/category-based classification and retry semantics across the
// build, release, and sync stages and the CLI.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorKind identifies the precise failure condition of a pipeline operation.
type ErrorKind string

const (
	// Resolution and assembly failures. Fatal to the affected target,
	// recoverable by fixing the manifest.
	KindMissingFragment      ErrorKind = "missing_fragment"
	KindDuplicateEntry       ErrorKind = "duplicate_entry"
	KindEmptyManifest        ErrorKind = "empty_manifest"
	KindSubsequenceViolation ErrorKind = "subsequence_violation"

	// Render failures are isolated per format and never abort siblings.
	KindRenderFailure ErrorKind = "render_failure"

	// Release ledger failures.
	KindVersionRegression ErrorKind = "version_regression"
	KindReleaseNotFound   ErrorKind = "release_not_found"
	KindAlreadyPublished  ErrorKind = "already_published"

	// Channel sync failures. Transient ones may be retried by the caller;
	// permanent ones require operator action.
	KindTransientSync ErrorKind = "transient_sync_failure"
	KindPermanentSync ErrorKind = "permanent_sync_failure"

	KindConfig   ErrorKind = "config"
	KindStore    ErrorKind = "store"
	KindInternal ErrorKind = "internal"
)

// ErrorCategory groups kinds for exit-code mapping and presentation.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"

	// External system integration errors
	CategoryNetwork ErrorCategory = "network"
	CategoryGit     ErrorCategory = "git"

	// Build and processing errors
	CategoryBuild      ErrorCategory = "build"
	CategoryRender     ErrorCategory = "render"
	CategoryFileSystem ErrorCategory = "filesystem"

	// Ledger and sync errors
	CategoryStore   ErrorCategory = "store"
	CategoryRelease ErrorCategory = "release"
	CategorySync    ErrorCategory = "sync"

	// Runtime and infrastructure errors
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// PipelineError is a structured error with kind, category, retryability, and context
type PipelineError struct {
	Kind      ErrorKind     `json:"kind"`
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PipelineError
type ContextFields map[string]any

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PipelineError
func New(kind ErrorKind, category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Kind:      kind,
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new PipelineError that wraps an existing error
func Wrap(err error, kind ErrorKind, category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	return &PipelineError{
		Kind:      kind,
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// WrapRetryable creates a new retryable PipelineError that wraps an existing error
func WrapRetryable(err error, kind ErrorKind, category ErrorCategory, severity ErrorSeverity, message string) *PipelineError {
	e := Wrap(err, kind, category, severity, message)
	e.Retryable = true
	return e
}

// As extracts a *PipelineError from anywhere in the error chain.
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsKind checks if an error has a specific kind.
func IsKind(err error, kind ErrorKind) bool {
	if pe, ok := As(err); ok {
		return pe.Kind == kind
	}
	return false
}

// KindOf extracts the kind from an error, or KindInternal if unclassified.
func KindOf(err error) ErrorKind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return KindInternal
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if pe, ok := As(err); ok {
		return pe.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if pe, ok := As(err); ok {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if unclassified
func GetCategory(err error) ErrorCategory {
	if pe, ok := As(err); ok {
		return pe.Category
	}
	return CategoryInternal
}
