package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PipelineError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(KindConfig, CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("file not found"), KindConfig, CategoryConfig, SeverityFatal, "failed to load config"),
			expected: "config (fatal): failed to load config: file not found",
		},
		{
			name:     "render failure carries format kind",
			err:      Wrap(fmt.Errorf("converter exited 1"), KindRenderFailure, CategoryRender, SeverityError, "render failed"),
			expected: "render_failure (error): render failed: converter exited 1",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := test.err.Error()
			if result != test.expected {
				t.Errorf("Error() = %q, want %q", result, test.expected)
			}
		})
	}
}

func TestPipelineError_WithContext(t *testing.T) {
	err := New(KindTransientSync, CategorySync, SeverityWarning, "sync failed").
		WithContext("channel", "origin").
		WithContext("version", "1.2.0")

	if err.Context == nil {
		t.Fatal("Context should not be nil")
	}

	if err.Context["channel"] != "origin" {
		t.Errorf("Context[channel] = %v, want origin", err.Context["channel"])
	}

	if err.Context["version"] != "1.2.0" {
		t.Errorf("Context[version] = %v, want 1.2.0", err.Context["version"])
	}
}

func TestIsKind(t *testing.T) {
	missing := MissingFragment("full", "chapters/99-missing.md")
	wrapped := fmt.Errorf("resolving full: %w", missing)
	standardErr := fmt.Errorf("standard error")

	tests := []struct {
		name     string
		err      error
		kind     ErrorKind
		expected bool
	}{
		{"missing fragment matches its kind", missing, KindMissingFragment, true},
		{"missing fragment doesn't match duplicate", missing, KindDuplicateEntry, false},
		{"kind survives wrapping", wrapped, KindMissingFragment, true},
		{"standard error matches no kind", standardErr, KindMissingFragment, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsKind(test.err, test.kind)
			if result != test.expected {
				t.Errorf("IsKind() = %v, want %v", result, test.expected)
			}
		})
	}
}

func TestIsCategory(t *testing.T) {
	configErr := New(KindConfig, CategoryConfig, SeverityFatal, "config error")
	syncErr := New(KindPermanentSync, CategorySync, SeverityError, "sync error")
	standardErr := fmt.Errorf("standard error")

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		expected bool
	}{
		{"config error matches config category", configErr, CategoryConfig, true},
		{"config error doesn't match sync category", configErr, CategorySync, false},
		{"sync error matches sync category", syncErr, CategorySync, true},
		{"standard error doesn't match any category", standardErr, CategoryConfig, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsCategory(test.err, test.category)
			if result != test.expected {
				t.Errorf("IsCategory() = %v, want %v", result, test.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	transient := TransientSync("storefront", fmt.Errorf("connection refused"))
	permanent := PermanentSync("storefront", fmt.Errorf("401 unauthorized"))
	standardErr := fmt.Errorf("standard error")

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"transient sync failure is retryable", transient, true},
		{"permanent sync failure is not", permanent, false},
		{"standard error is not", standardErr, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsRetryable(test.err)
			if result != test.expected {
				t.Errorf("IsRetryable() = %v, want %v", result, test.expected)
			}
		})
	}
}

func TestConvenienceFunctions(t *testing.T) {
	t.Run("MissingFragment", func(t *testing.T) {
		err := MissingFragment("sample", "chapters/05-routing.md")
		if err.Kind != KindMissingFragment {
			t.Errorf("Kind = %v, want %v", err.Kind, KindMissingFragment)
		}
		if err.Category != CategoryValidation {
			t.Errorf("Category = %v, want %v", err.Category, CategoryValidation)
		}
		if err.Context["fragment"] != "chapters/05-routing.md" {
			t.Errorf("Context[fragment] = %v, want chapters/05-routing.md", err.Context["fragment"])
		}
	})

	t.Run("VersionRegression", func(t *testing.T) {
		err := VersionRegression("0.9.0", "1.0.0")
		if err.Kind != KindVersionRegression {
			t.Errorf("Kind = %v, want %v", err.Kind, KindVersionRegression)
		}
		if err.Retryable {
			t.Error("VersionRegression must not be retryable")
		}
		if err.Context["proposed"] != "0.9.0" || err.Context["latest"] != "1.0.0" {
			t.Errorf("Context = %v, want proposed/latest recorded", err.Context)
		}
	})

	t.Run("TransientSync", func(t *testing.T) {
		cause := fmt.Errorf("timeout")
		err := TransientSync("origin", cause)
		if err.Category != CategorySync {
			t.Errorf("Category = %v, want %v", err.Category, CategorySync)
		}
		if !err.Retryable {
			t.Error("TransientSync should be retryable")
		}
		if !stdErrors.Is(err, cause) {
			t.Errorf("Cause should match wrapped cause: %v", cause)
		}
	})

	t.Run("ConfigInvalid", func(t *testing.T) {
		err := ConfigInvalid("channels[0].type", "unsupported value")
		if err.Category != CategoryValidation && err.Category != CategoryConfig {
			t.Errorf("Category = %v, want config", err.Category)
		}
		if err.Context["field"] != "channels[0].type" {
			t.Errorf("Context[field] = %v, want channels[0].type", err.Context["field"])
		}
		if err.Context["reason"] != "unsupported value" {
			t.Errorf("Context[reason] = %v, want unsupported value", err.Context["reason"])
		}
	})
}

func TestExitCodes(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, nil)

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nil", nil, 0},
		{"duplicate entry", DuplicateEntry("full", "ch1.md", 2, 5), 2},
		{"config", ConfigNotFound("bindery.yaml"), 7},
		{"store", StoreFailed("open", fmt.Errorf("locked")), 9},
		{"render", RenderFailed("pdf", fmt.Errorf("no converter")), 11},
		{"release", VersionRegression("1.0.0", "1.0.0"), 12},
		{"sync", PermanentSync("origin", fmt.Errorf("403")), 13},
		{"plain error", fmt.Errorf("boom"), 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(test.err); got != test.code {
				t.Errorf("ExitCodeFor() = %d, want %d", got, test.code)
			}
		})
	}
}
