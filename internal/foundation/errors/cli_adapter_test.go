package errors

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", NewError(CategoryValidation, "invalid input").Build(), 2},
		{"partial run", NewError(CategoryPartial, "1 module failed").Build(), 3},
		{"auth", AuthError("unauthorized").Build(), 5},
		{"config", ConfigError("bad config").Build(), 7},
		{"git", GitError("push rejected").Build(), 8},
		{"release", ReleaseError("branch mismatch").Build(), 9},
		{"discovery", DiscoveryError("no root").Build(), 11},
		{"wrapped packaging", fmt.Errorf("module a: %w", PackagingError("no sources").Build()), 11},
		{"unclassified error", &customError{msg: "unknown error"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		err      error
		contains string
	}{
		{"classified non-verbose", false, PublicationError("compose failed").Build(), "Error: compose failed"},
		{"classified verbose", true, PublicationError("compose failed").Build(), "[publication:error] compose failed"},
		{"cause shown", false, WrapError(&customError{msg: "disk full"}, CategoryFileSystem, "write jar").Build(), "write jar: disk full"},
		{"unclassified error", false, &customError{msg: "unknown error"}, "Error: unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCLIErrorAdapter(tt.verbose, nil).FormatError(tt.err)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FormatError() = %q, want to contain %q", got, tt.contains)
			}
		})
	}

	if got := NewCLIErrorAdapter(false, nil).FormatError(nil); got != "" {
		t.Errorf("FormatError(nil) = %q, want empty", got)
	}
}

type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
