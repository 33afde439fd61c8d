package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	cause := stderrors.New("open failed")
	err := New(IOFailure, "Cannot read source file", cause).WithPath("src/users.controller.ts")

	msg := err.Error()
	if !strings.Contains(msg, "IO_FAILURE") {
		t.Errorf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "src/users.controller.ts") {
		t.Errorf("expected path in message, got %q", msg)
	}
	if !strings.Contains(msg, "open failed") {
		t.Errorf("expected cause in message, got %q", msg)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(InternalError, "Unexpected failure", cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestSuggestedFixes(t *testing.T) {
	err := New(CacheCorrupt, "Snapshot unreadable", nil)
	if len(err.SuggestedFixes) == 0 {
		t.Fatal("expected suggested fixes for CACHE_CORRUPT")
	}
	if err.SuggestedFixes[0].Command != "oag invalidate" {
		t.Errorf("unexpected fix command %q", err.SuggestedFixes[0].Command)
	}

	if fixes := GetSuggestedFixes(InternalError); fixes != nil {
		t.Errorf("expected no fixes for INTERNAL_ERROR, got %v", fixes)
	}
}

func TestErrorWithoutCause(t *testing.T) {
	err := New(CacheVersionMismatch, "Snapshot version 2, expected 3", nil)
	msg := err.Error()
	if !strings.Contains(msg, "CACHE_VERSION_MISMATCH") {
		t.Errorf("expected code in message, got %q", msg)
	}
	if strings.Contains(msg, "<nil>") {
		t.Errorf("nil cause should not be rendered, got %q", msg)
	}
}
