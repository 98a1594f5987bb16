package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCodeOfThroughWrapping(t *testing.T) {
	base := NewComposeFailedError("job-1", "/tmp/out.pdf", errors.New("disk full"))
	wrapped := fmt.Errorf("process: %w", base)

	code, ok := CodeOf(wrapped)
	if !ok || code != ErrorComposeFailed {
		t.Fatalf("CodeOf() = %q, %v", code, ok)
	}
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatal("plain error reported a code")
	}
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewSourceReadError("j", "in.pdf", nil), true},
		{NewOCRFailedError("j", 0, nil), true},
		{NewUnsupportedFormatError("j", "in.doc", nil), true},
		{NewComposeFailedError("j", "out.pdf", nil), true},
		{NewInvalidPayloadError("labelcompose:process", nil), true},
		{NewStorageFailedError("j", nil), false},
		{NewCatalogFailedError("j", "redis", nil), false},
		{NewProcessingTimeoutError("j", time.Minute, context.DeadlineExceeded), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		if got := IsTerminal(tt.err); got != tt.want {
			t.Errorf("IsTerminal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestToMap(t *testing.T) {
	err := NewOCRFailedError("job-9", 2, errors.New("tesseract missing"))
	m := err.ToMap()
	if m["error_code"] != "OCR_FAILED" || m["page"] != 3 || m["cause"] != "tesseract missing" {
		t.Fatalf("ToMap() = %v", m)
	}
	if !errors.Is(err, err.Cause) {
		t.Fatal("Unwrap does not expose the cause")
	}
}
