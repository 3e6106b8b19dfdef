package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cause := errors.New("underlying error")

	err := New(SnapshotUnreadable, "cannot decode snapshot", cause)

	if err.Code != SnapshotUnreadable {
		t.Errorf("Code = %v, want %v", err.Code, SnapshotUnreadable)
	}
	if err.Message != "cannot decode snapshot" {
		t.Errorf("Message = %q, want %q", err.Message, "cannot decode snapshot")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		wantParts []string
	}{
		{
			name:      "with cause",
			err:       New(CacheUnavailable, "cannot open cache", errors.New("permission denied")),
			wantParts: []string{"CACHE_UNAVAILABLE", "cannot open cache", "permission denied"},
		},
		{
			name:      "with location",
			err:       Newf(MalformedStructure, "level %d under level %d", 3, 1).WithLocation("Guide > Install"),
			wantParts: []string{"MALFORMED_STRUCTURE", "level 3 under level 1", "at Guide > Install"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, part := range tt.wantParts {
				if !strings.Contains(got, part) {
					t.Errorf("Error() = %q, want to contain %q", got, part)
				}
			}
		})
	}
}

func TestHasCode(t *testing.T) {
	base := New(ConfigInvalid, "workerCount must be at least 1", nil)
	wrapped := fmt.Errorf("load: %w", base)

	if !HasCode(wrapped, ConfigInvalid) {
		t.Error("HasCode should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, SnapshotUnreadable) {
		t.Error("HasCode matched the wrong code")
	}
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Error("CodeOf should fail for uncoded errors")
	}
}

func TestErrorCode_Fatal(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want bool
	}{
		{SnapshotUnreadable, true},
		{ConfigInvalid, true},
		{MalformedStructure, false},
		{BrokenReference, false},
		{CacheUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Fatal(); got != tt.want {
				t.Errorf("Fatal() = %v, want %v", got, tt.want)
			}
		})
	}
}
