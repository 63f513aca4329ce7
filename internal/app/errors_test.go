package app

import (
	"errors"
	"strings"
	"testing"
)

func TestComponentError_Error(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name string
		err  *ComponentError
		want string
	}{
		{"full", NewComponentError("docfile", "reload", base), "docfile: reload: boom"},
		{"no action", NewComponentError("canvas", "", base), "canvas: boom"},
		{"no error", NewComponentError("watcher", "start", nil), "watcher: start"},
		{"component only", NewComponentError("renderer", "", nil), "renderer"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComponentError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := error(NewComponentError("docfile", "reload", base))
	if !errors.Is(err, base) {
		t.Error("expected errors.Is to find the wrapped error")
	}
	var nilErr *ComponentError
	if nilErr.Unwrap() != nil {
		t.Error("nil ComponentError should unwrap to nil")
	}
}

func TestInitError(t *testing.T) {
	base := errors.New("no tty")
	err := error(&InitError{Component: "backend", Err: base})
	if err.Error() != "init backend: no tty" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("expected InitError to unwrap")
	}
}

func TestRecoveredPanicError(t *testing.T) {
	err := &RecoveredPanicError{Value: "bad", Stack: "main.go:1"}
	if !strings.HasPrefix(err.Error(), "panic: bad\n") || !strings.Contains(err.Error(), "main.go:1") {
		t.Errorf("Error() = %q", err.Error())
	}
	if (&RecoveredPanicError{Value: 7}).Error() != "panic: 7" {
		t.Error("expected stackless form")
	}
	var nilErr *RecoveredPanicError
	if nilErr.Error() != "" {
		t.Error("nil error should print empty")
	}
}
