package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultLoggerFieldsAndLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	root := NewDefaultLoggerWithWriters(&stdout, &stderr, false)
	child := root.WithFields(Fields{"component": "service"})

	child.Debug("hidden")
	if stdout.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", stdout.String())
	}

	root.SetLevel(DebugLevel)
	child.Debug("shown", Fields{"b": 2, "a": 1})
	line := stdout.String()
	if !strings.Contains(line, "[DEBUG] shown a=1 b=2 component=service") {
		t.Errorf("unexpected line %q", line)
	}

	child.Warn("careful")
	if !strings.Contains(stderr.String(), "[WARN] careful component=service") {
		t.Errorf("warn not routed to stderr: %q", stderr.String())
	}
}

func TestWithContextFields(t *testing.T) {
	var stdout bytes.Buffer
	l := NewDefaultLoggerWithWriters(&stdout, &stdout, false)

	ctx := ContextWithFields(context.Background(), Fields{"request_id": "abc"})
	ctx = ContextWithFields(ctx, Fields{"command": "init"})
	l.WithContext(ctx).Info("handled")

	got := stdout.String()
	if !strings.Contains(got, "command=init") || !strings.Contains(got, "request_id=abc") {
		t.Errorf("context fields missing: %q", got)
	}
}
