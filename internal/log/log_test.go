package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/promptexify/promptexify/internal/log"
	"github.com/promptexify/promptexify/internal/xerrors"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer) log.Logger {
	t.Helper()
	l, err := log.New(log.Options{App: "test", Level: slog.LevelDebug, JSONFormat: true, Writer: buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func lastLine(buf *bytes.Buffer) map[string]any {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	_ = json.Unmarshal([]byte(lines[len(lines)-1]), &m)
	return m
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := log.ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := log.ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel accepted an unknown level")
	}
}

func TestInfo_EmitsAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf)

	l.Info(context.Background(), "hello", "k", "v")

	rec := lastLine(&buf)
	if rec["msg"] != "hello" || rec["k"] != "v" || rec["app"] != "test" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestWith_DoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := newTestLogger(t, &buf)
	_ = parent.With("child_only", true)

	parent.Info(context.Background(), "from parent")
	rec := lastLine(&buf)
	if _, leaked := rec["child_only"]; leaked {
		t.Fatal("With leaked attrs into parent logger")
	}
}

func TestError_IncludesStackFromXerrors(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf)

	l.Error(context.Background(), xerrors.New("kaboom"), "operation failed")

	rec := lastLine(&buf)
	stack, ok := rec["stack"].(string)
	if !ok || stack == "" {
		t.Fatalf("error record missing stack: %v", rec)
	}
	if !strings.Contains(stack, "log_test.go") {
		t.Fatalf("stack does not reference the error origin: %s", stack)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := log.New(log.Options{App: "test", Level: slog.LevelWarn, JSONFormat: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug(context.Background(), "dropped")
	l.Info(context.Background(), "dropped too")
	if buf.Len() != 0 {
		t.Fatalf("below-level records emitted: %s", buf.String())
	}
}

func TestFromContext_Fallback(t *testing.T) {
	if log.FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil")
	}
	var buf bytes.Buffer
	l := newTestLogger(t, &buf)
	ctx := log.WithContext(context.Background(), l)
	log.FromContext(ctx).Info(ctx, "roundtrip")
	if !strings.Contains(buf.String(), "roundtrip") {
		t.Fatal("logger did not roundtrip through context")
	}
}
