package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerWritesFieldsAndSource(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}

	Named("engine").Info(context.Background(), "resync done", String("namespace", "lb"), Int("users", 3))

	out := buf.String()
	for _, want := range []string{"resync done", "namespace=lb", "users=3", "component=engine", "source=", "logger_test.go"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf), WithJSON(true)); err != nil {
		t.Fatalf("init: %v", err)
	}

	Get().Error(context.Background(), "store failed", Error(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if rec["error"] != "boom" {
		t.Errorf("error field = %v, want boom", rec["error"])
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithWriter(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}

	ctx := context.Background()
	Get().Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug logged at info level: %q", buf.String())
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("debug not logged after SetLevelString: %q", buf.String())
	}

	if err := SetLevelString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	SetLevel(slog.LevelInfo)
}

func TestWithAndNop(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelInfo).With(String("run_id", "abc"))
	l.Warn(context.Background(), "throttled")
	if !strings.Contains(buf.String(), "run_id=abc") {
		t.Errorf("With fields missing: %q", buf.String())
	}

	Nop().Error(context.Background(), "ignored")
}
