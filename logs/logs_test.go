package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, slog.LevelInfo, "json")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := WithRequestID(context.Background(), "req-1")
	logger.With("svc", "introd").InfoContext(ctx, "hello", "n", 1)
	logger.DebugContext(ctx, "hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("json: %v", err)
	}
	if rec["msg"] != "hello" || rec["request_id"] != "req-1" || rec["svc"] != "introd" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewFansOut(t *testing.T) {
	var a, b bytes.Buffer
	logger, err := New(&a, slog.LevelDebug, "text", slog.NewTextHandler(&b, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("both")
	if !strings.Contains(a.String(), "both") || !strings.Contains(b.String(), "both") {
		t.Fatalf("fanout missed a sink: %q / %q", a.String(), b.String())
	}
}

func TestNewRejectsFormat(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, slog.LevelInfo, "xml"); err == nil {
		t.Fatalf("expected error")
	}
}
