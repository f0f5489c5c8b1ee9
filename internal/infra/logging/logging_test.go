//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"telegram-channel-publisher/internal/config"
)

func TestWith_AttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := newWithWriter(config.LogConfig{Level: "info", Format: "json"}, false, &buf)

	ctx := WithTraceID(context.Background(), "01HZTRACE")
	ctx = WithOperatorID(ctx, 42)
	ctx = WithPostID(ctx, 7)
	With(ctx, base).Info().Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if entry["trace_id"] != "01HZTRACE" || entry["operator_id"] != float64(42) || entry["post_id"] != float64(7) {
		t.Errorf("unexpected fields: %v", entry)
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("short", false); got != "***" {
		t.Errorf("expected ***, got %q", got)
	}
	if got := Redact("Доброе утро, друзья", false); got != "Добр...ья" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("visible in dev", true); got != "visible in dev" {
		t.Errorf("dev must not redact, got %q", got)
	}
}

func TestNewTraceID_Unique(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	if a == b || len(a) != 26 {
		t.Errorf("expected distinct 26-char ids, got %q %q", a, b)
	}
}
