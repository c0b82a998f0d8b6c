package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nevc-media/vidstream/common/middleware"
)

func TestNewWithWriter_Formats(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		wantJSON  bool
		wantInOut string
	}{
		{name: "json", format: "json", wantJSON: true, wantInOut: `"msg":"hello"`},
		{name: "text", format: "text", wantJSON: false, wantInOut: "msg=hello"},
		{name: "unknown falls back to json", format: "xml", wantJSON: true, wantInOut: `"msg":"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithWriter(&buf, slog.LevelInfo, tt.format)
			logger.Info("hello")

			out := buf.String()
			if !strings.Contains(out, tt.wantInOut) {
				t.Fatalf("expected %q in output, got %s", tt.wantInOut, out)
			}
			if tt.wantJSON {
				var m map[string]any
				if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
					t.Fatalf("expected JSON output: %v", err)
				}
			}
		})
	}
}

func TestContextHandler_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	logger.InfoContext(ctx, "published", AssetID(7))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry[FieldRequestID] != "req-42" {
		t.Errorf("expected request_id req-42, got %v", entry[FieldRequestID])
	}
	if entry[FieldAssetID] != float64(7) {
		t.Errorf("expected asset_id 7, got %v", entry[FieldAssetID])
	}
}

func TestContextHandler_NoRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.WarnContext(context.Background(), "no id")

	if strings.Contains(buf.String(), FieldRequestID) {
		t.Errorf("did not expect request_id, got %s", buf.String())
	}
}

func TestSetDefault_PackageCallsCarryRequestID(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(NewWithWriter(&buf, slog.LevelInfo, "json").With(Service("catalog")))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-7")
	slog.InfoContext(ctx, "asset deleted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry[FieldRequestID] != "req-7" {
		t.Errorf("expected request_id req-7, got %v", entry[FieldRequestID])
	}
	if entry["service"] != "catalog" {
		t.Errorf("expected service attribute to survive With, got %v", entry["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "json")

	logger.DebugContext(context.Background(), "debug")
	logger.InfoContext(context.Background(), "info")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %s", buf.String())
	}

	logger.ErrorContext(context.Background(), "boom")
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected error entry, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json").With(Service("catalog"))
	logger.Info("started")

	if !strings.Contains(buf.String(), `"service":"catalog"`) {
		t.Errorf("expected service attribute, got %s", buf.String())
	}
}
