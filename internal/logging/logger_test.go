// Pelagos - Real-Time AIS Vessel Tracking and Map Tile Streaming
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pelagos

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitAndLevels(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "warn", Format: "json", Output: &buf, Timestamp: false})
	defer Init(DefaultConfig())

	Info().Msg("should be suppressed")
	Warn().Msg("should appear")

	out := buf.String()
	if strings.Contains(out, "should be suppressed") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"INFO", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "debug", Format: "json", Output: &buf, Timestamp: false})
	defer Init(DefaultConfig())

	Info().Str("tile", "12/2048/2048").Int("vessels", 3).Msg("tile flushed")

	out := buf.String()
	if !strings.Contains(out, `"tile":"12/2048/2048"`) {
		t.Errorf("missing tile field: %s", out)
	}
	if !strings.Contains(out, `"vessels":3`) {
		t.Errorf("missing vessels field: %s", out)
	}
}

func TestNewTestLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewTestLogger(&buf)
	logger.Info().Str("k", "v").Msg("captured line")

	if !strings.Contains(buf.String(), "captured line") {
		t.Errorf("test logger did not write: %s", buf.String())
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	sl := slog.New(NewSlogHandlerWithLogger(zl))

	sl.Info("service started", slog.String("service", "ingest"), slog.Int64("attempt", 2))

	out := buf.String()
	if !strings.Contains(out, `"service":"ingest"`) {
		t.Errorf("missing string attr: %s", out)
	}
	if !strings.Contains(out, `"attempt":2`) {
		t.Errorf("missing int64 attr: %s", out)
	}
	if !strings.Contains(out, "service started") {
		t.Errorf("missing message: %s", out)
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	sl := slog.New(NewSlogHandlerWithLogger(zl)).WithGroup("supervisor").With(slog.String("layer", "messaging"))

	sl.Warn("service restarting")

	out := buf.String()
	if !strings.Contains(out, `"supervisor.layer":"messaging"`) {
		t.Errorf("group prefix not applied: %s", out)
	}
}

func TestSlogLevelMapping(t *testing.T) {
	tests := []struct {
		slogLevel slog.Level
		want      zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := slogToZerologLevel(tt.slogLevel); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.slogLevel, got, tt.want)
		}
	}
}
