package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo {
		t.Errorf("DefaultConfig().Level = %s, want %s", cfg.Level, LevelInfo)
	}
	if cfg.Pretty {
		t.Error("DefaultConfig().Pretty = true, want false")
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
		drop  []string
	}{
		{level: LevelDebug, want: []string{"debug msg", "info msg", "warn msg", "error msg"}},
		{level: LevelInfo, want: []string{"info msg", "warn msg", "error msg"}, drop: []string{"debug msg"}},
		{level: LevelWarn, want: []string{"warn msg", "error msg"}, drop: []string{"debug msg", "info msg"}},
		{level: LevelError, want: []string{"error msg"}, drop: []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			logger.Debug().Msg("debug msg")
			logger.Info().Msg("info msg")
			logger.Warn().Msg("warn msg")
			logger.Error().Msg("error msg")

			out := buf.String()
			for _, msg := range tt.want {
				if !strings.Contains(out, msg) {
					t.Errorf("output missing %q at level %s", msg, tt.level)
				}
			}
			for _, msg := range tt.drop {
				if strings.Contains(out, msg) {
					t.Errorf("output contains %q at level %s", msg, tt.level)
				}
			}
		})
	}
}

func TestSetup_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("mirror")
	logger.Info().Int64("mod_id", 42).Msg("Stored mod")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	want := map[string]any{
		"service":   Service,
		"component": "mirror",
		"message":   "Stored mod",
		"mod_id":    float64(42),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("field %s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["time"]; !ok {
		t.Error("log line has no time field")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger := NewLogger("scheduler")
	logger.Info().Msg("Sync finished")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
	if !strings.Contains(out, "Sync finished") {
		t.Errorf("pretty output = %q, want message", out)
	}
}

func TestSetup_NilOutput(t *testing.T) {
	logger := Setup(Config{Level: LevelError})
	logger.Debug().Msg("dropped")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "", want: LevelInfo},
		{input: "DEBUG", want: LevelDebug},
		{input: " info ", want: LevelInfo},
		{input: "warning", want: LevelWarn},
		{input: "error", want: LevelError},
		{input: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogLevelZerolog(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := tt.level.Zerolog(); got != tt.want {
				t.Errorf("LogLevel(%q).Zerolog() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}
