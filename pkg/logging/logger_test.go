package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty != false {
		t.Error("Expected default pretty to be false")
	}

	if cfg.File.Path != "" {
		t.Errorf("Expected no default log file, got %q", cfg.File.Path)
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level LogLevel
		log   func(zerolog.Logger)
		want  []string
	}{
		{
			name:  "debug fetch",
			level: LevelDebug,
			log: func(l zerolog.Logger) {
				l.Debug().Str("resource", "courses").Int("page", 0).Msg("Fetch scheduled")
			},
			want: []string{`"level":"debug"`, `"resource":"courses"`, `"page":0`, "Fetch scheduled"},
		},
		{
			name:  "info run finished",
			level: LevelInfo,
			log: func(l zerolog.Logger) {
				l.Info().Str("run_id", "r1").Int("accepted", 3).Msg("Download finished")
			},
			want: []string{`"level":"info"`, `"run_id":"r1"`, `"accepted":3`},
		},
		{
			name:  "warn abandoned page",
			level: LevelWarn,
			log: func(l zerolog.Logger) {
				l.Warn().Str("resource", "parallels").Int("page", 2).Int("status", 503).Msg("Retry attempts exhausted, abandoning page")
			},
			want: []string{`"level":"warn"`, `"status":503`, `"page":2`},
		},
		{
			name:  "error malformed payload",
			level: LevelError,
			log: func(l zerolog.Logger) {
				l.Error().Str("url", "https://kos.example.com/api/3/courses").Bool("from_cache", true).Msg("Retry attempts exhausted, giving up")
			},
			want: []string{`"level":"error"`, `"from_cache":true`, "giving up"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.log(logger)

			output := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(output, w) {
					t.Errorf("Expected output to contain %q, got %q", w, output)
				}
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("downloader")
	logger.Info().Str("resource", "teachers").Msg("Download started")

	output := buf.String()
	if !strings.Contains(output, `"component":"downloader"`) {
		t.Errorf("Expected output to contain the component, got %q", output)
	}
	if !strings.Contains(output, `"resource":"teachers"`) {
		t.Errorf("Expected output to contain the resource, got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelWarn,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("downloader").With().Str("resource", "courses").Logger()

	logger.Debug().Int("page", 0).Msg("Fetch scheduled")
	logger.Info().Int("page", 0).Msg("Page accepted")
	logger.Warn().Int("page", 1).Int("status", 500).Msg("Attempt failed, retrying")
	logger.Error().Int("page", 2).Msg("Retry attempts exhausted, giving up")

	output := buf.String()

	for _, filtered := range []string{"Fetch scheduled", "Page accepted"} {
		if strings.Contains(output, filtered) {
			t.Errorf("%q should be filtered out at Warn level", filtered)
		}
	}
	for _, kept := range []string{"Attempt failed, retrying", "Retry attempts exhausted, giving up"} {
		if !strings.Contains(output, kept) {
			t.Errorf("%q should be included at Warn level", kept)
		}
	}
	if strings.Count(output, `"resource":"courses"`) != 2 {
		t.Errorf("Expected both kept lines to carry the resource, got %q", output)
	}
}

func TestSetup_LogFile(t *testing.T) {
	buf := &bytes.Buffer{}
	path := filepath.Join(t.TempDir(), "kos-fetch.log")

	logger := Setup(Config{
		Level:  LevelInfo,
		Output: buf,
		File:   FileConfig{Path: path, MaxSizeMB: 1},
	})
	logger.Info().Str("resource", "courses").Msg("download finished")

	if !strings.Contains(buf.String(), "download finished") {
		t.Errorf("Expected console output to contain message, got %q", buf.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"resource":"courses"`) {
		t.Errorf("Expected log file to contain structured field, got %q", data)
	}
}

func TestSetup_PrettyOutput(t *testing.T) {
	buf := &bytes.Buffer{}

	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	logger.Info().Msg("pretty message")

	output := buf.String()
	if !strings.Contains(output, "pretty message") {
		t.Errorf("Expected output to contain message, got %q", output)
	}
	if strings.HasPrefix(output, "{") {
		t.Errorf("Expected console format, got JSON %q", output)
	}
}
