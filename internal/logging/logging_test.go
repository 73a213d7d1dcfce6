package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	// Arrange
	path := "/var/log/test.log"

	// Act
	cfg := DefaultConfig(path)

	// Assert
	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.MaxSizeMB != 50 {
		t.Errorf("MaxSizeMB = %d, want 50", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("MaxBackups = %d, want 3", cfg.MaxBackups)
	}
	if cfg.MaxAgeDays != 7 {
		t.Errorf("MaxAgeDays = %d, want 7", cfg.MaxAgeDays)
	}
	if !cfg.Compress {
		t.Error("Compress = false, want true")
	}
}

func TestNewRotatingWriter(t *testing.T) {
	// Arrange
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")
	cfg := Config{
		Path:       logPath,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
		Compress:   false,
	}

	// Act
	writer := NewRotatingWriter(cfg)
	defer writer.Close()
	_, err := writer.Write([]byte("test log message\n"))

	// Assert
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	// Act
	logger.Info("test message", "key", "value")

	// Assert
	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Log output should contain 'test message': %q", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("Log output should contain 'key=value': %q", output)
	}
	if !strings.Contains(output, "level=INFO") {
		t.Errorf("Log output should contain 'level=INFO': %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLeveledLogger(t *testing.T) {
	// Arrange
	var buf bytes.Buffer
	logger := NewLeveledLogger(&buf, slog.LevelWarn)

	// Act
	logger.Info("hidden")
	logger.Warn("shown", "trace", "abc")

	// Assert
	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info record should be dropped: %q", output)
	}
	if !strings.Contains(output, "trace=abc") {
		t.Errorf("Log output should contain 'trace=abc': %q", output)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing to see")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard() logger should not be enabled")
	}
}

func TestNewFileLogger(t *testing.T) {
	// Arrange
	logPath := filepath.Join(t.TempDir(), "trogctl.log")

	// Act
	logger, closer := NewFileLogger(DefaultConfig(logPath), slog.LevelDebug)
	logger.Debug("connecting", "addr", "localhost:1040")
	closer.Close()

	// Assert
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "addr=localhost:1040") {
		t.Errorf("log file should contain the record: %q", data)
	}
}
