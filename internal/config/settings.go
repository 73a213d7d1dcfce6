package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost           = "localhost"
	DefaultPort           = 1040
	DefaultConnectTimeout = 3 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultLogLevel       = "info"
)

// Environment variables that override the settings file.
const (
	EnvHost     = "TROGCTL_HOST"
	EnvPort     = "TROGCTL_PORT"
	EnvLogLevel = "TROGCTL_LOG_LEVEL"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// Settings controls how trogctl reaches the daemon.
type Settings struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	LogLevel       string
	LogFile        string // empty means the default under Paths.Logs
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() Settings {
	return Settings{
		Host:           DefaultHost,
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		RequestTimeout: DefaultRequestTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Addr returns host:port.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// fileSettings mirrors the on-disk layout. Pointers tell unset from zero.
type fileSettings struct {
	Host           *string `yaml:"host" toml:"host"`
	Port           *int    `yaml:"port" toml:"port"`
	ConnectTimeout *string `yaml:"connect_timeout" toml:"connect_timeout"`
	RequestTimeout *string `yaml:"request_timeout" toml:"request_timeout"`
	LogLevel       *string `yaml:"log_level" toml:"log_level"`
	LogFile        *string `yaml:"log_file" toml:"log_file"`
}

// LoadSettings reads path on top of the defaults. A missing file is not an
// error. The format follows the extension: .yaml, .yml or .toml.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return Settings{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	var raw fileSettings
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &raw)
	case ".toml":
		err = decodeTOML(data, &raw)
	default:
		err = fmt.Errorf("unsupported settings format %q", ext)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if err := s.apply(raw, filepath.Dir(path)); err != nil {
		return Settings{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	return s, nil
}

func decodeYAML(data []byte, out *fileSettings) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, out *fileSettings) error {
	meta, err := toml.Decode(string(data), out)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	return nil
}

func (s *Settings) apply(raw fileSettings, baseDir string) error {
	if raw.Host != nil {
		s.Host = strings.TrimSpace(*raw.Host)
	}
	if raw.Port != nil {
		s.Port = *raw.Port
	}
	if raw.ConnectTimeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.ConnectTimeout))
		if err != nil {
			return fmt.Errorf("parse connect_timeout: %w", err)
		}
		s.ConnectTimeout = d
	}
	if raw.RequestTimeout != nil {
		d, err := time.ParseDuration(strings.TrimSpace(*raw.RequestTimeout))
		if err != nil {
			return fmt.Errorf("parse request_timeout: %w", err)
		}
		s.RequestTimeout = d
	}
	if raw.LogLevel != nil {
		s.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}
	if raw.LogFile != nil {
		p, err := ResolvePath(strings.TrimSpace(*raw.LogFile), baseDir)
		if err != nil {
			return fmt.Errorf("resolve log_file: %w", err)
		}
		s.LogFile = p
	}
	return nil
}

// ApplyEnv applies environment overrides. getenv is usually os.Getenv.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvHost)); v != "" {
		s.Host = v
	}
	if v := strings.TrimSpace(getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		s.Port = port
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		s.LogLevel = strings.ToLower(v)
	}
	return nil
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	if s.Host == "" {
		return errors.New("host must not be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", s.Port)
	}
	if s.ConnectTimeout < 0 {
		return fmt.Errorf("connect_timeout must not be negative, got %s", s.ConnectTimeout)
	}
	if s.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", s.RequestTimeout)
	}
	for _, lvl := range logLevels {
		if s.LogLevel == lvl {
			return nil
		}
	}
	return fmt.Errorf("unknown log_level %q (want one of %s)", s.LogLevel, strings.Join(logLevels, ", "))
}

// ResolvePath expands a leading ~/ and resolves relative paths against
// baseDir.
func ResolvePath(path, baseDir string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand home dir: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Join(baseDir, path), nil
}
