package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/d2verb/trogctl/internal/client"
	"github.com/d2verb/trogctl/internal/config"
	"github.com/d2verb/trogctl/internal/logging"
	"github.com/d2verb/trogctl/internal/trogdord"
)

// app is what every command runs against: resolved settings, a logger and
// a way to reach the daemon.
type app struct {
	ctx       context.Context
	settings  config.Settings
	minDaemon trogdord.Version
	logPath   string
	log       *slog.Logger
	closers   []io.Closer
}

func getPaths() (*config.Paths, error) {
	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("get paths: %w", err)
	}
	return paths, nil
}

// loadSettings layers the settings file, the environment and g, in that
// order. An empty g.ConfigFile means the default file under ~/.trogctl.
func loadSettings(g Globals, getenv func(string) string) (config.Settings, error) {
	path := g.ConfigFile
	if path == "" {
		paths, err := getPaths()
		if err != nil {
			return config.Settings{}, err
		}
		path = paths.SettingsFile()
	}

	s, err := config.LoadSettings(path)
	if err != nil {
		return config.Settings{}, err
	}
	if err := s.ApplyEnv(getenv); err != nil {
		return config.Settings{}, err
	}

	if g.Host != "" {
		s.Host = g.Host
	}
	if g.Port != 0 {
		s.Port = g.Port
	}
	if g.Timeout != "" {
		d, err := time.ParseDuration(g.Timeout)
		if err != nil {
			return config.Settings{}, fmt.Errorf("invalid --timeout: %w", err)
		}
		s.RequestTimeout = d
	}
	if g.LogLevel != "" {
		s.LogLevel = strings.ToLower(g.LogLevel)
	}

	if err := s.Validate(); err != nil {
		return config.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// minDaemonVersion parses --min-daemon, falling back to
// trogdord.MinDaemonVersion.
func minDaemonVersion(g Globals) (trogdord.Version, error) {
	if g.MinDaemon == "" {
		return trogdord.MinDaemonVersion, nil
	}
	v, err := trogdord.ParseVersion(g.MinDaemon)
	if err != nil {
		return trogdord.Version{}, fmt.Errorf("invalid --min-daemon: %w", err)
	}
	return v, nil
}

func newApp(ctx context.Context, g Globals) (*app, error) {
	s, err := loadSettings(g, os.Getenv)
	if err != nil {
		return nil, err
	}
	minDaemon, err := minDaemonVersion(g)
	if err != nil {
		return nil, err
	}
	a := &app{ctx: ctx, settings: s, minDaemon: minDaemon, log: logging.Discard()}

	logPath := s.LogFile
	if logPath == "" {
		paths, err := getPaths()
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("create directories: %w", err)
		}
		logPath = paths.ClientLog
	}
	level, err := logging.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, closer := logging.NewFileLogger(logging.DefaultConfig(logPath), level)
	a.log = logger.With("component", "trogctl")
	a.logPath = logPath
	a.closers = append(a.closers, closer)
	return a, nil
}

// Close releases the log file.
func (a *app) Close() error {
	for _, c := range a.closers {
		c.Close()
	}
	a.closers = nil
	return nil
}

func (a *app) options() client.Options {
	return client.Options{
		ConnectTimeout: a.settings.ConnectTimeout,
		RequestTimeout: a.settings.RequestTimeout,
		Logger:         a.log,
	}
}

// connect dials the daemon and waits for its handshake. Requests on the
// result use the configured timeout, where zero means no timeout.
func (a *app) connect() (*trogdord.Trogdord, error) {
	d, err := trogdord.Connect(a.ctx, a.settings.Host, a.settings.Port, a.options())
	if err != nil {
		return nil, mapError(err, a.settings.Addr())
	}
	return d.WithTimeout(a.settings.RequestTimeout), nil
}

// with runs fn on a fresh connection and maps whatever it returns.
func (a *app) with(fn func(ctx context.Context, d *trogdord.Trogdord) error) error {
	d, err := a.connect()
	if err != nil {
		return err
	}
	defer d.Close()
	return mapError(fn(a.ctx, d), a.settings.Addr())
}

// parsePairs turns key=value arguments into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q (want key=value)", p)
		}
		m[k] = v
	}
	return m, nil
}
