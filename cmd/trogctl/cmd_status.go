package main

import (
	"context"
	"errors"

	"github.com/d2verb/trogctl/internal/trogdord"
	"github.com/d2verb/trogctl/internal/ui"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(a *app) error {
	d, err := a.connect()
	if err != nil {
		ui.PrintStatus(ui.DaemonStatus{Addr: a.settings.Addr(), State: "closed", LogPath: a.logPath})
		var exitErr *ExitError
		if errors.As(err, &exitErr) && exitErr.Code == exitUnreachable {
			// The badge already says it.
			return &ExitError{Code: exitUnreachable}
		}
		return err
	}
	defer d.Close()

	stats, err := d.Statistics(a.ctx)
	if err != nil {
		return mapError(err, a.settings.Addr())
	}

	ui.PrintStatus(ui.DaemonStatus{
		Addr:       a.settings.Addr(),
		State:      "ready",
		Version:    stats.Version.String(),
		LibVersion: stats.LibVersion.String(),
		Players:    stats.Players,
		LogPath:    a.logPath,
	})
	if !stats.Version.AtLeast(a.minDaemon) {
		ui.PrintWarning("trogdord " + stats.Version.String() + " is older than " + a.minDaemon.String() + "; some commands may fail.")
	}
	return nil
}

type ConfigCmd struct{}

func (c *ConfigCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		cfg, err := d.Config(ctx)
		if err != nil {
			return err
		}
		ui.PrintConfig(cfg)
		return nil
	})
}
