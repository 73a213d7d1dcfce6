package main

import (
	"fmt"

	"github.com/d2verb/trogctl/internal/ui"
)

type VersionCmd struct {
	Daemon bool `help:"Also ask the daemon for its version"`
}

func (c *VersionCmd) Run(a *app) error {
	fmt.Fprintf(ui.Output, "trogctl version %s (%s)\n", version, commit)
	if !c.Daemon {
		return nil
	}

	d, err := a.connect()
	if err != nil {
		return err
	}
	defer d.Close()

	stats, err := d.Statistics(a.ctx)
	if err != nil {
		return mapError(err, a.settings.Addr())
	}
	fmt.Fprintf(ui.Output, "trogdord version %s (core %s)\n", stats.Version, stats.LibVersion)
	if !stats.Version.AtLeast(a.minDaemon) {
		ui.PrintWarning(fmt.Sprintf("trogdord %s is older than %s", stats.Version, a.minDaemon))
	}
	return nil
}
