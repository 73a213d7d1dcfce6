package main

import (
	"context"
	"fmt"

	"github.com/d2verb/trogctl/internal/trogdord"
	"github.com/d2verb/trogctl/internal/ui"
)

type GamesCmd struct {
	Running bool   `help:"Only running games" xor:"state"`
	Stopped bool   `help:"Only stopped games" xor:"state"`
	Name    string `help:"Only games with this name"`
}

func (c *GamesCmd) filters() []trogdord.Filter {
	f := trogdord.Filter{}
	switch {
	case c.Running:
		f["is_running"] = true
	case c.Stopped:
		f["is_running"] = false
	}
	if c.Name != "" {
		f["name"] = c.Name
	}
	if len(f) == 0 {
		return nil
	}
	return []trogdord.Filter{f}
}

func (c *GamesCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		games, err := d.Games(ctx, c.filters()...)
		if err != nil {
			return err
		}
		infos := make([]ui.GameInfo, 0, len(games))
		for _, g := range games {
			infos = append(infos, gameInfo(g))
		}
		ui.PrintGameList(infos)
		return nil
	})
}

func gameInfo(g *trogdord.Game) ui.GameInfo {
	return ui.GameInfo{ID: g.ID, Name: g.Name, Definition: g.Definition, Created: g.CreatedAt()}
}

type DefinitionsCmd struct{}

func (c *DefinitionsCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		defs, err := d.Definitions(ctx)
		if err != nil {
			return err
		}
		ui.PrintDefinitions(defs)
		return nil
	})
}

type GameCmd struct {
	New     GameNewCmd     `cmd:"" help:"Create a game from a definition"`
	Show    GameShowCmd    `cmd:"" help:"Show a game"`
	Start   GameStartCmd   `cmd:"" help:"Start a game"`
	Stop    GameStopCmd    `cmd:"" help:"Stop a game"`
	Time    GameTimeCmd    `cmd:"" help:"Show a game's current time"`
	Meta    GameMetaCmd    `cmd:"" help:"Show game metadata"`
	SetMeta GameSetMetaCmd `cmd:"" name:"set-meta" help:"Set game metadata"`
	Dump    GameDumpCmd    `cmd:"" help:"Dump a game to a new slot"`
	Destroy GameDestroyCmd `cmd:"" help:"Destroy a game"`
}

type GameNewCmd struct {
	Name       string   `arg:"" help:"Game name"`
	Definition string   `arg:"" help:"Definition file" predictor:"definition"`
	Meta       []string `help:"Metadata as key=value" placeholder:"KEY=VALUE"`
}

func (c *GameNewCmd) Run(a *app) error {
	meta, err := parsePairs(c.Meta)
	if err != nil {
		return err
	}
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		g, err := d.NewGame(ctx, c.Name, c.Definition, meta)
		if err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Created game #%d %s", g.ID, g.Name))
		return nil
	})
}

type GameShowCmd struct {
	ID int `arg:"" help:"Game id" predictor:"game-id"`
}

func (c *GameShowCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		g, err := d.GetGame(ctx, c.ID)
		if err != nil {
			return err
		}
		stats, err := g.Statistics(ctx)
		if err != nil {
			return err
		}
		meta, err := g.Meta(ctx)
		if err != nil {
			return err
		}
		ui.PrintGameDetails(ui.GameDetails{
			GameInfo:    gameInfo(g),
			Running:     stats.IsRunning,
			CurrentTime: stats.CurrentTime,
			Players:     stats.Players,
			Meta:        meta,
		})
		return nil
	})
}

type GameStartCmd struct {
	ID int `arg:"" help:"Game id" predictor:"game-id"`
}

func (c *GameStartCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		if err := d.Game(c.ID).Start(ctx); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Game #%d started", c.ID))
		return nil
	})
}

type GameStopCmd struct {
	ID int `arg:"" help:"Game id" predictor:"game-id"`
}

func (c *GameStopCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		if err := d.Game(c.ID).Stop(ctx); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Game #%d stopped", c.ID))
		return nil
	})
}

type GameTimeCmd struct {
	ID int `arg:"" help:"Game id" predictor:"game-id"`
}

func (c *GameTimeCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		now, err := d.Game(c.ID).Time(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Output, now)
		return nil
	})
}

type GameMetaCmd struct {
	ID   int      `arg:"" help:"Game id" predictor:"game-id"`
	Keys []string `arg:"" optional:"" help:"Keys to show (default: all)"`
}

func (c *GameMetaCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		meta, err := d.Game(c.ID).Meta(ctx, c.Keys...)
		if err != nil {
			return err
		}
		ui.PrintMeta(meta)
		return nil
	})
}

type GameSetMetaCmd struct {
	ID    int      `arg:"" help:"Game id" predictor:"game-id"`
	Pairs []string `arg:"" help:"Metadata as key=value"`
}

func (c *GameSetMetaCmd) Run(a *app) error {
	meta, err := parsePairs(c.Pairs)
	if err != nil {
		return err
	}
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		if err := d.Game(c.ID).SetMeta(ctx, meta); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Updated %d key(s) on game #%d", len(meta), c.ID))
		return nil
	})
}

type GameDumpCmd struct {
	ID int `arg:"" help:"Game id" predictor:"game-id"`
}

func (c *GameDumpCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		dump, err := d.Game(c.ID).Dump(ctx)
		if err != nil {
			return err
		}
		if dump.LatestSlot != nil {
			ui.PrintSuccess(fmt.Sprintf("Dumped game #%d to slot %d", c.ID, *dump.LatestSlot))
		} else {
			ui.PrintSuccess(fmt.Sprintf("Dumped game #%d", c.ID))
		}
		return nil
	})
}

type GameDestroyCmd struct {
	ID       int  `arg:"" help:"Game id" predictor:"game-id"`
	KeepDump bool `help:"Keep the game's dumps"`
}

func (c *GameDestroyCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		if err := d.Game(c.ID).Destroy(ctx, !c.KeepDump); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Game #%d destroyed", c.ID))
		return nil
	})
}
