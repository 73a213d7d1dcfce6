package main

import (
	"context"
	"fmt"
	"time"

	"github.com/d2verb/trogctl/internal/trogdord"
	"github.com/d2verb/trogctl/internal/ui"
)

type EntitiesCmd struct {
	GameID int    `arg:"" name:"game" help:"Game id" predictor:"game-id"`
	Kind   string `short:"k" default:"entity" help:"Only entities of this kind" predictor:"entity-kind"`
}

func (c *EntitiesCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		entities, err := d.Game(c.GameID).ListEntities(ctx, trogdord.Kind(c.Kind))
		if err != nil {
			return err
		}
		infos := make([]ui.EntityInfo, 0, len(entities))
		for _, e := range entities {
			infos = append(infos, ui.EntityInfo{Name: e.Name, Type: string(e.Type)})
		}
		ui.PrintEntityList(infos)
		return nil
	})
}

type EntityCmd struct {
	Show   EntityShowCmd   `cmd:"" help:"Show an entity's type"`
	Output EntityOutputCmd `cmd:"" help:"Read an entity's output channel"`
	Say    EntitySayCmd    `cmd:"" help:"Append a message to an entity's output channel"`
}

// EntityRef names an entity inside a game.
type EntityRef struct {
	GameID int    `arg:"" name:"game" help:"Game id" predictor:"game-id"`
	Name   string `arg:"" help:"Entity name"`
	Kind   string `short:"k" default:"entity" help:"Expected kind" predictor:"entity-kind"`
}

func (r EntityRef) get(ctx context.Context, d *trogdord.Trogdord) (*trogdord.Entity, error) {
	return d.Game(r.GameID).GetEntityOfType(ctx, trogdord.Kind(r.Kind), r.Name)
}

func (r EntityRef) outputable(ctx context.Context, d *trogdord.Trogdord) (trogdord.Outputable, error) {
	e, err := r.get(ctx, d)
	if err != nil {
		return nil, err
	}
	out, ok := trogdord.AsOutputable(e)
	if !ok {
		return nil, fmt.Errorf("%s has no output channels", e)
	}
	return out, nil
}

type EntityShowCmd struct {
	EntityRef `embed:""`
}

func (c *EntityShowCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		e, err := c.get(ctx, d)
		if err != nil {
			return err
		}
		ui.PrintEntityList([]ui.EntityInfo{{Name: e.Name, Type: string(e.Type)}})
		return nil
	})
}

type EntityOutputCmd struct {
	EntityRef `embed:""`
	Channel   string `short:"c" default:"display" help:"Output channel"`
}

func (c *EntityOutputCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		out, err := c.outputable(ctx, d)
		if err != nil {
			return err
		}
		msgs, err := out.Output(ctx, c.Channel)
		if err != nil {
			return err
		}
		infos := make([]ui.MessageInfo, 0, len(msgs))
		for _, m := range msgs {
			infos = append(infos, ui.MessageInfo{Timestamp: time.Unix(m.Timestamp, 0), Content: m.Content})
		}
		ui.PrintMessages(infos)
		return nil
	})
}

type EntitySayCmd struct {
	EntityRef `embed:""`
	Message   string `arg:"" help:"Message to append"`
	Channel   string `short:"c" default:"display" help:"Output channel"`
}

func (c *EntitySayCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		out, err := c.outputable(ctx, d)
		if err != nil {
			return err
		}
		return out.SendOutput(ctx, c.Channel, c.Message)
	})
}

type PlayerCmd struct {
	New    PlayerNewCmd    `cmd:"" help:"Add a player to a game"`
	Input  PlayerInputCmd  `cmd:"" help:"Send a command as a player"`
	Remove PlayerRemoveCmd `cmd:"" help:"Remove a player from a game"`
}

// PlayerRef names a player inside a game.
type PlayerRef struct {
	GameID int    `arg:"" name:"game" help:"Game id" predictor:"game-id"`
	Name   string `arg:"" help:"Player name"`
}

func (r PlayerRef) entity(d *trogdord.Trogdord) *trogdord.Entity {
	return &trogdord.Entity{Game: d.Game(r.GameID), Name: r.Name, Type: trogdord.KindPlayer}
}

type PlayerNewCmd struct {
	PlayerRef `embed:""`
}

func (c *PlayerNewCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		p, err := d.Game(c.GameID).CreatePlayer(ctx, c.Name)
		if err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Player %s joined game #%d", p.Name, c.GameID))
		return nil
	})
}

type PlayerInputCmd struct {
	PlayerRef `embed:""`
	Command   string `arg:"" help:"Command to send, e.g. \"look\""`
}

func (c *PlayerInputCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		in, _ := trogdord.AsInputable(c.entity(d))
		return in.Input(ctx, c.Command)
	})
}

type PlayerRemoveCmd struct {
	PlayerRef `embed:""`
	Message   string `short:"m" help:"Message shown to the player before removal"`
}

func (c *PlayerRemoveCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		p, _ := trogdord.AsDestroyable(c.entity(d))
		if err := p.Destroy(ctx, c.Message); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Player %s removed from game #%d", c.Name, c.GameID))
		return nil
	})
}
