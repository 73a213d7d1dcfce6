package main

import (
	"context"
	"fmt"

	"github.com/d2verb/trogctl/internal/trogdord"
	"github.com/d2verb/trogctl/internal/ui"
)

type DumpsCmd struct{}

func (c *DumpsCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		dumps, err := d.Dumped(ctx)
		if err != nil {
			return err
		}
		infos := make([]ui.DumpInfo, 0, len(dumps))
		for _, dump := range dumps {
			infos = append(infos, ui.DumpInfo{ID: dump.ID, Name: dump.Name, Definition: dump.Definition})
		}
		ui.PrintDumpList(infos)
		return nil
	})
}

type DumpCmd struct {
	Slots   DumpSlotsCmd   `cmd:"" help:"List a dump's slots"`
	Restore DumpRestoreCmd `cmd:"" help:"Restore a game from its dump"`
	Destroy DumpDestroyCmd `cmd:"" help:"Delete a dump or one of its slots"`
}

type DumpSlotsCmd struct {
	ID int `arg:"" help:"Game id" predictor:"game-id"`
}

func (c *DumpSlotsCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		slots, err := d.DumpOf(c.ID).Slots(ctx)
		if err != nil {
			return err
		}
		infos := make([]ui.SlotInfo, 0, len(slots))
		for _, s := range slots {
			infos = append(infos, ui.SlotInfo{Slot: s.Slot, Written: s.Time()})
		}
		ui.PrintSlotList(infos)
		return nil
	})
}

type DumpRestoreCmd struct {
	ID   int  `arg:"" help:"Game id" predictor:"game-id"`
	Slot int `default:"-1" help:"Slot to restore; negative means the latest"`
}

func (c *DumpRestoreCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		var slot *int
		if c.Slot >= 0 {
			slot = &c.Slot
		}
		g, err := d.DumpOf(c.ID).Restore(ctx, slot)
		if err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Restored game #%d", g.ID))
		return nil
	})
}

type DumpDestroyCmd struct {
	ID   int  `arg:"" help:"Game id" predictor:"game-id"`
	Slot int `default:"-1" help:"Only delete this slot; negative deletes the whole dump"`
}

func (c *DumpDestroyCmd) Run(a *app) error {
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		dump := d.DumpOf(c.ID)
		if c.Slot < 0 {
			if err := dump.Destroy(ctx); err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("Deleted dump of game #%d", c.ID))
			return nil
		}
		slot, err := dump.GetSlot(ctx, c.Slot)
		if err != nil {
			return err
		}
		if err := slot.Destroy(ctx); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Deleted slot %d of game #%d", c.Slot, c.ID))
		return nil
	})
}
