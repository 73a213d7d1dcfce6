package trogdord

import (
	"context"
	"fmt"
	"time"

	"github.com/d2verb/trogctl/internal/protocol"
)

// Dump is the saved state of a game, kept in numbered slots.
type Dump struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Created    int64  `json:"created"`

	// LatestSlot is set when the dump came from Game.Dump.
	LatestSlot *int `json:"-"`

	t *Trogdord
}

// Slot is one saved snapshot of a game.
type Slot struct {
	Slot        int   `json:"slot"`
	TimestampMS int64 `json:"timestamp_ms"`

	Dump *Dump `json:"-"`
}

// Time returns when the slot was written.
func (s *Slot) Time() time.Time {
	return time.UnixMilli(s.TimestampMS)
}

func checkSlot(slot int) error {
	if slot < 0 {
		return fmt.Errorf("%w: slot must be >= 0, got %d", ErrInvalidArgument, slot)
	}
	return nil
}

// Slots lists the dump's slots, oldest first.
func (d *Dump) Slots(ctx context.Context) ([]*Slot, error) {
	resp, err := d.t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionDumpList, map[string]any{"id": d.ID})
	if err != nil {
		return nil, err
	}
	var slots []*Slot
	if err := field(resp, "slots", &slots); err != nil {
		return nil, err
	}
	for _, s := range slots {
		s.Dump = d
	}
	return slots, nil
}

// GetSlot fetches one slot.
func (d *Dump) GetSlot(ctx context.Context, slot int) (*Slot, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	resp, err := d.t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionDump, map[string]any{"id": d.ID, "slot": slot})
	if err != nil {
		return nil, err
	}
	s := &Slot{Slot: slot, Dump: d}
	if err := optionalField(resp, "timestamp_ms", &s.TimestampMS); err != nil {
		return nil, err
	}
	return s, nil
}

// Restore brings the game back from slot, or from the latest slot when slot
// is nil.
func (d *Dump) Restore(ctx context.Context, slot *int) (*Game, error) {
	args := map[string]any{"id": d.ID}
	if slot != nil {
		if err := checkSlot(*slot); err != nil {
			return nil, err
		}
		args["slot"] = *slot
	}
	if _, err := d.t.call(ctx, protocol.MethodPost, protocol.ScopeGame, protocol.ActionRestore, args); err != nil {
		return nil, err
	}
	return &Game{ID: d.ID, Name: d.Name, Definition: d.Definition, Created: d.Created, t: d.t}, nil
}

// Destroy deletes the dump and all its slots.
func (d *Dump) Destroy(ctx context.Context) error {
	_, err := d.t.call(ctx, protocol.MethodDelete, protocol.ScopeGame, protocol.ActionDump, map[string]any{"id": d.ID})
	return err
}

// Restore brings the game back from this slot.
func (s *Slot) Restore(ctx context.Context) (*Game, error) {
	n := s.Slot
	return s.Dump.Restore(ctx, &n)
}

// Destroy deletes this slot only.
func (s *Slot) Destroy(ctx context.Context) error {
	if err := checkSlot(s.Slot); err != nil {
		return err
	}
	_, err := s.Dump.t.call(ctx, protocol.MethodDelete, protocol.ScopeGame, protocol.ActionDump,
		map[string]any{"id": s.Dump.ID, "slot": s.Slot})
	return err
}
