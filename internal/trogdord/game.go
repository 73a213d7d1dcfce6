package trogdord

import (
	"context"
	"fmt"
	"time"

	"github.com/d2verb/trogctl/internal/protocol"
)

// Game is a game hosted by the daemon.
type Game struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Created    int64  `json:"created"` // unix seconds

	t *Trogdord
}

// CreatedAt returns the creation time, or the zero time if unknown.
func (g *Game) CreatedAt() time.Time {
	if g.Created == 0 {
		return time.Time{}
	}
	return time.Unix(g.Created, 0)
}

func (g *Game) idArgs() map[string]any {
	return map[string]any{"id": g.ID}
}

func (g *Game) entityArgs(extra map[string]any) map[string]any {
	args := map[string]any{"game_id": g.ID}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

// GameStatistics is the per-game statistics payload.
type GameStatistics struct {
	Created     int64 `json:"created"`
	Players     int   `json:"players"`
	CurrentTime int   `json:"current_time"`
	IsRunning   bool  `json:"is_running"`
}

// Statistics returns per-game statistics.
func (g *Game) Statistics(ctx context.Context) (*GameStatistics, error) {
	resp, err := g.t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionStatistics, g.idArgs())
	if err != nil {
		return nil, err
	}
	var stats GameStatistics
	if err := resp.Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode game statistics: %w", err)
	}
	return &stats, nil
}

// IsRunning reports whether the game clock is running.
func (g *Game) IsRunning(ctx context.Context) (bool, error) {
	resp, err := g.t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionIsRunning, g.idArgs())
	if err != nil {
		return false, err
	}
	var running bool
	if err := field(resp, "is_running", &running); err != nil {
		return false, err
	}
	return running, nil
}

// Start starts the game clock.
func (g *Game) Start(ctx context.Context) error {
	_, err := g.t.call(ctx, protocol.MethodSet, protocol.ScopeGame, protocol.ActionStart, g.idArgs())
	return err
}

// Stop stops the game clock.
func (g *Game) Stop(ctx context.Context) error {
	_, err := g.t.call(ctx, protocol.MethodSet, protocol.ScopeGame, protocol.ActionStop, g.idArgs())
	return err
}

// Time returns the current game time in ticks.
func (g *Game) Time(ctx context.Context) (int, error) {
	resp, err := g.t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionTime, g.idArgs())
	if err != nil {
		return 0, err
	}
	var now int
	if err := field(resp, "current_time", &now); err != nil {
		return 0, err
	}
	return now, nil
}

// Meta returns game metadata. With no keys, all metadata is returned.
func (g *Game) Meta(ctx context.Context, keys ...string) (map[string]string, error) {
	args := g.idArgs()
	if len(keys) > 0 {
		args["meta"] = keys
	}
	resp, err := g.t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionMeta, args)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{}
	if err := field(resp, "meta", &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// SetMeta writes metadata entries.
func (g *Game) SetMeta(ctx context.Context, meta map[string]string) error {
	if len(meta) == 0 {
		return fmt.Errorf("%w: no metadata given", ErrInvalidArgument)
	}
	args := g.idArgs()
	args["meta"] = meta
	_, err := g.t.call(ctx, protocol.MethodSet, protocol.ScopeGame, protocol.ActionMeta, args)
	return err
}

// Dump writes a new dump slot for the game and returns the game's dump.
func (g *Game) Dump(ctx context.Context) (*Dump, error) {
	resp, err := g.t.call(ctx, protocol.MethodPost, protocol.ScopeGame, protocol.ActionDump, g.idArgs())
	if err != nil {
		return nil, err
	}
	d := &Dump{ID: g.ID, Name: g.Name, Definition: g.Definition, Created: g.Created, t: g.t}
	if err := optionalField(resp, "slot", &d.LatestSlot); err != nil {
		return nil, err
	}
	return d, nil
}

// Destroy removes the game. With deleteDump, its dumps go too.
func (g *Game) Destroy(ctx context.Context, deleteDump bool) error {
	args := g.idArgs()
	args["delete_dump"] = deleteDump
	_, err := g.t.call(ctx, protocol.MethodDelete, protocol.ScopeGame, "", args)
	return err
}

// Entities lists every entity in the game.
func (g *Game) Entities(ctx context.Context) ([]*Entity, error) {
	return g.list(ctx, KindEntity)
}

func (g *Game) Tangibles(ctx context.Context) ([]*Entity, error) { return g.list(ctx, KindTangible) }
func (g *Game) Places(ctx context.Context) ([]*Entity, error)    { return g.list(ctx, KindPlace) }
func (g *Game) Rooms(ctx context.Context) ([]*Entity, error)     { return g.list(ctx, KindRoom) }
func (g *Game) Things(ctx context.Context) ([]*Entity, error)    { return g.list(ctx, KindThing) }
func (g *Game) Objects(ctx context.Context) ([]*Entity, error)   { return g.list(ctx, KindObject) }
func (g *Game) Beings(ctx context.Context) ([]*Entity, error)    { return g.list(ctx, KindBeing) }
func (g *Game) Creatures(ctx context.Context) ([]*Entity, error) { return g.list(ctx, KindCreature) }
func (g *Game) Players(ctx context.Context) ([]*Entity, error)   { return g.list(ctx, KindPlayer) }
func (g *Game) Resources(ctx context.Context) ([]*Entity, error) { return g.list(ctx, KindResource) }

// ListEntities lists entities of the given kind.
func (g *Game) ListEntities(ctx context.Context, kind Kind) ([]*Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidArgument, kind)
	}
	return g.list(ctx, kind)
}

func (g *Game) list(ctx context.Context, kind Kind) ([]*Entity, error) {
	resp, err := g.t.call(ctx, protocol.MethodGet, string(kind), protocol.ActionList, g.entityArgs(nil))
	if err != nil {
		return nil, err
	}
	var entities []*Entity
	if err := field(resp, "entities", &entities); err != nil {
		return nil, err
	}
	for _, e := range entities {
		e.Game = g
		if e.Type == "" && kind.Concrete() {
			e.Type = kind
		}
	}
	return entities, nil
}

// GetEntity fetches one entity of any kind by name.
func (g *Game) GetEntity(ctx context.Context, name string) (*Entity, error) {
	return g.GetEntityOfType(ctx, KindEntity, name)
}

// GetEntityOfType fetches one entity by name. The daemon answers 404 if
// the name exists but is not of the requested kind.
func (g *Game) GetEntityOfType(ctx context.Context, kind Kind, name string) (*Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", ErrInvalidArgument, kind)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: entity name is required", ErrInvalidArgument)
	}
	resp, err := g.t.call(ctx, protocol.MethodGet, string(kind), "", g.entityArgs(map[string]any{"name": name}))
	if err != nil {
		return nil, err
	}
	e := &Entity{Name: name}
	if err := field(resp, "entity", e); err != nil {
		return nil, err
	}
	e.Game = g
	if e.Type == "" && kind.Concrete() {
		e.Type = kind
	}
	return e, nil
}

// CreatePlayer adds a player to the game.
func (g *Game) CreatePlayer(ctx context.Context, name string) (*Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrInvalidArgument)
	}
	if _, err := g.t.call(ctx, protocol.MethodPost, protocol.ScopePlayer, "", g.entityArgs(map[string]any{"name": name})); err != nil {
		return nil, err
	}
	return &Entity{Game: g, Name: name, Type: KindPlayer}, nil
}
