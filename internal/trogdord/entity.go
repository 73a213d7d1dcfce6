package trogdord

import (
	"context"
	"fmt"
	"slices"

	"github.com/d2verb/trogctl/internal/protocol"
)

// Kind names an entity type. It doubles as the request scope.
type Kind string

const (
	KindEntity   Kind = protocol.ScopeEntity
	KindResource Kind = protocol.ScopeResource
	KindTangible Kind = protocol.ScopeTangible
	KindPlace    Kind = protocol.ScopePlace
	KindRoom     Kind = protocol.ScopeRoom
	KindThing    Kind = protocol.ScopeThing
	KindObject   Kind = protocol.ScopeObject
	KindBeing    Kind = protocol.ScopeBeing
	KindCreature Kind = protocol.ScopeCreature
	KindPlayer   Kind = protocol.ScopePlayer
)

// Kinds lists every kind in hierarchy order.
var Kinds = []Kind{
	KindEntity, KindResource, KindTangible, KindPlace, KindRoom,
	KindThing, KindObject, KindBeing, KindCreature, KindPlayer,
}

var concreteKinds = []Kind{KindResource, KindRoom, KindObject, KindCreature, KindPlayer}

var tangibleKinds = []Kind{KindTangible, KindPlace, KindRoom, KindThing, KindObject, KindBeing, KindCreature, KindPlayer}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return slices.Contains(Kinds, k) }

// Concrete reports whether entities can have exactly this type.
func (k Kind) Concrete() bool { return slices.Contains(concreteKinds, k) }

// Tangible reports whether k has a physical presence and an output stream.
func (k Kind) Tangible() bool { return slices.Contains(tangibleKinds, k) }

// Entity is a named thing inside a game. Its Type decides which
// capabilities apply; see AsOutputable, AsInputable and AsDestroyable.
type Entity struct {
	Game *Game  `json:"-"`
	Name string `json:"name"`
	Type Kind   `json:"type"`
}

func (e *Entity) String() string {
	return fmt.Sprintf("%s (%s)", e.Name, e.Type)
}

func (e *Entity) args(extra map[string]any) map[string]any {
	args := map[string]any{"name": e.Name}
	for k, v := range extra {
		args[k] = v
	}
	return e.Game.entityArgs(args)
}

// Message is one line of an entity's output stream.
type Message struct {
	Timestamp int64  `json:"timestamp"`
	Content   string `json:"content"`
}

// Outputable entities have output channels.
type Outputable interface {
	Output(ctx context.Context, channel string) ([]Message, error)
	SendOutput(ctx context.Context, channel, message string) error
}

// Inputable entities accept commands.
type Inputable interface {
	Input(ctx context.Context, command string) error
}

// Destroyable entities can be removed from a running game.
type Destroyable interface {
	Destroy(ctx context.Context, message string) error
}

type tangible struct{ *Entity }

type player struct{ tangible }

// AsOutputable returns e's output capability if its type has one.
func AsOutputable(e *Entity) (Outputable, bool) {
	if !e.Type.Tangible() {
		return nil, false
	}
	return tangible{e}, true
}

// AsInputable returns e's input capability if it is a player.
func AsInputable(e *Entity) (Inputable, bool) {
	if e.Type != KindPlayer {
		return nil, false
	}
	return player{tangible{e}}, true
}

// AsDestroyable returns e's destroy capability if it is a player.
func AsDestroyable(e *Entity) (Destroyable, bool) {
	if e.Type != KindPlayer {
		return nil, false
	}
	return player{tangible{e}}, true
}

// Output drains messages from channel.
func (t tangible) Output(ctx context.Context, channel string) ([]Message, error) {
	resp, err := t.Game.t.call(ctx, protocol.MethodGet, protocol.ScopeEntity, protocol.ActionOutput,
		t.args(map[string]any{"channel": channel}))
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if err := field(resp, "messages", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendOutput appends message to channel.
func (t tangible) SendOutput(ctx context.Context, channel, message string) error {
	_, err := t.Game.t.call(ctx, protocol.MethodPost, protocol.ScopeEntity, protocol.ActionOutput,
		t.args(map[string]any{"channel": channel, "message": message}))
	return err
}

// Input sends a command as if the player typed it.
func (p player) Input(ctx context.Context, command string) error {
	_, err := p.Game.t.call(ctx, protocol.MethodPost, protocol.ScopePlayer, protocol.ActionInput,
		p.args(map[string]any{"command": command}))
	return err
}

// Destroy removes the player. A non-empty message is shown to the player
// before removal.
func (p player) Destroy(ctx context.Context, message string) error {
	var extra map[string]any
	if message != "" {
		extra = map[string]any{"message": message}
	}
	_, err := p.Game.t.call(ctx, protocol.MethodDelete, protocol.ScopePlayer, "", p.args(extra))
	return err
}
