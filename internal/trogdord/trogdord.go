// Package trogdord turns typed calls into trogdord requests.
//
// Every call returns a *protocol.StatusError when the daemon answers with a
// non-2xx status, so callers can use protocol.IsNotFound and friends.
package trogdord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/d2verb/trogctl/internal/client"
	"github.com/d2verb/trogctl/internal/protocol"
)

// ErrInvalidArgument is returned for arguments rejected before any I/O.
var ErrInvalidArgument = errors.New("trogdord: invalid argument")

// Requester carries one exchange. *client.Conn implements it.
type Requester interface {
	Request(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error)
	LastStatus() int
	Close() error
}

// Trogdord is a handle on one daemon connection.
type Trogdord struct {
	conn    Requester
	timeout time.Duration
}

// New wraps an established connection.
func New(conn Requester) *Trogdord {
	return &Trogdord{conn: conn, timeout: client.UseDefault}
}

// Connect dials host:port and waits for the handshake.
func Connect(ctx context.Context, host string, port int, opts client.Options) (*Trogdord, error) {
	conn, err := client.Dial(ctx, host, port, opts)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// WithTimeout returns a copy that uses d for every request.
func (t *Trogdord) WithTimeout(d time.Duration) *Trogdord {
	c := *t
	c.timeout = d
	return &c
}

// Status returns the status of the last response.
func (t *Trogdord) Status() int {
	return t.conn.LastStatus()
}

// Close closes the underlying connection.
func (t *Trogdord) Close() error {
	return t.conn.Close()
}

// Do sends a raw request and maps error statuses.
func (t *Trogdord) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	resp, err := t.conn.Request(ctx, req, t.timeout)
	if err != nil {
		return nil, err
	}
	if err := protocol.CheckStatus(resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (t *Trogdord) call(ctx context.Context, method, scope, action string, args map[string]any) (*protocol.Response, error) {
	return t.Do(ctx, protocol.NewRequest(method, scope, action, args))
}

// field extracts a required response field.
func field(resp *protocol.Response, key string, v any) error {
	found, err := resp.Field(key, v)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("trogdord: response missing %q", key)
	}
	return nil
}

// optionalField extracts a field the daemon may leave out. A field that is
// present but malformed is still an error.
func optionalField(resp *protocol.Response, key string, v any) error {
	_, err := resp.Field(key, v)
	return err
}

// Statistics is the daemon-wide statistics payload.
type Statistics struct {
	Players    int     `json:"players"`
	Version    Version `json:"version"`
	LibVersion Version `json:"lib_version"`
}

// Statistics returns daemon statistics.
func (t *Trogdord) Statistics(ctx context.Context) (*Statistics, error) {
	resp, err := t.call(ctx, protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionStatistics, nil)
	if err != nil {
		return nil, err
	}
	var stats Statistics
	if err := resp.Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode statistics: %w", err)
	}
	return &stats, nil
}

// Config returns the daemon's running configuration.
func (t *Trogdord) Config(ctx context.Context) (map[string]any, error) {
	resp, err := t.call(ctx, protocol.MethodGet, protocol.ScopeGlobal, protocol.ActionConfig, nil)
	if err != nil {
		return nil, err
	}
	var cfg map[string]any
	if err := field(resp, "config", &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Dump asks the daemon to dump every game.
func (t *Trogdord) Dump(ctx context.Context) error {
	_, err := t.call(ctx, protocol.MethodPost, protocol.ScopeGlobal, protocol.ActionDump, nil)
	return err
}

// Restore asks the daemon to restore every dumped game.
func (t *Trogdord) Restore(ctx context.Context) error {
	_, err := t.call(ctx, protocol.MethodPost, protocol.ScopeGlobal, protocol.ActionRestore, nil)
	return err
}

// Filter narrows a game listing, e.g. Filter{"is_running": true}.
type Filter map[string]any

// Games lists games. Filters in one call are ANDed by the daemon.
func (t *Trogdord) Games(ctx context.Context, filters ...Filter) ([]*Game, error) {
	var args map[string]any
	if len(filters) > 0 {
		args = map[string]any{"filters": filters}
	}
	resp, err := t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionList, args)
	if err != nil {
		return nil, err
	}
	var games []*Game
	if err := field(resp, "games", &games); err != nil {
		return nil, err
	}
	for _, g := range games {
		g.t = t
	}
	return games, nil
}

// Definitions lists the game definition files the daemon can load.
func (t *Trogdord) Definitions(ctx context.Context) ([]string, error) {
	resp, err := t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionDefinitions, nil)
	if err != nil {
		return nil, err
	}
	var defs []string
	if err := field(resp, "definitions", &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// Game returns a handle for id without contacting the daemon.
func (t *Trogdord) Game(id int) *Game {
	return &Game{ID: id, t: t}
}

// DumpOf returns a dump handle for game id without contacting the daemon.
func (t *Trogdord) DumpOf(id int) *Dump {
	return &Dump{ID: id, t: t}
}

// GetGame fetches one game by id.
func (t *Trogdord) GetGame(ctx context.Context, id int) (*Game, error) {
	resp, err := t.call(ctx, protocol.MethodGet, protocol.ScopeGame, "", map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	g := &Game{ID: id, t: t}
	if err := resp.Decode(g); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	return g, nil
}

// NewGame creates a game from a definition. meta entries are stored as
// game metadata.
func (t *Trogdord) NewGame(ctx context.Context, name, definition string, meta map[string]string) (*Game, error) {
	if name == "" || definition == "" {
		return nil, fmt.Errorf("%w: name and definition are required", ErrInvalidArgument)
	}
	args := map[string]any{
		"name":       name,
		"definition": definition,
	}
	for k, v := range meta {
		if k == "name" || k == "definition" {
			continue
		}
		args[k] = v
	}

	resp, err := t.call(ctx, protocol.MethodPost, protocol.ScopeGame, "", args)
	if err != nil {
		return nil, err
	}
	g := &Game{Name: name, Definition: definition, t: t}
	if err := field(resp, "id", &g.ID); err != nil {
		return nil, err
	}
	if err := optionalField(resp, "created", &g.Created); err != nil {
		return nil, err
	}
	return g, nil
}

// Dumped lists games that have at least one dump.
func (t *Trogdord) Dumped(ctx context.Context) ([]*Dump, error) {
	resp, err := t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionDumpList, nil)
	if err != nil {
		return nil, err
	}
	var dumps []*Dump
	if err := field(resp, "games", &dumps); err != nil {
		return nil, err
	}
	for _, d := range dumps {
		d.t = t
	}
	return dumps, nil
}

// GetDump fetches the dump of one game.
func (t *Trogdord) GetDump(ctx context.Context, id int) (*Dump, error) {
	resp, err := t.call(ctx, protocol.MethodGet, protocol.ScopeGame, protocol.ActionDump, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	d := &Dump{ID: id, t: t}
	if err := resp.Decode(d); err != nil {
		return nil, fmt.Errorf("decode dump: %w", err)
	}
	return d, nil
}
