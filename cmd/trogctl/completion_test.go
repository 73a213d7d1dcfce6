package main

import (
	"context"
	"testing"

	"github.com/posener/complete"

	"github.com/d2verb/trogctl/internal/client"
	"github.com/d2verb/trogctl/internal/daemontest"
	"github.com/d2verb/trogctl/internal/protocol"
	"github.com/d2verb/trogctl/internal/trogdord"
)

func completionDaemon(t *testing.T) *trogdord.Trogdord {
	t.Helper()
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeGame, protocol.ActionList, daemontest.Reply(daemontest.OK(map[string]any{
		"games": []map[string]any{{"id": 1}, {"id": 12}, {"id": 20}},
	})))
	srv.Handle(protocol.MethodGet, protocol.ScopeGame, protocol.ActionDefinitions, daemontest.Reply(daemontest.OK(map[string]any{
		"definitions": []string{"game.xml", "forest.xml"},
	})))

	d, err := trogdord.Connect(context.Background(), srv.Host(), srv.Port(), client.Options{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestCompleteGameIDs(t *testing.T) {
	d := completionDaemon(t)

	tests := []struct {
		name     string
		partial  string
		expected int
	}{
		{"no filter", "", 3},
		{"prefix", "1", 2},
		{"exact", "20", 1},
		{"no match", "9", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := completeGameIDs(context.Background(), d, tt.partial)
			if len(results) != tt.expected {
				t.Errorf("expected %d results, got %d: %v", tt.expected, len(results), results)
			}
		})
	}
}

func TestCompleteDefinitions(t *testing.T) {
	d := completionDaemon(t)

	results := completeDefinitions(context.Background(), d, "for")

	if len(results) != 1 || results[0] != "forest.xml" {
		t.Errorf("results = %v, want [forest.xml]", results)
	}
}

func TestKindPredictor(t *testing.T) {
	results := newKindPredictor().Predict(complete.Args{Last: "pl"})

	found := false
	for _, r := range results {
		if r == "player" {
			found = true
		}
	}
	if !found {
		t.Errorf("results = %v, want player among them", results)
	}
}
