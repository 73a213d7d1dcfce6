package main

import (
	"strings"
	"testing"

	"github.com/d2verb/trogctl/internal/daemontest"
	"github.com/d2verb/trogctl/internal/protocol"
)

func TestEntitiesCmd_Run(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeRoom, protocol.ActionList, daemontest.Reply(daemontest.OK(map[string]any{
		"entities": []map[string]any{{"name": "start"}, {"name": "hall"}},
	})))
	out := captureOutput(t)

	err := (&EntitiesCmd{GameID: 0, Kind: "room"}).Run(testApp(t, srv))

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for _, want := range []string{"start room", "hall  room"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output should contain %q: %q", want, out.String())
		}
	}
}

func TestEntitiesCmd_UnknownKind(t *testing.T) {
	srv := daemontest.Start(t)

	err := (&EntitiesCmd{Kind: "dragon"}).Run(testApp(t, srv))

	if err == nil {
		t.Fatal("Run() expected error for unknown kind")
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("daemon got %d requests, want 0", n)
	}
}

func TestEntityOutputCmd_Run(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeEntity, "", daemontest.Reply(daemontest.OK(map[string]any{
		"entity": map[string]any{"name": "alice", "type": "player"},
	})))
	srv.Handle(protocol.MethodGet, protocol.ScopeEntity, protocol.ActionOutput, daemontest.Reply(daemontest.OK(map[string]any{
		"messages": []map[string]any{{"timestamp": 0, "content": "You see a sword.\n"}},
	})))
	out := captureOutput(t)

	err := (&EntityOutputCmd{EntityRef: EntityRef{GameID: 1, Name: "alice", Kind: "entity"}, Channel: "notifications"}).Run(testApp(t, srv))

	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "You see a sword.") {
		t.Errorf("output = %q", out.String())
	}
	req, _ := srv.LastRequest()
	if req.Args["channel"] != "notifications" || req.Args["name"] != "alice" {
		t.Errorf("request args = %v", req.Args)
	}
}

func TestEntityOutputCmd_NotTangible(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodGet, protocol.ScopeEntity, "", daemontest.Reply(daemontest.OK(map[string]any{
		"entity": map[string]any{"name": "gold", "type": "resource"},
	})))
	captureOutput(t)

	err := (&EntityOutputCmd{EntityRef: EntityRef{GameID: 1, Name: "gold", Kind: "entity"}, Channel: "display"}).Run(testApp(t, srv))

	if err == nil || !strings.Contains(err.Error(), "has no output channels") {
		t.Errorf("Run() error = %v, want no output channels", err)
	}
	if n := len(srv.Requests()); n != 1 {
		t.Errorf("daemon got %d requests, want only the lookup", n)
	}
}

func TestPlayerCommands(t *testing.T) {
	srv := daemontest.Start(t)
	srv.Handle(protocol.MethodPost, protocol.ScopePlayer, "", daemontest.Reply(daemontest.OK(nil)))
	srv.Handle(protocol.MethodPost, protocol.ScopePlayer, protocol.ActionInput, daemontest.Reply(daemontest.OK(nil)))
	srv.Handle(protocol.MethodDelete, protocol.ScopePlayer, "", daemontest.Reply(daemontest.OK(nil)))
	out := captureOutput(t)
	a := testApp(t, srv)
	ref := PlayerRef{GameID: 2, Name: "alice"}

	if err := (&PlayerNewCmd{PlayerRef: ref}).Run(a); err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := (&PlayerInputCmd{PlayerRef: ref, Command: "look"}).Run(a); err != nil {
		t.Fatalf("input: %v", err)
	}
	if err := (&PlayerRemoveCmd{PlayerRef: ref, Message: "bye"}).Run(a); err != nil {
		t.Fatalf("remove: %v", err)
	}

	reqs := srv.Requests()
	if len(reqs) != 3 {
		t.Fatalf("got %d requests, want 3", len(reqs))
	}
	if reqs[1].Action != protocol.ActionInput || reqs[1].Args["command"] != "look" {
		t.Errorf("input request = %+v", reqs[1])
	}
	if reqs[2].Method != protocol.MethodDelete || reqs[2].Args["message"] != "bye" {
		t.Errorf("remove request = %+v", reqs[2])
	}
	for _, want := range []string{"Player alice joined game #2", "Player alice removed from game #2"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output should contain %q: %q", want, out.String())
		}
	}
}
