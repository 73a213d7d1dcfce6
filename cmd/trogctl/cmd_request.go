package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/d2verb/trogctl/internal/protocol"
	"github.com/d2verb/trogctl/internal/trogdord"
	"github.com/d2verb/trogctl/internal/ui"
)

type RequestCmd struct {
	Method string `arg:"" enum:"get,post,set,delete" help:"Request method (get, post, set, delete)"`
	Scope  string `arg:"" help:"Request scope, e.g. game or player"`
	Action string `arg:"" optional:"" help:"Request action, e.g. list"`
	Args   string `short:"a" help:"Arguments as a JSON object" placeholder:"JSON"`
}

func (c *RequestCmd) request() (*protocol.Request, error) {
	var args map[string]any
	if c.Args != "" {
		if err := json.Unmarshal([]byte(c.Args), &args); err != nil {
			return nil, fmt.Errorf("invalid --args: %w", err)
		}
	}
	req := protocol.NewRequest(c.Method, c.Scope, c.Action, args)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func (c *RequestCmd) Run(a *app) error {
	req, err := c.request()
	if err != nil {
		return err
	}
	return a.with(func(ctx context.Context, d *trogdord.Trogdord) error {
		resp, err := d.Do(ctx, req)
		if resp != nil {
			ui.PrintJSON(resp.Raw)
		}
		return err
	})
}
