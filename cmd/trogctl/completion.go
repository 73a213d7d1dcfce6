package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/posener/complete"

	"github.com/d2verb/trogctl/internal/client"
	"github.com/d2verb/trogctl/internal/logging"
	"github.com/d2verb/trogctl/internal/trogdord"
)

// completionTimeout bounds each daemon round trip made while the shell waits.
const completionTimeout = 300 * time.Millisecond

// newKindPredictor completes entity kinds.
func newKindPredictor() complete.Predictor {
	kinds := make([]string, 0, len(trogdord.Kinds))
	for _, k := range trogdord.Kinds {
		kinds = append(kinds, string(k))
	}
	return complete.PredictSet(kinds...)
}

// newGameIDPredictor completes game ids by asking the daemon.
func newGameIDPredictor() complete.Predictor {
	return complete.PredictFunc(func(args complete.Args) []string {
		return withCompletionDaemon(func(ctx context.Context, d *trogdord.Trogdord) []string {
			return completeGameIDs(ctx, d, args.Last)
		})
	})
}

// newDefinitionPredictor completes definition files by asking the daemon.
func newDefinitionPredictor() complete.Predictor {
	return complete.PredictFunc(func(args complete.Args) []string {
		return withCompletionDaemon(func(ctx context.Context, d *trogdord.Trogdord) []string {
			return completeDefinitions(ctx, d, args.Last)
		})
	})
}

// withCompletionDaemon connects using the settings file and environment.
// Flags on the partial command line are not parsed yet, so they are not
// honored here. Any failure yields no suggestions.
func withCompletionDaemon(fn func(ctx context.Context, d *trogdord.Trogdord) []string) []string {
	s, err := loadSettings(Globals{}, os.Getenv)
	if err != nil {
		return nil
	}

	// complete.Predictor carries no context.
	ctx, cancel := context.WithTimeout(context.Background(), 2*completionTimeout)
	defer cancel()

	d, err := trogdord.Connect(ctx, s.Host, s.Port, client.Options{
		ConnectTimeout: completionTimeout,
		RequestTimeout: completionTimeout,
		Logger:         logging.Discard(),
	})
	if err != nil {
		return nil
	}
	defer d.Close()
	return fn(ctx, d)
}

// completeGameIDs returns ids of games whose id starts with partial.
func completeGameIDs(ctx context.Context, d *trogdord.Trogdord, partial string) []string {
	games, err := d.Games(ctx)
	if err != nil {
		return nil
	}

	results := make([]string, 0, len(games))
	for _, g := range games {
		id := strconv.Itoa(g.ID)
		if strings.HasPrefix(id, partial) {
			results = append(results, id)
		}
	}
	return results
}

// completeDefinitions returns definition names starting with partial.
func completeDefinitions(ctx context.Context, d *trogdord.Trogdord, partial string) []string {
	defs, err := d.Definitions(ctx)
	if err != nil {
		return nil
	}

	var results []string
	for _, def := range defs {
		if strings.HasPrefix(def, partial) {
			results = append(results, def)
		}
	}
	return results
}
