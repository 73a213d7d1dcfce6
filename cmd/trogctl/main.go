package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/d2verb/trogctl/internal/ui"
)

var (
	version = "dev"
	commit  = "none"
)

// Globals are flags shared by every command. Zero values defer to the
// settings file and the environment.
type Globals struct {
	Host       string `help:"Daemon host" placeholder:"HOST"`
	Port       int    `help:"Daemon port" placeholder:"PORT"`
	ConfigFile string `name:"config" help:"Settings file (.yaml or .toml)" type:"path" placeholder:"FILE"`
	Timeout    string `help:"Request timeout, e.g. 2s; 0 waits forever" placeholder:"DURATION"`
	LogLevel   string `help:"Log level (debug, info, warn, error)" placeholder:"LEVEL"`
	MinDaemon  string `name:"min-daemon" help:"Warn when the daemon is older than this version" placeholder:"VERSION"`
}

type CLI struct {
	Globals

	Status      StatusCmd      `cmd:"" help:"Show daemon status"`
	Config      ConfigCmd      `cmd:"" help:"Show the daemon's configuration"`
	Games       GamesCmd       `cmd:"" help:"List games"`
	Game        GameCmd        `cmd:"" help:"Manage a game"`
	Definitions DefinitionsCmd `cmd:"" help:"List game definitions the daemon can load"`
	Entities    EntitiesCmd    `cmd:"" help:"List entities in a game"`
	Entity      EntityCmd      `cmd:"" help:"Inspect an entity"`
	Player      PlayerCmd      `cmd:"" help:"Manage players"`
	Dumps       DumpsCmd       `cmd:"" help:"List dumped games"`
	Dump        DumpCmd        `cmd:"" help:"Manage game dumps"`
	Request     RequestCmd     `cmd:"" help:"Send a raw request and print the response"`

	Completion kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
	Version    VersionCmd                   `cmd:"" help:"Show version"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli := CLI{}
	parser := kong.Must(&cli,
		kong.Name("trogctl"),
		kong.Description("Command-line client for the trogdord game server"),
		kong.UsageOnError(),
	)
	kongplete.Complete(parser,
		kongplete.WithPredictor("game-id", newGameIDPredictor()),
		kongplete.WithPredictor("definition", newDefinitionPredictor()),
		kongplete.WithPredictor("entity-kind", newKindPredictor()),
	)

	kctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cli.Globals)
	if err != nil {
		return report(err)
	}
	defer a.Close()

	return report(kctx.Run(a))
}

// report prints err and returns the exit code it maps to.
func report(err error) int {
	if err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			ui.PrintError(exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitError
}
