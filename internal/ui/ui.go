// Package ui provides formatted output utilities for the CLI.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Color functions for consistent styling.
var (
	Green  = color.New(color.FgGreen).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Yellow = color.New(color.FgYellow).SprintFunc()
	Blue   = color.New(color.FgBlue).SprintFunc()
	Cyan   = color.New(color.FgCyan).SprintFunc()
	Dim    = color.New(color.Faint).SprintFunc() // Dimmed text (more readable than gray)
	Bold   = color.New(color.Bold).SprintFunc()
)

// Output is the destination for UI output.
// Defaults to os.Stdout but can be overridden for testing.
var Output io.Writer = os.Stdout

// RunningBadge returns a colored indicator for a game clock.
func RunningBadge(running bool) string {
	if running {
		return Green("● Running")
	}
	return Yellow("○ Stopped")
}

// ConnectionBadge returns a colored indicator for a connection state.
func ConnectionBadge(state string) string {
	switch state {
	case "ready":
		return Green("● Connected")
	case "connecting":
		return Yellow("◐ Connecting")
	default:
		return Red("○ Not Connected")
	}
}

// StatusBadge colors an HTTP-like response status.
func StatusBadge(status int) string {
	label := fmt.Sprintf("%d", status)
	switch {
	case status >= 200 && status < 300:
		return Green(label)
	case status >= 400 && status < 500:
		return Yellow(label)
	default:
		return Red(label)
	}
}

// DaemonStatus is what `trogctl status` shows.
type DaemonStatus struct {
	Addr       string
	State      string
	Version    string
	LibVersion string
	Players    int
	LogPath    string
}

// PrintStatus prints daemon status in a formatted style.
func PrintStatus(s DaemonStatus) {
	fmt.Fprintf(Output, "%s %s\n", Bold("Status:"), ConnectionBadge(s.State))
	fmt.Fprintf(Output, "%s %s\n", Bold("Address:"), Blue(s.Addr))

	if s.Version != "" {
		fmt.Fprintf(Output, "%s %s %s\n", Bold("Version:"), s.Version, Dim("(core "+s.LibVersion+")"))
		fmt.Fprintf(Output, "%s %d\n", Bold("Players:"), s.Players)
	}

	if s.LogPath != "" {
		fmt.Fprintf(Output, "%s %s\n", Bold("Logs:"), s.LogPath)
	}
}

// GameInfo represents a game for display.
type GameInfo struct {
	ID         int
	Name       string
	Definition string
	Created    time.Time
}

// PrintGameList prints games with formatting.
func PrintGameList(games []GameInfo) {
	if len(games) == 0 {
		fmt.Fprintln(Output, "No games.")
		return
	}

	fmt.Fprintln(Output, Bold("Games:"))
	for _, g := range games {
		fmt.Fprintf(Output, "  %s %s %s\n",
			Cyan(fmt.Sprintf("#%d", g.ID)),
			g.Name,
			Dim(fmt.Sprintf("(%s)", g.Definition)),
		)
	}
}

// GameDetails contains game information for display.
type GameDetails struct {
	GameInfo
	Running     bool
	CurrentTime int
	Players     int
	Meta        map[string]string
}

// PrintGameDetails prints one game in a formatted style.
func PrintGameDetails(g GameDetails) {
	fmt.Fprintf(Output, "%s %s\n", Bold("Game:"), Cyan(fmt.Sprintf("#%d %s", g.ID, g.Name)))
	fmt.Fprintf(Output, "%s %s\n", Bold("Definition:"), g.Definition)
	if !g.Created.IsZero() {
		fmt.Fprintf(Output, "%s %s\n", Bold("Created:"), g.Created.Format(time.RFC3339))
	}
	fmt.Fprintf(Output, "%s %s\n", Bold("State:"), RunningBadge(g.Running))
	fmt.Fprintf(Output, "%s %d\n", Bold("Time:"), g.CurrentTime)
	fmt.Fprintf(Output, "%s %d\n", Bold("Players:"), g.Players)

	if len(g.Meta) > 0 {
		fmt.Fprintln(Output, Bold("Meta:"))
		printPairs(g.Meta)
	}
}

// PrintMeta prints key/value metadata sorted by key.
func PrintMeta(meta map[string]string) {
	if len(meta) == 0 {
		fmt.Fprintln(Output, "No metadata.")
		return
	}
	printPairs(meta)
}

func printPairs(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(Output, "  %s = %s\n", Cyan(k), m[k])
	}
}

// PrintDefinitions prints available game definition files.
func PrintDefinitions(defs []string) {
	if len(defs) == 0 {
		fmt.Fprintln(Output, "No definitions available.")
		return
	}

	fmt.Fprintln(Output, Bold("Available definitions:"))
	for _, d := range defs {
		fmt.Fprintf(Output, "  %s\n", Cyan(d))
	}
}

// EntityInfo represents an entity for display.
type EntityInfo struct {
	Name string
	Type string
}

// PrintEntityList prints entities, one per line, with their type.
func PrintEntityList(entities []EntityInfo) {
	if len(entities) == 0 {
		fmt.Fprintln(Output, "No entities.")
		return
	}

	width := 0
	for _, e := range entities {
		width = max(width, len(e.Name))
	}
	for _, e := range entities {
		fmt.Fprintf(Output, "  %-*s %s\n", width, e.Name, Dim(e.Type))
	}
}

// MessageInfo is one line of entity output.
type MessageInfo struct {
	Timestamp time.Time
	Content   string
}

// PrintMessages prints output messages in order.
func PrintMessages(msgs []MessageInfo) {
	if len(msgs) == 0 {
		fmt.Fprintln(Output, Dim("(no output)"))
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(Output, "%s %s\n", Dim(m.Timestamp.Format("15:04:05")), strings.TrimRight(m.Content, "\n"))
	}
}

// DumpInfo represents a dumped game for display.
type DumpInfo struct {
	ID         int
	Name       string
	Definition string
}

// PrintDumpList prints dumped games.
func PrintDumpList(dumps []DumpInfo) {
	if len(dumps) == 0 {
		fmt.Fprintln(Output, "No dumps.")
		return
	}

	fmt.Fprintln(Output, Bold("Dumps:"))
	for _, d := range dumps {
		fmt.Fprintf(Output, "  %s %s %s\n", Cyan(fmt.Sprintf("#%d", d.ID)), d.Name, Dim(fmt.Sprintf("(%s)", d.Definition)))
	}
}

// SlotInfo represents a dump slot for display.
type SlotInfo struct {
	Slot    int
	Written time.Time
}

// PrintSlotList prints dump slots.
func PrintSlotList(slots []SlotInfo) {
	if len(slots) == 0 {
		fmt.Fprintln(Output, "No slots.")
		return
	}

	fmt.Fprintln(Output, Bold("Slots:"))
	for _, s := range slots {
		fmt.Fprintf(Output, "  %s %s\n", Cyan(fmt.Sprintf("%d", s.Slot)), Dim(s.Written.Format(time.RFC3339)))
	}
}

// PrintConfig prints daemon settings sorted by key.
func PrintConfig(cfg map[string]any) {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(Output, "%s = %v\n", Cyan(k), cfg[k])
	}
}

// PrintJSON pretty-prints raw JSON, or prints it as-is if it does not parse.
func PrintJSON(raw []byte) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Fprintln(Output, string(raw))
		return
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(Output, string(out))
}

// PrintSuccess prints a success message with green checkmark.
func PrintSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", Green("✓"), message)
}

// PrintError prints an error message with red X.
func PrintError(message string) {
	fmt.Fprintf(Output, "%s %s\n", Red("✗"), message)
}

// PrintWarning prints a warning message with yellow exclamation.
func PrintWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", Yellow("⚠"), message)
}

// PrintInfo prints an info message with blue dot.
func PrintInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", Blue("•"), message)
}
