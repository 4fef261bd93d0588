package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MJE43/stake-cycles/internal/config"
	"github.com/MJE43/stake-cycles/internal/store"
)

var (
	traceTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	traceRound = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
	traceCurrent = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F5C542"))
	traceDim = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
)

func runTrace(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	dbPath := fs.String("db", config.DefaultDBPath(), "audit database")
	gameID := fs.String("game", "", "game id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *gameID == "" {
		return fmt.Errorf("-game is required")
	}

	st, err := store.Open(ctx, *dbPath, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	game, err := st.GetGame(ctx, *gameID)
	if err != nil {
		return err
	}
	rounds, err := st.GetRounds(ctx, *gameID)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, traceTitle.Render(fmt.Sprintf("%s · %s · %s", game.Name, game.ID, game.Status)))
	fmt.Fprintln(out, traceDim.Render(fmt.Sprintf("server seed hash %s, client seed %s, first nonce %d",
		game.ServerSeedHash, game.ClientSeed, game.Nonce)))

	for _, r := range rounds {
		inputs, _, err := r.State()
		if err != nil {
			return fmt.Errorf("round %d: %w", r.Index, err)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, traceRound.Render(fmt.Sprintf("round %d  %s  nonce %d  +%d (total %d)",
			r.Index, r.Stage, r.Nonce, r.Awarded, r.TotalAwarded)))
		for _, line := range strings.Split(strings.TrimRight(inputs.String(), "\n"), "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), ">") {
				line = traceCurrent.Render(line)
			}
			fmt.Fprintln(out, line)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, traceTitle.Render(fmt.Sprintf("%d rounds, awarded %d credits", game.Rounds, game.TotalAwarded)))
	return nil
}
