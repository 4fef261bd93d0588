package main

import (
	"context"
	"flag"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MJE43/stake-cycles/internal/config"
	"github.com/MJE43/stake-cycles/internal/driver"
	"github.com/MJE43/stake-cycles/internal/logic"
	"github.com/MJE43/stake-cycles/internal/store"
)

type playTotals struct {
	mu      sync.Mutex
	games   int
	rounds  int
	awarded logic.Credits
}

func (t *playTotals) add(sum driver.Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.games++
	t.rounds += sum.Rounds
	t.awarded += sum.TotalAwarded
}

// runPlay plays -games games. With -parallel above one, games share the
// session concurrently: nonces stay unique, but Permanent variables carry
// over in completion order.
func runPlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	cfgPath := fs.String("config", "game.yaml", "game definition file")
	games := fs.Int("games", 1, "number of games to play")
	parallel := fs.Int("parallel", 1, "games played at once")
	dbPath := fs.String("db", "", "audit database (default from config)")
	quiet := fs.Bool("quiet", false, "only print the final totals")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *games < 1 || *parallel < 1 {
		return fmt.Errorf("-games and -parallel must be >= 1")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	driverLog := newLogger("DRIVER", *quiet)
	logStartup(driverLog, "play")

	st, err := store.Open(ctx, cfg.DBPath, newLogger("STORE", *quiet))
	if err != nil {
		return err
	}
	defer st.Close()

	recorder := store.NewGameRecorder(st, 0)
	d, err := cfg.Game.NewDriver(driverLog, newLogger("STAGE", *quiet), recorder)
	if err != nil {
		return err
	}
	base, err := cfg.Game.BaseInputs()
	if err != nil {
		return err
	}
	first, err := st.NextNonce(ctx, d.Seeds.HashServer(), d.Seeds.Client)
	if err != nil {
		return err
	}
	session := d.NewSession(first)

	var totals playTotals
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*parallel)
	for i := 0; i < *games; i++ {
		g.Go(func() error {
			game, err := session.StartGame(gctx, base, cfg.Game.InitialStage)
			if err != nil {
				return err
			}
			sum, err := game.Run(gctx)
			if sum.Status != driver.StatusFinished {
				return fmt.Errorf("game %s: %w", sum.GameID, err)
			}
			if err != nil {
				driverLog.Printf("game %s: %v", sum.GameID, err)
			}
			totals.add(sum)
			if !*quiet {
				fmt.Printf("%s  %-4d rounds  %d credits\n", sum.GameID, sum.Rounds, sum.TotalAwarded)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if err := recorder.Flush(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}

	fmt.Printf("played %d games, %d rounds, awarded %d credits (next nonce %d)\n",
		totals.games, totals.rounds, totals.awarded, session.Nonce())
	return runErr
}
