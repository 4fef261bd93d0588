package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/MJE43/stake-cycles/internal/api"
	"github.com/MJE43/stake-cycles/internal/config"
	"github.com/MJE43/stake-cycles/internal/secrets"
	"github.com/MJE43/stake-cycles/internal/store"
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cfgPath := fs.String("config", "game.yaml", "game definition file")
	dbPath := fs.String("db", "", "audit database (default from config)")
	port := fs.Int("port", 0, "listen port (default from config)")
	tokenName := fs.String("token-name", "api", "keychain entry holding the bearer token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *port > 0 {
		cfg.APIPort = *port
	}

	apiLog := newLogger("API", false)
	logStartup(apiLog, "server")

	token, err := secrets.NewTokenStore(secrets.DefaultService, config.DefaultTokenFallbackPath()).Token(*tokenName)
	switch {
	case errors.Is(err, secrets.ErrNoToken):
		apiLog.Printf("no %q token set; API is unauthenticated", *tokenName)
	case err != nil:
		return err
	}

	st, err := store.Open(ctx, cfg.DBPath, newLogger("STORE", false))
	if err != nil {
		return err
	}
	defer st.Close()

	hub := api.NewHub(newLogger("FEED", false))
	go hub.Run(ctx)

	recorder := store.NewGameRecorder(st, 0)
	d, err := cfg.Game.NewDriver(newLogger("DRIVER", false), newLogger("STAGE", false), recorder, hub)
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

	srv, err := api.NewServer(api.Options{
		Store:        st,
		Driver:       d,
		BaseInputs:   base,
		InitialStage: cfg.Game.InitialStage,
		FirstNonce:   first,
		Hub:          hub,
		Token:        token,
		Logger:       apiLog,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx, fmt.Sprintf("127.0.0.1:%d", cfg.APIPort))
}
