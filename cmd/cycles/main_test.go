package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/MJE43/stake-cycles/internal/secrets"
	"github.com/MJE43/stake-cycles/internal/store"
)

const testGame = `
name: cli-test
initial_stage: Base
seeds:
  server: cli-server
  client: cli-client
inputs:
  - N"Bet"=100
stages:
  - name: Base
    script: |
      function evaluate(round) {
        award("Line", input("Bet") / 50)
        exit("Bonus")
      }
  - name: Bonus
    script: |
      function evaluate(round) {
        award("Pick", 3)
      }
connections:
  - from: Base
    exit: Bonus
    to: Bonus
`

func TestPlayAndTrace(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "game.yaml")
	if err := os.WriteFile(cfgPath, []byte(testGame), 0o644); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(dir, "cycles.db")
	ctx := context.Background()

	args := []string{"-config", cfgPath, "-games", "3", "-parallel", "2", "-db", db, "-quiet"}
	if err := runPlay(ctx, args); err != nil {
		t.Fatalf("runPlay: %v", err)
	}

	st, err := store.Open(ctx, db, nil)
	if err != nil {
		t.Fatal(err)
	}
	games, total, err := st.ListGames(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	next, err := st.NextNonce(ctx, games[0].ServerSeedHash, "cli-client")
	st.Close()
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("stored %d games, want 3", total)
	}
	for _, g := range games {
		if g.Rounds != 2 || g.TotalAwarded != 5 {
			t.Errorf("game %s: %d rounds, %d credits", g.ID, g.Rounds, g.TotalAwarded)
		}
	}
	if next != 6 {
		t.Errorf("next nonce = %d, want 6", next)
	}

	// A second run continues the nonce sequence.
	if err := runPlay(ctx, []string{"-config", cfgPath, "-db", db, "-quiet"}); err != nil {
		t.Fatalf("second runPlay: %v", err)
	}

	var out bytes.Buffer
	if err := runTrace(ctx, []string{"-db", db, "-game", games[0].ID}, &out); err != nil {
		t.Fatalf("runTrace: %v", err)
	}
	for _, want := range []string{"cli-test", games[0].ID, "round 0  Base", "round 1  Bonus", "Cycles:", "2 rounds, awarded 5 credits"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("trace missing %q:\n%s", want, out.String())
		}
	}

	if err := runTrace(ctx, []string{"-db", db}, &out); err == nil {
		t.Error("trace without -game succeeded")
	}
	if err := runTrace(ctx, []string{"-db", db, "-game", "missing"}, &out); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want store.ErrNotFound", err)
	}
}

func TestPlayRejectsBadFlags(t *testing.T) {
	if err := runPlay(context.Background(), []string{"-games", "0"}); err == nil {
		t.Error("-games 0 accepted")
	}
	if err := runPlay(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "none.yaml")}); err == nil {
		t.Error("missing config accepted")
	}
}

func TestTokenCommand(t *testing.T) {
	keyring.MockInit()
	fallback := filepath.Join(t.TempDir(), "tokens.json")
	var out bytes.Buffer

	if err := runToken([]string{"-fallback", fallback, "set", "abc"}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("set: %v", err)
	}
	tokens := secrets.NewTokenStore(secrets.DefaultService, fallback)
	if got, err := tokens.Token("api"); err != nil || got != "abc" {
		t.Fatalf("Token = %q, %v", got, err)
	}

	if err := runToken([]string{"-fallback", fallback, "-name", "ops", "set"}, strings.NewReader("from-stdin\n"), &out); err != nil {
		t.Fatalf("set from stdin: %v", err)
	}
	if got, err := tokens.Token("ops"); err != nil || got != "from-stdin" {
		t.Errorf("Token(ops) = %q, %v", got, err)
	}

	if err := runToken([]string{"-fallback", fallback, "clear"}, nil, &out); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := tokens.Token("api"); !errors.Is(err, secrets.ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}

	for _, args := range [][]string{nil, {"rotate"}, {"set", ""}} {
		if err := runToken(args, strings.NewReader(""), &out); err == nil {
			t.Errorf("runToken(%v) succeeded", args)
		}
	}
}
