// Package driver plays games: it runs the per-round protocol over a
// Cycles ledger, folds stage variables into Inputs by lifespan, and
// schedules the rounds that exits and triggers ask for.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/MJE43/stake-cycles/internal/logic"
	"github.com/MJE43/stake-cycles/internal/rng"
	"github.com/MJE43/stake-cycles/internal/stages"
)

var (
	ErrRoundLimit   = errors.New("driver: round limit exceeded")
	ErrGameOver     = errors.New("driver: game is finished")
	ErrUnknownExit  = errors.New("driver: exit has no stage connection")
	ErrReservedName = errors.New("driver: reserved input name")
	ErrListener     = errors.New("driver: listener failed")
)

// DefaultMaxRounds bounds a game whose definition sets no limit.
const DefaultMaxRounds = 10000

// Driver holds what every game of one definition shares.
type Driver struct {
	Name      string
	Registry  *stages.Registry
	Graph     *logic.StageGraph
	Seeds     rng.Seeds
	MaxRounds int
	Logger    *log.Logger
	Listeners []RoundListener
}

func (d *Driver) logger() *log.Logger {
	if d.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return d.Logger
}

func (d *Driver) maxRounds() int {
	if d.MaxRounds <= 0 {
		return DefaultMaxRounds
	}
	return d.MaxRounds
}

// StartGame starts a game in a fresh session whose first nonce is 0.
func (d *Driver) StartGame(ctx context.Context, base logic.Inputs, initialStage string) (*Game, error) {
	return d.NewSession(0).StartGame(ctx, base, initialStage)
}

// Session plays games in sequence. Permanent variables left by one game
// are carried into the next, and every round takes the next nonce.
type Session struct {
	driver *Driver

	mu        sync.Mutex
	nonce     uint64
	permanent logic.Inputs
}

// NewSession starts a session whose first round uses nonce.
func (d *Driver) NewSession(nonce uint64) *Session {
	return &Session{driver: d, nonce: nonce}
}

// Permanent returns the variables the session carries between games.
func (s *Session) Permanent() logic.Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permanent
}

// Nonce is the nonce the next round will use.
func (s *Session) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

func (s *Session) takeNonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nonce
	s.nonce++
	return n
}

func (s *Session) keep(permanent logic.Inputs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permanent = permanent
}

// StartGame seeds base with the session's Permanent variables and a fresh
// ledger at initialStage. Any "Cycles" input in base is replaced.
func (s *Session) StartGame(ctx context.Context, base logic.Inputs, initialStage string) (*Game, error) {
	d := s.driver
	if d.Registry == nil {
		return nil, fmt.Errorf("driver: no stage registry")
	}
	if _, err := d.Registry.Lookup(initialStage); err != nil {
		return nil, fmt.Errorf("driver: start game: %w", err)
	}

	inputs, err := base.ReplaceOrAdd(s.Permanent().All())
	if err != nil {
		return nil, fmt.Errorf("driver: start game: %w", err)
	}
	inputs, err = inputs.WithCycles(logic.CreateInitial(initialStage))
	if err != nil {
		return nil, fmt.Errorf("driver: start game: %w", err)
	}

	g := &Game{
		driver:  d,
		session: s,
		inputs:  inputs,
		status:  StatusRunning,
		info: GameInfo{
			ID:             uuid.NewString(),
			Name:           d.Name,
			InitialStage:   initialStage,
			ServerSeedHash: d.Seeds.HashServer(),
			ClientSeed:     d.Seeds.Client,
			Nonce:          s.Nonce(),
			StartedAt:      time.Now().UTC(),
		},
	}

	var errs error
	for _, l := range d.Listeners {
		if gl, ok := l.(GameListener); ok {
			errs = multierr.Append(errs, gl.GameStarted(ctx, g.info))
		}
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: game start: %w", ErrListener, errs)
	}
	d.logger().Printf("game %s started at %s (nonce %d)", g.info.ID, initialStage, g.info.Nonce)
	return g, nil
}
