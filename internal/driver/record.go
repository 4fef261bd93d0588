package driver

import (
	"context"
	"time"

	"github.com/MJE43/stake-cycles/internal/logic"
)

// GameInfo describes a game when it starts.
type GameInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	InitialStage   string    `json:"initial_stage"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Nonce          uint64    `json:"nonce"`
	StartedAt      time.Time `json:"started_at"`
}

// RoundRecord is the audit view of one played round. Inputs and Cycles
// are the state after the round, with this round's variables folded in.
type RoundRecord struct {
	GameID       string             `json:"game_id"`
	Index        int                `json:"index"`
	Nonce        uint64             `json:"nonce"`
	Stage        string             `json:"stage"`
	CycleStateID int                `json:"cycle_state_id"`
	CycleID      string             `json:"cycle_id,omitempty"`
	Awarded      logic.Credits      `json:"awarded"`
	TotalAwarded logic.Credits      `json:"total_awarded"`
	Inputs       logic.Inputs       `json:"inputs"`
	Cycles       *logic.Cycles      `json:"cycles"`
	Results      logic.StageResults `json:"results"`
	Progressives []string           `json:"progressives,omitempty"`
	Finished     bool               `json:"finished"`
	PlayedAt     time.Time          `json:"played_at"`
}

// Summary is reported once a game's ledger finishes.
type Summary struct {
	GameID       string        `json:"game_id"`
	InitialStage string        `json:"initial_stage"`
	Rounds       int           `json:"rounds"`
	TotalAwarded logic.Credits `json:"total_awarded"`
	Progressives []string      `json:"progressives,omitempty"`
	Status       string        `json:"status"`
	EndedAt      time.Time     `json:"ended_at"`
}

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusAborted  = "aborted"
)

// RoundListener receives every played round.
type RoundListener interface {
	RoundPlayed(ctx context.Context, rec RoundRecord) error
}

// GameListener is an optional interface a RoundListener can implement to
// also hear about game boundaries.
type GameListener interface {
	GameStarted(ctx context.Context, info GameInfo) error
	GameEnded(ctx context.Context, sum Summary) error
}

// RoundListenerFunc adapts a function to RoundListener.
type RoundListenerFunc func(ctx context.Context, rec RoundRecord) error

func (f RoundListenerFunc) RoundPlayed(ctx context.Context, rec RoundRecord) error {
	return f(ctx, rec)
}
