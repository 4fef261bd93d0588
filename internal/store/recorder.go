package store

import (
	"context"
	"sync"

	"github.com/MJE43/stake-cycles/internal/driver"
)

// GameRecorder persists games as the driver plays them. Rounds are
// buffered per game and written in batches; a game's remaining rounds are
// flushed before its end is recorded.
type GameRecorder struct {
	store     *Store
	flushSize int

	mu      sync.Mutex
	buffers map[string][]driver.RoundRecord
}

// NewGameRecorder creates a recorder. flushSize controls how many rounds
// are buffered per game before a batch insert.
func NewGameRecorder(store *Store, flushSize int) *GameRecorder {
	if flushSize <= 0 {
		flushSize = 50
	}
	return &GameRecorder{
		store:     store,
		flushSize: flushSize,
		buffers:   make(map[string][]driver.RoundRecord),
	}
}

func (r *GameRecorder) GameStarted(ctx context.Context, info driver.GameInfo) error {
	return r.store.CreateGame(ctx, info)
}

// RoundPlayed buffers rec and flushes its game once the buffer is full.
func (r *GameRecorder) RoundPlayed(ctx context.Context, rec driver.RoundRecord) error {
	r.mu.Lock()
	buf := append(r.buffers[rec.GameID], rec)
	if len(buf) < r.flushSize {
		r.buffers[rec.GameID] = buf
		r.mu.Unlock()
		return nil
	}
	delete(r.buffers, rec.GameID)
	r.mu.Unlock()
	return r.store.InsertRoundsBatch(ctx, buf)
}

func (r *GameRecorder) GameEnded(ctx context.Context, sum driver.Summary) error {
	if err := r.flushGame(ctx, sum.GameID); err != nil {
		return err
	}
	return r.store.EndGame(ctx, sum)
}

// Flush persists every buffered round.
func (r *GameRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	pending := r.buffers
	r.buffers = make(map[string][]driver.RoundRecord)
	r.mu.Unlock()

	for _, buf := range pending {
		if err := r.store.InsertRoundsBatch(ctx, buf); err != nil {
			return err
		}
	}
	return nil
}

// Pending is the number of rounds waiting to be written.
func (r *GameRecorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, buf := range r.buffers {
		n += len(buf)
	}
	return n
}

func (r *GameRecorder) flushGame(ctx context.Context, gameID string) error {
	r.mu.Lock()
	buf := r.buffers[gameID]
	delete(r.buffers, gameID)
	r.mu.Unlock()
	return r.store.InsertRoundsBatch(ctx, buf)
}
