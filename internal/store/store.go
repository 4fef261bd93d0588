// Package store is the SQLite audit ledger of played games: one row per
// game and one row per round, with the round's Inputs, Cycles and stage
// results kept as exact JSON so any round can be restored.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/MJE43/stake-cycles/internal/driver"
	"github.com/MJE43/stake-cycles/internal/logic"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("store: not found")

// --------- Data models ---------

type Game struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	InitialStage   string        `json:"initial_stage"`
	ServerSeedHash string        `json:"server_seed_hash"`
	ClientSeed     string        `json:"client_seed"`
	Nonce          uint64        `json:"nonce"`
	Status         string        `json:"status"`
	TotalAwarded   logic.Credits `json:"total_awarded"`
	Rounds         int           `json:"rounds"`
	CreatedAt      time.Time     `json:"created_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
}

type Round struct {
	ID           int64           `json:"id"`
	GameID       string          `json:"game_id"`
	Index        int             `json:"index"`
	Nonce        uint64          `json:"nonce"`
	Stage        string          `json:"stage"`
	CycleStateID int             `json:"cycle_state_id"`
	CycleID      string          `json:"cycle_id,omitempty"`
	Awarded      logic.Credits   `json:"awarded"`
	TotalAwarded logic.Credits   `json:"total_awarded"`
	Finished     bool            `json:"finished"`
	Inputs       json.RawMessage `json:"inputs"`
	Cycles       json.RawMessage `json:"cycles"`
	Results      json.RawMessage `json:"results"`
	Trace        string          `json:"trace"`
	CreatedAt    time.Time       `json:"created_at"`
}

// --------- Store ---------

type Store struct {
	db      *sql.DB
	logger  *log.Logger
	backoff func() retry.Backoff
}

// Open opens or creates the database at dbPath and applies migrations.
// logger may be nil.
func Open(ctx context.Context, dbPath string, logger *log.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&cache=shared", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Store{db: db, logger: logger, backoff: defaultBackoff}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	if len(results) > 0 {
		s.logger.Printf("applied %d migration(s)", len(results))
	}
	return nil
}

// --------- Retry ---------

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(5, retry.NewExponential(10*time.Millisecond))
}

// write runs fn, retrying while SQLite reports the database as busy.
func (s *Store) write(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if isBusyErr(err) {
			s.logger.Printf("%s: database busy (attempt %d)", what, attempt)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("store: %s: %w", what, err)
	}
	return nil
}

// --------- Games ---------

// CreateGame inserts the game row for info.
func (s *Store) CreateGame(ctx context.Context, info driver.GameInfo) error {
	return s.write(ctx, "create game", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO games(id, name, initial_stage, server_seed_hash, client_seed, nonce, status, created_at)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			info.ID, info.Name, info.InitialStage, info.ServerSeedHash, info.ClientSeed,
			int64(info.Nonce), driver.StatusRunning, info.StartedAt.UTC())
		return err
	})
}

// EndGame records a game's final status and totals.
func (s *Store) EndGame(ctx context.Context, sum driver.Summary) error {
	return s.write(ctx, "end game", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE games SET status=?, total_awarded=?, rounds=?, ended_at=? WHERE id=?`,
			sum.Status, int64(sum.TotalAwarded), sum.Rounds, sum.EndedAt.UTC(), sum.GameID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("game %s: %w", sum.GameID, ErrNotFound)
		}
		return nil
	})
}

const gameColumns = `id, name, initial_stage, server_seed_hash, client_seed, nonce, status, total_awarded, rounds, created_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (Game, error) {
	var (
		g     Game
		nonce int64
		ended sql.NullTime
	)
	err := row.Scan(&g.ID, &g.Name, &g.InitialStage, &g.ServerSeedHash, &g.ClientSeed,
		&nonce, &g.Status, &g.TotalAwarded, &g.Rounds, &g.CreatedAt, &ended)
	if err != nil {
		return Game{}, err
	}
	g.Nonce = uint64(nonce)
	if ended.Valid {
		t := ended.Time
		g.EndedAt = &t
	}
	return g, nil
}

func (s *Store) GetGame(ctx context.Context, id string) (Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Game{}, fmt.Errorf("store: game %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Game{}, fmt.Errorf("store: get game: %w", err)
	}
	return g, nil
}

// ListGames returns games newest first along with the total count.
func (s *Store) ListGames(ctx context.Context, limit, offset int) ([]Game, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM games`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count games: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+gameColumns+` FROM games
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list games: %w", err)
	}
	defer rows.Close()

	var out []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: list games: %w", err)
		}
		out = append(out, g)
	}
	return out, total, rows.Err()
}

// DeleteGame removes a game and its rounds.
func (s *Store) DeleteGame(ctx context.Context, id string) error {
	return s.write(ctx, "delete game", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id=?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("game %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// NextNonce returns the nonce after the highest one recorded for the seed
// pair, so a new session never reuses a nonce.
func (s *Store) NextNonce(ctx context.Context, serverSeedHash, clientSeed string) (uint64, error) {
	var next sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(r.nonce) + 1 FROM rounds r
		JOIN games g ON g.id = r.game_id
		WHERE g.server_seed_hash=? AND g.client_seed=?`, serverSeedHash, clientSeed).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("store: next nonce: %w", err)
	}
	if !next.Valid {
		return 0, nil
	}
	return uint64(next.Int64), nil
}

// --------- Rounds ---------

const insertRound = `
	INSERT INTO rounds(
		game_id, round_index, nonce, stage, cycle_state_id, cycle_id,
		awarded, total_awarded, finished, inputs_json, cycles_json, results_json, trace, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func roundArgs(rec driver.RoundRecord) ([]any, error) {
	inputs, err := json.Marshal(rec.Inputs)
	if err != nil {
		return nil, fmt.Errorf("round %d inputs: %w", rec.Index, err)
	}
	cycles, err := json.Marshal(rec.Cycles)
	if err != nil {
		return nil, fmt.Errorf("round %d cycles: %w", rec.Index, err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return nil, fmt.Errorf("round %d results: %w", rec.Index, err)
	}
	return []any{
		rec.GameID, rec.Index, int64(rec.Nonce), rec.Stage, rec.CycleStateID, rec.CycleID,
		int64(rec.Awarded), int64(rec.TotalAwarded), rec.Finished,
		string(inputs), string(cycles), string(results), rec.Cycles.String(), rec.PlayedAt.UTC(),
	}, nil
}

// InsertRound stores one round.
func (s *Store) InsertRound(ctx context.Context, rec driver.RoundRecord) error {
	args, err := roundArgs(rec)
	if err != nil {
		return fmt.Errorf("store: insert round: %w", err)
	}
	return s.write(ctx, "insert round", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, insertRound, args...)
		return err
	})
}

// InsertRoundsBatch stores rounds in a single transaction.
func (s *Store) InsertRoundsBatch(ctx context.Context, recs []driver.RoundRecord) error {
	if len(recs) == 0 {
		return nil
	}
	all := make([][]any, len(recs))
	for i, rec := range recs {
		args, err := roundArgs(rec)
		if err != nil {
			return fmt.Errorf("store: insert rounds: %w", err)
		}
		all[i] = args
	}
	return s.write(ctx, "insert rounds", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, insertRound)
		if err != nil {
			tx.Rollback()
			return err
		}
		defer stmt.Close()
		for _, args := range all {
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

const roundColumns = `id, game_id, round_index, nonce, stage, cycle_state_id, cycle_id,
	awarded, total_awarded, finished, inputs_json, cycles_json, results_json, trace, created_at`

func scanRound(row rowScanner) (Round, error) {
	var (
		r       Round
		nonce   int64
		inputs  string
		cycles  string
		results string
	)
	err := row.Scan(&r.ID, &r.GameID, &r.Index, &nonce, &r.Stage, &r.CycleStateID, &r.CycleID,
		&r.Awarded, &r.TotalAwarded, &r.Finished, &inputs, &cycles, &results, &r.Trace, &r.CreatedAt)
	if err != nil {
		return Round{}, err
	}
	r.Nonce = uint64(nonce)
	r.Inputs = json.RawMessage(inputs)
	r.Cycles = json.RawMessage(cycles)
	r.Results = json.RawMessage(results)
	return r, nil
}

// GetRounds returns a game's rounds in play order.
func (s *Store) GetRounds(ctx context.Context, gameID string) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roundColumns+` FROM rounds WHERE game_id=? ORDER BY round_index ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("store: get rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("store: get rounds: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRound(ctx context.Context, gameID string, index int) (Round, error) {
	r, err := scanRound(s.db.QueryRowContext(ctx, `
		SELECT `+roundColumns+` FROM rounds WHERE game_id=? AND round_index=?`, gameID, index))
	if errors.Is(err, sql.ErrNoRows) {
		return Round{}, fmt.Errorf("store: round %s/%d: %w", gameID, index, ErrNotFound)
	}
	if err != nil {
		return Round{}, fmt.Errorf("store: get round: %w", err)
	}
	return r, nil
}

// LoadRoundState decodes the Inputs and Cycles stored after a round.
func (s *Store) LoadRoundState(ctx context.Context, gameID string, index int) (logic.Inputs, *logic.Cycles, error) {
	r, err := s.GetRound(ctx, gameID, index)
	if err != nil {
		return logic.Inputs{}, nil, err
	}
	return r.State()
}

// State decodes the round's stored Inputs and Cycles.
func (r Round) State() (logic.Inputs, *logic.Cycles, error) {
	var in logic.Inputs
	if err := json.Unmarshal(r.Inputs, &in); err != nil {
		return logic.Inputs{}, nil, fmt.Errorf("store: decode inputs of round %d: %w", r.Index, err)
	}
	c := &logic.Cycles{}
	if err := json.Unmarshal(r.Cycles, c); err != nil {
		return logic.Inputs{}, nil, fmt.Errorf("store: decode cycles of round %d: %w", r.Index, err)
	}
	return in, c, nil
}

// StageResults decodes the round's stored stage results.
func (r Round) StageResults() (logic.StageResults, error) {
	var rs logic.StageResults
	if err := json.Unmarshal(r.Results, &rs); err != nil {
		return logic.StageResults{}, fmt.Errorf("store: decode results of round %d: %w", r.Index, err)
	}
	return rs, nil
}

// --------- helpers ---------

func isBusyErr(err error) bool {
	// modernc sqlite reports SQLITE_BUSY as "database is locked".
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}
