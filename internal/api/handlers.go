package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/stake-cycles/internal/driver"
	"github.com/MJE43/stake-cycles/internal/logic"
	"github.com/MJE43/stake-cycles/internal/store"
)

const maxPageSize = 500

type GamesResponse struct {
	Games  []store.Game `json:"games"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

type RoundsResponse struct {
	GameID string        `json:"game_id"`
	Rounds []store.Round `json:"rounds"`
}

// PlayRequest optionally overrides base inputs with canonical input lines.
type PlayRequest struct {
	Inputs []string `json:"inputs,omitempty"`
}

type PlayResponse struct {
	Game    *store.Game    `json:"game,omitempty"`
	Summary driver.Summary `json:"summary"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil || limit < 1 || limit > maxPageSize {
		s.errorHandler.HandleValidationError(w, r, "limit", fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		s.errorHandler.HandleValidationError(w, r, "offset", "offset must be >= 0")
		return
	}

	games, total, err := s.store.ListGames(r.Context(), limit, offset)
	if err != nil {
		s.errorHandler.Handle(w, r, http.StatusInternalServerError, ErrTypeInternal, "failed to list games", err)
		return
	}
	if games == nil {
		games = []store.Game{}
	}
	s.writeJSON(w, http.StatusOK, GamesResponse{Games: games, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.store.GetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteGame(r.Context(), id); err != nil {
		s.storeError(w, r, err)
		return
	}
	prefix := id + "/"
	for _, k := range s.traces.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.traces.Remove(k)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRounds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetGame(r.Context(), id); err != nil {
		s.storeError(w, r, err)
		return
	}
	rounds, err := s.store.GetRounds(r.Context(), id)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if rounds == nil {
		rounds = []store.Round{}
	}
	s.writeJSON(w, http.StatusOK, RoundsResponse{GameID: id, Rounds: rounds})
}

// handleTrace renders the Inputs and Cycles ledger a round left behind.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		s.errorHandler.HandleValidationError(w, r, "index", "round index must be a non-negative integer")
		return
	}

	key := id + "/" + strconv.Itoa(index)
	trace, hit := s.traces.Get(key)
	if !hit {
		round, err := s.store.GetRound(r.Context(), id, index)
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		trace, err = renderTrace(round)
		if err != nil {
			s.errorHandler.Handle(w, r, http.StatusInternalServerError, ErrTypeInternal, "stored round does not decode", err)
			return
		}
		s.traces.Add(key, trace)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if hit {
		w.Header().Set("X-Trace-Cache", "hit")
	} else {
		w.Header().Set("X-Trace-Cache", "miss")
	}
	_, _ = io.WriteString(w, trace)
}

func renderTrace(round store.Round) (string, error) {
	inputs, _, err := round.State()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "game %s round %d: %s (nonce %d)\n", round.GameID, round.Index, round.Stage, round.Nonce)
	fmt.Fprintf(&b, "awarded %d, total %d\n", round.Awarded, round.TotalAwarded)
	b.WriteString(inputs.String())
	return b.String(), nil
}

// handlePlayGame plays one game with the configured definition. Games on
// this server share one session, so they are played one at a time.
func (s *Server) handlePlayGame(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		s.errorHandler.Handle(w, r, http.StatusServiceUnavailable, ErrTypeNotConfigured, "no game definition loaded", nil)
		return
	}

	var req PlayRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON")
		return
	}
	base, field, err := s.playInputs(req)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, field, err.Error())
		return
	}

	s.playMu.Lock()
	defer s.playMu.Unlock()

	ctx := r.Context()
	g, err := s.session.StartGame(ctx, base, s.initialStage)
	if err != nil {
		s.errorHandler.Handle(w, r, http.StatusInternalServerError, ErrTypeGameEvaluation, "game failed to start", err)
		return
	}
	sum, err := g.Run(ctx)
	if sum.Status != driver.StatusFinished {
		s.errorHandler.Handle(w, r, http.StatusInternalServerError, ErrTypeGameEvaluation,
			fmt.Sprintf("game %s aborted after %d rounds", sum.GameID, sum.Rounds), err)
		return
	}
	if err != nil {
		s.logger.Printf("game %s finished with listener errors: %v", sum.GameID, err)
	}

	resp := PlayResponse{Summary: sum}
	if stored, err := s.store.GetGame(ctx, sum.GameID); err == nil {
		resp.Game = &stored
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) playInputs(req PlayRequest) (logic.Inputs, string, error) {
	if len(req.Inputs) == 0 {
		return s.base, "", nil
	}
	items := make([]logic.Input, 0, len(req.Inputs))
	for i, line := range req.Inputs {
		field := fmt.Sprintf("inputs[%d]", i)
		in, err := logic.ParseInput(line)
		if err != nil {
			return logic.Inputs{}, field, err
		}
		if in.Name() == logic.CyclesInputName {
			return logic.Inputs{}, field, fmt.Errorf("%q is set by the driver", logic.CyclesInputName)
		}
		items = append(items, in)
	}
	base, err := s.base.ReplaceOrAdd(items)
	if err != nil {
		return logic.Inputs{}, "inputs", err
	}
	return base, "", nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.errorHandler.Handle(w, r, http.StatusServiceUnavailable, ErrTypeNotConfigured, "live feed is disabled", nil)
		return
	}
	s.hub.ServeWS(w, r)
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.errorHandler.Handle(w, r, http.StatusNotFound, ErrTypeNotFound, "game or round not found", err)
		return
	}
	s.errorHandler.Handle(w, r, http.StatusInternalServerError, ErrTypeInternal, "storage error", err)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
