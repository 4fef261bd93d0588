// Package api serves the audit ledger over HTTP: stored games, their
// rounds and traces, on-demand play, and a websocket feed of live rounds.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MJE43/stake-cycles/internal/driver"
	"github.com/MJE43/stake-cycles/internal/logic"
	"github.com/MJE43/stake-cycles/internal/store"
)

const (
	defaultTraceCacheSize = 512
	defaultRequestTimeout = 60 * time.Second
)

// Options configures a Server. Driver may be nil, which disables
// POST /api/v1/games; Hub may be nil, which disables the feed.
type Options struct {
	Store          *store.Store
	Driver         *driver.Driver
	BaseInputs     logic.Inputs
	InitialStage   string
	FirstNonce     uint64
	Hub            *Hub
	Token          string
	Logger         *log.Logger
	TraceCacheSize int
	RequestTimeout time.Duration
}

// Server handles HTTP requests.
type Server struct {
	store        *store.Store
	base         logic.Inputs
	initialStage string
	hub          *Hub
	token        string
	timeout      time.Duration
	traces       *lru.Cache[string, string]
	errorHandler *ErrorHandler
	logger       *log.Logger
	startTime    time.Time

	playMu  sync.Mutex
	session *driver.Session
}

func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}
	size := opts.TraceCacheSize
	if size <= 0 {
		size = defaultTraceCacheSize
	}
	traces, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("api: trace cache: %w", err)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Server{
		store:        opts.Store,
		base:         opts.BaseInputs,
		initialStage: opts.InitialStage,
		hub:          opts.Hub,
		token:        opts.Token,
		timeout:      timeout,
		traces:       traces,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
	}
	if opts.Driver != nil {
		s.session = opts.Driver.NewSession(opts.FirstNonce)
	}
	return s, nil
}

// Routes sets up the HTTP routes with their middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.errorHandler.RecoveryHandler)

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Get("/games", s.handleListGames)
			r.Post("/games", s.handlePlayGame)
			r.Get("/games/{id}", s.handleGetGame)
			r.Delete("/games/{id}", s.handleDeleteGame)
			r.Get("/games/{id}/rounds", s.handleGetRounds)
			r.Get("/games/{id}/rounds/{index}/trace", s.handleTrace)
		})

		// The feed is long-lived and stays outside the request timeout.
		r.Get("/feed", s.handleFeed)
	})

	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	s.logger.Printf("listening on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
