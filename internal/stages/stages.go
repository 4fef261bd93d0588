package stages

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MJE43/stake-cycles/internal/logic"
)

var (
	ErrStageNotFound  = errors.New("stages: stage not registered")
	ErrDuplicateStage = errors.New("stages: stage already registered")
	ErrBadPlacement   = errors.New("stages: unknown trigger placement")
)

// Placement says where a triggered round is scheduled.
type Placement int

const (
	// Next schedules the round right after the current one.
	Next Placement = iota
	// Immediately interrupts the current round.
	Immediately
	// End schedules the round after everything already pending.
	End
)

func (p Placement) String() string {
	switch p {
	case Next:
		return "next"
	case Immediately:
		return "immediately"
	case End:
		return "end"
	}
	return fmt.Sprintf("Placement(%d)", int(p))
}

// ParsePlacement accepts the String form case-insensitively. The empty
// string means Next.
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "next":
		return Next, nil
	case "immediately", "now":
		return Immediately, nil
	case "end":
		return End, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadPlacement, s)
}

// Trigger asks the driver to schedule a new round.
type Trigger struct {
	Stage       string    `json:"stage"`
	CycleID     string    `json:"cycle_id,omitempty"`
	TotalCycles int       `json:"total_cycles"`
	Placement   Placement `json:"placement"`
}

// Request is everything a stage sees while evaluating one round.
type Request struct {
	// StageIndex is the position of the round in the game, starting at 0.
	StageIndex int
	Cycle      logic.CycleState
	Inputs     logic.Inputs
	// Random returns the next provably-fair float in [0, 1).
	Random func() float64
}

// Outcome is what a stage produced for one round.
type Outcome struct {
	Processors  []logic.ProcessorResult
	Triggers    []Trigger
	ExtraCycles int
}

// Evaluator evaluates one round of one stage.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (Outcome, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, req Request) (Outcome, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	return f(ctx, req)
}

// Registry maps stage names to evaluators. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]Evaluator
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Evaluator)}
}

// Register binds name to e. A name can be registered once.
func (r *Registry) Register(name string, e Evaluator) error {
	if name == "" || e == nil {
		return fmt.Errorf("stages: register %q: missing name or evaluator", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byKey[name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, name)
	}
	r.byKey[name] = e
	return nil
}

// Lookup returns the evaluator for name.
func (r *Registry) Lookup(name string) (Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byKey[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, name)
	}
	return e, nil
}

// Names lists registered stages in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byKey))
	for name := range r.byKey {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
