package driver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/multierr"

	"github.com/MJE43/stake-cycles/internal/logic"
	"github.com/MJE43/stake-cycles/internal/rng"
	"github.com/MJE43/stake-cycles/internal/stages"
)

// Game is one game in progress. It is not safe for concurrent use.
type Game struct {
	driver  *Driver
	session *Session
	info    GameInfo

	inputs       logic.Inputs
	rounds       int
	total        logic.Credits
	progressives []string
	done         bool
	status       string
}

func (g *Game) Info() GameInfo { return g.info }

func (g *Game) ID() string { return g.info.ID }

// Inputs is the carried state: base inputs, OneGame and Permanent
// variables, and the ledger.
func (g *Game) Inputs() logic.Inputs { return g.inputs }

func (g *Game) Cycles() *logic.Cycles {
	c, _ := g.inputs.GetCycles()
	return c
}

func (g *Game) Rounds() int { return g.rounds }

func (g *Game) TotalAwarded() logic.Credits { return g.total }

func (g *Game) Finished() bool { return g.done }

// Step plays the current round:
//
//  1. evaluate the current stage with the round's random stream
//  2. fold the round's variables into Inputs; OneCycle ones only overlay
//  3. PlayOne, then apply extra cycles to the played round
//  4. schedule exits through the stage graph and triggers by placement
//  5. MoveNext and store the ledger back into Inputs
//
// OneCycle variables are visible in the returned CycleResult only. When
// the ledger finishes, OneGame variables are dropped and Permanent ones
// pass to the session.
//
// Listener failures do not undo the round; Step reports them wrapped in
// ErrListener after the state has advanced.
func (g *Game) Step(ctx context.Context) (logic.CycleResult, RoundRecord, error) {
	if g.done {
		return logic.CycleResult{}, RoundRecord{}, ErrGameOver
	}
	if g.rounds >= g.driver.maxRounds() {
		return logic.CycleResult{}, RoundRecord{}, fmt.Errorf("%w: %d rounds in game %s", ErrRoundLimit, g.rounds, g.info.ID)
	}

	cycles, err := g.inputs.GetCycles()
	if err != nil {
		return logic.CycleResult{}, RoundRecord{}, err
	}
	cur := cycles.Current()
	if cur == nil {
		return logic.CycleResult{}, RoundRecord{}, fmt.Errorf("driver: game %s: %w", g.info.ID, logic.ErrNoCurrentCycle)
	}
	ev, err := g.driver.Registry.Lookup(cur.Stage())
	if err != nil {
		return logic.CycleResult{}, RoundRecord{}, err
	}

	nonce := g.session.takeNonce()
	stream := rng.NewStream(g.driver.Seeds, nonce)
	out, err := ev.Evaluate(ctx, stages.Request{
		StageIndex: g.rounds,
		Cycle:      *cur,
		Inputs:     g.inputs,
		Random:     stream.Float,
	})
	if err != nil {
		return logic.CycleResult{}, RoundRecord{}, fmt.Errorf("driver: round %d (%s): %w", g.rounds, cur.Stage(), err)
	}

	results := logic.BuildStageResults(g.rounds, out.Processors)
	carried, visible, err := foldRound(g.inputs, results.Variables())
	if err != nil {
		return logic.CycleResult{}, RoundRecord{}, err
	}

	next, err := g.advance(cycles, cur, results.Exits(), out)
	if err != nil {
		return logic.CycleResult{}, RoundRecord{}, fmt.Errorf("driver: round %d (%s): %w", g.rounds, cur.Stage(), err)
	}
	if carried, err = carried.WithCycles(next); err != nil {
		return logic.CycleResult{}, RoundRecord{}, err
	}
	if visible, err = visible.WithCycles(next); err != nil {
		return logic.CycleResult{}, RoundRecord{}, err
	}

	awarded := results.AwardedCredits()
	progressives := results.Progressives()
	g.total += awarded
	g.progressives = append(g.progressives, progressives...)
	g.rounds++

	result := logic.NewCycleResult(visible, next, awarded, g.total, results, progressives)

	if next.IsFinished() {
		carried = carried.RemoveWhere(hasLifespan(logic.OneGame))
		g.session.keep(permanentOnly(carried))
		g.done = true
		g.status = StatusFinished
	}
	g.inputs = carried

	rec := RoundRecord{
		GameID:       g.info.ID,
		Index:        g.rounds - 1,
		Nonce:        nonce,
		Stage:        cur.Stage(),
		CycleStateID: cur.ID(),
		CycleID:      cur.CycleID(),
		Awarded:      awarded,
		TotalAwarded: g.total,
		Inputs:       visible,
		Cycles:       next,
		Results:      results,
		Progressives: progressives,
		Finished:     g.done,
		PlayedAt:     time.Now().UTC(),
	}

	var errs error
	for _, l := range g.driver.Listeners {
		errs = multierr.Append(errs, l.RoundPlayed(ctx, rec))
	}
	if g.done {
		errs = multierr.Append(errs, g.end(ctx))
	}
	if errs != nil {
		return result, rec, fmt.Errorf("%w: %w", ErrListener, errs)
	}
	return result, rec, nil
}

// advance applies one played round to the ledger. Extra cycles go to the
// played round before anything is inserted. Exits and Next triggers keep
// their emission order after the played round; Immediately triggers are
// applied last so each interrupts the round before it.
func (g *Game) advance(cycles *logic.Cycles, cur *logic.CycleState, exits []string, out stages.Outcome) (*logic.Cycles, error) {
	c, err := cycles.PlayOne()
	if err != nil {
		return nil, err
	}
	played := c.Current()
	if out.ExtraCycles > 0 {
		c, err = c.ReplaceCurrent(played.TotalCycles()+out.ExtraCycles, played.CompletedCycles())
		if err != nil {
			return nil, err
		}
		played = c.Current()
	}

	after := c.CurrentIndex() + 1
	for _, exit := range exits {
		to, ok := g.driver.Graph.Next(cur.Stage(), exit)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownExit, cur.Stage(), exit)
		}
		if c, err = c.InsertAtIndex(after, played, to, "", 1, 0); err != nil {
			return nil, err
		}
		after++
	}

	var immediate []stages.Trigger
	for _, t := range out.Triggers {
		if _, err := g.driver.Registry.Lookup(t.Stage); err != nil {
			return nil, err
		}
		switch t.Placement {
		case stages.Next:
			c, err = c.InsertAtIndex(after, played, t.Stage, t.CycleID, t.TotalCycles, 0)
			after++
		case stages.End:
			c, err = c.InsertAtEnd(played, t.Stage, t.CycleID, t.TotalCycles)
		case stages.Immediately:
			immediate = append(immediate, t)
		default:
			err = fmt.Errorf("%w: %v", stages.ErrBadPlacement, t.Placement)
		}
		if err != nil {
			return nil, err
		}
	}
	for _, t := range slices.Backward(immediate) {
		if c, err = c.InsertImmediately(played, t.Stage, t.CycleID, t.TotalCycles); err != nil {
			return nil, err
		}
	}

	return c.MoveNext(), nil
}

func (g *Game) summary() Summary {
	return Summary{
		GameID:       g.info.ID,
		InitialStage: g.info.InitialStage,
		Rounds:       g.rounds,
		TotalAwarded: g.total,
		Progressives: slices.Clone(g.progressives),
		Status:       g.status,
		EndedAt:      time.Now().UTC(),
	}
}

func (g *Game) end(ctx context.Context) error {
	sum := g.summary()
	g.driver.logger().Printf("game %s %s after %d rounds, awarded %d", sum.GameID, sum.Status, sum.Rounds, sum.TotalAwarded)
	var errs error
	for _, l := range g.driver.Listeners {
		if gl, ok := l.(GameListener); ok {
			errs = multierr.Append(errs, gl.GameEnded(ctx, sum))
		}
	}
	return errs
}

// Run steps until the ledger finishes. Listener failures are logged and
// collected; any other error aborts the game, which is then reported to
// game listeners with StatusAborted.
func (g *Game) Run(ctx context.Context) (Summary, error) {
	var listenerErrs error
	for !g.done {
		if err := ctx.Err(); err != nil {
			return g.abort(ctx, err, listenerErrs)
		}
		_, _, err := g.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrListener):
			g.driver.logger().Printf("game %s round %d: %v", g.info.ID, g.rounds-1, err)
			listenerErrs = multierr.Append(listenerErrs, err)
		default:
			return g.abort(ctx, err, listenerErrs)
		}
	}
	return g.summary(), listenerErrs
}

func (g *Game) abort(ctx context.Context, cause, listenerErrs error) (Summary, error) {
	g.done = true
	g.status = StatusAborted
	g.driver.logger().Printf("game %s aborted: %v", g.info.ID, cause)
	endErr := g.end(context.WithoutCancel(ctx))
	return g.summary(), multierr.Combine(cause, listenerErrs, endErr)
}
