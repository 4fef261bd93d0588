package logic

import (
	"fmt"
	"slices"
)

// CycleResult is the outcome of evaluating one round: the inputs the round
// ran with, the ledger after the round, prizes, and the stage results.
type CycleResult struct {
	inputs            Inputs
	cycles            *Cycles
	awardedPrize      Credits
	totalAwardedPrize Credits
	stageResults      StageResults
	progressives      []string
}

// NewCycleResult assembles a round result.
func NewCycleResult(inputs Inputs, cycles *Cycles, awarded, totalAwarded Credits, results StageResults, progressives []string) CycleResult {
	return CycleResult{
		inputs:            inputs,
		cycles:            cycles,
		awardedPrize:      awarded,
		totalAwardedPrize: totalAwarded,
		stageResults:      results,
		progressives:      slices.Clone(progressives),
	}
}

func (r CycleResult) Inputs() Inputs { return r.inputs }

func (r CycleResult) Cycles() *Cycles { return r.cycles }

// AwardedPrize is what this round paid.
func (r CycleResult) AwardedPrize() Credits { return r.awardedPrize }

// TotalAwardedPrize is what the game has paid up to and including this round.
func (r CycleResult) TotalAwardedPrize() Credits { return r.totalAwardedPrize }

func (r CycleResult) StageResults() StageResults { return r.stageResults }

func (r CycleResult) Progressives() []string { return slices.Clone(r.progressives) }

// GetVariableValue looks up a variable produced this round, falling back
// to a variable carried in Inputs from an earlier round.
func (r CycleResult) GetVariableValue(name string) (Value, error) {
	v, ok := r.TryGetVariableValue(name)
	if !ok {
		return nil, fmt.Errorf("logic: get variable %q: %w", name, ErrVariableNotFound)
	}
	return v, nil
}

// TryGetVariableValue is GetVariableValue without the error. When a round
// sets the same variable more than once the last result wins.
func (r CycleResult) TryGetVariableValue(name string) (Value, bool) {
	for i := len(r.stageResults.items) - 1; i >= 0; i-- {
		sr := r.stageResults.items[i]
		if sr.Name != name {
			continue
		}
		if v, ok := sr.Variable(); ok {
			return v.Value(), true
		}
	}
	if in, ok := r.inputs.TryGet(name); ok && in.IsVariable() {
		return in.Value(), true
	}
	return nil, false
}

// GetVariableValues maps every visible variable name to its value. Round
// results override same-named carried variables.
func (r CycleResult) GetVariableValues() map[string]Value {
	out := make(map[string]Value)
	for _, in := range r.inputs.items {
		if in.IsVariable() {
			out[in.name] = in.value
		}
	}
	for _, v := range r.stageResults.Variables() {
		out[v.name] = v.value
	}
	return out
}
