package driver

import (
	"fmt"

	"github.com/MJE43/stake-cycles/internal/logic"
)

// foldVariables merges a round's variables into in. A name set more than
// once in the round keeps its first position and its last value.
func foldVariables(in logic.Inputs, vars []logic.Input) (logic.Inputs, error) {
	if len(vars) == 0 {
		return in, nil
	}
	pos := make(map[string]int, len(vars))
	merged := make([]logic.Input, 0, len(vars))
	for _, v := range vars {
		if v.Name() == logic.CyclesInputName {
			return logic.Inputs{}, fmt.Errorf("driver: variable %q: %w", v.Name(), ErrReservedName)
		}
		if i, ok := pos[v.Name()]; ok {
			merged[i] = v
			continue
		}
		pos[v.Name()] = len(merged)
		merged = append(merged, v)
	}
	return in.ReplaceOrAdd(merged)
}

// foldRound folds a round's variables into the carried inputs. carried
// takes every variable but the OneCycle ones; visible is carried with the
// OneCycle variables laid over it and lives for this round only.
func foldRound(in logic.Inputs, vars []logic.Input) (carried, visible logic.Inputs, err error) {
	oneCycle := hasLifespan(logic.OneCycle)
	var keep, overlay []logic.Input
	for _, v := range vars {
		if oneCycle(v) {
			overlay = append(overlay, v)
		} else {
			keep = append(keep, v)
		}
	}
	if carried, err = foldVariables(in, keep); err != nil {
		return logic.Inputs{}, logic.Inputs{}, err
	}
	if visible, err = foldVariables(carried, overlay); err != nil {
		return logic.Inputs{}, logic.Inputs{}, err
	}
	return carried, visible, nil
}

func hasLifespan(l logic.Lifespan) func(logic.Input) bool {
	return func(in logic.Input) bool {
		got, ok := in.Lifespan()
		return ok && got == l
	}
}

// permanentOnly keeps the Permanent variables of in.
func permanentOnly(in logic.Inputs) logic.Inputs {
	return in.RemoveWhere(func(it logic.Input) bool {
		return !hasLifespan(logic.Permanent)(it)
	})
}
