package logic

import (
	"fmt"
	"slices"
)

// StageResultType says what a StageResult's Value holds:
//
//	AwardCreditsList  []Credits
//	ExitList          []string, exit names of the stage graph
//	ProgressiveList   []string, progressive levels hit
//	Presentation      anything the presentation layer wants
//	Variable*         Value, to be folded into Inputs per lifespan
type StageResultType int

const (
	AwardCreditsList StageResultType = iota
	ExitList
	ProgressiveList
	Presentation
	VariablePermanent
	VariableOneGame
	VariableOneCycle
)

var stageResultTypeNames = [...]string{
	AwardCreditsList:  "AwardCreditsList",
	ExitList:          "ExitList",
	ProgressiveList:   "ProgressiveList",
	Presentation:      "Presentation",
	VariablePermanent: "VariablePermanent",
	VariableOneGame:   "VariableOneGame",
	VariableOneCycle:  "VariableOneCycle",
}

func (t StageResultType) String() string {
	if t >= 0 && int(t) < len(stageResultTypeNames) {
		return stageResultTypeNames[t]
	}
	return fmt.Sprintf("StageResultType(%d)", int(t))
}

// ParseStageResultType is the inverse of String.
func ParseStageResultType(s string) (StageResultType, error) {
	for i, name := range stageResultTypeNames {
		if name == s {
			return StageResultType(i), nil
		}
	}
	return 0, fmt.Errorf("logic: unknown stage result type %q: %w", s, ErrMalformedInput)
}

// IsVariable reports whether the type is one of the Variable kinds.
func (t StageResultType) IsVariable() bool {
	return t == VariablePermanent || t == VariableOneGame || t == VariableOneCycle
}

// Lifespan maps a Variable type to its lifespan.
func (t StageResultType) Lifespan() (Lifespan, bool) {
	switch t {
	case VariablePermanent:
		return Permanent, true
	case VariableOneGame:
		return OneGame, true
	case VariableOneCycle:
		return OneCycle, true
	}
	return 0, false
}

// VariableType is the StageResultType that carries a variable of lifespan l.
func VariableType(l Lifespan) StageResultType {
	switch l {
	case Permanent:
		return VariablePermanent
	case OneGame:
		return VariableOneGame
	default:
		return VariableOneCycle
	}
}

// StageResult is one named output of one processor within a stage.
// StageIndex and ProcessorIndex locate it for diagnostics.
type StageResult struct {
	StageIndex     int
	ProcessorIndex int
	Name           string
	Type           StageResultType
	Value          any
}

// IsVariable reports whether the result carries a variable.
func (r StageResult) IsVariable() bool { return r.Type.IsVariable() }

// Variable returns the result as a Variable input. It returns false for
// non-variable results and for variable results without a Value.
func (r StageResult) Variable() (Input, bool) {
	l, ok := r.Type.Lifespan()
	if !ok {
		return Input{}, false
	}
	v, ok := r.Value.(Value)
	if !ok || !validValue(v) {
		return Input{}, false
	}
	return NewVariable(r.Name, v, l), true
}

// StageResults is a read-only ordered list of stage results for a round.
type StageResults struct {
	items []StageResult
}

// NewStageResults copies items into a new list.
func NewStageResults(items ...StageResult) StageResults {
	return StageResults{items: slices.Clone(items)}
}

func (rs StageResults) Len() int { return len(rs.items) }

// At returns the result at position i. It panics if i is out of range.
func (rs StageResults) At(i int) StageResult { return rs.items[i] }

// All returns a copy of the results in order.
func (rs StageResults) All() []StageResult { return slices.Clone(rs.items) }

// Variables returns the variable results as inputs, in order.
func (rs StageResults) Variables() []Input {
	var out []Input
	for _, r := range rs.items {
		if v, ok := r.Variable(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Exits returns the exit names listed by ExitList results, in order.
func (rs StageResults) Exits() []string {
	return rs.strings(ExitList)
}

// Progressives returns the progressive levels hit, in order.
func (rs StageResults) Progressives() []string {
	return rs.strings(ProgressiveList)
}

// AwardedCredits totals every AwardCreditsList result.
func (rs StageResults) AwardedCredits() Credits {
	var total Credits
	for _, r := range rs.items {
		if r.Type != AwardCreditsList {
			continue
		}
		switch v := r.Value.(type) {
		case []Credits:
			for _, c := range v {
				total = total.Add(c)
			}
		case Credits:
			total = total.Add(v)
		}
	}
	return total
}

func (rs StageResults) strings(t StageResultType) []string {
	var out []string
	for _, r := range rs.items {
		if r.Type != t {
			continue
		}
		switch v := r.Value.(type) {
		case []string:
			out = append(out, v...)
		case string:
			out = append(out, v)
		}
	}
	return out
}
