package logic

import (
	"encoding/json"
	"fmt"
)

// JSON forms are exact: decoding what was encoded yields an equal value.
// They exist for the audit ledger, where a round's Inputs and Cycles must
// be restorable long after the game was played.

type valueJSON struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func marshalValue(v Value) (valueJSON, error) {
	var (
		raw []byte
		err error
	)
	switch tv := v.(type) {
	case Credits:
		raw, err = json.Marshal(int64(tv))
	case Money:
		raw, err = json.Marshal(tv.String())
	case Integer:
		raw, err = json.Marshal(int64(tv))
	case Text:
		raw, err = json.Marshal(string(tv))
	case *Cycles:
		if tv == nil {
			return valueJSON{}, fmt.Errorf("logic: marshal nil cycles: %w", ErrMalformedInput)
		}
		raw, err = json.Marshal(tv)
	default:
		return valueJSON{}, fmt.Errorf("logic: marshal value %T: %w", v, ErrFormatNotSupported)
	}
	if err != nil {
		return valueJSON{}, err
	}
	return valueJSON{Kind: string(rune(v.Kind())), Value: raw}, nil
}

func unmarshalValue(vj valueJSON) (Value, error) {
	if len(vj.Kind) != 1 {
		return nil, fmt.Errorf("logic: value kind %q: %w", vj.Kind, ErrMalformedInput)
	}
	switch ValueKind(vj.Kind[0]) {
	case KindCredits:
		var n int64
		if err := json.Unmarshal(vj.Value, &n); err != nil {
			return nil, fmt.Errorf("logic: decode credits: %w", err)
		}
		return Credits(n), nil
	case KindMoney:
		var s string
		if err := json.Unmarshal(vj.Value, &s); err != nil {
			return nil, fmt.Errorf("logic: decode money: %w", err)
		}
		return MoneyFromString(s)
	case KindInteger:
		var n int64
		if err := json.Unmarshal(vj.Value, &n); err != nil {
			return nil, fmt.Errorf("logic: decode integer: %w", err)
		}
		return Integer(n), nil
	case KindText:
		var s string
		if err := json.Unmarshal(vj.Value, &s); err != nil {
			return nil, fmt.Errorf("logic: decode text: %w", err)
		}
		return Text(s), nil
	case KindCycles:
		c := &Cycles{}
		if err := json.Unmarshal(vj.Value, c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("logic: value kind %q: %w", vj.Kind, ErrMalformedInput)
}

type inputJSON struct {
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Value    json.RawMessage `json:"value"`
	Lifespan string          `json:"lifespan,omitempty"`
}

func (in Input) MarshalJSON() ([]byte, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	vj, err := marshalValue(in.value)
	if err != nil {
		return nil, fmt.Errorf("logic: marshal input %q: %w", in.name, err)
	}
	ij := inputJSON{Name: in.name, Kind: vj.Kind, Value: vj.Value}
	if in.variable {
		ij.Lifespan = in.lifespan.String()
	}
	return json.Marshal(ij)
}

func (in *Input) UnmarshalJSON(data []byte) error {
	var ij inputJSON
	if err := json.Unmarshal(data, &ij); err != nil {
		return err
	}
	v, err := unmarshalValue(valueJSON{Kind: ij.Kind, Value: ij.Value})
	if err != nil {
		return fmt.Errorf("logic: unmarshal input %q: %w", ij.Name, err)
	}
	decoded := NewInput(ij.Name, v)
	if ij.Lifespan != "" {
		l, err := ParseLifespan(ij.Lifespan)
		if err != nil {
			return err
		}
		decoded = NewVariable(ij.Name, v, l)
	}
	if err := decoded.validate(); err != nil {
		return err
	}
	*in = decoded
	return nil
}

func (in Inputs) MarshalJSON() ([]byte, error) {
	if in.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(in.items)
}

func (in *Inputs) UnmarshalJSON(data []byte) error {
	var items []Input
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	decoded, err := NewInputs(items...)
	if err != nil {
		return err
	}
	*in = decoded
	return nil
}

type cycleStateJSON struct {
	ID              int    `json:"id"`
	TriggeringID    *int   `json:"triggering_id,omitempty"`
	Stage           string `json:"stage"`
	CycleID         string `json:"cycle_id,omitempty"`
	TotalCycles     int    `json:"total_cycles"`
	CompletedCycles int    `json:"completed_cycles"`
}

type cyclesJSON struct {
	States  []cycleStateJSON `json:"states"`
	Current int              `json:"current"`
	NextID  int              `json:"next_id"`
}

func (c *Cycles) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	out := cyclesJSON{
		States:  make([]cycleStateJSON, len(c.states)),
		Current: c.current,
		NextID:  c.nextID,
	}
	for i, s := range c.states {
		sj := cycleStateJSON{
			ID:              s.id,
			Stage:           s.stage,
			CycleID:         s.cycleID,
			TotalCycles:     s.total,
			CompletedCycles: s.completed,
		}
		if s.hasTrigger {
			t := s.trigger
			sj.TriggeringID = &t
		}
		out.States[i] = sj
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a ledger and rejects any that breaks the ledger
// invariants: at least one round, a pointer within range, unique IDs below
// NextID, valid counters and resolvable triggers.
func (c *Cycles) UnmarshalJSON(data []byte) error {
	var cj cyclesJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("logic: unmarshal cycles: "+format+": %w", append(args, ErrMalformedInput)...)
	}
	if len(cj.States) == 0 {
		return bad("no rounds")
	}
	if cj.Current < 0 || cj.Current > len(cj.States) {
		return bad("current %d out of range", cj.Current)
	}
	ids := make(map[int]bool, len(cj.States))
	states := make([]CycleState, len(cj.States))
	for i, sj := range cj.States {
		if sj.ID < 0 || sj.ID >= cj.NextID || ids[sj.ID] {
			return bad("round id %d", sj.ID)
		}
		ids[sj.ID] = true
		if sj.Stage == "" {
			return bad("round #%d has no stage", sj.ID)
		}
		if !validCounts(sj.TotalCycles, sj.CompletedCycles) {
			return bad("round #%d counts %d/%d", sj.ID, sj.CompletedCycles, sj.TotalCycles)
		}
		states[i] = CycleState{
			id:        sj.ID,
			stage:     sj.Stage,
			cycleID:   sj.CycleID,
			total:     sj.TotalCycles,
			completed: sj.CompletedCycles,
		}
		if sj.TriggeringID != nil {
			states[i].trigger = *sj.TriggeringID
			states[i].hasTrigger = true
		}
	}
	for _, s := range states {
		if s.hasTrigger && !ids[s.trigger] {
			return bad("round #%d triggered by unknown #%d", s.id, s.trigger)
		}
	}
	*c = Cycles{states: states, current: cj.Current, nextID: cj.NextID}
	return nil
}

type stageResultJSON struct {
	StageIndex     int             `json:"stage_index"`
	ProcessorIndex int             `json:"processor_index"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Value          json.RawMessage `json:"value,omitempty"`
}

func (r StageResult) MarshalJSON() ([]byte, error) {
	out := stageResultJSON{
		StageIndex:     r.StageIndex,
		ProcessorIndex: r.ProcessorIndex,
		Name:           r.Name,
		Type:           r.Type.String(),
	}
	var err error
	if r.Type.IsVariable() {
		v, ok := r.Value.(Value)
		if !ok {
			return nil, fmt.Errorf("logic: marshal variable result %q holds %T: %w", r.Name, r.Value, ErrMalformedInput)
		}
		var vj valueJSON
		if vj, err = marshalValue(v); err == nil {
			out.Value, err = json.Marshal(vj)
		}
	} else if r.Value != nil {
		out.Value, err = json.Marshal(r.Value)
	}
	if err != nil {
		return nil, fmt.Errorf("logic: marshal stage result %q: %w", r.Name, err)
	}
	return json.Marshal(out)
}

func (r *StageResult) UnmarshalJSON(data []byte) error {
	var rj stageResultJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return err
	}
	t, err := ParseStageResultType(rj.Type)
	if err != nil {
		return err
	}
	decoded := StageResult{
		StageIndex:     rj.StageIndex,
		ProcessorIndex: rj.ProcessorIndex,
		Name:           rj.Name,
		Type:           t,
	}
	if len(rj.Value) > 0 {
		decoded.Value, err = decodeResultValue(t, rj.Value)
		if err != nil {
			return fmt.Errorf("logic: unmarshal stage result %q: %w", rj.Name, err)
		}
	}
	*r = decoded
	return nil
}

func decodeResultValue(t StageResultType, raw json.RawMessage) (any, error) {
	switch {
	case t.IsVariable():
		var vj valueJSON
		if err := json.Unmarshal(raw, &vj); err != nil {
			return nil, err
		}
		return unmarshalValue(vj)
	case t == AwardCreditsList:
		var list []Credits
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
		var one Credits
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		return one, nil
	case t == ExitList || t == ProgressiveList:
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
		var one string
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		return one, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (rs StageResults) MarshalJSON() ([]byte, error) {
	if rs.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(rs.items)
}

func (rs *StageResults) UnmarshalJSON(data []byte) error {
	var items []StageResult
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	rs.items = items
	return nil
}
