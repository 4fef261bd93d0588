package logic

import (
	"fmt"
	"slices"
)

// Cycles is the ledger of rounds for one game: rounds already played, the
// current round, and rounds scheduled after it.
//
// A Cycles value is never modified. Every operation returns a new ledger
// and leaves the receiver untouched, so earlier snapshots can be retained
// for audit. Rounds before the current index are never altered; rounds are
// superseded, never removed.
type Cycles struct {
	states  []CycleState
	current int
	nextID  int
}

// CreateInitial returns a ledger holding one pending round of stage.
func CreateInitial(stage string) *Cycles {
	return &Cycles{
		states: []CycleState{{id: 0, stage: stage, total: 1}},
		nextID: 1,
	}
}

// Len is the number of rounds in the ledger, played or not.
func (c *Cycles) Len() int { return len(c.states) }

// At returns the round at index i. It panics if i is out of range.
func (c *Cycles) At(i int) CycleState { return c.states[i] }

// States returns a copy of every round in ledger order.
func (c *Cycles) States() []CycleState { return slices.Clone(c.states) }

// CurrentIndex is the position of the current round, or Len once finished.
func (c *Cycles) CurrentIndex() int { return c.current }

// NextID is the ID the next inserted round will receive.
func (c *Cycles) NextID() int { return c.nextID }

// IsFinished reports whether the pointer has moved past the last round.
func (c *Cycles) IsFinished() bool { return c.current >= len(c.states) }

// Current returns the round being played, or nil when the ledger is finished.
func (c *Cycles) Current() *CycleState {
	if c.IsFinished() {
		return nil
	}
	s := c.states[c.current]
	return &s
}

// Find returns the latest version of the round with the given ID.
func (c *Cycles) Find(id int) *CycleState {
	for _, s := range c.states {
		if s.id == id {
			return &s
		}
	}
	return nil
}

// Trigger resolves the round that inserted s, as it currently stands in
// this ledger.
func (c *Cycles) Trigger(s CycleState) *CycleState {
	id, ok := s.TriggeringID()
	if !ok {
		return nil
	}
	return c.Find(id)
}

// PlayOne records one played repetition of the current round. The pointer
// does not move. Call it before inserting rounds triggered by this one.
func (c *Cycles) PlayOne() (*Cycles, error) {
	if c.IsFinished() {
		return nil, fmt.Errorf("logic: play one: %w", ErrNoCurrentCycle)
	}
	cur := c.states[c.current]
	if cur.IsFinished() {
		return nil, fmt.Errorf("logic: play one on #%d %s (%d/%d): %w",
			cur.id, cur.stage, cur.completed, cur.total, ErrRoundComplete)
	}
	next := c.clone()
	next.states[c.current] = cur.withCounts(cur.total, cur.completed+1)
	return next, nil
}

// MoveNext advances past the current round once it is finished. Otherwise
// it returns the receiver so the same round repeats.
func (c *Cycles) MoveNext() *Cycles {
	if c.IsFinished() || !c.states[c.current].IsFinished() {
		return c
	}
	next := c.clone()
	next.current++
	return next
}

// InsertAtIndex schedules a new round at index. index may not precede the
// current round and may be at most Len (append).
//
// Inserting at the current index interrupts the current round: the new
// round becomes current and an unfinished interrupted round resumes after
// it. A finished current round is kept in place and the pointer moves on to
// the new round.
func (c *Cycles) InsertAtIndex(index int, trigger *CycleState, stage, cycleID string, totalCycles, completedCycles int) (*Cycles, error) {
	if index < c.current {
		return nil, fmt.Errorf("logic: insert %s at %d, current is %d: %w", stage, index, c.current, ErrRewriteHistory)
	}
	if index > len(c.states) {
		return nil, fmt.Errorf("logic: insert %s at %d of %d: %w", stage, index, len(c.states), ErrIndexOutOfRange)
	}
	if stage == "" {
		return nil, fmt.Errorf("logic: insert at %d with empty stage: %w", index, ErrMalformedInput)
	}
	if !validCounts(totalCycles, completedCycles) {
		return nil, fmt.Errorf("logic: insert %s with %d/%d: %w", stage, completedCycles, totalCycles, ErrInvalidCycleCount)
	}

	state := CycleState{
		id:        c.nextID,
		stage:     stage,
		cycleID:   cycleID,
		total:     totalCycles,
		completed: completedCycles,
	}
	if trigger != nil {
		if c.Find(trigger.id) == nil {
			return nil, fmt.Errorf("logic: insert %s triggered by #%d: %w", stage, trigger.id, ErrUnknownTrigger)
		}
		state.trigger = trigger.id
		state.hasTrigger = true
	}

	next := &Cycles{current: c.current, nextID: c.nextID + 1}
	if index == c.current && !c.IsFinished() && c.states[c.current].IsFinished() {
		index++
		next.current = index
	}
	next.states = make([]CycleState, 0, len(c.states)+1)
	next.states = append(next.states, c.states[:index]...)
	next.states = append(next.states, state)
	next.states = append(next.states, c.states[index:]...)
	return next, nil
}

// InsertImmediately interrupts the current round with a new one.
func (c *Cycles) InsertImmediately(trigger *CycleState, stage, cycleID string, totalCycles int) (*Cycles, error) {
	return c.InsertAtIndex(c.current, trigger, stage, cycleID, totalCycles, 0)
}

// InsertAtNext schedules a new round right after the current one finishes.
func (c *Cycles) InsertAtNext(trigger *CycleState, stage, cycleID string, totalCycles int) (*Cycles, error) {
	return c.InsertAtIndex(c.current+1, trigger, stage, cycleID, totalCycles, 0)
}

// InsertAtEnd schedules a new round after everything already scheduled.
func (c *Cycles) InsertAtEnd(trigger *CycleState, stage, cycleID string, totalCycles int) (*Cycles, error) {
	return c.InsertAtIndex(len(c.states), trigger, stage, cycleID, totalCycles, 0)
}

// ReplaceCurrent changes the counters of the current round, for example to
// award extra free spins. It returns the receiver itself when nothing
// changes, so callers can compare pointers to detect a no-op.
func (c *Cycles) ReplaceCurrent(totalCycles, completedCycles int) (*Cycles, error) {
	if c.IsFinished() {
		return nil, fmt.Errorf("logic: replace current: %w", ErrNoCurrentCycle)
	}
	return c.ReplaceAtIndex(c.current, totalCycles, completedCycles)
}

// ReplaceAtIndex changes the counters of the round at index, which may not
// precede the current round. Unchanged counters return the receiver.
func (c *Cycles) ReplaceAtIndex(index, totalCycles, completedCycles int) (*Cycles, error) {
	if index < c.current {
		return nil, fmt.Errorf("logic: replace at %d, current is %d: %w", index, c.current, ErrRewriteHistory)
	}
	if index >= len(c.states) {
		return nil, fmt.Errorf("logic: replace at %d of %d: %w", index, len(c.states), ErrIndexOutOfRange)
	}
	if !validCounts(totalCycles, completedCycles) {
		return nil, fmt.Errorf("logic: replace at %d with %d/%d: %w", index, completedCycles, totalCycles, ErrInvalidCycleCount)
	}
	old := c.states[index]
	if old.total == totalCycles && old.completed == completedCycles {
		return c, nil
	}
	next := c.clone()
	next.states[index] = old.withCounts(totalCycles, completedCycles)
	return next, nil
}

// Equal compares ledgers by content.
func (c *Cycles) Equal(o *Cycles) bool {
	if c == o {
		return true
	}
	if c == nil || o == nil {
		return false
	}
	return c.current == o.current && c.nextID == o.nextID && slices.Equal(c.states, o.states)
}

// Encode returns the single-line form of a freshly initial ledger, which is
// just its stage name. Any other ledger returns ErrNotInitial.
func (c *Cycles) Encode() (string, error) {
	if len(c.states) != 1 || c.current != 0 || c.nextID != 1 {
		return "", fmt.Errorf("logic: encode cycles: %w", ErrNotInitial)
	}
	s := c.states[0]
	if s.id != 0 || s.total != 1 || s.completed != 0 || s.hasTrigger || s.cycleID != "" {
		return "", fmt.Errorf("logic: encode cycles: %w", ErrNotInitial)
	}
	return s.stage, nil
}

func (c *Cycles) clone() *Cycles {
	return &Cycles{
		states:  slices.Clone(c.states),
		current: c.current,
		nextID:  c.nextID,
	}
}
