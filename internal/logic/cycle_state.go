package logic

// CycleState is one scheduled or playing round in a Cycles ledger. It is
// created only by Cycles operations and never modified; a changed round is
// a new CycleState carrying the same ID.
type CycleState struct {
	id         int
	trigger    int
	hasTrigger bool
	stage      string
	cycleID    string
	total      int
	completed  int
}

// ID is unique within the ledger that created the state.
func (s CycleState) ID() int { return s.id }

// Stage names the game stage this round plays.
func (s CycleState) Stage() string { return s.stage }

// CycleID discriminates repeated rounds of the same stage. Empty when unset.
func (s CycleState) CycleID() string { return s.cycleID }

func (s CycleState) TotalCycles() int { return s.total }

func (s CycleState) CompletedCycles() int { return s.completed }

func (s CycleState) RemainingCycles() int { return s.total - s.completed }

// IsFinished reports whether every requested repetition has been played.
func (s CycleState) IsFinished() bool { return s.completed == s.total }

// TriggeringID returns the ID of the round that inserted this one.
// Resolve it with Cycles.Trigger.
func (s CycleState) TriggeringID() (int, bool) { return s.trigger, s.hasTrigger }

// Equal compares every field, including the triggering reference.
func (s CycleState) Equal(o CycleState) bool {
	return s == o
}

func (s CycleState) withCounts(total, completed int) CycleState {
	s.total = total
	s.completed = completed
	return s
}

func validCounts(total, completed int) bool {
	return total >= 1 && completed >= 0 && completed <= total
}
