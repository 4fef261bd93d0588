package logic

import (
	"errors"
	"math/rand"
	"testing"
)

func mustCycles(c *Cycles, err error) func(*testing.T) *Cycles {
	return func(t *testing.T) *Cycles {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return c
	}
}

func stages(c *Cycles) []string {
	out := make([]string, c.Len())
	for i := range out {
		out[i] = c.At(i).Stage()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCreateInitial(t *testing.T) {
	c := CreateInitial("Base")

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if c.IsFinished() {
		t.Error("fresh ledger should not be finished")
	}
	cur := c.Current()
	if cur == nil {
		t.Fatal("Current = nil")
	}
	if cur.ID() != 0 || cur.Stage() != "Base" || cur.TotalCycles() != 1 || cur.CompletedCycles() != 0 {
		t.Errorf("Current = #%d %s %d/%d, want #0 Base 0/1", cur.ID(), cur.Stage(), cur.CompletedCycles(), cur.TotalCycles())
	}
	if _, ok := cur.TriggeringID(); ok {
		t.Error("initial round should have no trigger")
	}
	if c.NextID() != 1 {
		t.Errorf("NextID = %d, want 1", c.NextID())
	}
}

func TestPlayOneThenMoveNext(t *testing.T) {
	c := CreateInitial("Base")

	played := mustCycles(c.PlayOne())(t)
	if played.CurrentIndex() != 0 {
		t.Errorf("PlayOne moved the pointer to %d", played.CurrentIndex())
	}
	if got := played.Current().CompletedCycles(); got != 1 {
		t.Errorf("CompletedCycles = %d, want 1", got)
	}
	if played.IsFinished() {
		t.Error("ledger finished before MoveNext")
	}
	if got := c.Current().CompletedCycles(); got != 0 {
		t.Errorf("PlayOne mutated the receiver: CompletedCycles = %d", got)
	}

	moved := played.MoveNext()
	if !moved.IsFinished() {
		t.Error("expected finished ledger after MoveNext")
	}
	if moved.Current() != nil {
		t.Error("Current should be nil once finished")
	}
	if moved.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex = %d, want 1", moved.CurrentIndex())
	}

	if _, err := moved.PlayOne(); !errors.Is(err, ErrNoCurrentCycle) {
		t.Errorf("PlayOne on finished ledger: err = %v, want ErrNoCurrentCycle", err)
	}
	if _, err := played.PlayOne(); !errors.Is(err, ErrRoundComplete) {
		t.Errorf("PlayOne on completed round: err = %v, want ErrRoundComplete", err)
	}
	if again := moved.MoveNext(); again != moved {
		t.Error("MoveNext on a finished ledger should return the receiver")
	}
}

func TestMoveNextRepeatsUnfinishedRound(t *testing.T) {
	c := mustCycles(CreateInitial("FreeGames").ReplaceCurrent(3, 0))(t)
	c = mustCycles(c.PlayOne())(t)

	if next := c.MoveNext(); next != c {
		t.Error("MoveNext should be a no-op while the round has spins left")
	}
	if c.Current().RemainingCycles() != 2 {
		t.Errorf("RemainingCycles = %d, want 2", c.Current().RemainingCycles())
	}
}

func TestInsertImmediatelyInterruptsPendingRound(t *testing.T) {
	c := mustCycles(CreateInitial("Base").InsertImmediately(nil, "FreeGames", "", 10))(t)

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if c.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex = %d, want 0", c.CurrentIndex())
	}
	fg := c.At(0)
	if fg.ID() != 1 || fg.Stage() != "FreeGames" || fg.TotalCycles() != 10 || fg.CompletedCycles() != 0 {
		t.Errorf("At(0) = #%d %s %d/%d, want #1 FreeGames 0/10", fg.ID(), fg.Stage(), fg.CompletedCycles(), fg.TotalCycles())
	}
	base := c.At(1)
	if base.ID() != 0 || base.Stage() != "Base" || base.TotalCycles() != 1 || base.CompletedCycles() != 0 {
		t.Errorf("At(1) = #%d %s %d/%d, want #0 Base 0/1", base.ID(), base.Stage(), base.CompletedCycles(), base.TotalCycles())
	}
}

func TestInsertImmediatelySupersedesFinishedRound(t *testing.T) {
	c := mustCycles(CreateInitial("Base").PlayOne())(t)
	trigger := c.Current()

	c = mustCycles(c.InsertImmediately(trigger, "Bonus", "", 1))(t)

	if !equalStrings(stages(c), []string{"Base", "Bonus"}) {
		t.Fatalf("stages = %v, want [Base Bonus]", stages(c))
	}
	if c.CurrentIndex() != 1 {
		t.Errorf("CurrentIndex = %d, want 1", c.CurrentIndex())
	}
	if got := c.At(0).CompletedCycles(); got != 1 {
		t.Errorf("finished round was altered: CompletedCycles = %d", got)
	}
	id, ok := c.Current().TriggeringID()
	if !ok || id != 0 {
		t.Errorf("TriggeringID = %d, %v, want 0, true", id, ok)
	}
	if tr := c.Trigger(*c.Current()); tr == nil || tr.Stage() != "Base" {
		t.Errorf("Trigger = %v, want Base", tr)
	}
}

func TestInsertAtNextAfterFinishedRound(t *testing.T) {
	c := mustCycles(CreateInitial("FreeGames").ReplaceCurrent(5, 5))(t)
	c = mustCycles(c.InsertAtNext(c.Current(), "Bonus", "", 1))(t)

	if c.CurrentIndex() != 0 {
		t.Fatalf("InsertAtNext moved the pointer to %d", c.CurrentIndex())
	}
	c = c.MoveNext()
	if c.CurrentIndex() != 1 {
		t.Fatalf("CurrentIndex = %d, want 1", c.CurrentIndex())
	}
	if c.Current().Stage() != "Bonus" {
		t.Errorf("Current = %s, want Bonus", c.Current().Stage())
	}
}

func TestInsertOrdering(t *testing.T) {
	c := CreateInitial("A")
	c = mustCycles(c.InsertAtEnd(nil, "B", "", 1))(t)
	c = mustCycles(c.InsertAtEnd(nil, "C", "", 1))(t)
	c = mustCycles(c.InsertAtNext(nil, "D", "", 1))(t)

	if !equalStrings(stages(c), []string{"A", "D", "B", "C"}) {
		t.Errorf("stages = %v, want [A D B C]", stages(c))
	}
	wantIDs := []int{0, 3, 1, 2}
	for i, want := range wantIDs {
		if got := c.At(i).ID(); got != want {
			t.Errorf("At(%d).ID = %d, want %d", i, got, want)
		}
	}
}

func TestInsertAtIndexBounds(t *testing.T) {
	c := CreateInitial("A")
	c = mustCycles(c.InsertAtEnd(nil, "B", "", 1))(t)
	c = mustCycles(c.InsertAtEnd(nil, "C", "", 1))(t)
	for i := 0; i < 2; i++ {
		c = mustCycles(c.PlayOne())(t).MoveNext()
	}
	if c.CurrentIndex() != 2 {
		t.Fatalf("CurrentIndex = %d, want 2", c.CurrentIndex())
	}

	for _, index := range []int{0, 1} {
		if _, err := c.InsertAtIndex(index, nil, "X", "", 1, 0); !errors.Is(err, ErrRewriteHistory) {
			t.Errorf("InsertAtIndex(%d): err = %v, want ErrRewriteHistory", index, err)
		}
	}
	if _, err := c.InsertAtIndex(4, nil, "X", "", 1, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("InsertAtIndex(4): err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := c.InsertAtIndex(3, nil, "X", "", 1, 0); err != nil {
		t.Errorf("InsertAtIndex(3) append: %v", err)
	}
}

func TestInsertValidation(t *testing.T) {
	c := CreateInitial("A")

	tests := []struct {
		name      string
		stage     string
		total     int
		completed int
		want      error
	}{
		{"zero total", "X", 0, 0, ErrInvalidCycleCount},
		{"completed above total", "X", 2, 3, ErrInvalidCycleCount},
		{"negative completed", "X", 2, -1, ErrInvalidCycleCount},
		{"empty stage", "", 1, 0, ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.InsertAtIndex(1, nil, tt.stage, "", tt.total, tt.completed)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	other := mustCycles(CreateInitial("X").InsertAtEnd(nil, "Y", "", 1))(t)
	if _, err := c.InsertAtEnd(other.Find(1), "Z", "", 1); !errors.Is(err, ErrUnknownTrigger) {
		t.Errorf("foreign trigger: err = %v, want ErrUnknownTrigger", err)
	}
}

func TestReplaceCurrent(t *testing.T) {
	c := CreateInitial("FreeGames")

	same, err := c.ReplaceCurrent(1, 0)
	if err != nil {
		t.Fatalf("ReplaceCurrent: %v", err)
	}
	if same != c {
		t.Error("unchanged counters should return the receiver")
	}

	extended := mustCycles(c.ReplaceCurrent(10, 0))(t)
	if extended == c {
		t.Error("changed counters should return a new ledger")
	}
	if extended.Current().TotalCycles() != 10 || extended.Current().ID() != 0 {
		t.Errorf("Current = #%d total %d, want #0 total 10", extended.Current().ID(), extended.Current().TotalCycles())
	}
	if c.Current().TotalCycles() != 1 {
		t.Error("ReplaceCurrent mutated the receiver")
	}

	if _, err := c.ReplaceCurrent(0, 0); !errors.Is(err, ErrInvalidCycleCount) {
		t.Errorf("err = %v, want ErrInvalidCycleCount", err)
	}
	finished := mustCycles(c.PlayOne())(t).MoveNext()
	if _, err := finished.ReplaceCurrent(2, 1); !errors.Is(err, ErrNoCurrentCycle) {
		t.Errorf("err = %v, want ErrNoCurrentCycle", err)
	}
}

func TestReplaceAtIndex(t *testing.T) {
	c := mustCycles(CreateInitial("A").InsertAtEnd(nil, "B", "", 1))(t)
	c = mustCycles(c.PlayOne())(t).MoveNext()

	if _, err := c.ReplaceAtIndex(0, 3, 0); !errors.Is(err, ErrRewriteHistory) {
		t.Errorf("err = %v, want ErrRewriteHistory", err)
	}
	if _, err := c.ReplaceAtIndex(2, 3, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
	r := mustCycles(c.ReplaceAtIndex(1, 3, 1))(t)
	if got := r.At(1); got.TotalCycles() != 3 || got.CompletedCycles() != 1 || got.Stage() != "B" {
		t.Errorf("At(1) = %s %d/%d, want B 1/3", got.Stage(), got.CompletedCycles(), got.TotalCycles())
	}
}

// TestLedgerInvariants drives random operation sequences and checks that
// history before the pointer never changes, the pointer never moves back,
// and round IDs are never reused.
func TestLedgerInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	stageNames := []string{"Base", "FreeGames", "Bonus", "Pick"}

	for run := 0; run < 50; run++ {
		c := CreateInitial("Base")
		seen := map[int]bool{0: true}

		for step := 0; step < 200 && !c.IsFinished(); step++ {
			prev := c
			var (
				next *Cycles
				err  error
			)
			stage := stageNames[rng.Intn(len(stageNames))]
			switch op := rng.Intn(8); op {
			case 0, 1, 2:
				next, err = prev.PlayOne()
				if err == nil {
					if next.CurrentIndex() != prev.CurrentIndex() {
						t.Fatalf("PlayOne moved pointer %d -> %d", prev.CurrentIndex(), next.CurrentIndex())
					}
					if next.Current().CompletedCycles() != prev.Current().CompletedCycles()+1 {
						t.Fatal("PlayOne did not add exactly one completed cycle")
					}
				}
			case 3:
				next = prev.MoveNext()
				moved := next.CurrentIndex() != prev.CurrentIndex()
				if moved != prev.Current().IsFinished() {
					t.Fatalf("MoveNext moved=%v with current finished=%v", moved, prev.Current().IsFinished())
				}
				if !moved && next != prev {
					t.Fatal("MoveNext without advancing returned a new ledger")
				}
			case 4:
				next, err = prev.InsertImmediately(prev.Current(), stage, "", 1+rng.Intn(3))
			case 5:
				next, err = prev.InsertAtNext(prev.Current(), stage, "", 1+rng.Intn(3))
			case 6:
				next, err = prev.InsertAtEnd(nil, stage, "", 1)
			case 7:
				cur := prev.Current()
				next, err = prev.ReplaceCurrent(cur.TotalCycles()+1, cur.CompletedCycles())
			}
			if err != nil {
				continue
			}

			if next.CurrentIndex() < prev.CurrentIndex() {
				t.Fatalf("pointer moved back %d -> %d", prev.CurrentIndex(), next.CurrentIndex())
			}
			if next.Len() < prev.Len() {
				t.Fatalf("ledger shrank %d -> %d", prev.Len(), next.Len())
			}
			for i := 0; i < prev.CurrentIndex(); i++ {
				if !next.At(i).Equal(prev.At(i)) {
					t.Fatalf("history at %d rewritten", i)
				}
			}
			if next.NextID() < prev.NextID() {
				t.Fatalf("NextID went back %d -> %d", prev.NextID(), next.NextID())
			}
			for _, s := range next.States() {
				if s.ID() >= next.NextID() {
					t.Fatalf("round #%d not below NextID %d", s.ID(), next.NextID())
				}
				if !seen[s.ID()] {
					if s.ID() != next.NextID()-1 {
						t.Fatalf("new round #%d, want #%d", s.ID(), next.NextID()-1)
					}
					seen[s.ID()] = true
				}
			}
			c = next
		}
	}
}

func TestRenderTrace(t *testing.T) {
	c := mustCycles(CreateInitial("Base").PlayOne())(t)
	c = mustCycles(c.InsertAtNext(c.Current(), "FreeGames", "fg", 10))(t)
	c = c.MoveNext()

	want := "  1/1 #0 Base\n" +
		"> 0/10 #1 FreeGames [fg] <- #0 Base 1/1\n"
	if got := c.String(); got != want {
		t.Errorf("String =\n%s\nwant\n%s", got, want)
	}
	got, err := c.Render(TraceFormat)
	if err != nil || got != want {
		t.Errorf("Render(T) = %q, %v", got, err)
	}
	if _, err := c.Render("json"); !errors.Is(err, ErrFormatNotSupported) {
		t.Errorf("Render(json): err = %v, want ErrFormatNotSupported", err)
	}

	done := mustCycles(CreateInitial("Base").PlayOne())(t).MoveNext()
	if got := done.String(); got != "  1/1 #0 Base\n> (finished)\n" {
		t.Errorf("finished trace = %q", got)
	}
}

func TestEncodeOnlyInitial(t *testing.T) {
	c := CreateInitial("Base")
	s, err := c.Encode()
	if err != nil || s != "Base" {
		t.Errorf("Encode = %q, %v, want Base", s, err)
	}

	played := mustCycles(c.PlayOne())(t)
	if _, err := played.Encode(); !errors.Is(err, ErrNotInitial) {
		t.Errorf("played: err = %v, want ErrNotInitial", err)
	}
	grown := mustCycles(c.InsertAtEnd(nil, "Bonus", "", 1))(t)
	if _, err := grown.Encode(); !errors.Is(err, ErrNotInitial) {
		t.Errorf("grown: err = %v, want ErrNotInitial", err)
	}
	extended := mustCycles(c.ReplaceCurrent(3, 0))(t)
	if _, err := extended.Encode(); !errors.Is(err, ErrNotInitial) {
		t.Errorf("extended: err = %v, want ErrNotInitial", err)
	}
}
