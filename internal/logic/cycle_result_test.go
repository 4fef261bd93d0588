package logic

import (
	"errors"
	"testing"
)

func TestCycleResultVariables(t *testing.T) {
	results := BuildStageResults(0, []ProcessorResult{
		{Name: "Pay", Type: AwardCreditsList, Output: []Credits{10, 15}},
		{Name: "Mult", Type: VariableOneCycle, Output: Integer(2)},
	})
	r := NewCycleResult(EmptyInputs, CreateInitial("Base"), 25, 25, results, nil)

	v, err := r.GetVariableValue("Mult")
	if err != nil {
		t.Fatalf("GetVariableValue: %v", err)
	}
	if v != Integer(2) {
		t.Errorf("Mult = %v, want 2", v)
	}
	if _, err := r.GetVariableValue("Missing"); !errors.Is(err, ErrVariableNotFound) {
		t.Errorf("err = %v, want ErrVariableNotFound", err)
	}
	if got := r.StageResults().AwardedCredits(); got != 25 {
		t.Errorf("AwardedCredits = %d, want 25", got)
	}
}

func TestCycleResultRoundOverridesCarried(t *testing.T) {
	carried, err := NewInputs(
		NewInput("Bet", Integer(100)),
		NewVariable("Level", Integer(1), Permanent),
		NewVariable("Sticky", Text("reel3"), OneGame),
	)
	if err != nil {
		t.Fatal(err)
	}
	results := NewStageResults(
		StageResult{Name: "Level", Type: VariablePermanent, Value: Integer(2)},
		StageResult{Name: "Level", Type: VariablePermanent, Value: Integer(3)},
		StageResult{Name: "Exit", Type: ExitList, Value: []string{"Bonus"}},
	)
	r := NewCycleResult(carried, CreateInitial("Base"), 0, 0, results, []string{"Mini"})

	if v, _ := r.TryGetVariableValue("Level"); v != Integer(3) {
		t.Errorf("Level = %v, want 3 (last result wins)", v)
	}
	if v, _ := r.TryGetVariableValue("Sticky"); v != Text("reel3") {
		t.Errorf("Sticky = %v, want carried value", v)
	}
	if _, ok := r.TryGetVariableValue("Bet"); ok {
		t.Error("plain inputs are not variables")
	}

	all := r.GetVariableValues()
	if len(all) != 2 || all["Level"] != Integer(3) || all["Sticky"] != Text("reel3") {
		t.Errorf("GetVariableValues = %v", all)
	}
	if p := r.Progressives(); len(p) != 1 || p[0] != "Mini" {
		t.Errorf("Progressives = %v", p)
	}
}

func TestStageResultsFilters(t *testing.T) {
	rs := NewStageResults(
		StageResult{Name: "Pay", Type: AwardCreditsList, Value: Credits(5)},
		StageResult{Name: "Scatter", Type: ExitList, Value: []string{"FreeGames"}},
		StageResult{Name: "Pick", Type: ExitList, Value: "Pick"},
		StageResult{Name: "Jackpot", Type: ProgressiveList, Value: []string{"Grand"}},
		StageResult{Name: "Board", Type: Presentation, Value: map[string]any{"reels": 5}},
		StageResult{Name: "Broken", Type: VariableOneGame, Value: nil},
	)

	if got := rs.Exits(); !equalStrings(got, []string{"FreeGames", "Pick"}) {
		t.Errorf("Exits = %v", got)
	}
	if got := rs.Progressives(); !equalStrings(got, []string{"Grand"}) {
		t.Errorf("Progressives = %v", got)
	}
	if got := rs.AwardedCredits(); got != 5 {
		t.Errorf("AwardedCredits = %d", got)
	}
	if got := rs.Variables(); len(got) != 0 {
		t.Errorf("Variables = %v, want none for a result without a value", got)
	}
}

func TestStageResultTypeNames(t *testing.T) {
	for typ := AwardCreditsList; typ <= VariableOneCycle; typ++ {
		back, err := ParseStageResultType(typ.String())
		if err != nil || back != typ {
			t.Errorf("ParseStageResultType(%s) = %v, %v", typ, back, err)
		}
	}
	for _, l := range []Lifespan{OneCycle, OneGame, Permanent} {
		got, ok := VariableType(l).Lifespan()
		if !ok || got != l {
			t.Errorf("VariableType(%s).Lifespan() = %v, %v", l, got, ok)
		}
	}
	if _, err := ParseStageResultType("Bogus"); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}

func TestStageGraph(t *testing.T) {
	g, err := NewStageGraph([]StageConnection{
		{InitialStage: "Base", ExitName: "Scatter", FinalStage: "FreeGames"},
		{InitialStage: "FreeGames", ExitName: "Retrigger", FinalStage: "FreeGames"},
		{InitialStage: "Base", ExitName: "Pick", FinalStage: "Bonus"},
	})
	if err != nil {
		t.Fatalf("NewStageGraph: %v", err)
	}
	if to, ok := g.Next("Base", "Scatter"); !ok || to != "FreeGames" {
		t.Errorf("Next(Base, Scatter) = %q, %v", to, ok)
	}
	if _, ok := g.Next("Bonus", "Scatter"); ok {
		t.Error("unexpected edge from Bonus")
	}
	if got := g.Stages(); !equalStrings(got, []string{"Base", "FreeGames", "Bonus"}) {
		t.Errorf("Stages = %v", got)
	}

	var nilGraph *StageGraph
	if _, ok := nilGraph.Next("Base", "Scatter"); ok {
		t.Error("nil graph has no edges")
	}

	bad := [][]StageConnection{
		{{InitialStage: "Base", ExitName: "", FinalStage: "X"}},
		{
			{InitialStage: "Base", ExitName: "Scatter", FinalStage: "A"},
			{InitialStage: "Base", ExitName: "Scatter", FinalStage: "B"},
		},
	}
	for i, conns := range bad {
		if _, err := NewStageGraph(conns); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("case %d: err = %v, want ErrMalformedInput", i, err)
		}
	}
}
