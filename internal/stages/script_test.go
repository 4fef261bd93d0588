package stages

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/MJE43/stake-cycles/internal/logic"
)

func baseRequest(t *testing.T) Request {
	t.Helper()
	in, err := logic.NewInputs(
		logic.NewInput("Bet", logic.Integer(100)),
		logic.NewInput("Mode", logic.Text("turbo")),
	)
	if err != nil {
		t.Fatal(err)
	}
	c := logic.CreateInitial("Base")
	in, err = in.WithCycles(c)
	if err != nil {
		t.Fatal(err)
	}
	return Request{
		StageIndex: 0,
		Cycle:      *c.Current(),
		Inputs:     in,
		Random:     func() float64 { return 0.25 },
	}
}

func mustEvaluator(t *testing.T, src string) *ScriptEvaluator {
	t.Helper()
	e, err := NewScriptEvaluator("test", src, nil)
	if err != nil {
		t.Fatalf("NewScriptEvaluator: %v", err)
	}
	return e
}

func TestScriptEvaluatorResults(t *testing.T) {
	e := mustEvaluator(t, `
		function evaluate(round) {
			var bet = input("Bet")
			award("Line1", bet / 10, credits(5))
			if (round.stage === "Base") {
				exit("Scatter")
			}
			variable("Mult", 3, "OneGame")
			variable("Seen", "reel3")
			variable("Cash", money("1.25"), "Permanent")
			variable("Bank", credits(40), "onecycle")
			progressive("Mini")
			present("Board", [1, 2, 3])
		}
	`)

	out, err := e.Evaluate(context.Background(), baseRequest(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	rs := logic.BuildStageResults(0, out.Processors)
	if rs.Len() != 8 {
		t.Fatalf("processor count = %d, want 8", rs.Len())
	}
	if got := rs.AwardedCredits(); got != 15 {
		t.Errorf("AwardedCredits = %d, want 15", got)
	}
	if exits := rs.Exits(); len(exits) != 1 || exits[0] != "Scatter" {
		t.Errorf("Exits = %v", exits)
	}
	if p := rs.Progressives(); len(p) != 1 || p[0] != "Mini" {
		t.Errorf("Progressives = %v", p)
	}
	if got := out.Processors[0].InputNames(); len(got) != 1 || got[0] != "Bet" {
		t.Errorf("Line1 read %v, want [Bet]", got)
	}
	if got := out.Processors[1].InputNames(); len(got) != 0 {
		t.Errorf("Scatter read %v, want nothing", got)
	}
	if r := rs.At(3); r.ProcessorIndex != 3 || r.Name != "Seen" {
		t.Errorf("At(3) = %+v", r)
	}

	cash, _ := logic.MoneyFromString("1.25")
	want := []logic.Input{
		logic.NewVariable("Mult", logic.Integer(3), logic.OneGame),
		logic.NewVariable("Seen", logic.Text("reel3"), logic.OneCycle),
		logic.NewVariable("Cash", cash, logic.Permanent),
		logic.NewVariable("Bank", logic.Credits(40), logic.OneCycle),
	}
	vars := rs.Variables()
	if len(vars) != len(want) {
		t.Fatalf("Variables = %v", vars)
	}
	for i := range want {
		if !vars[i].Equal(want[i]) {
			t.Errorf("variable %d = %v, want %v", i, vars[i], want[i])
		}
	}
}

func TestScriptEvaluatorTriggers(t *testing.T) {
	e := mustEvaluator(t, `
		function evaluate(round) {
			trigger("FreeGames", 10)
			trigger("Bonus", 1, "immediately", "pick-1")
			trigger("Wheel", 2, "end")
			extend(3)
			extend(2)
		}
	`)
	out, err := e.Evaluate(context.Background(), baseRequest(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []Trigger{
		{Stage: "FreeGames", TotalCycles: 10, Placement: Next},
		{Stage: "Bonus", CycleID: "pick-1", TotalCycles: 1, Placement: Immediately},
		{Stage: "Wheel", TotalCycles: 2, Placement: End},
	}
	if len(out.Triggers) != len(want) {
		t.Fatalf("Triggers = %+v", out.Triggers)
	}
	for i := range want {
		if out.Triggers[i] != want[i] {
			t.Errorf("trigger %d = %+v, want %+v", i, out.Triggers[i], want[i])
		}
	}
	if out.ExtraCycles != 5 {
		t.Errorf("ExtraCycles = %d, want 5", out.ExtraCycles)
	}
	if len(out.Processors) != 0 {
		t.Errorf("triggers produced processor results: %v", out.Processors)
	}
}

func TestScriptEvaluatorRoundObject(t *testing.T) {
	e := mustEvaluator(t, `
		function evaluate(round) {
			present("round", round.stage + ":" + round.completed + "/" + round.total + ":" + round.remaining)
			present("random", Math.random() === random())
		}
	`)
	out, err := e.Evaluate(context.Background(), baseRequest(t))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := out.Processors[0].Output; got != "Base:0/1:1" {
		t.Errorf("round = %v", got)
	}
	if got := out.Processors[1].Output; got != true {
		t.Errorf("Math.random is not the round random source")
	}
}

func TestScriptEvaluatorErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad argument", `function evaluate(r) { award("Pay", 1.5) }`},
		{"bad lifespan", `function evaluate(r) { variable("X", 1, "Forever") }`},
		{"bad placement", `function evaluate(r) { trigger("FreeGames", 1, "later") }`},
		{"zero total", `function evaluate(r) { trigger("FreeGames", 0) }`},
		{"blocked require", `function evaluate(r) { require("fs") }`},
		{"throws", `function evaluate(r) { throw new Error("boom") }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := mustEvaluator(t, tt.src)
			if _, err := e.Evaluate(context.Background(), baseRequest(t)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewScriptEvaluatorRejects(t *testing.T) {
	srcs := map[string]string{
		"syntax":       `function evaluate( {`,
		"no evaluate":  `var x = 1`,
		"not function": `var evaluate = 5`,
	}
	for name, src := range srcs {
		if _, err := NewScriptEvaluator(name, src, nil); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestScriptEvaluatorTimeout(t *testing.T) {
	e := mustEvaluator(t, `function evaluate(r) { while (true) {} }`)
	e.Timeout = 50 * time.Millisecond

	_, err := e.Evaluate(context.Background(), baseRequest(t))
	if !errors.Is(err, ErrScriptTimeout) {
		t.Errorf("err = %v, want ErrScriptTimeout", err)
	}
}

func TestScriptEvaluatorContextCancel(t *testing.T) {
	e := mustEvaluator(t, `function evaluate(r) { while (true) {} }`)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := e.Evaluate(ctx, baseRequest(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestScriptLog(t *testing.T) {
	var buf bytes.Buffer
	e, err := NewScriptEvaluator("Base", `function evaluate(r) { log("spin", r.index); console.log("done") }`,
		log.New(&buf, "[STAGE] ", 0))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Evaluate(context.Background(), baseRequest(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "[STAGE] Base: spin 0") || !strings.Contains(out, "Base: done") {
		t.Errorf("log output = %q", out)
	}
}
