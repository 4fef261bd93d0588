package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/MJE43/stake-cycles/internal/logic"
)

const (
	DefaultScriptTimeout = time.Second
	scriptInitTimeout    = 2 * time.Second

	// kindKey marks objects returned by credits() and money().
	kindKey = "__kind"
)

var ErrScriptTimeout = errors.New("stages: script execution timeout")

// ScriptEvaluator runs a stage written in JavaScript. The script must
// define evaluate(round); it reports results through host functions:
//
//	award(name, credits...)            AwardCreditsList
//	exit(name)                         ExitList
//	variable(name, value[, lifespan])  Variable*, lifespan defaults to OneCycle
//	progressive(name)                  ProgressiveList
//	present(name, value)               Presentation
//	trigger(stage, total[, placement[, cycleId]])
//	extend(n)
//	input(name), random(), credits(n), money("1.25"), log(...)
//
// Each result-producing call appends one processor result, numbered in
// call order. Every evaluation runs in a fresh runtime.
type ScriptEvaluator struct {
	name    string
	program *goja.Program
	logger  *log.Logger

	// Timeout bounds one call of evaluate.
	Timeout time.Duration
}

// NewScriptEvaluator compiles source and checks that it defines
// evaluate. logger receives log() output; nil discards it.
func NewScriptEvaluator(name, source string, logger *log.Logger) (*ScriptEvaluator, error) {
	program, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, fmt.Errorf("stages: compile %s: %w", name, err)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	e := &ScriptEvaluator{
		name:    name,
		program: program,
		logger:  logger,
		Timeout: DefaultScriptTimeout,
	}

	rt := goja.New()
	col := &collector{}
	e.install(rt, col, Request{Random: func() float64 { return 0 }})
	err = runWithTimeout(context.Background(), rt, scriptInitTimeout, func() error {
		if _, err := rt.RunProgram(program); err != nil {
			return err
		}
		_, err := evaluateFunc(rt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("stages: load %s: %w", name, err)
	}
	return e, nil
}

func (e *ScriptEvaluator) Name() string { return e.name }

// Evaluate runs evaluate(round) for one round.
func (e *ScriptEvaluator) Evaluate(ctx context.Context, req Request) (Outcome, error) {
	if req.Random == nil {
		return Outcome{}, fmt.Errorf("stages: %s: request has no random source", e.name)
	}
	rt := goja.New()
	col := &collector{}
	e.install(rt, col, req)

	err := runWithTimeout(ctx, rt, e.Timeout, func() error {
		if _, err := rt.RunProgram(e.program); err != nil {
			return err
		}
		fn, err := evaluateFunc(rt)
		if err != nil {
			return err
		}
		_, err = fn(goja.Undefined(), roundObject(rt, req))
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("stages: %s round %d: %w", e.name, req.StageIndex, err)
	}
	return col.outcome(), nil
}

func evaluateFunc(rt *goja.Runtime) (goja.Callable, error) {
	v := rt.Get("evaluate")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, fmt.Errorf("evaluate() function is not defined")
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, fmt.Errorf("evaluate is not a function")
	}
	return fn, nil
}

// runWithTimeout interrupts the runtime when the timeout fires or ctx is
// done, whichever comes first.
func runWithTimeout(ctx context.Context, rt *goja.Runtime, timeout time.Duration, fn func() error) error {
	timer := time.AfterFunc(timeout, func() { rt.Interrupt(ErrScriptTimeout) })
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() { rt.Interrupt(ctx.Err()) })
	defer stop()

	err := fn()
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if cause, ok := ie.Value().(error); ok {
			return cause
		}
	}
	return err
}

func roundObject(rt *goja.Runtime, req Request) *goja.Object {
	o := rt.NewObject()
	_ = o.Set("index", req.StageIndex)
	_ = o.Set("id", req.Cycle.ID())
	_ = o.Set("stage", req.Cycle.Stage())
	_ = o.Set("cycleId", req.Cycle.CycleID())
	_ = o.Set("total", req.Cycle.TotalCycles())
	_ = o.Set("completed", req.Cycle.CompletedCycles())
	_ = o.Set("remaining", req.Cycle.RemainingCycles())
	if id, ok := req.Cycle.TriggeringID(); ok {
		_ = o.Set("triggeredBy", id)
	} else {
		_ = o.Set("triggeredBy", goja.Null())
	}
	return o
}

// collector accumulates what one evaluation reports.
type collector struct {
	processors []logic.ProcessorResult
	triggers   []Trigger
	extra      int
	reads      []logic.Input
}

func (c *collector) add(name string, t logic.StageResultType, out any) {
	c.processors = append(c.processors, logic.ProcessorResult{
		Name:   name,
		Type:   t,
		Inputs: c.reads,
		Output: out,
	})
	c.reads = nil
}

func (c *collector) outcome() Outcome {
	return Outcome{Processors: c.processors, Triggers: c.triggers, ExtraCycles: c.extra}
}

func (e *ScriptEvaluator) install(rt *goja.Runtime, col *collector, req Request) {
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = rt.Set(name, fn)
	}

	set("award", func(call goja.FunctionCall) goja.Value {
		name := requireString(rt, call, 0, "award")
		amounts := make([]logic.Credits, 0, len(call.Arguments)-1)
		for _, arg := range call.Arguments[1:] {
			amounts = append(amounts, toCredits(rt, arg))
		}
		col.add(name, logic.AwardCreditsList, amounts)
		return goja.Undefined()
	})

	set("exit", func(call goja.FunctionCall) goja.Value {
		name := requireString(rt, call, 0, "exit")
		col.add(name, logic.ExitList, []string{name})
		return goja.Undefined()
	})

	set("progressive", func(call goja.FunctionCall) goja.Value {
		name := requireString(rt, call, 0, "progressive")
		col.add(name, logic.ProgressiveList, []string{name})
		return goja.Undefined()
	})

	set("present", func(call goja.FunctionCall) goja.Value {
		name := requireString(rt, call, 0, "present")
		col.add(name, logic.Presentation, call.Argument(1).Export())
		return goja.Undefined()
	})

	set("variable", func(call goja.FunctionCall) goja.Value {
		name := requireString(rt, call, 0, "variable")
		value := toValue(rt, call.Argument(1))
		lifespan := logic.OneCycle
		if arg := call.Argument(2); !goja.IsUndefined(arg) {
			l, err := logic.ParseLifespan(arg.String())
			if err != nil {
				panic(rt.NewTypeError("variable %s: %s", name, err.Error()))
			}
			lifespan = l
		}
		col.add(name, logic.VariableType(lifespan), value)
		return goja.Undefined()
	})

	set("trigger", func(call goja.FunctionCall) goja.Value {
		stage := requireString(rt, call, 0, "trigger")
		total := int(call.Argument(1).ToInteger())
		if total < 1 {
			panic(rt.NewTypeError("trigger %s: total must be at least 1", stage))
		}
		t := Trigger{Stage: stage, TotalCycles: total}
		if arg := call.Argument(2); !goja.IsUndefined(arg) {
			p, err := ParsePlacement(arg.String())
			if err != nil {
				panic(rt.NewTypeError("%s", err.Error()))
			}
			t.Placement = p
		}
		if arg := call.Argument(3); !goja.IsUndefined(arg) {
			t.CycleID = arg.String()
		}
		col.triggers = append(col.triggers, t)
		return goja.Undefined()
	})

	set("extend", func(call goja.FunctionCall) goja.Value {
		n := int(call.Argument(0).ToInteger())
		if n < 0 {
			panic(rt.NewTypeError("extend: negative count %d", n))
		}
		col.extra += n
		return goja.Undefined()
	})

	set("input", func(call goja.FunctionCall) goja.Value {
		name := requireString(rt, call, 0, "input")
		in, ok := req.Inputs.TryGet(name)
		if !ok {
			return goja.Undefined()
		}
		col.reads = append(col.reads, in)
		return fromValue(rt, in.Value())
	})

	set("random", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(req.Random())
	})

	set("credits", func(call goja.FunctionCall) goja.Value {
		o := rt.NewObject()
		_ = o.Set(kindKey, string(logic.KindCredits))
		_ = o.Set("value", call.Argument(0).ToInteger())
		return o
	})

	set("money", func(call goja.FunctionCall) goja.Value {
		s := call.Argument(0).String()
		if _, err := logic.MoneyFromString(s); err != nil {
			panic(rt.NewTypeError("money: %q is not a decimal", s))
		}
		o := rt.NewObject()
		_ = o.Set(kindKey, string(logic.KindMoney))
		_ = o.Set("value", s)
		return o
	})

	set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		e.logger.Printf("%s: %s", e.name, strings.Join(parts, " "))
		return goja.Undefined()
	})

	console := rt.NewObject()
	_ = console.Set("log", rt.Get("log"))
	_ = rt.Set("console", console)

	// Rounds must be reproducible from the seeds alone.
	if m, ok := rt.Get("Math").(*goja.Object); ok {
		_ = m.Set("random", rt.Get("random"))
	}

	_ = rt.Set("require", goja.Undefined())
	_ = rt.Set("fetch", goja.Undefined())
	_ = rt.Set("XMLHttpRequest", goja.Undefined())
	_ = rt.Set("eval", goja.Undefined())
	_ = rt.Set("Function", goja.Undefined())
}

func requireString(rt *goja.Runtime, call goja.FunctionCall, i int, fn string) string {
	arg := call.Argument(i)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		panic(rt.NewTypeError("%s: argument %d is required", fn, i+1))
	}
	s := arg.String()
	if s == "" {
		panic(rt.NewTypeError("%s: argument %d is empty", fn, i+1))
	}
	return s
}

func hostKind(v goja.Value) (string, *goja.Object) {
	o, ok := v.(*goja.Object)
	if !ok {
		return "", nil
	}
	k := o.Get(kindKey)
	if k == nil || goja.IsUndefined(k) {
		return "", nil
	}
	return k.String(), o
}

func toCredits(rt *goja.Runtime, v goja.Value) logic.Credits {
	if kind, o := hostKind(v); kind == string(logic.KindCredits) {
		return logic.Credits(o.Get("value").ToInteger())
	}
	n, ok := integral(v.Export())
	if !ok {
		panic(rt.NewTypeError("award: %s is not a whole number of credits", v.String()))
	}
	return logic.Credits(n)
}

func toValue(rt *goja.Runtime, v goja.Value) logic.Value {
	switch kind, o := hostKind(v); kind {
	case string(logic.KindCredits):
		return logic.Credits(o.Get("value").ToInteger())
	case string(logic.KindMoney):
		m, err := logic.MoneyFromString(o.Get("value").String())
		if err != nil {
			panic(rt.NewTypeError("%s", err.Error()))
		}
		return m
	}
	x := v.Export()
	if n, ok := integral(x); ok {
		return logic.Integer(n)
	}
	if s, ok := x.(string); ok {
		return logic.Text(s)
	}
	panic(rt.NewTypeError("variable: unsupported value %s", v.String()))
}

func integral(x any) (int64, bool) {
	switch n := x.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	}
	return 0, false
}

func fromValue(rt *goja.Runtime, v logic.Value) goja.Value {
	switch tv := v.(type) {
	case logic.Credits:
		return rt.ToValue(int64(tv))
	case logic.Integer:
		return rt.ToValue(int64(tv))
	case logic.Money:
		return rt.ToValue(tv.String())
	case logic.Text:
		return rt.ToValue(string(tv))
	case *logic.Cycles:
		if cur := tv.Current(); cur != nil {
			return rt.ToValue(cur.Stage())
		}
	}
	return goja.Undefined()
}
