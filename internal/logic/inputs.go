package logic

import (
	"fmt"
	"slices"
	"strings"
)

// CyclesInputName is the well-known input that holds a game's ledger.
const CyclesInputName = "Cycles"

// Inputs is an ordered, name-unique collection of Input values. Like
// Cycles it is never modified: Add, Replace and ReplaceOrAdd return new
// collections and earlier ones stay valid for whoever still holds them.
//
// The zero value is an empty collection.
type Inputs struct {
	items []Input
	index map[string]int
}

// EmptyInputs is the empty collection.
var EmptyInputs = Inputs{}

// NewInputs builds a collection, failing on duplicate or malformed entries.
func NewInputs(items ...Input) (Inputs, error) {
	return EmptyInputs.Add(items...)
}

func (in Inputs) Len() int { return len(in.items) }

// At returns the input at position i. It panics if i is out of range.
func (in Inputs) At(i int) Input { return in.items[i] }

// All returns a copy of the inputs in order.
func (in Inputs) All() []Input { return slices.Clone(in.items) }

// Names returns the input names in order.
func (in Inputs) Names() []string {
	names := make([]string, len(in.items))
	for i, it := range in.items {
		names[i] = it.name
	}
	return names
}

// Get returns the named input or an ErrInputNotFound error.
func (in Inputs) Get(name string) (Input, error) {
	it, ok := in.TryGet(name)
	if !ok {
		return Input{}, fmt.Errorf("logic: get input %q: %w", name, ErrInputNotFound)
	}
	return it, nil
}

// TryGet returns the named input and whether it exists.
func (in Inputs) TryGet(name string) (Input, bool) {
	i, ok := in.index[name]
	if !ok {
		return Input{}, false
	}
	return in.items[i], true
}

// GetValue returns the named input's value as T.
func GetValue[T Value](in Inputs, name string) (T, error) {
	var zero T
	it, err := in.Get(name)
	if err != nil {
		return zero, err
	}
	v, ok := it.value.(T)
	if !ok {
		return zero, fmt.Errorf("logic: input %q holds %s: %w", name, it.value.Kind(), ErrInputKind)
	}
	return v, nil
}

// TryGetValue is GetValue that reports absence or a kind mismatch as false.
func TryGetValue[T Value](in Inputs, name string) (T, bool) {
	var zero T
	it, ok := in.TryGet(name)
	if !ok {
		return zero, false
	}
	v, ok := it.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// GetCycles returns the ledger stored under CyclesInputName.
func (in Inputs) GetCycles() (*Cycles, error) {
	c, err := GetValue[*Cycles](in, CyclesInputName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCyclesNotFound, err)
	}
	return c, nil
}

// CurrentStage returns the stage of the current round, or false when
// there is no ledger or it has finished.
func (in Inputs) CurrentStage() (string, bool) {
	c, ok := TryGetValue[*Cycles](in, CyclesInputName)
	if !ok {
		return "", false
	}
	cur := c.Current()
	if cur == nil {
		return "", false
	}
	return cur.Stage(), true
}

// Add appends items after the existing inputs. Any name that already
// exists, or repeats within items, fails with ErrDuplicateInput.
func (in Inputs) Add(items ...Input) (Inputs, error) {
	if len(items) == 0 {
		return in, nil
	}
	next := Inputs{
		items: make([]Input, 0, len(in.items)+len(items)),
		index: make(map[string]int, len(in.items)+len(items)),
	}
	next.items = append(next.items, in.items...)
	for name, i := range in.index {
		next.index[name] = i
	}
	for _, it := range items {
		if err := it.validate(); err != nil {
			return Inputs{}, err
		}
		if _, dup := next.index[it.name]; dup {
			return Inputs{}, fmt.Errorf("logic: add input %q: %w", it.name, ErrDuplicateInput)
		}
		next.index[it.name] = len(next.items)
		next.items = append(next.items, it)
	}
	return next, nil
}

// ReplaceOrAdd substitutes each item whose name already exists, keeping
// its position, and appends the rest in the order given. The substituted
// entry is the item itself, lifespan included. An empty list returns the
// receiver unchanged.
func (in Inputs) ReplaceOrAdd(items []Input) (Inputs, error) {
	if len(items) == 0 {
		return in, nil
	}
	seen := make(map[string]bool, len(items))
	next := Inputs{items: slices.Clone(in.items), index: in.index}
	var added []Input
	for _, it := range items {
		if err := it.validate(); err != nil {
			return Inputs{}, err
		}
		if seen[it.name] {
			return Inputs{}, fmt.Errorf("logic: replace or add input %q twice: %w", it.name, ErrDuplicateInput)
		}
		seen[it.name] = true
		if i, ok := in.index[it.name]; ok {
			next.items[i] = it
			continue
		}
		added = append(added, it)
	}
	if len(added) == 0 {
		return next, nil
	}
	return next.Add(added...)
}

// Replace swaps the value of an existing input, keeping its lifespan.
func (in Inputs) Replace(name string, value Value) (Inputs, error) {
	i, ok := in.index[name]
	if !ok {
		return Inputs{}, fmt.Errorf("logic: replace input %q: %w", name, ErrInputNotFound)
	}
	it := in.items[i].WithValue(value)
	if err := it.validate(); err != nil {
		return Inputs{}, err
	}
	next := Inputs{items: slices.Clone(in.items), index: in.index}
	next.items[i] = it
	return next, nil
}

// WithCycles stores c under CyclesInputName, replacing any previous ledger.
func (in Inputs) WithCycles(c *Cycles) (Inputs, error) {
	return in.ReplaceOrAdd([]Input{NewInput(CyclesInputName, c)})
}

// RemoveWhere drops every input for which drop returns true, preserving
// the order of the rest. It returns the receiver when nothing is dropped.
func (in Inputs) RemoveWhere(drop func(Input) bool) Inputs {
	kept := make([]Input, 0, len(in.items))
	for _, it := range in.items {
		if !drop(it) {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(in.items) {
		return in
	}
	next := Inputs{items: kept, index: make(map[string]int, len(kept))}
	for i, it := range kept {
		next.index[it.name] = i
	}
	return next
}

// Equal compares two collections entry by entry, in order.
func (in Inputs) Equal(o Inputs) bool {
	return slices.EqualFunc(in.items, o.items, Input.Equal)
}

// String renders one input per line. A ledger value is expanded into its
// trace, indented under the input name.
func (in Inputs) String() string {
	var b strings.Builder
	for _, it := range in.items {
		b.WriteString(it.name)
		if l, ok := it.Lifespan(); ok {
			fmt.Fprintf(&b, " (%s)", l)
		}
		if c, ok := it.value.(*Cycles); ok {
			b.WriteString(":\n")
			for _, line := range strings.SplitAfter(strings.TrimSuffix(c.String(), "\n"), "\n") {
				b.WriteString("    ")
				b.WriteString(line)
			}
			b.WriteByte('\n')
			continue
		}
		fmt.Fprintf(&b, " = %s [%s]\n", describeValue(it.value), it.value.Kind())
	}
	return b.String()
}
