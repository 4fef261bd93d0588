package logic

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ValueKind tags the variant held by a Value. The byte doubles as the
// prefix of the canonical single-line form.
type ValueKind byte

const (
	KindCredits ValueKind = 'C'
	KindMoney   ValueKind = 'M'
	KindInteger ValueKind = 'N'
	KindText    ValueKind = 'S'
	KindCycles  ValueKind = 'X'
)

func (k ValueKind) String() string {
	switch k {
	case KindCredits:
		return "credits"
	case KindMoney:
		return "money"
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	case KindCycles:
		return "cycles"
	default:
		return fmt.Sprintf("kind(%q)", byte(k))
	}
}

// Value is the closed set of things an Input can hold: Credits, Money,
// Integer, Text or *Cycles. The unexported method keeps the set closed.
type Value interface {
	Kind() ValueKind
	isValue()
}

// Credits is a whole number of game credits.
type Credits int64

func (Credits) Kind() ValueKind { return KindCredits }
func (Credits) isValue()        {}

// Add returns c + o.
func (c Credits) Add(o Credits) Credits { return c + o }

func (c Credits) String() string { return strconv.FormatInt(int64(c), 10) }

// Money is a currency amount.
type Money struct {
	amount decimal.Decimal
}

// NewMoney wraps a decimal amount.
func NewMoney(d decimal.Decimal) Money { return Money{amount: d} }

// MoneyFromString parses a decimal string such as "12.50".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("logic: parse money %q: %w", s, ErrMalformedInput)
	}
	return Money{amount: d}, nil
}

func (Money) Kind() ValueKind { return KindMoney }
func (Money) isValue()        {}

// Decimal returns the underlying amount.
func (m Money) Decimal() decimal.Decimal { return m.amount }

// Equal compares amounts numerically, so 1.5 equals 1.50.
func (m Money) Equal(o Money) bool { return m.amount.Equal(o.amount) }

func (m Money) String() string { return m.amount.String() }

// Integer is a plain signed count.
type Integer int64

func (Integer) Kind() ValueKind { return KindInteger }
func (Integer) isValue()        {}

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// Text is a free-form string value.
type Text string

func (Text) Kind() ValueKind { return KindText }
func (Text) isValue()        {}

func (t Text) String() string { return string(t) }

func (*Cycles) Kind() ValueKind { return KindCycles }
func (*Cycles) isValue()        {}

// ValuesEqual compares two values by kind and content.
func ValuesEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Credits:
		return av == b.(Credits)
	case Money:
		return av.Equal(b.(Money))
	case Integer:
		return av == b.(Integer)
	case Text:
		return av == b.(Text)
	case *Cycles:
		return av.Equal(b.(*Cycles))
	}
	return false
}

func validValue(v Value) bool {
	if v == nil {
		return false
	}
	if c, ok := v.(*Cycles); ok && c == nil {
		return false
	}
	return true
}

func describeValue(v Value) string {
	switch tv := v.(type) {
	case *Cycles:
		if cur := tv.Current(); cur != nil {
			return fmt.Sprintf("cycles(%d, current %s)", tv.Len(), cur.Stage())
		}
		return fmt.Sprintf("cycles(%d, finished)", tv.Len())
	case Text:
		return strconv.Quote(string(tv))
	case fmt.Stringer:
		return tv.String()
	}
	return fmt.Sprintf("%v", v)
}
