package logic

import (
	"fmt"
	"strconv"
	"strings"
)

// Input is a named, typed value. An Input that carries a Lifespan is a
// Variable: it was produced by a stage and is folded back into Inputs
// according to how long it should live.
//
// Input is immutable; WithValue returns a modified copy.
type Input struct {
	name     string
	value    Value
	lifespan Lifespan
	variable bool
}

// NewInput creates a plain input.
func NewInput(name string, value Value) Input {
	return Input{name: name, value: value}
}

// NewVariable creates an input that carries a lifespan.
func NewVariable(name string, value Value, lifespan Lifespan) Input {
	return Input{name: name, value: value, lifespan: lifespan, variable: true}
}

func (in Input) Name() string { return in.name }

func (in Input) Value() Value { return in.value }

// IsVariable reports whether the input carries a lifespan.
func (in Input) IsVariable() bool { return in.variable }

// Lifespan returns the variable lifespan, or false for a plain input.
func (in Input) Lifespan() (Lifespan, bool) {
	return in.lifespan, in.variable
}

// WithValue keeps the name, and the lifespan if any, and swaps the value.
func (in Input) WithValue(v Value) Input {
	in.value = v
	return in
}

// Equal compares name, variable-ness, lifespan and value.
func (in Input) Equal(o Input) bool {
	return in.name == o.name &&
		in.variable == o.variable &&
		in.lifespan == o.lifespan &&
		ValuesEqual(in.value, o.value)
}

func (in Input) validate() error {
	if in.name == "" {
		return fmt.Errorf("logic: input has empty name: %w", ErrMalformedInput)
	}
	if !validValue(in.value) {
		return fmt.Errorf("logic: input %q has no value: %w", in.name, ErrMalformedInput)
	}
	if in.variable && !in.lifespan.Valid() {
		return fmt.Errorf("logic: variable %q has lifespan %d: %w", in.name, in.lifespan, ErrMalformedInput)
	}
	return nil
}

// Encode returns the canonical single-line form:
//
//	<K>"<name>"=<value>[ <lifespan>]
//
// K is the value kind prefix (C, M, N, S or X). Text and cycles values are
// quoted. A Cycles value only encodes while it is freshly initial.
func (in Input) Encode() (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteByte(byte(in.value.Kind()))
	b.WriteString(strconv.Quote(in.name))
	b.WriteByte('=')
	switch v := in.value.(type) {
	case Credits:
		b.WriteString(v.String())
	case Money:
		b.WriteString(v.String())
	case Integer:
		b.WriteString(v.String())
	case Text:
		b.WriteString(strconv.Quote(string(v)))
	case *Cycles:
		stage, err := v.Encode()
		if err != nil {
			return "", fmt.Errorf("logic: encode input %q: %w", in.name, err)
		}
		b.WriteString(strconv.Quote(stage))
	default:
		return "", fmt.Errorf("logic: encode input %q: %w", in.name, ErrFormatNotSupported)
	}
	if in.variable {
		b.WriteByte(' ')
		b.WriteString(in.lifespan.String())
	}
	return b.String(), nil
}

// String returns the canonical form when one exists, and a diagnostic
// name=value rendering otherwise.
func (in Input) String() string {
	if s, err := in.Encode(); err == nil {
		return s
	}
	if in.value == nil {
		return in.name + "=<nil>"
	}
	return in.name + "=" + describeValue(in.value)
}

// ParseInput decodes the canonical form produced by Encode.
func ParseInput(line string) (Input, error) {
	malformed := func(why string) (Input, error) {
		return Input{}, fmt.Errorf("logic: parse input %q: %s: %w", line, why, ErrMalformedInput)
	}
	if len(line) < 4 {
		return malformed("too short")
	}
	kind := ValueKind(line[0])
	rest := line[1:]

	qname, err := strconv.QuotedPrefix(rest)
	if err != nil {
		return malformed("name is not quoted")
	}
	name, err := strconv.Unquote(qname)
	if err != nil || name == "" {
		return malformed("bad name")
	}
	rest = rest[len(qname):]
	if !strings.HasPrefix(rest, "=") {
		return malformed("missing '='")
	}
	rest = rest[1:]

	var (
		value Value
		token string
	)
	switch kind {
	case KindText, KindCycles:
		q, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return malformed("value is not quoted")
		}
		s, err := strconv.Unquote(q)
		if err != nil {
			return malformed("bad quoted value")
		}
		rest = rest[len(q):]
		if kind == KindText {
			value = Text(s)
		} else {
			if s == "" {
				return malformed("empty stage")
			}
			value = CreateInitial(s)
		}
	case KindCredits, KindInteger, KindMoney:
		token, rest, _ = strings.Cut(rest, " ")
		if rest != "" {
			rest = " " + rest
		}
		switch kind {
		case KindMoney:
			m, err := MoneyFromString(token)
			if err != nil {
				return malformed("bad money")
			}
			value = m
		default:
			n, err := strconv.ParseInt(token, 10, 64)
			if err != nil {
				return malformed("bad number")
			}
			if kind == KindCredits {
				value = Credits(n)
			} else {
				value = Integer(n)
			}
		}
	default:
		return malformed(fmt.Sprintf("unknown kind %q", byte(kind)))
	}

	if rest == "" {
		return NewInput(name, value), nil
	}
	if !strings.HasPrefix(rest, " ") {
		return malformed("trailing data")
	}
	lifespan, err := ParseLifespan(rest[1:])
	if err != nil {
		return malformed("bad lifespan")
	}
	return NewVariable(name, value, lifespan), nil
}
