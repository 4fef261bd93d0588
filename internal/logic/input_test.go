package logic

import (
	"errors"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	money, err := MoneyFromString("12.50")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		input Input
		want  string
	}{
		{"credits", NewInput("Win", Credits(500)), `C"Win"=500`},
		{"money", NewInput("Denom", money), `M"Denom"=12.5`},
		{"integer", NewInput("Lines", Integer(-3)), `N"Lines"=-3`},
		{"text", NewInput("Mode", Text("say \"hi\"\n")), `S"Mode"="say \"hi\"\n"`},
		{"quoted name", NewInput("Bet Level", Integer(2)), `N"Bet Level"=2`},
		{"variable", NewVariable("Mult", Integer(3), OneGame), `N"Mult"=3 OneGame`},
		{"text variable", NewVariable("Seen", Text("a b"), Permanent), `S"Seen"="a b" Permanent`},
		{"cycles", NewInput(CyclesInputName, CreateInitial("Base")), `X"Cycles"="Base"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := tt.input.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if line != tt.want {
				t.Errorf("Encode = %s, want %s", line, tt.want)
			}
			back, err := ParseInput(line)
			if err != nil {
				t.Fatalf("ParseInput(%s): %v", line, err)
			}
			if !back.Equal(tt.input) {
				t.Errorf("round trip = %v, want %v", back, tt.input)
			}
		})
	}
}

func TestParseInputMalformed(t *testing.T) {
	lines := []string{
		"",
		`Q"a"=1`,
		`N"a"1`,
		`N"a"=x`,
		`N"a"=1 Forever`,
		`N"a"=1.5`,
		`M"a"=abc`,
		`S"a"=unquoted`,
		`S"a"="x"junk`,
		`N""=1`,
		`Na=1`,
		`X"Cycles"=""`,
	}
	for _, line := range lines {
		if _, err := ParseInput(line); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("ParseInput(%q): err = %v, want ErrMalformedInput", line, err)
		}
	}
}

func TestEncodeRejectsPlayedCycles(t *testing.T) {
	played, err := CreateInitial("Base").PlayOne()
	if err != nil {
		t.Fatal(err)
	}
	in := NewInput(CyclesInputName, played)
	if _, err := in.Encode(); !errors.Is(err, ErrNotInitial) {
		t.Errorf("err = %v, want ErrNotInitial", err)
	}
	if got := in.String(); got != "Cycles=cycles(1, current Base)" {
		t.Errorf("String = %q", got)
	}
}

func TestParseLifespan(t *testing.T) {
	tests := []struct {
		in   string
		want Lifespan
	}{
		{"OneCycle", OneCycle},
		{"onegame", OneGame},
		{"PERMANENT", Permanent},
	}
	for _, tt := range tests {
		got, err := ParseLifespan(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLifespan(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLifespan("Forever"); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("err = %v, want ErrMalformedInput", err)
	}
}
