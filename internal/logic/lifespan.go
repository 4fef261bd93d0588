package logic

import (
	"fmt"
	"strings"
)

// Lifespan classifies how long a named value survives across rounds.
type Lifespan int

const (
	// OneCycle values are visible for the round that produced them, then dropped.
	OneCycle Lifespan = iota
	// OneGame values persist until the game's Cycles ledger finishes.
	OneGame
	// Permanent values persist across games.
	Permanent
)

func (l Lifespan) String() string {
	switch l {
	case OneCycle:
		return "OneCycle"
	case OneGame:
		return "OneGame"
	case Permanent:
		return "Permanent"
	default:
		return fmt.Sprintf("Lifespan(%d)", int(l))
	}
}

// Valid reports whether l is one of the declared lifespans.
func (l Lifespan) Valid() bool {
	return l >= OneCycle && l <= Permanent
}

// ParseLifespan accepts the String form, case-insensitively.
func ParseLifespan(s string) (Lifespan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "onecycle":
		return OneCycle, nil
	case "onegame":
		return OneGame, nil
	case "permanent":
		return Permanent, nil
	}
	return 0, fmt.Errorf("logic: unknown lifespan %q: %w", s, ErrMalformedInput)
}
