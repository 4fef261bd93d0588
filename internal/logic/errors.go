package logic

import "errors"

// Precondition and invariant violations. These are programming or
// configuration errors in the calling game logic and are never recovered
// from inside this package.
var (
	ErrRewriteHistory     = errors.New("cannot rewrite history before the current cycle")
	ErrNoCurrentCycle     = errors.New("no current cycle")
	ErrIndexOutOfRange    = errors.New("cycle index out of range")
	ErrInvalidCycleCount  = errors.New("invalid cycle count")
	ErrRoundComplete      = errors.New("current cycle already completed")
	ErrUnknownTrigger     = errors.New("triggering cycle not in ledger")
	ErrInputNotFound      = errors.New("input not found")
	ErrInputKind          = errors.New("input holds a different kind of value")
	ErrDuplicateInput     = errors.New("duplicate input name")
	ErrCyclesNotFound     = errors.New("cycles input not found")
	ErrVariableNotFound   = errors.New("variable not found")
	ErrFormatNotSupported = errors.New("format not supported")
	ErrNotInitial         = errors.New("cycles is not in its initial state")
	ErrMalformedInput     = errors.New("malformed input")
)
