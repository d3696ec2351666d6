package ledger

import (
	"strconv"
	"strings"
)

// DeltaOp tags how a parsed spec applies against the current value.
type DeltaOp int

const (
	OpSet DeltaOp = iota
	OpAdd
	OpSubtract
)

// Delta is a parsed adjustment spec: "5" sets, "+3" adds, "-2" subtracts.
// Parsing is separate from resolution so it can be tested on its own and so
// the engine resolves against the row it holds locked, not a stale read.
type Delta struct {
	Op DeltaOp
	N  int64
}

// ParseDelta parses a spec string. The magnitude must be plain digits after
// an optional leading sigil; anything else is InvalidInput.
func ParseDelta(spec string) (Delta, error) {
	op := OpSet
	digits := spec
	switch {
	case strings.HasPrefix(spec, "+"):
		op = OpAdd
		digits = spec[1:]
	case strings.HasPrefix(spec, "-"):
		op = OpSubtract
		digits = spec[1:]
	}

	n, err := strconv.ParseUint(digits, 10, 63)
	if err != nil {
		return Delta{}, newError(KindInvalidInput, "invalid_spec",
			"spec must be an integer, optionally prefixed with + or -")
	}

	return Delta{Op: op, N: int64(n)}, nil
}

// Resolve applies the delta against a current value.
func (d Delta) Resolve(current int64) int64 {
	switch d.Op {
	case OpAdd:
		return current + d.N
	case OpSubtract:
		return current - d.N
	default:
		return d.N
	}
}
