package ir

import (
	"fmt"
	"strings"
)

// TrapCode identifies the reason of a runtime fault at a trapping instruction, so the embedder can
// tell e.g. a heap bounds check from a null check when the fault happens.
type TrapCode uint16

const (
	TrapCodeStackOverflow TrapCode = iota
	TrapCodeHeapOutOfBounds
	TrapCodeTableOutOfBounds
	TrapCodeIndirectCallToNull
	TrapCodeBadSignature
	TrapCodeIntegerOverflow
	TrapCodeIntegerDivisionByZero
	TrapCodeBadConversionToInteger
	TrapCodeUnreachableCodeReached
	TrapCodeInterrupt
	trapCodeUserBase
)

var trapCodeNames = [...]string{
	TrapCodeStackOverflow:          "stk_ovf",
	TrapCodeHeapOutOfBounds:        "heap_oob",
	TrapCodeTableOutOfBounds:       "table_oob",
	TrapCodeIndirectCallToNull:     "icall_null",
	TrapCodeBadSignature:           "bad_sig",
	TrapCodeIntegerOverflow:        "int_ovf",
	TrapCodeIntegerDivisionByZero:  "int_divz",
	TrapCodeBadConversionToInteger: "bad_toint",
	TrapCodeUnreachableCodeReached: "unreachable",
	TrapCodeInterrupt:              "interrupt",
}

// TrapCodeUser returns an embedder-defined trap code.
func TrapCodeUser(n uint16) TrapCode {
	if uint32(n)+uint32(trapCodeUserBase) > 0xffff {
		panic(fmt.Sprintf("BUG: user trap code %d out of range", n))
	}
	return trapCodeUserBase + TrapCode(n)
}

// String implements fmt.Stringer.
func (c TrapCode) String() string {
	if c < trapCodeUserBase {
		return trapCodeNames[c]
	}
	return fmt.Sprintf("user%d", c-trapCodeUserBase)
}

// ParseTrapCode is the inverse of TrapCode.String.
func ParseTrapCode(s string) (TrapCode, error) {
	for i, name := range trapCodeNames {
		if name == s {
			return TrapCode(i), nil
		}
	}
	if strings.HasPrefix(s, "user") {
		var n uint16
		if _, err := fmt.Sscanf(s, "user%d", &n); err == nil {
			return TrapCodeUser(n), nil
		}
	}
	return 0, fmt.Errorf("unknown trap code %q", s)
}

// SourceLoc is an opaque source location attached to an instruction, typically a byte offset
// in the original input to the compiler.
type SourceLoc uint32

// SourceLocDefault is the location of instructions which have none.
const SourceLocDefault SourceLoc = 0xffff_ffff

// IsDefault returns true if this is SourceLocDefault.
func (l SourceLoc) IsDefault() bool { return l == SourceLocDefault }

// String implements fmt.Stringer.
func (l SourceLoc) String() string {
	if l.IsDefault() {
		return "@-"
	}
	return fmt.Sprintf("@%04x", uint32(l))
}
