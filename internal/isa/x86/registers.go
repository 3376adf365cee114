package x86

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/binemit/internal/ir"
)

// Register units. General purpose registers are numbered as in their hardware encoding, followed
// by the XMM registers.
const (
	RAX ir.RegUnit = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
	numRegUnits
)

var regNames = [numRegUnits]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx", RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11", R12: "r12", R13: "r13", R14: "r14", R15: "r15",
	XMM0: "xmm0", XMM1: "xmm1", XMM2: "xmm2", XMM3: "xmm3", XMM4: "xmm4", XMM5: "xmm5", XMM6: "xmm6", XMM7: "xmm7",
	XMM8: "xmm8", XMM9: "xmm9", XMM10: "xmm10", XMM11: "xmm11", XMM12: "xmm12", XMM13: "xmm13", XMM14: "xmm14", XMM15: "xmm15",
}

// RegName returns the name of r, e.g. "rax".
func RegName(r ir.RegUnit) string {
	if r < numRegUnits {
		return regNames[r]
	}
	return fmt.Sprintf("%%%d", r)
}

// ParseReg is the inverse of RegName.
func ParseReg(name string) (ir.RegUnit, error) {
	name = strings.ToLower(name)
	for i, n := range regNames {
		if n == name {
			return ir.RegUnit(i), nil
		}
	}
	return 0, fmt.Errorf("unknown register %q", name)
}

// IsGPR returns true if r is a general purpose register.
func IsGPR(r ir.RegUnit) bool { return r < XMM0 }

// IsXMM returns true if r is an XMM register.
func IsXMM(r ir.RegUnit) bool { return r >= XMM0 && r < numRegUnits }

// regEnc is the 4-bit hardware number of a register: the low 3 bits go into ModR/M or SIB, and
// the high bit into REX or VEX.
type regEnc byte

func encodingOf(r ir.RegUnit) regEnc {
	if r >= numRegUnits {
		panic(fmt.Sprintf("BUG: invalid register unit %d", r))
	}
	return regEnc(r & 0b1111)
}

func (r regEnc) low() byte { return byte(r) & 0b111 }

func (r regEnc) ext() bool { return r&0b1000 != 0 }
