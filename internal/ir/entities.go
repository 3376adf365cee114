// Package ir holds the entities of a function that has been through instruction selection,
// register allocation and layout, as consumed by the binary emission layer.
//
// Only the parts of the intermediate representation that emission reads are modeled here.
package ir

import "fmt"

// Block is a reference to a basic block in a Function.
type Block uint32

// String implements fmt.Stringer.
func (b Block) String() string { return fmt.Sprintf("block%d", uint32(b)) }

// Inst is a reference to an instruction in a Function.
type Inst uint32

// String implements fmt.Stringer.
func (i Inst) String() string { return fmt.Sprintf("inst%d", uint32(i)) }

// Value is a reference to an SSA value in a Function.
type Value uint32

// String implements fmt.Stringer.
func (v Value) String() string { return fmt.Sprintf("v%d", uint32(v)) }

// JumpTable is a reference to a jump table declared in a Function.
type JumpTable uint32

// String implements fmt.Stringer.
func (j JumpTable) String() string { return fmt.Sprintf("jt%d", uint32(j)) }

// Constant is a handle to a constant registered in a ConstantPool.
//
// Handles are assigned densely and sequentially, starting at zero.
type Constant uint32

// String implements fmt.Stringer.
func (c Constant) String() string { return fmt.Sprintf("const%d", uint32(c)) }

// CodeOffset is an offset in bytes from the beginning of a function.
//
// This is deliberately not a native word: a cross compiler must not depend on the host platform.
type CodeOffset = uint32

// RegUnit is a physical register number as defined by the target ISA.
type RegUnit uint16

// StackSlot is a byte offset from the stack pointer at which a spilled value lives.
type StackSlot int32

// String implements fmt.Stringer.
func (s StackSlot) String() string { return fmt.Sprintf("ss[%d]", int32(s)) }

type valueLocKind byte

const (
	valueLocKindUnassigned valueLocKind = iota
	valueLocKindReg
	valueLocKindStack
)

// ValueLoc is where register allocation put a value: a register, a stack slot, or nowhere.
type ValueLoc struct {
	kind valueLocKind
	reg  RegUnit
	slot StackSlot
}

// RegLoc returns a ValueLoc for the register r.
func RegLoc(r RegUnit) ValueLoc { return ValueLoc{kind: valueLocKindReg, reg: r} }

// StackLoc returns a ValueLoc for the stack slot s.
func StackLoc(s StackSlot) ValueLoc { return ValueLoc{kind: valueLocKindStack, slot: s} }

// IsAssigned returns true if this location is either a register or a stack slot.
func (l ValueLoc) IsAssigned() bool { return l.kind != valueLocKindUnassigned }

// IsReg returns true if this location is a register.
func (l ValueLoc) IsReg() bool { return l.kind == valueLocKindReg }

// IsStack returns true if this location is a stack slot.
func (l ValueLoc) IsStack() bool { return l.kind == valueLocKindStack }

// Reg returns the register of this location. Panics if this is not a register location.
func (l ValueLoc) Reg() RegUnit {
	if l.kind != valueLocKindReg {
		panic(fmt.Sprintf("BUG: %s is not a register location", l))
	}
	return l.reg
}

// Slot returns the stack slot of this location. Panics if this is not a stack location.
func (l ValueLoc) Slot() StackSlot {
	if l.kind != valueLocKindStack {
		panic(fmt.Sprintf("BUG: %s is not a stack location", l))
	}
	return l.slot
}

// String implements fmt.Stringer.
func (l ValueLoc) String() string {
	switch l.kind {
	case valueLocKindReg:
		return fmt.Sprintf("%%%d", l.reg)
	case valueLocKindStack:
		return l.slot.String()
	default:
		return "-"
	}
}
