package binemit

import (
	"fmt"

	"github.com/tetratelabs/binemit/internal/ir"
)

// Reloc is a relocation kind, for every supported ISA.
type Reloc byte

const (
	// RelocAbs4 is an absolute 4-byte address.
	RelocAbs4 Reloc = iota
	// RelocAbs8 is an absolute 8-byte address.
	RelocAbs8
	// RelocX86PCRel4 is an x86 PC-relative 4-byte offset.
	RelocX86PCRel4
	// RelocX86PCRelRodata4 is an x86 PC-relative 4-byte offset to trailing read-only data.
	RelocX86PCRelRodata4
	// RelocX86CallPCRel4 is an x86 call to a PC-relative 4-byte target.
	RelocX86CallPCRel4
	// RelocX86CallPLTRel4 is an x86 call to a PLT-relative 4-byte target.
	RelocX86CallPLTRel4
	// RelocX86GOTPCRel4 is an x86 PC-relative 4-byte offset to a GOT entry.
	RelocX86GOTPCRel4
	// RelocArm32Call is an Arm32 call target.
	RelocArm32Call
	// RelocArm64Call is an Arm64 call target.
	RelocArm64Call
	// RelocRiscvCall is a RISC-V call target.
	RelocRiscvCall
	relocEnd
)

var relocNames = [...]string{
	RelocAbs4:            "Abs4",
	RelocAbs8:            "Abs8",
	RelocX86PCRel4:       "X86PCRel4",
	RelocX86PCRelRodata4: "X86PCRelRodata4",
	RelocX86CallPCRel4:   "X86CallPCRel4",
	RelocX86CallPLTRel4:  "X86CallPLTRel4",
	RelocX86GOTPCRel4:    "X86GOTPCRel4",
	RelocArm32Call:       "Arm32Call",
	RelocArm64Call:       "Arm64Call",
	RelocRiscvCall:       "RiscvCall",
}

// String drops the architecture, as it is used where the ISA is already known. Use GoString for
// the unabridged name.
func (r Reloc) String() string {
	switch r {
	case RelocAbs4, RelocAbs8:
		return relocNames[r]
	case RelocX86PCRel4:
		return "PCRel4"
	case RelocX86PCRelRodata4:
		return "PCRelRodata4"
	case RelocX86CallPCRel4:
		return "CallPCRel4"
	case RelocX86CallPLTRel4:
		return "CallPLTRel4"
	case RelocX86GOTPCRel4:
		return "GOTPCRel4"
	case RelocArm32Call, RelocArm64Call, RelocRiscvCall:
		return "Call"
	default:
		return fmt.Sprintf("Reloc(%d)", byte(r))
	}
}

// GoString implements fmt.GoStringer.
func (r Reloc) GoString() string {
	if r < relocEnd {
		return relocNames[r]
	}
	return fmt.Sprintf("Reloc(%d)", byte(r))
}

// MarshalText implements encoding.TextMarshaler with the unabridged name.
func (r Reloc) MarshalText() ([]byte, error) {
	if r >= relocEnd {
		return nil, fmt.Errorf("invalid relocation kind %d", byte(r))
	}
	return []byte(relocNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reloc) UnmarshalText(text []byte) error {
	for i, name := range relocNames {
		if name == string(text) {
			*r = Reloc(i)
			return nil
		}
	}
	return fmt.Errorf("unknown relocation kind %q", text)
}

// RelocTarget is the kind of entity a Relocation references.
type RelocTarget byte

const (
	RelocTargetBlock RelocTarget = iota
	RelocTargetExternal
	RelocTargetConstant
	RelocTargetJumpTable
)

// String implements fmt.Stringer.
func (t RelocTarget) String() string {
	switch t {
	case RelocTargetBlock:
		return "block"
	case RelocTargetExternal:
		return "external"
	case RelocTargetConstant:
		return "constant"
	case RelocTargetJumpTable:
		return "jump_table"
	default:
		return fmt.Sprintf("RelocTarget(%d)", byte(t))
	}
}

// Relocation is a location in the code which needs to be fixed up once its target is placed.
type Relocation struct {
	// Offset is where the relocated field begins.
	Offset CodeOffset
	Kind   Reloc
	Target RelocTarget

	// BlockOffset is set for RelocTargetBlock.
	BlockOffset CodeOffset
	// Name and Addend are set for RelocTargetExternal.
	Name   ir.ExternalName
	Addend Addend
	// Constant is set for RelocTargetConstant.
	Constant ir.ConstantOffset
	// JumpTable is set for RelocTargetJumpTable.
	JumpTable ir.JumpTable
}

// String implements fmt.Stringer.
func (r Relocation) String() string {
	var target string
	switch r.Target {
	case RelocTargetBlock:
		target = fmt.Sprintf("block@%#x", r.BlockOffset)
	case RelocTargetExternal:
		target = fmt.Sprintf("%s%+d", r.Name, r.Addend)
	case RelocTargetConstant:
		target = fmt.Sprintf("const@%#x", r.Constant)
	case RelocTargetJumpTable:
		target = r.JumpTable.String()
	}
	return fmt.Sprintf("%#x: %s %s", r.Offset, r.Kind, target)
}

// TrapSite is a location in the code which may fault at runtime.
type TrapSite struct {
	Offset CodeOffset
	Code   ir.TrapCode
	SrcLoc ir.SourceLoc
}

// String implements fmt.Stringer.
func (t TrapSite) String() string {
	return fmt.Sprintf("%#x: %s %s", t.Offset, t.Code, t.SrcLoc)
}

// RelocSink receives the relocations of a MemoryCodeSink. offset is where the relocated field
// begins.
type RelocSink interface {
	RelocBlock(offset CodeOffset, r Reloc, blockOffset CodeOffset)
	RelocExternal(offset CodeOffset, r Reloc, name ir.ExternalName, addend Addend)
	RelocConstant(offset CodeOffset, r Reloc, constantOffset ir.ConstantOffset)
	RelocJumpTable(offset CodeOffset, r Reloc, jt ir.JumpTable)
}

// TrapSink receives the trap sites of a MemoryCodeSink.
type TrapSink interface {
	Trap(offset CodeOffset, code ir.TrapCode, loc ir.SourceLoc)
}

// NullRelocSink is a RelocSink which discards every relocation.
type NullRelocSink struct{}

func (NullRelocSink) RelocBlock(CodeOffset, Reloc, CodeOffset) {}
func (NullRelocSink) RelocExternal(CodeOffset, Reloc, ir.ExternalName, Addend) {}
func (NullRelocSink) RelocConstant(CodeOffset, Reloc, ir.ConstantOffset) {}
func (NullRelocSink) RelocJumpTable(CodeOffset, Reloc, ir.JumpTable) {}

// NullTrapSink is a TrapSink which discards every trap site.
type NullTrapSink struct{}

func (NullTrapSink) Trap(CodeOffset, ir.TrapCode, ir.SourceLoc) {}

// RelocRecorder is a RelocSink which keeps every relocation in order.
type RelocRecorder struct {
	Relocs []Relocation
}

func (r *RelocRecorder) RelocBlock(offset CodeOffset, kind Reloc, blockOffset CodeOffset) {
	r.Relocs = append(r.Relocs, Relocation{Offset: offset, Kind: kind, Target: RelocTargetBlock, BlockOffset: blockOffset})
}

func (r *RelocRecorder) RelocExternal(offset CodeOffset, kind Reloc, name ir.ExternalName, addend Addend) {
	r.Relocs = append(r.Relocs, Relocation{Offset: offset, Kind: kind, Target: RelocTargetExternal, Name: name, Addend: addend})
}

func (r *RelocRecorder) RelocConstant(offset CodeOffset, kind Reloc, constantOffset ir.ConstantOffset) {
	r.Relocs = append(r.Relocs, Relocation{Offset: offset, Kind: kind, Target: RelocTargetConstant, Constant: constantOffset})
}

func (r *RelocRecorder) RelocJumpTable(offset CodeOffset, kind Reloc, jt ir.JumpTable) {
	r.Relocs = append(r.Relocs, Relocation{Offset: offset, Kind: kind, Target: RelocTargetJumpTable, JumpTable: jt})
}

// TrapRecorder is a TrapSink which keeps every trap site in order.
type TrapRecorder struct {
	Traps []TrapSite
}

func (r *TrapRecorder) Trap(offset CodeOffset, code ir.TrapCode, loc ir.SourceLoc) {
	r.Traps = append(r.Traps, TrapSite{Offset: offset, Code: code, SrcLoc: loc})
}
