package binemit

import (
	"fmt"

	"github.com/tetratelabs/binemit/internal/asm"
	"github.com/tetratelabs/binemit/internal/ir"
)

type sinkPhase byte

const (
	sinkPhaseCode sinkPhase = iota
	sinkPhaseJumpTables
	sinkPhaseRodata
	sinkPhaseEnd
)

func (p sinkPhase) String() string {
	switch p {
	case sinkPhaseCode:
		return "code"
	case sinkPhaseJumpTables:
		return "jump tables"
	case sinkPhaseRodata:
		return "rodata"
	default:
		return "end"
	}
}

// MemoryCodeSink is a CodeSink writing to an asm.Buffer. Offsets are relative to the beginning of
// the buffer.
//
// Relocations and traps are only accepted while writing the machine code and are forwarded to
// the RelocSink and TrapSink. Misuse of the sink protocol panics.
type MemoryCodeSink struct {
	buf    asm.Buffer
	relocs RelocSink
	traps  TrapSink
	phase  sinkPhase
	info   CodeInfo
}

// NewMemoryCodeSink returns a sink writing at the end of buf. A nil relocs or traps discards the
// corresponding records.
func NewMemoryCodeSink(buf asm.Buffer, relocs RelocSink, traps TrapSink) *MemoryCodeSink {
	if relocs == nil {
		relocs = NullRelocSink{}
	}
	if traps == nil {
		traps = NullTrapSink{}
	}
	return &MemoryCodeSink{buf: buf, relocs: relocs, traps: traps}
}

// Info returns the sizes of the sections. Panics if EndCodegen was not called yet.
func (s *MemoryCodeSink) Info() CodeInfo {
	if s.phase != sinkPhaseEnd {
		panic("BUG: code info requested before the end of code generation")
	}
	return s.info
}

// Bytes returns everything written to the sink.
func (s *MemoryCodeSink) Bytes() []byte {
	return s.buf.Bytes()
}

// Offset implements CodeSink.Offset.
func (s *MemoryCodeSink) Offset() CodeOffset {
	return CodeOffset(s.buf.Len())
}

func (s *MemoryCodeSink) mustWrite() {
	if s.phase == sinkPhaseEnd {
		panic("BUG: write after the end of code generation")
	}
}

func (s *MemoryCodeSink) mustAnnotate(what string) {
	if s.phase != sinkPhaseCode {
		panic(fmt.Sprintf("BUG: %s outside of machine code (in %s)", what, s.phase))
	}
}

// Put1 implements CodeSink.Put1.
func (s *MemoryCodeSink) Put1(b uint8) {
	s.mustWrite()
	s.buf.WriteByte(b)
}

// Put2 implements CodeSink.Put2.
func (s *MemoryCodeSink) Put2(v uint16) {
	s.mustWrite()
	s.buf.WriteUint16(v)
}

// Put4 implements CodeSink.Put4.
func (s *MemoryCodeSink) Put4(v uint32) {
	s.mustWrite()
	s.buf.WriteUint32(v)
}

// Put8 implements CodeSink.Put8.
func (s *MemoryCodeSink) Put8(v uint64) {
	s.mustWrite()
	s.buf.WriteUint64(v)
}

// RelocBlock implements CodeSink.RelocBlock.
func (s *MemoryCodeSink) RelocBlock(r Reloc, blockOffset CodeOffset) {
	s.mustAnnotate("relocation")
	s.relocs.RelocBlock(s.Offset(), r, blockOffset)
}

// RelocExternal implements CodeSink.RelocExternal.
func (s *MemoryCodeSink) RelocExternal(r Reloc, name ir.ExternalName, addend Addend) {
	s.mustAnnotate("relocation")
	s.relocs.RelocExternal(s.Offset(), r, name, addend)
}

// RelocConstant implements CodeSink.RelocConstant.
func (s *MemoryCodeSink) RelocConstant(r Reloc, offset ir.ConstantOffset) {
	s.mustAnnotate("relocation")
	s.relocs.RelocConstant(s.Offset(), r, offset)
}

// RelocJumpTable implements CodeSink.RelocJumpTable.
func (s *MemoryCodeSink) RelocJumpTable(r Reloc, jt ir.JumpTable) {
	s.mustAnnotate("relocation")
	s.relocs.RelocJumpTable(s.Offset(), r, jt)
}

// Trap implements CodeSink.Trap.
func (s *MemoryCodeSink) Trap(code ir.TrapCode, loc ir.SourceLoc) {
	s.mustAnnotate("trap")
	s.traps.Trap(s.Offset(), code, loc)
}

func (s *MemoryCodeSink) advance(from, to sinkPhase) {
	if s.phase != from {
		panic(fmt.Sprintf("BUG: cannot begin %s while in %s", to, s.phase))
	}
	s.phase = to
}

// BeginJumpTables implements CodeSink.BeginJumpTables.
func (s *MemoryCodeSink) BeginJumpTables() {
	s.advance(sinkPhaseCode, sinkPhaseJumpTables)
	s.info.CodeSize = s.Offset()
}

// BeginRodata implements CodeSink.BeginRodata.
func (s *MemoryCodeSink) BeginRodata() {
	s.advance(sinkPhaseJumpTables, sinkPhaseRodata)
	s.info.JumpTablesSize = s.Offset() - s.info.JumpTables()
}

// EndCodegen implements CodeSink.EndCodegen.
func (s *MemoryCodeSink) EndCodegen() {
	s.advance(sinkPhaseRodata, sinkPhaseEnd)
	s.info.RodataSize = s.Offset() - s.info.Rodata()
	s.info.TotalSize = s.Offset()
}
