// Package binemit translates functions which went through instruction selection, register
// allocation and layout into binary machine code.
//
// Code is produced through the CodeSink interface. A sink receives the machine code of a function
// followed by its jump tables and read-only data, together with the relocations and trap sites
// which annotate the code.
package binemit

import (
	"fmt"

	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/regalloc"
)

// CodeOffset is an offset in bytes from the beginning of the function.
//
// This can be used for cross compilation, so it doesn't depend on the word size of the host.
type CodeOffset = ir.CodeOffset

// Addend is added to the symbol value of a relocation.
type Addend = int64

// CodeInfo describes a function's compiled code and its supporting read-only data.
//
// The code starts at offset 0 and is followed optionally by relocatable jump tables and raw
// read-only data. Any padding between sections is part of the section that precedes the
// boundary.
type CodeInfo struct {
	// CodeSize is the number of bytes of machine code.
	CodeSize CodeOffset `yaml:"code_size"`
	// JumpTablesSize is the number of bytes of jump tables.
	JumpTablesSize CodeOffset `yaml:"jump_tables_size"`
	// RodataSize is the number of bytes of read-only data.
	RodataSize CodeOffset `yaml:"rodata_size"`
	// TotalSize is the sum of the three above.
	TotalSize CodeOffset `yaml:"total_size"`
}

// JumpTables returns the offset of the jump tables, which equals Rodata if there are none.
func (c CodeInfo) JumpTables() CodeOffset { return c.CodeSize }

// Rodata returns the offset of the read-only data, which equals TotalSize if there is none.
func (c CodeInfo) Rodata() CodeOffset { return c.CodeSize + c.JumpTablesSize }

// String implements fmt.Stringer.
func (c CodeInfo) String() string {
	return fmt.Sprintf("code=%d jump_tables=%d rodata=%d total=%d", c.CodeSize, c.JumpTablesSize, c.RodataSize, c.TotalSize)
}

// CodeSink receives the machine code of a function. It also accepts relocations, which are
// locations in the code that need to be fixed up when linking, and trap sites.
//
// Multi-byte writes are little-endian. Relocations and traps annotate the current offset and
// don't write any byte. The Begin and End methods are called exactly once each, in the order
// BeginJumpTables, BeginRodata, EndCodegen.
//
// None of the methods report errors: a sink that can't accept more output panics.
type CodeSink interface {
	// Offset returns the current position.
	Offset() CodeOffset

	Put1(uint8)
	Put2(uint16)
	Put4(uint32)
	Put8(uint64)

	// RelocBlock adds a relocation referencing the block at blockOffset.
	RelocBlock(r Reloc, blockOffset CodeOffset)
	// RelocExternal adds a relocation referencing an external symbol plus the addend.
	RelocExternal(r Reloc, name ir.ExternalName, addend Addend)
	// RelocConstant adds a relocation referencing a constant at the given constant pool offset.
	RelocConstant(r Reloc, offset ir.ConstantOffset)
	// RelocJumpTable adds a relocation referencing a jump table.
	RelocJumpTable(r Reloc, jt ir.JumpTable)
	// Trap adds trap information for the current offset.
	Trap(code ir.TrapCode, loc ir.SourceLoc)

	// BeginJumpTables is called once the machine code is complete. Jump table data may follow.
	BeginJumpTables()
	// BeginRodata is called once the jump tables are complete. Raw read-only data may follow.
	BeginRodata()
	// EndCodegen is called once the read-only data is complete.
	EndCodegen()
}

// EmitInst writes the machine code of a single instruction to sink, according to the encoding
// assigned to it. divert holds the register diversions in effect and must be updated by
// instructions which move values.
type EmitInst func(fn *ir.Function, inst ir.Inst, divert *regalloc.RegDiversions, sink CodeSink)

// BadEncoding reports an instruction whose encoding can't be emitted. It never returns.
func BadEncoding(fn *ir.Function, inst ir.Inst) {
	panic(fmt.Sprintf("Bad encoding %s for %s", fn.Encodings[inst], fn.DisplayInst(inst)))
}

// EmitFunction writes fn to sink, using emit to produce every instruction.
//
// fn.Offsets and fn.JumpTableOffsets must hold the final layout, e.g. as computed by
// ComputeLayout with the same emit function.
func EmitFunction(fn *ir.Function, emit EmitInst, sink CodeSink) {
	divert := regalloc.NewRegDiversions()
	for _, b := range fn.Layout.Blocks() {
		divert.Clear()
		if expected, actual := fn.Offsets[b], sink.Offset(); expected != actual {
			panic(fmt.Sprintf("BUG: %s laid out at %#x but emitted at %#x", b, expected, actual))
		}
		for _, inst := range fn.Layout.BlockInsts(b) {
			emit(fn, inst, divert, sink)
		}
	}

	sink.BeginJumpTables()
	for jt, targets := range fn.JumpTables {
		jtOffset := fn.JumpTableOffsets[jt]
		for _, target := range targets {
			relOffset := int32(fn.Offsets[target]) - int32(jtOffset)
			sink.Put4(uint32(relOffset))
		}
	}

	sink.BeginRodata()
	sink.EndCodegen()
}
