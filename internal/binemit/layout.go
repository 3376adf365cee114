package binemit

import (
	"fmt"

	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/regalloc"
)

// maxLayoutPasses bounds the number of sizing passes of ComputeLayout. With fixed-size
// encodings every offset is known after the first pass and the second one only confirms it.
// Emitters choosing a shorter encoding for nearby targets may need more.
const maxLayoutPasses = 16

// ComputeLayout assigns fn.Offsets and fn.JumpTableOffsets by sizing every instruction with emit,
// and returns the sizes that EmitFunction will produce with the same emit.
//
// Jump tables are placed right after the code, in identifier order. No padding is inserted.
func ComputeLayout(fn *ir.Function, emit EmitInst) CodeInfo {
	sink := &sizeSink{}
	divert := regalloc.NewRegDiversions()
	for pass := 0; ; pass++ {
		if pass == maxLayoutPasses {
			panic(fmt.Sprintf("BUG: layout of %s did not converge after %d passes", fn.Name, maxLayoutPasses))
		}

		sink.offset = 0
		changed := false
		for _, b := range fn.Layout.Blocks() {
			divert.Clear()
			if fn.Offsets[b] != sink.offset {
				fn.Offsets[b] = sink.offset
				changed = true
			}
			for _, inst := range fn.Layout.BlockInsts(b) {
				emit(fn, inst, divert, sink)
			}
		}

		codeSize := sink.offset
		for jt, targets := range fn.JumpTables {
			if fn.JumpTableOffsets[jt] != sink.offset {
				fn.JumpTableOffsets[jt] = sink.offset
				changed = true
			}
			sink.offset += CodeOffset(4 * len(targets))
		}

		if !changed {
			return CodeInfo{
				CodeSize:       codeSize,
				JumpTablesSize: sink.offset - codeSize,
				TotalSize:      sink.offset,
			}
		}
	}
}

// sizeSink is a CodeSink which only counts bytes.
type sizeSink struct {
	offset CodeOffset
}

func (s *sizeSink) Offset() CodeOffset { return s.offset }
func (s *sizeSink) Put1(uint8) { s.offset++ }
func (s *sizeSink) Put2(uint16) { s.offset += 2 }
func (s *sizeSink) Put4(uint32) { s.offset += 4 }
func (s *sizeSink) Put8(uint64) { s.offset += 8 }
func (s *sizeSink) RelocBlock(Reloc, CodeOffset) {}
func (s *sizeSink) RelocExternal(Reloc, ir.ExternalName, Addend) {}
func (s *sizeSink) RelocConstant(Reloc, ir.ConstantOffset) {}
func (s *sizeSink) RelocJumpTable(Reloc, ir.JumpTable) {}
func (s *sizeSink) Trap(ir.TrapCode, ir.SourceLoc) {}
func (s *sizeSink) BeginJumpTables() {}
func (s *sizeSink) BeginRodata() {}
func (s *sizeSink) EndCodegen() {}
