package binemit

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/regalloc"
)

// testEmit is a minimal instruction emitter. nop emits Imm bytes of 0x90, and jump picks the short
// form when its target is in range.
func testEmit(fn *ir.Function, inst ir.Inst, _ *regalloc.RegDiversions, sink CodeSink) {
	d := &fn.Insts[inst]
	switch d.Opcode {
	case ir.OpcodeNop:
		for i := int64(0); i < d.Imm; i++ {
			sink.Put1(0x90)
		}
	case ir.OpcodeJump:
		start := int64(sink.Offset())
		target := int64(fn.Offsets[d.Dest])
		if rel := target - (start + 2); rel >= -128 && rel <= 127 {
			sink.Put1(0xeb)
			sink.Put1(uint8(int8(rel)))
		} else {
			sink.Put1(0xe9)
			sink.Put4(uint32(int32(target - (start + 5))))
		}
	case ir.OpcodeBrTable:
		sink.Put1(0x8d)
		sink.RelocJumpTable(RelocX86PCRelRodata4, d.Table)
		sink.Put4(0)
	case ir.OpcodeVconst:
		sink.Put1(0x6f)
		sink.RelocConstant(RelocX86PCRelRodata4, fn.Constants.Offset(d.Const))
		sink.Put4(0)
	case ir.OpcodeCall:
		sink.Put1(0xe8)
		sink.RelocExternal(RelocX86CallPLTRel4, d.Func, -4)
		sink.Put4(0)
	case ir.OpcodeTrap:
		sink.Trap(d.Code, fn.SrcLoc(inst))
		sink.Put2(0x0b0f)
	case ir.OpcodeReturn:
		sink.Put1(0xc3)
	default:
		BadEncoding(fn, inst)
	}
}

// recordingSink implements CodeSink by recording every call.
type recordingSink struct {
	buf   []byte
	calls []string
}

func (s *recordingSink) record(format string, args ...interface{}) {
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *recordingSink) Offset() CodeOffset { return CodeOffset(len(s.buf)) }

func (s *recordingSink) Put1(b uint8) { s.buf = append(s.buf, b) }

func (s *recordingSink) Put2(v uint16) { s.buf = append(s.buf, byte(v), byte(v>>8)) }

func (s *recordingSink) Put4(v uint32) {
	s.buf = append(s.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (s *recordingSink) Put8(v uint64) {
	s.Put4(uint32(v))
	s.Put4(uint32(v >> 32))
}

func (s *recordingSink) RelocBlock(r Reloc, off CodeOffset) {
	s.record("%d: reloc_block %s %d", s.Offset(), r, off)
}

func (s *recordingSink) RelocExternal(r Reloc, name ir.ExternalName, addend Addend) {
	s.record("%d: reloc_external %s %s%+d", s.Offset(), r, name, addend)
}

func (s *recordingSink) RelocConstant(r Reloc, off ir.ConstantOffset) {
	s.record("%d: reloc_constant %s %d", s.Offset(), r, off)
}

func (s *recordingSink) RelocJumpTable(r Reloc, jt ir.JumpTable) {
	s.record("%d: reloc_jt %s %s", s.Offset(), r, jt)
}

func (s *recordingSink) Trap(code ir.TrapCode, loc ir.SourceLoc) {
	s.record("%d: trap %s %s", s.Offset(), code, loc)
}

func (s *recordingSink) BeginJumpTables() { s.record("%d: begin_jumptables", s.Offset()) }

func (s *recordingSink) BeginRodata() { s.record("%d: begin_rodata", s.Offset()) }

func (s *recordingSink) EndCodegen() { s.record("%d: end_codegen", s.Offset()) }

func (s *recordingSink) String() string { return strings.Join(s.calls, "\n") }

// newNopFunction returns a function with one block per size, each holding a nop of that size.
func newNopFunction(sizes ...int64) *ir.Function {
	fn := ir.NewFunction(ir.TestCaseName("test"))
	for _, size := range sizes {
		b := fn.CreateBlock()
		fn.AppendInst(b, ir.InstData{Opcode: ir.OpcodeNop, Imm: size})
	}
	return fn
}
