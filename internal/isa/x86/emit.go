// Package x86 emits x86-64 machine code for functions whose instructions were given encodings
// of this ISA.
package x86

import (
	"github.com/tetratelabs/binemit/internal/binemit"
	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/isa/x86/format"
	"github.com/tetratelabs/binemit/internal/regalloc"
)

const (
	modNoDisplacement    = 0b00
	modShortDisplacement = 0b01
	modLongDisplacement  = 0b10
	modRegister          = 0b11

	// rmSIB in the rm field of ModR/M means a SIB byte follows. It is the encoding of rsp and r12.
	rmSIB = 0b100
	// rmRIPRelative in the rm field of ModR/M with mod 00 means [rip+disp32]. It is the encoding
	// of rbp and r13.
	rmRIPRelative = 0b101
)

// Scratch registers used by jump table dispatch. They must not hold values across br_table.
const (
	jumpTableBase   = R11
	jumpTableTarget = R10
)

// EmitInst implements binemit.EmitInst for x86-64.
func EmitInst(fn *ir.Function, inst ir.Inst, divert *regalloc.RegDiversions, sink binemit.CodeSink) {
	enc := fn.Encodings[inst]
	if !enc.IsLegal() {
		binemit.BadEncoding(fn, inst)
	}
	e := &emitter{fn: fn, inst: inst, d: &fn.Insts[inst], divert: divert, sink: sink}
	bits := enc.Bits()

	switch Recipe(enc.Recipe()) {
	case RecipeOp1:
		sink.Put1(byte(bits))
	case RecipeMovImm:
		e.movImm()
	case RecipeRexOp1RR:
		e.rr(byte(bits))
	case RecipeRexOp1RImm:
		e.rImm(byte(bits))
	case RecipeRexOp1Load:
		e.trapSite()
		disp := e.disp32(e.d.Imm)
		e.encodeRM(byte(bits), e.gpr(e.d.Results[0]), e.gpr(e.d.Args[0]), disp)
	case RecipeRexOp1Store:
		e.trapSite()
		disp := e.disp32(e.d.Imm)
		e.encodeRM(byte(bits), e.gpr(e.d.Args[0]), e.gpr(e.d.Args[1]), disp)
	case RecipeRegMove:
		src, dst := e.regLoc(e.d.Src), e.regLoc(e.d.Dst)
		e.encodeRR(byte(bits), encodingOf(src), encodingOf(dst))
		divert.RegMove(e.d.Args[0], src, dst)
	case RecipeRegSpill:
		src, dst := e.regLoc(e.d.Src), e.stackLoc(e.d.Dst)
		e.encodeRM(byte(bits), encodingOf(src), encodingOf(RSP), int32(dst))
		divert.RegSpill(e.d.Args[0], src, dst)
	case RecipeRegFill:
		src, dst := e.stackLoc(e.d.Src), e.regLoc(e.d.Dst)
		e.encodeRM(byte(bits), encodingOf(dst), encodingOf(RSP), int32(src))
		divert.RegFill(e.d.Args[0], src, dst)
	case RecipeJmp:
		// Branches always take a rel32, so their size doesn't depend on the layout.
		sink.Put1(byte(bits))
		e.disp4(e.d.Dest)
	case RecipeTestJcc:
		r := e.gpr(e.d.Args[0])
		e.encodeRR(0x85, r, r)
		sink.Put1(0x0f)
		sink.Put1(byte(bits))
		e.disp4(e.d.Dest)
	case RecipeJumpTable:
		e.jumpTable()
	case RecipeCall:
		kind := binemit.RelocX86CallPLTRel4
		if e.d.Colocated {
			kind = binemit.RelocX86CallPCRel4
		}
		sink.Put1(byte(bits))
		sink.RelocExternal(kind, e.d.Func, -4)
		sink.Put4(0)
	case RecipeSymbolValue:
		opcode, kind := byte(0x8b), binemit.RelocX86GOTPCRel4 // mov r64, [rip+GOT entry]
		if e.d.Colocated {
			opcode, kind = 0x8d, binemit.RelocX86PCRel4 // lea r64, [rip+symbol]
		}
		e.encodeRIPRelative(nil, true, format.Opcode{opcode}, e.gpr(e.d.Results[0]))
		sink.RelocExternal(kind, e.d.Func, -4)
		sink.Put4(0)
	case RecipeVconst:
		// movdqu xmm, [rip+constant]
		prefixes := format.Seq[format.LegacyPrefix]{format.PrefixRep}
		e.encodeRIPRelative(prefixes, false, format.Opcode{0x0f, byte(bits)}, e.xmm(e.d.Results[0]))
		sink.RelocConstant(binemit.RelocX86PCRelRodata4, e.fn.Constants.Offset(e.d.Const))
		sink.Put4(0)
	case RecipeVexRRR:
		dst, a, b := e.xmm(e.d.Results[0]), e.xmm(e.d.Args[0]), e.xmm(e.d.Args[1])
		f := &format.VexFormat{
			Vex: format.CompactVex(format.ThreeByteVex{
				R:       dst.ext(),
				B:       b.ext(),
				Leading: format.VexLeading0F,
				VVVV:    byte(a),
			}),
			Opcode: format.Byte(bits),
			ModRM:  format.ModRM{Mod: modRegister, Reg: dst.low(), RM: b.low()},
		}
		f.Encode(sink)
	case RecipeTrap:
		sink.Trap(e.d.Code, fn.SrcLoc(inst))
		ud2.Encode(sink)
	case RecipeTrapz:
		r := e.gpr(e.d.Args[0])
		e.encodeRR(0x85, r, r)
		// jnz over the ud2.
		sink.Put1(0x75)
		sink.Put1(0x02)
		sink.Trap(e.d.Code, fn.SrcLoc(inst))
		ud2.Encode(sink)
	default:
		binemit.BadEncoding(fn, inst)
	}
}

var ud2 = &format.LegacyFormat{Opcode: format.Opcode{0x0f, 0x0b}}

type emitter struct {
	fn     *ir.Function
	inst   ir.Inst
	d      *ir.InstData
	divert *regalloc.RegDiversions
	sink   binemit.CodeSink
}

func (e *emitter) bad() { binemit.BadEncoding(e.fn, e.inst) }

// trapSite records the trap code of a trapping memory access at the current offset.
func (e *emitter) trapSite() {
	if e.d.CanTrap {
		e.sink.Trap(e.d.Code, e.fn.SrcLoc(e.inst))
	}
}

func (e *emitter) loc(v ir.Value) ir.ValueLoc {
	return e.divert.Get(v, e.fn.Locations)
}

func (e *emitter) regLoc(loc ir.ValueLoc) ir.RegUnit {
	if !loc.IsReg() || !IsGPR(loc.Reg()) {
		e.bad()
	}
	return loc.Reg()
}

func (e *emitter) stackLoc(loc ir.ValueLoc) ir.StackSlot {
	if !loc.IsStack() {
		e.bad()
	}
	return loc.Slot()
}

func (e *emitter) gpr(v ir.Value) regEnc {
	loc := e.loc(v)
	if !loc.IsReg() || !IsGPR(loc.Reg()) {
		e.bad()
	}
	return encodingOf(loc.Reg())
}

func (e *emitter) xmm(v ir.Value) regEnc {
	loc := e.loc(v)
	if !loc.IsReg() || !IsXMM(loc.Reg()) {
		e.bad()
	}
	return encodingOf(loc.Reg())
}

func (e *emitter) disp32(v int64) int32 {
	if v != int64(int32(v)) {
		e.bad()
	}
	return int32(v)
}

// disp4 writes the displacement from the end of the 4-byte field to the block.
func (e *emitter) disp4(target ir.Block) {
	e.sink.Put4(uint32(int32(e.fn.Offsets[target]) - int32(e.sink.Offset()+4)))
}

func (e *emitter) movImm() {
	dst := e.gpr(e.d.Results[0])
	f := &format.RexFormat{Rex: format.RexPrefix{W: true, B: dst.ext()}}
	if imm := e.d.Imm; imm == int64(int32(imm)) {
		// mov r/m64, imm32 (sign-extended)
		f.Opcode = format.Opcode{0xc7}
		f.ModRM = format.Some(format.ModRM{Mod: modRegister, Reg: 0, RM: dst.low()})
		f.Immediate = format.Imm32(int32(imm))
	} else {
		// mov r64, imm64
		f.Opcode = format.Opcode{0xb8 + dst.low()}
		f.Immediate = format.Imm64(imm)
	}
	f.Encode(e.sink)
}

func (e *emitter) rr(opcode byte) {
	dst := e.gpr(e.d.Results[0])
	switch len(e.d.Args) {
	case 1:
		e.encodeRR(opcode, e.gpr(e.d.Args[0]), dst)
	case 2:
		if e.gpr(e.d.Args[0]) != dst {
			e.bad()
		}
		e.encodeRR(opcode, e.gpr(e.d.Args[1]), dst)
	default:
		e.bad()
	}
}

func (e *emitter) rImm(ext byte) {
	dst := e.gpr(e.d.Results[0])
	if e.gpr(e.d.Args[0]) != dst {
		e.bad()
	}
	f := &format.RexFormat{
		Rex:   format.RexPrefix{W: true, B: dst.ext()},
		ModRM: format.Some(format.ModRM{Mod: modRegister, Reg: ext, RM: dst.low()}),
	}
	switch imm := e.d.Imm; {
	case imm == int64(int8(imm)):
		f.Opcode = format.Opcode{0x83}
		f.Immediate = format.Imm8(int8(imm))
	case imm == int64(int32(imm)):
		f.Opcode = format.Opcode{0x81}
		f.Immediate = format.Imm32(int32(imm))
	default:
		e.bad()
	}
	f.Encode(e.sink)
}

// encodeRR emits a 64-bit `opcode rm, reg` on two registers.
func (e *emitter) encodeRR(opcode byte, reg, rm regEnc) {
	f := &format.RexFormat{
		Rex:    format.RexPrefix{W: true, R: reg.ext(), B: rm.ext()},
		Opcode: format.Opcode{opcode},
		ModRM:  format.Some(format.ModRM{Mod: modRegister, Reg: reg.low(), RM: rm.low()}),
	}
	f.Encode(e.sink)
}

// encodeRM emits a 64-bit `opcode reg, [base+disp]` in its shortest form.
func (e *emitter) encodeRM(opcode byte, reg, base regEnc, disp int32) {
	f := &format.RexFormat{
		Rex:    format.RexPrefix{W: true, R: reg.ext(), B: base.ext()},
		Opcode: format.Opcode{opcode},
	}
	f.ModRM, f.SIB, f.Displacement = memOperand(reg, base, disp)
	f.Encode(e.sink)
}

// memOperand returns the ModR/M, SIB and displacement of [base+disp].
func memOperand(reg, base regEnc, disp int32) (format.Opt[format.ModRM], format.Opt[format.SIB], format.Opt[format.Encodable]) {
	modrm := format.ModRM{Reg: reg.low(), RM: base.low()}
	var displacement format.Opt[format.Encodable]
	switch {
	case disp == 0 && base.low() != rmRIPRelative:
		// rbp and r13 can't be used as base without displacement, as that means rip relative.
		modrm.Mod = modNoDisplacement
	case disp == int32(int8(disp)):
		modrm.Mod = modShortDisplacement
		displacement = format.Disp8(int8(disp))
	default:
		modrm.Mod = modLongDisplacement
		displacement = format.Disp32(disp)
	}

	var sib format.Opt[format.SIB]
	if base.low() == rmSIB {
		// rsp and r12 as base need a SIB byte without index.
		sib = format.Some(format.SIB{Scale: 0, Index: rmSIB, Base: rmSIB})
	}
	return format.Some(modrm), sib, displacement
}

// encodeRIPRelative emits `opcode reg, [rip+disp32]` without the displacement, which the caller
// writes after the relocation.
func (e *emitter) encodeRIPRelative(prefixes format.Seq[format.LegacyPrefix], w bool, opcode format.Opcode, reg regEnc) {
	f := &format.LegacyFormat{
		LegacyPrefixes: prefixes,
		Opcode:         opcode,
		ModRM:          format.Some(format.ModRM{Mod: modNoDisplacement, Reg: reg.low(), RM: rmRIPRelative}),
	}
	f.Select(format.RexPrefix{W: w, R: reg.ext()}).Encode(e.sink)
}

// jumpTable emits:
//
//	lea r11, [rip+jt]
//	movsxd r10, dword [r11+idx*4]
//	add r10, r11
//	jmp r10
func (e *emitter) jumpTable() {
	idx := e.gpr(e.d.Args[0])
	if idx == encodingOf(jumpTableBase) || idx == encodingOf(RSP) {
		e.bad()
	}
	base, target := encodingOf(jumpTableBase), encodingOf(jumpTableTarget)

	e.encodeRIPRelative(nil, true, format.Opcode{0x8d}, base)
	e.sink.RelocJumpTable(binemit.RelocX86PCRelRodata4, e.d.Table)
	e.sink.Put4(0)

	movsxd := &format.RexFormat{
		Rex:    format.RexPrefix{W: true, R: target.ext(), X: idx.ext(), B: base.ext()},
		Opcode: format.Opcode{0x63},
		ModRM:  format.Some(format.ModRM{Mod: modNoDisplacement, Reg: target.low(), RM: rmSIB}),
		SIB:    format.Some(format.SIB{Scale: 2, Index: idx.low(), Base: base.low()}),
	}
	movsxd.Encode(e.sink)

	e.encodeRR(0x01, base, target)

	jmp := &format.RexFormat{
		Rex:    format.RexPrefix{B: target.ext()},
		Opcode: format.Opcode{0xff},
		ModRM:  format.Some(format.ModRM{Mod: modRegister, Reg: 4, RM: target.low()}),
	}
	jmp.Encode(e.sink)
}
