package format

import "fmt"

// VexVectorLength is the VEX.L field.
type VexVectorLength byte

const (
	VexScalarOrVector128 VexVectorLength = iota
	VexVector256
)

// VexSimdPrefix is the VEX.pp field, which replaces the mandatory SIMD prefix.
type VexSimdPrefix byte

const (
	VexSimdNone VexSimdPrefix = iota
	VexSimd66
	VexSimdF3
	VexSimdF2
)

// VexLeadingOpcode is the VEX.mmmmm field, which replaces the leading opcode bytes.
type VexLeadingOpcode byte

const (
	// VexLeadingReserved is not a valid selector, but is the zero value.
	VexLeadingReserved VexLeadingOpcode = iota
	VexLeading0F
	VexLeading0F38
	VexLeading0F3A
)

// VexPrefix is either a TwoByteVex or a ThreeByteVex.
type VexPrefix interface {
	Encodable
	vexPrefix()
}

// TwoByteVex is the VEX prefix starting with 0xC5. It implies the 0F leading opcode byte, and
// clear REX.W, REX.X and REX.B. See section 2.3.5 of the Intel Software Developer's Manual vol. 2A.
//
// Fields are given in their REX sense, e.g. R is REX.R, and are written inverted.
type TwoByteVex struct {
	// R extends the ModR/M reg field.
	R bool
	// VVVV is the register number of the first source operand, or 0 if unused.
	VVVV uint8
	L    VexVectorLength
	PP   VexSimdPrefix
}

func (TwoByteVex) vexPrefix() {}

// Encode implements Encodable.Encode.
func (v TwoByteVex) Encode(sink ByteSink) {
	checkVex(v.VVVV, v.L, v.PP)
	sink.Put1(0xc5)
	sink.Put1(bit(!v.R)<<7 | (^v.VVVV&0b1111)<<3 | byte(v.L)<<2 | byte(v.PP))
}

// ThreeByteVex is the VEX prefix starting with 0xC4. See section 2.3.5 of the Intel Software
// Developer's Manual vol. 2A.
//
// Fields are given in their REX sense, e.g. R is REX.R, and R, X, B and VVVV are written
// inverted.
type ThreeByteVex struct {
	// R extends the ModR/M reg field.
	R bool
	// X extends the SIB index field.
	X bool
	// B extends the ModR/M rm field or the SIB base field.
	B bool
	// Leading replaces the leading opcode bytes.
	Leading VexLeadingOpcode
	// W is the operand size promotion or an opcode extension.
	W bool
	// VVVV is the register number of the first source operand, or 0 if unused.
	VVVV uint8
	L    VexVectorLength
	PP   VexSimdPrefix
}

func (ThreeByteVex) vexPrefix() {}

// Encode implements Encodable.Encode.
func (v ThreeByteVex) Encode(sink ByteSink) {
	checkVex(v.VVVV, v.L, v.PP)
	switch v.Leading {
	case VexLeading0F, VexLeading0F38, VexLeading0F3A:
	default:
		panic(fmt.Sprintf("BUG: invalid VEX leading opcode selector %d", v.Leading))
	}
	sink.Put1(0xc4)
	sink.Put1(bit(!v.R)<<7 | bit(!v.X)<<6 | bit(!v.B)<<5 | byte(v.Leading))
	sink.Put1(bit(v.W)<<7 | (^v.VVVV&0b1111)<<3 | byte(v.L)<<2 | byte(v.PP))
}

func checkVex(vvvv uint8, l VexVectorLength, pp VexSimdPrefix) {
	if vvvv > 0b1111 || l > VexVector256 || pp > VexSimdF2 {
		panic(fmt.Sprintf("BUG: invalid VEX fields vvvv=%d L=%d pp=%d", vvvv, l, pp))
	}
}

// CompactVex returns the shortest VEX prefix able to express the given fields: the two byte
// form whenever X, B and W are clear and the leading opcode is 0F.
func CompactVex(v ThreeByteVex) VexPrefix {
	if !v.X && !v.B && !v.W && v.Leading == VexLeading0F {
		return TwoByteVex{R: v.R, VVVV: v.VVVV, L: v.L, PP: v.PP}
	}
	return v
}

// VexFormat is the layout of VEX encoded instructions.
type VexFormat struct {
	Vex          VexPrefix
	Opcode       Byte
	ModRM        ModRM
	SIB          Opt[SIB]
	Displacement Opt[Encodable]
	Immediate    Opt[Encodable]
}

// Encode implements Encodable.Encode.
func (f *VexFormat) Encode(sink ByteSink) {
	if f.Vex == nil {
		panic("BUG: VEX format without prefix")
	}
	f.Vex.Encode(sink)
	f.Opcode.Encode(sink)
	f.ModRM.Encode(sink)
	f.SIB.Encode(sink)
	f.Displacement.Encode(sink)
	f.Immediate.Encode(sink)
}
