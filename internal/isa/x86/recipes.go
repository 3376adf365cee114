package x86

import (
	"fmt"

	"github.com/tetratelabs/binemit/internal/ir"
)

// Recipe selects the emitter routine of an encoding. The bits of the encoding hold the primary
// opcode byte, or a ModR/M opcode extension, as defined by each recipe.
type Recipe uint16

const (
	// RecipeOp1 emits the single opcode byte in bits.
	RecipeOp1 Recipe = iota
	// RecipeMovImm emits `mov r64, imm` in its shortest form.
	RecipeMovImm
	// RecipeRexOp1RR emits `op r/m64, r64` with the result in r/m64 and the opcode in bits.
	RecipeRexOp1RR
	// RecipeRexOp1RImm emits `op r/m64, imm` with the ModR/M opcode extension in bits.
	RecipeRexOp1RImm
	// RecipeRexOp1Load emits a load `op r64, [base+disp]` with the opcode in bits.
	RecipeRexOp1Load
	// RecipeRexOp1Store emits a store `op [base+disp], r64` with the opcode in bits.
	RecipeRexOp1Store
	// RecipeRegMove moves a value between registers and updates the diversions.
	RecipeRegMove
	// RecipeRegSpill moves a value from a register to the stack and updates the diversions.
	RecipeRegSpill
	// RecipeRegFill moves a value from the stack to a register and updates the diversions.
	RecipeRegFill
	// RecipeJmp emits a jump with a 32-bit displacement.
	RecipeJmp
	// RecipeTestJcc emits `test r64, r64` followed by a conditional jump whose second opcode byte
	// is in bits.
	RecipeTestJcc
	// RecipeJumpTable emits an indirect jump through a jump table.
	RecipeJumpTable
	// RecipeCall emits a direct call to an external function.
	RecipeCall
	// RecipeSymbolValue emits the address of an external symbol.
	RecipeSymbolValue
	// RecipeVconst emits a 128-bit load from the constant pool.
	RecipeVconst
	// RecipeVexRRR emits a three operand VEX.128.0F instruction with the opcode in bits.
	RecipeVexRRR
	// RecipeTrap emits ud2 with a trap site.
	RecipeTrap
	// RecipeTrapz emits a trap taken when the argument is zero.
	RecipeTrapz
	recipeEnd
)

var recipeNames = [...]string{
	RecipeOp1:         "Op1",
	RecipeMovImm:      "MovImm",
	RecipeRexOp1RR:    "RexOp1rr",
	RecipeRexOp1RImm:  "RexOp1r_imm",
	RecipeRexOp1Load:  "RexOp1ld",
	RecipeRexOp1Store: "RexOp1st",
	RecipeRegMove:     "regmov",
	RecipeRegSpill:    "regspill",
	RecipeRegFill:     "regfill",
	RecipeJmp:         "jmpd",
	RecipeTestJcc:     "t8jccd",
	RecipeJumpTable:   "jt_entry",
	RecipeCall:        "call_id",
	RecipeSymbolValue: "symbol_value",
	RecipeVconst:      "vconst",
	RecipeVexRRR:      "VexOp1rrr",
	RecipeTrap:        "ud2",
	RecipeTrapz:       "trapz",
}

// String implements fmt.Stringer.
func (r Recipe) String() string {
	if r < recipeEnd {
		return recipeNames[r]
	}
	return fmt.Sprintf("recipe(%d)", uint16(r))
}

// Encoding returns the ir.Encoding for r with the given bits.
func (r Recipe) Encoding(bits uint16) ir.Encoding { return ir.NewEncoding(uint16(r), bits) }

// DisplayEncoding returns e with the recipe name, e.g. "RexOp1rr#01".
func DisplayEncoding(e ir.Encoding) string {
	if !e.IsLegal() {
		return "-"
	}
	return fmt.Sprintf("%s#%02x", Recipe(e.Recipe()), e.Bits())
}

// encodings is the encoding of every opcode supported by this ISA.
var encodings = [...]ir.Encoding{
	ir.OpcodeNop:         RecipeOp1.Encoding(0x90),
	ir.OpcodeReturn:      RecipeOp1.Encoding(0xc3),
	ir.OpcodeIconst:      RecipeMovImm.Encoding(0),
	ir.OpcodeCopy:        RecipeRexOp1RR.Encoding(0x89),
	ir.OpcodeIadd:        RecipeRexOp1RR.Encoding(0x01),
	ir.OpcodeIsub:        RecipeRexOp1RR.Encoding(0x29),
	ir.OpcodeBand:        RecipeRexOp1RR.Encoding(0x21),
	ir.OpcodeBor:         RecipeRexOp1RR.Encoding(0x09),
	ir.OpcodeBxor:        RecipeRexOp1RR.Encoding(0x31),
	ir.OpcodeIaddImm:     RecipeRexOp1RImm.Encoding(0),
	ir.OpcodeLoad:        RecipeRexOp1Load.Encoding(0x8b),
	ir.OpcodeStore:       RecipeRexOp1Store.Encoding(0x89),
	ir.OpcodeRegmove:     RecipeRegMove.Encoding(0x89),
	ir.OpcodeRegspill:    RecipeRegSpill.Encoding(0x89),
	ir.OpcodeRegfill:     RecipeRegFill.Encoding(0x8b),
	ir.OpcodeJump:        RecipeJmp.Encoding(0xe9),
	ir.OpcodeBrz:         RecipeTestJcc.Encoding(0x84),
	ir.OpcodeBrnz:        RecipeTestJcc.Encoding(0x85),
	ir.OpcodeBrTable:     RecipeJumpTable.Encoding(0),
	ir.OpcodeCall:        RecipeCall.Encoding(0xe8),
	ir.OpcodeSymbolValue: RecipeSymbolValue.Encoding(0),
	ir.OpcodeVconst:      RecipeVconst.Encoding(0x6f),
	ir.OpcodeFadd:        RecipeVexRRR.Encoding(0x58),
	ir.OpcodeTrap:        RecipeTrap.Encoding(0),
	ir.OpcodeTrapz:       RecipeTrapz.Encoding(0),
}

// EncodingOf returns the encoding of op, or false if this ISA doesn't support it.
func EncodingOf(op ir.Opcode) (ir.Encoding, bool) {
	if int(op) < len(encodings) {
		if enc := encodings[op]; enc.IsLegal() {
			return enc, true
		}
	}
	return ir.EncodingInvalid, false
}

// AssignEncodings gives every instruction of fn without an encoding the encoding of its opcode.
//
// This stands in for instruction selection, which normally chooses the encodings.
func AssignEncodings(fn *ir.Function) error {
	for _, b := range fn.Layout.Blocks() {
		for _, inst := range fn.Layout.BlockInsts(b) {
			if fn.Encodings[inst].IsLegal() {
				continue
			}
			enc, ok := EncodingOf(fn.Insts[inst].Opcode)
			if !ok {
				return fmt.Errorf("%s: no encoding for %s", inst, fn.DisplayInst(inst))
			}
			fn.SetEncoding(inst, enc)
		}
	}
	return nil
}
