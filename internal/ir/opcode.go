package ir

import "fmt"

// Opcode is the operation of an instruction.
type Opcode byte

const (
	OpcodeNop Opcode = iota
	// OpcodeIconst materializes Imm into Results[0].
	OpcodeIconst
	// OpcodeCopy copies Args[0] into Results[0].
	OpcodeCopy
	// OpcodeIadd computes Args[0] + Args[1]. Results[0] is tied to Args[0].
	OpcodeIadd
	// OpcodeIsub computes Args[0] - Args[1]. Results[0] is tied to Args[0].
	OpcodeIsub
	// OpcodeBand computes Args[0] & Args[1]. Results[0] is tied to Args[0].
	OpcodeBand
	// OpcodeBor computes Args[0] | Args[1]. Results[0] is tied to Args[0].
	OpcodeBor
	// OpcodeBxor computes Args[0] ^ Args[1]. Results[0] is tied to Args[0].
	OpcodeBxor
	// OpcodeIaddImm computes Args[0] + Imm. Results[0] is tied to Args[0].
	OpcodeIaddImm
	// OpcodeLoad loads 64 bits from Args[0] + Imm into Results[0].
	OpcodeLoad
	// OpcodeStore stores Args[0] at Args[1] + Imm.
	OpcodeStore
	// OpcodeRegmove moves Args[0] from the register Src to the register Dst.
	OpcodeRegmove
	// OpcodeRegspill moves Args[0] from the register Src to the stack slot Dst.
	OpcodeRegspill
	// OpcodeRegfill moves Args[0] from the stack slot Src to the register Dst.
	OpcodeRegfill
	// OpcodeJump jumps to Dest.
	OpcodeJump
	// OpcodeBrz branches to Dest when Args[0] is zero.
	OpcodeBrz
	// OpcodeBrnz branches to Dest when Args[0] is not zero.
	OpcodeBrnz
	// OpcodeBrTable jumps to the Args[0]-th block of Table.
	OpcodeBrTable
	// OpcodeCall calls Func.
	OpcodeCall
	// OpcodeSymbolValue materializes the address of Func into Results[0].
	OpcodeSymbolValue
	// OpcodeVconst loads the 128-bit constant Const into Results[0].
	OpcodeVconst
	// OpcodeFadd adds the four packed single precision floats in Args[0] and Args[1].
	OpcodeFadd
	// OpcodeTrap traps unconditionally with Code.
	OpcodeTrap
	// OpcodeTrapz traps with Code when Args[0] is zero.
	OpcodeTrapz
	// OpcodeReturn returns from the function.
	OpcodeReturn
	opcodeEnd
)

var opcodeNames = [...]string{
	OpcodeNop:         "nop",
	OpcodeIconst:      "iconst",
	OpcodeCopy:        "copy",
	OpcodeIadd:        "iadd",
	OpcodeIsub:        "isub",
	OpcodeBand:        "band",
	OpcodeBor:         "bor",
	OpcodeBxor:        "bxor",
	OpcodeIaddImm:     "iadd_imm",
	OpcodeLoad:        "load",
	OpcodeStore:       "store",
	OpcodeRegmove:     "regmove",
	OpcodeRegspill:    "regspill",
	OpcodeRegfill:     "regfill",
	OpcodeJump:        "jump",
	OpcodeBrz:         "brz",
	OpcodeBrnz:        "brnz",
	OpcodeBrTable:     "br_table",
	OpcodeCall:        "call",
	OpcodeSymbolValue: "symbol_value",
	OpcodeVconst:      "vconst",
	OpcodeFadd:        "fadd",
	OpcodeTrap:        "trap",
	OpcodeTrapz:       "trapz",
	OpcodeReturn:      "return",
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if o < opcodeEnd {
		return opcodeNames[o]
	}
	return fmt.Sprintf("opcode(%d)", byte(o))
}

// ParseOpcode is the inverse of Opcode.String.
func ParseOpcode(s string) (Opcode, error) {
	for i, name := range opcodeNames {
		if name == s {
			return Opcode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown opcode %q", s)
}

// IsTerminator returns true if control never falls through this instruction.
func (o Opcode) IsTerminator() bool {
	switch o {
	case OpcodeJump, OpcodeBrTable, OpcodeTrap, OpcodeReturn:
		return true
	default:
		return false
	}
}
