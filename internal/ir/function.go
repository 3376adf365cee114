package ir

import (
	"fmt"
	"strings"
)

// InstData holds the operation and operands of one instruction. Which fields are meaningful
// depends on Opcode.
type InstData struct {
	Opcode  Opcode
	Args    []Value
	Results []Value
	// Imm is the immediate of iconst and iadd_imm, and the address offset of load and store.
	Imm int64
	// Dest is the target of jump, brz and brnz.
	Dest Block
	// Table is the jump table of br_table.
	Table JumpTable
	// Const is the constant loaded by vconst.
	Const Constant
	// Func is the callee of call and the symbol of symbol_value.
	Func ExternalName
	// Colocated is true when Func is known to be placed within PC-relative range of this function.
	Colocated bool
	// Code is the trap code of trap, trapz, and of load or store when CanTrap is set.
	Code    TrapCode
	CanTrap bool
	// Src and Dst are the locations a regmove, regspill or regfill moves Args[0] between.
	Src, Dst ValueLoc
}

// JumpTableData is the ordered list of target blocks of a jump table.
type JumpTableData []Block

// Layout is the order of blocks in a function, and of instructions in each block.
type Layout struct {
	order []Block
	insts [][]Inst // indexed by Block.
}

// Blocks returns the blocks in layout order.
func (l *Layout) Blocks() []Block { return l.order }

// BlockInsts returns the instructions of b in layout order.
func (l *Layout) BlockInsts(b Block) []Inst { return l.insts[b] }

// Function is a function ready for binary emission: every instruction has an encoding, every
// value has a location, and the offsets of blocks and jump tables have been computed.
type Function struct {
	Name   ExternalName
	Layout Layout

	// Insts, Encodings and SrcLocs are indexed by Inst.
	Insts     []InstData
	Encodings []Encoding
	SrcLocs   []SourceLoc

	// Locations is indexed by Value.
	Locations []ValueLoc

	// JumpTables is indexed by JumpTable.
	JumpTables []JumpTableData

	// Constants holds the values referenced by vconst instructions.
	Constants *ConstantPool

	// Offsets is indexed by Block and holds the offset of each block in the emitted code.
	Offsets []CodeOffset
	// JumpTableOffsets is indexed by JumpTable and holds the offset of each table in the output.
	JumpTableOffsets []CodeOffset
}

// NewFunction returns an empty Function.
func NewFunction(name ExternalName) *Function {
	return &Function{Name: name, Constants: NewConstantPool()}
}

// CreateBlock allocates a new block and appends it to the layout.
func (f *Function) CreateBlock() Block {
	b := Block(len(f.Layout.insts))
	f.Layout.insts = append(f.Layout.insts, nil)
	f.Layout.order = append(f.Layout.order, b)
	f.Offsets = append(f.Offsets, 0)
	return b
}

// NumBlocks returns the number of blocks created in this function.
func (f *Function) NumBlocks() int { return len(f.Layout.insts) }

// AppendInst adds an instruction at the end of b. It has no encoding until SetEncoding is called.
func (f *Function) AppendInst(b Block, data InstData) Inst {
	if int(b) >= len(f.Layout.insts) {
		panic(fmt.Sprintf("BUG: %s does not exist", b))
	}
	inst := Inst(len(f.Insts))
	f.Insts = append(f.Insts, data)
	f.Encodings = append(f.Encodings, EncodingInvalid)
	f.SrcLocs = append(f.SrcLocs, SourceLocDefault)
	f.Layout.insts[b] = append(f.Layout.insts[b], inst)
	return inst
}

// SetEncoding assigns the encoding of inst.
func (f *Function) SetEncoding(inst Inst, enc Encoding) { f.Encodings[inst] = enc }

// SetSrcLoc assigns the source location of inst.
func (f *Function) SetSrcLoc(inst Inst, loc SourceLoc) { f.SrcLocs[inst] = loc }

// SrcLoc returns the source location of inst.
func (f *Function) SrcLoc(inst Inst) SourceLoc {
	if int(inst) < len(f.SrcLocs) {
		return f.SrcLocs[inst]
	}
	return SourceLocDefault
}

// SetLocation assigns the location of v, growing Locations as needed.
func (f *Function) SetLocation(v Value, loc ValueLoc) {
	for int(v) >= len(f.Locations) {
		f.Locations = append(f.Locations, ValueLoc{})
	}
	f.Locations[v] = loc
}

// Location returns the location of v assigned by register allocation.
func (f *Function) Location(v Value) ValueLoc {
	if int(v) < len(f.Locations) {
		return f.Locations[v]
	}
	return ValueLoc{}
}

// CreateJumpTable declares a jump table with the given targets.
func (f *Function) CreateJumpTable(targets ...Block) JumpTable {
	jt := JumpTable(len(f.JumpTables))
	f.JumpTables = append(f.JumpTables, append(JumpTableData(nil), targets...))
	f.JumpTableOffsets = append(f.JumpTableOffsets, 0)
	return jt
}

// DisplayInst returns the textual form of inst, e.g. "v2 = iadd v0, v1".
func (f *Function) DisplayInst(inst Inst) string {
	d := &f.Insts[inst]
	var sb strings.Builder
	if len(d.Results) > 0 {
		sb.WriteString(joinValues(d.Results))
		sb.WriteString(" = ")
	}
	sb.WriteString(d.Opcode.String())

	var operands []string
	args := joinValues(d.Args)
	switch d.Opcode {
	case OpcodeIconst:
		operands = append(operands, fmt.Sprintf("%d", d.Imm))
	case OpcodeIaddImm:
		operands = append(operands, args, fmt.Sprintf("%d", d.Imm))
	case OpcodeLoad:
		operands = append(operands, fmt.Sprintf("%s%+d", args, d.Imm))
	case OpcodeStore:
		if len(d.Args) == 2 {
			operands = append(operands, d.Args[0].String(), fmt.Sprintf("%s%+d", d.Args[1], d.Imm))
		} else {
			operands = append(operands, fmt.Sprintf("%s%+d", args, d.Imm))
		}
	case OpcodeRegmove, OpcodeRegspill, OpcodeRegfill:
		operands = append(operands, args, fmt.Sprintf("%s -> %s", d.Src, d.Dst))
	case OpcodeJump:
		operands = append(operands, d.Dest.String())
	case OpcodeBrz, OpcodeBrnz:
		operands = append(operands, args, d.Dest.String())
	case OpcodeBrTable:
		operands = append(operands, args, d.Table.String())
	case OpcodeCall:
		operands = append(operands, fmt.Sprintf("%s(%s)", d.Func, args))
	case OpcodeSymbolValue:
		operands = append(operands, d.Func.String())
	case OpcodeVconst:
		operands = append(operands, d.Const.String())
	case OpcodeTrap:
		operands = append(operands, d.Code.String())
	case OpcodeTrapz:
		operands = append(operands, args, d.Code.String())
	default:
		if args != "" {
			operands = append(operands, args)
		}
	}
	if len(operands) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(operands, ", "))
	}
	if d.CanTrap && (d.Opcode == OpcodeLoad || d.Opcode == OpcodeStore) {
		sb.WriteString(" ; ")
		sb.WriteString(d.Code.String())
	}
	return sb.String()
}

func joinValues(vs []Value) string {
	strs := make([]string, len(vs))
	for i, v := range vs {
		strs[i] = v.String()
	}
	return strings.Join(strs, ", ")
}
