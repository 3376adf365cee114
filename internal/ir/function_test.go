package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFunction_builder(t *testing.T) {
	fn := NewFunction(TestCaseName("f"))
	b0, b1 := fn.CreateBlock(), fn.CreateBlock()
	require.Equal(t, []Block{0, 1}, fn.Layout.Blocks())
	require.Equal(t, 2, fn.NumBlocks())
	require.Len(t, fn.Offsets, 2)

	i0 := fn.AppendInst(b1, InstData{Opcode: OpcodeReturn})
	i1 := fn.AppendInst(b0, InstData{Opcode: OpcodeJump, Dest: b1})
	require.Equal(t, []Inst{i1}, fn.Layout.BlockInsts(b0))
	require.Equal(t, []Inst{i0}, fn.Layout.BlockInsts(b1))
	require.False(t, fn.Encodings[i0].IsLegal())
	require.Equal(t, SourceLocDefault, fn.SrcLoc(i0))

	fn.SetSrcLoc(i0, 0x10)
	require.Equal(t, SourceLoc(0x10), fn.SrcLoc(i0))
	fn.SetEncoding(i1, NewEncoding(1, 0))
	require.True(t, fn.Encodings[i1].IsLegal())

	fn.SetLocation(5, RegLoc(2))
	require.Len(t, fn.Locations, 6)
	require.Equal(t, RegLoc(2), fn.Location(5))
	require.False(t, fn.Location(4).IsAssigned())
	require.False(t, fn.Location(100).IsAssigned())

	jt := fn.CreateJumpTable(b1, b0)
	require.Equal(t, JumpTable(0), jt)
	require.Equal(t, JumpTableData{b1, b0}, fn.JumpTables[jt])
	require.Len(t, fn.JumpTableOffsets, 1)

	require.Panics(t, func() { fn.AppendInst(5, InstData{}) })
}

func TestFunction_DisplayInst(t *testing.T) {
	fn := NewFunction(TestCaseName("f"))
	b := fn.CreateBlock()
	for _, tc := range []struct {
		data InstData
		exp  string
	}{
		{data: InstData{Opcode: OpcodeIadd, Args: []Value{0, 1}, Results: []Value{2}}, exp: "v2 = iadd v0, v1"},
		{data: InstData{Opcode: OpcodeIconst, Imm: 42, Results: []Value{0}}, exp: "v0 = iconst 42"},
		{data: InstData{Opcode: OpcodeIaddImm, Imm: -1, Args: []Value{3}, Results: []Value{4}}, exp: "v4 = iadd_imm v3, -1"},
		{data: InstData{Opcode: OpcodeLoad, Imm: 8, Args: []Value{0}, Results: []Value{1}}, exp: "v1 = load v0+8"},
		{
			data: InstData{Opcode: OpcodeLoad, Imm: 0, Args: []Value{0}, Results: []Value{1}, CanTrap: true, Code: TrapCodeHeapOutOfBounds},
			exp:  "v1 = load v0+0 ; heap_oob",
		},
		{data: InstData{Opcode: OpcodeStore, Imm: 8, Args: []Value{0, 1}}, exp: "store v0, v1+8"},
		{data: InstData{Opcode: OpcodeStore, Imm: 8, Args: []Value{0}}, exp: "store v0+8"},
		{data: InstData{Opcode: OpcodeStore, Imm: -4}, exp: "store -4"},
		{data: InstData{Opcode: OpcodeRegmove, Args: []Value{0}, Src: RegLoc(0), Dst: RegLoc(1)}, exp: "regmove v0, %0 -> %1"},
		{data: InstData{Opcode: OpcodeRegspill, Args: []Value{0}, Src: RegLoc(0), Dst: StackLoc(8)}, exp: "regspill v0, %0 -> ss[8]"},
		{data: InstData{Opcode: OpcodeJump, Dest: 2}, exp: "jump block2"},
		{data: InstData{Opcode: OpcodeBrz, Args: []Value{0}, Dest: 2}, exp: "brz v0, block2"},
		{data: InstData{Opcode: OpcodeBrTable, Args: []Value{0}, Table: 0}, exp: "br_table v0, jt0"},
		{data: InstData{Opcode: OpcodeCall, Args: []Value{0}, Func: TestCaseName("foo")}, exp: "call %foo(v0)"},
		{data: InstData{Opcode: OpcodeSymbolValue, Func: TestCaseName("foo"), Results: []Value{0}}, exp: "v0 = symbol_value %foo"},
		{data: InstData{Opcode: OpcodeVconst, Const: 0, Results: []Value{0}}, exp: "v0 = vconst const0"},
		{data: InstData{Opcode: OpcodeTrap, Code: TrapCodeHeapOutOfBounds}, exp: "trap heap_oob"},
		{data: InstData{Opcode: OpcodeTrapz, Args: []Value{0}, Code: TrapCodeIntegerDivisionByZero}, exp: "trapz v0, int_divz"},
		{data: InstData{Opcode: OpcodeReturn}, exp: "return"},
	} {
		tc := tc
		t.Run(tc.exp, func(t *testing.T) {
			inst := fn.AppendInst(b, tc.data)
			require.Equal(t, tc.exp, fn.DisplayInst(inst))
		})
	}
}
