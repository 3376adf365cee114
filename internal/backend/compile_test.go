package backend

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tetratelabs/binemit/internal/binemit"
	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/isa/x86"
)

// vconstFunction returns a function loading a 16-byte constant into xmm0.
func vconstFunction(name string) *ir.Function {
	fn := ir.NewFunction(ir.TestCaseName(name))
	fn.SetLocation(0, ir.RegLoc(x86.XMM0))
	b := fn.CreateBlock()
	c := fn.Constants.Insert(ir.ConstantData(bytes.Repeat([]byte{0xab}, 16)))
	fn.AppendInst(b, ir.InstData{Opcode: ir.OpcodeVconst, Const: c, Results: []ir.Value{0}})
	fn.AppendInst(b, ir.InstData{Opcode: ir.OpcodeReturn})
	return fn
}

func TestCompile_constantPool(t *testing.T) {
	pool := hex.EncodeToString(bytes.Repeat([]byte{0xab}, 16))

	t.Run("aligned", func(t *testing.T) {
		r, err := Compile(context.Background(), NewConfig(), vconstFunction("f"))
		require.NoError(t, err)
		require.Equal(t, binemit.CodeInfo{CodeSize: 9, TotalSize: 9}, r.Info)
		require.Equal(t, binemit.CodeOffset(16), r.ConstantsOffset)
		// 16 - (4 + 4)
		require.Equal(t, "f30f6f0508000000c3"+"00000000000000"+pool, hex.EncodeToString(r.Code))
		require.Empty(t, r.Relocs)
		require.Equal(t, []binemit.CodeOffset{0}, r.BlockOffsets)
	})

	t.Run("unaligned", func(t *testing.T) {
		cfg := NewConfig().WithConstantPoolAlignment(0)
		r, err := Compile(context.Background(), cfg, vconstFunction("f"))
		require.NoError(t, err)
		require.Equal(t, binemit.CodeOffset(9), r.ConstantsOffset)
		require.Equal(t, "f30f6f0501000000c3"+pool, hex.EncodeToString(r.Code))
	})

	t.Run("unresolved", func(t *testing.T) {
		cfg := NewConfig().WithResolveLocal(false)
		r, err := Compile(context.Background(), cfg, vconstFunction("f"))
		require.NoError(t, err)
		require.Equal(t, "f30f6f0500000000c3"+"00000000000000"+pool, hex.EncodeToString(r.Code))
		require.Equal(t, []binemit.Relocation{
			{Offset: 4, Kind: binemit.RelocX86PCRelRodata4, Target: binemit.RelocTargetConstant, Constant: 0},
		}, r.Relocs)
	})
}

func TestCompile_noConstants(t *testing.T) {
	fn := ir.NewFunction(ir.TestCaseName("f"))
	b := fn.CreateBlock()
	fn.AppendInst(b, ir.InstData{Opcode: ir.OpcodeReturn})

	r, err := Compile(context.Background(), NewConfig(), fn)
	require.NoError(t, err)
	require.Equal(t, []byte{0xc3}, r.Code)
	require.Equal(t, binemit.CodeOffset(1), r.ConstantsOffset)
}

func TestCompile_jumpTable(t *testing.T) {
	fn := ir.NewFunction(ir.TestCaseName("f"))
	fn.SetLocation(0, ir.RegLoc(x86.RDI))
	b0, b1 := fn.CreateBlock(), fn.CreateBlock()
	jt := fn.CreateJumpTable(b1, b0)
	fn.AppendInst(b0, ir.InstData{Opcode: ir.OpcodeBrTable, Args: []ir.Value{0}, Table: jt})
	fn.AppendInst(b1, ir.InstData{Opcode: ir.OpcodeReturn})

	r, err := Compile(context.Background(), NewConfig(), fn)
	require.NoError(t, err)
	require.Equal(t, binemit.CodeInfo{CodeSize: 18, JumpTablesSize: 8, TotalSize: 26}, r.Info)
	require.Equal(t, []binemit.CodeOffset{0, 17}, r.BlockOffsets)
	require.Equal(t, []binemit.CodeOffset{18}, r.JumpTableOffsets)
	require.Empty(t, r.Relocs)
	// lea r11, [rip+11]; movsxd r10, [r11+rdi*4]; add r10, r11; jmp r10; ret; jt: [-1, -18]
	require.Equal(t, "4c8d1d0b000000"+"4d6314bb"+"4d01da"+"41ffe2"+"c3"+"ffffffff"+"eeffffff",
		hex.EncodeToString(r.Code))
}

func TestCompile_errors(t *testing.T) {
	t.Run("no encoding", func(t *testing.T) {
		fn := ir.NewFunction(ir.TestCaseName("f"))
		fn.AppendInst(fn.CreateBlock(), ir.InstData{Opcode: ir.Opcode(200)})
		_, err := Compile(context.Background(), NewConfig(), fn)
		require.EqualError(t, err, "%f: inst0: no encoding for opcode(200)")
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Compile(ctx, NewConfig(), vconstFunction("f"))
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid alignment", func(t *testing.T) {
		_, err := Compile(context.Background(), NewConfig().WithConstantPoolAlignment(3), vconstFunction("f"))
		require.EqualError(t, err, "invalid constant pool alignment 3: must be a power of two")
	})
}

func TestCompile_logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := NewConfig().WithLogger(zap.New(core))

	_, err := Compile(context.Background(), cfg, vconstFunction("f"))
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "compiled function", entries[0].Message)
	require.Equal(t, "%f", entries[0].ContextMap()["name"])
	require.Equal(t, int64(1), entries[0].ContextMap()["constants"])
	require.Equal(t, "block", entries[1].Message)
	require.Equal(t, "block0", entries[1].ContextMap()["block"])

	// Nothing is logged above debug level.
	core, logs = observer.New(zapcore.InfoLevel)
	_, err = Compile(context.Background(), NewConfig().WithLogger(zap.New(core)), vconstFunction("f"))
	require.NoError(t, err)
	require.Zero(t, logs.Len())
}
