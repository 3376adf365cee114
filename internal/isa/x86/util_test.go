package x86

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/binemit/internal/asm"
	"github.com/tetratelabs/binemit/internal/binemit"
	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/regalloc"
)

// emitted is the output of emitting a function.
type emitted struct {
	code   []byte
	info   binemit.CodeInfo
	relocs []binemit.Relocation
	traps  []binemit.TrapSite
}

// newTestFunction returns a function whose values are placed in the given registers, with an
// empty entry block.
func newTestFunction(regs ...ir.RegUnit) (*ir.Function, ir.Block) {
	fn := ir.NewFunction(ir.TestCaseName("test"))
	for v, r := range regs {
		fn.SetLocation(ir.Value(v), ir.RegLoc(r))
	}
	return fn, fn.CreateBlock()
}

func emitFunction(t *testing.T, fn *ir.Function) emitted {
	require.NoError(t, AssignEncodings(fn))
	binemit.ComputeLayout(fn, EmitInst)

	relocs, traps := &binemit.RelocRecorder{}, &binemit.TrapRecorder{}
	sink := binemit.NewMemoryCodeSink(asm.NewCodeSegment(nil).Next(), relocs, traps)
	binemit.EmitFunction(fn, EmitInst, sink)
	return emitted{code: sink.Bytes(), info: sink.Info(), relocs: relocs.Relocs, traps: traps.Traps}
}

// emitSingle emits a single instruction with fresh diversions.
func emitSingle(t *testing.T, fn *ir.Function, inst ir.Inst) []byte {
	require.NoError(t, AssignEncodings(fn))
	sink := binemit.NewMemoryCodeSink(asm.NewCodeSegment(nil).Next(), nil, nil)
	EmitInst(fn, inst, regalloc.NewRegDiversions(), sink)
	return sink.Bytes()
}
