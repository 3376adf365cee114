// Package backend drives the binary emission of functions: it lays them out, emits them as x86-64
// machine code followed by their constant pool, and resolves the relocations it can.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tetratelabs/binemit/internal/asm"
	"github.com/tetratelabs/binemit/internal/binemit"
	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/isa/x86"
)

// Result is the machine code of one function and the records needed to load and link it.
type Result struct {
	Name ir.ExternalName
	// Code is the machine code, the jump tables and the read-only data described by Info,
	// followed by the constant pool at ConstantsOffset.
	Code []byte
	Info binemit.CodeInfo
	// ConstantsOffset is where the constant pool begins in Code. It equals len(Code) when the
	// pool is empty.
	ConstantsOffset binemit.CodeOffset
	// Relocs are the relocations left to the linker, in emission order.
	Relocs []binemit.Relocation
	Traps  []binemit.TrapSite
	// BlockOffsets is indexed by ir.Block.
	BlockOffsets []binemit.CodeOffset
	// JumpTableOffsets is indexed by ir.JumpTable.
	JumpTableOffsets []binemit.CodeOffset
}

// Compile emits fn as x86-64 machine code.
//
// Instructions without an encoding get the default encoding of their opcode, and fn.Offsets and
// fn.JumpTableOffsets are overwritten with the computed layout.
func Compile(ctx context.Context, cfg *Config, fn *ir.Function) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return compile(ctx, cfg, fn, asm.NewCodeSegment(nil))
}

func compile(ctx context.Context, cfg *Config, fn *ir.Function, seg *asm.CodeSegment) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := x86.AssignEncodings(fn); err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name, err)
	}

	binemit.ComputeLayout(fn, x86.EmitInst)

	relocs, traps := &binemit.RelocRecorder{}, &binemit.TrapRecorder{}
	buf := seg.Next()
	sink := binemit.NewMemoryCodeSink(buf, relocs, traps)
	binemit.EmitFunction(fn, x86.EmitInst, sink)
	info := sink.Info()

	constantsOffset := binemit.ConstantsOffset(info, cfg.constantPoolAlignment)
	if fn.Constants.Len() > 0 {
		for buf.Len() < int(constantsOffset) {
			buf.WriteByte(0)
		}
		_, _ = buf.Write(fn.Constants.Bytes())
	} else {
		constantsOffset = info.TotalSize
	}

	code := buf.Bytes()
	unresolved := relocs.Relocs
	if cfg.resolveLocal {
		unresolved = binemit.ResolveLocal(code, unresolved, fn.JumpTableOffsets, constantsOffset)
	}

	ret := &Result{
		Name:             fn.Name,
		Code:             code,
		Info:             info,
		ConstantsOffset:  constantsOffset,
		Relocs:           unresolved,
		Traps:            traps.Traps,
		BlockOffsets:     append([]binemit.CodeOffset(nil), fn.Offsets...),
		JumpTableOffsets: append([]binemit.CodeOffset(nil), fn.JumpTableOffsets...),
	}
	logResult(cfg.logger, fn, ret)
	return ret, nil
}

func logResult(logger *zap.Logger, fn *ir.Function, r *Result) {
	if !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	logger.Debug("compiled function",
		zap.Stringer("name", r.Name),
		zap.Stringer("info", r.Info),
		zap.Uint32("constants_offset", r.ConstantsOffset),
		zap.Int("constants", fn.Constants.Len()),
		zap.Int("relocs", len(r.Relocs)),
		zap.Int("traps", len(r.Traps)),
	)
	for _, b := range fn.Layout.Blocks() {
		logger.Debug("block",
			zap.Stringer("name", r.Name),
			zap.Stringer("block", b),
			zap.Uint32("offset", r.BlockOffsets[b]),
			zap.Int("insts", len(fn.Layout.BlockInsts(b))),
		)
	}
}
