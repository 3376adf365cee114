package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tetratelabs/binemit/internal/asm"
	"github.com/tetratelabs/binemit/internal/binemit"
	"github.com/tetratelabs/binemit/internal/ir"
)

// Module is the code of several functions packed into a single segment.
type Module struct {
	// Code holds every function at the offset in Offsets. Functions are aligned on
	// asm.Alignment bytes.
	Code []byte
	// Funcs and Offsets are in the order the functions were given to CompileAll.
	Funcs   []*Result
	Offsets []int
	// Relocs are the relocations which reference symbols outside the module. Their offsets are
	// relative to the beginning of Code.
	Relocs []binemit.Relocation
}

// CompileAll compiles fns concurrently, then packs them into a Module. Calls and PC-relative
// references from one function to another of the module are resolved. References local to a
// function are always resolved, whatever cfg says.
//
// The context is checked before each function. Every function must have a distinct name.
func CompileAll(ctx context.Context, cfg *Config, fns []*ir.Function) (*Module, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	byName := make(map[ir.ExternalName]int, len(fns))
	for i, fn := range fns {
		if j, ok := byName[fn.Name]; ok {
			return nil, fmt.Errorf("functions %d and %d are both named %s", j, i, fn.Name)
		}
		byName[fn.Name] = i
	}

	// Block, jump table and constant references only make sense within their own function, and
	// Module.Relocs doesn't record which one that is.
	local := cfg.clone()
	local.resolveLocal = true

	results := make([]*Result, len(fns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.numWorkers())
	for i, fn := range fns {
		g.Go(func() error {
			r, err := compile(gctx, local, fn, asm.NewCodeSegment(nil))
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Module{Funcs: results, Offsets: make([]int, len(results))}
	seg := asm.NewCodeSegment(nil)
	bufs := make([]asm.Buffer, len(results))
	for i, r := range results {
		bufs[i] = seg.Next()
		_, _ = bufs[i].Write(r.Code)
		m.Offsets[i] = bufs[i].Offset()
	}

	var linked int
	for i, r := range results {
		for _, rel := range r.Relocs {
			target, ok := byName[rel.Name]
			if rel.Target != binemit.RelocTargetExternal || !ok || !isPCRelative(rel.Kind) {
				rel.Offset += binemit.CodeOffset(m.Offsets[i])
				m.Relocs = append(m.Relocs, rel)
				continue
			}
			// S + A - P
			value := int64(m.Offsets[target]) + rel.Addend - int64(m.Offsets[i]+int(rel.Offset))
			if value != int64(int32(value)) {
				return nil, fmt.Errorf("%s: relocation %s out of range of %s", r.Name, rel, rel.Name)
			}
			bufs[i].PatchUint32(int(rel.Offset), uint32(int32(value)))
			linked++
		}
	}
	m.Code = seg.Bytes()

	cfg.logger.Debug("compiled module",
		zap.Int("funcs", len(results)),
		zap.Int("size", len(m.Code)),
		zap.Int("linked_relocs", linked),
		zap.Int("relocs", len(m.Relocs)),
	)
	return m, nil
}

func isPCRelative(kind binemit.Reloc) bool {
	switch kind {
	case binemit.RelocX86PCRel4, binemit.RelocX86CallPCRel4, binemit.RelocX86CallPLTRel4:
		return true
	default:
		return false
	}
}
