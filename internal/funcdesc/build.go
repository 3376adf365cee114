package funcdesc

import (
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/isa/x86"
)

// arity is the number of arguments and results of each opcode.
var arity = map[ir.Opcode][2]int{
	ir.OpcodeNop:         {0, 0},
	ir.OpcodeIconst:      {0, 1},
	ir.OpcodeCopy:        {1, 1},
	ir.OpcodeIadd:        {2, 1},
	ir.OpcodeIsub:        {2, 1},
	ir.OpcodeBand:        {2, 1},
	ir.OpcodeBor:         {2, 1},
	ir.OpcodeBxor:        {2, 1},
	ir.OpcodeIaddImm:     {1, 1},
	ir.OpcodeLoad:        {1, 1},
	ir.OpcodeStore:       {2, 0},
	ir.OpcodeRegmove:     {1, 0},
	ir.OpcodeRegspill:    {1, 0},
	ir.OpcodeRegfill:     {1, 0},
	ir.OpcodeJump:        {0, 0},
	ir.OpcodeBrz:         {1, 0},
	ir.OpcodeBrnz:        {1, 0},
	ir.OpcodeBrTable:     {1, 0},
	ir.OpcodeCall:        {0, 0},
	ir.OpcodeSymbolValue: {0, 1},
	ir.OpcodeVconst:      {0, 1},
	ir.OpcodeFadd:        {2, 1},
	ir.OpcodeTrap:        {0, 0},
	ir.OpcodeTrapz:       {1, 0},
	ir.OpcodeReturn:      {0, 0},
}

// Build converts every function of f.
func (f *File) Build() ([]*ir.Function, error) {
	ret := make([]*ir.Function, 0, len(f.Functions))
	for i := range f.Functions {
		fn, err := f.Functions[i].Build()
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		ret = append(ret, fn)
	}
	return ret, nil
}

// builder holds the state of the conversion of one function.
type builder struct {
	fn     *ir.Function
	blocks map[string]ir.Block
	tables map[string]ir.JumpTable
	// used holds the values referenced by instructions.
	used map[ir.Value]struct{}
}

// Build converts d into an ir.Function. Instructions have no encoding yet.
func (d *Function) Build() (*ir.Function, error) {
	name, err := ir.ParseExternalName(d.Name)
	if err != nil {
		return nil, err
	}
	if len(d.Blocks) == 0 {
		return nil, fmt.Errorf("%s: no blocks", name)
	}

	b := &builder{
		fn:     ir.NewFunction(name),
		blocks: map[string]ir.Block{},
		tables: map[string]ir.JumpTable{},
		used:   map[ir.Value]struct{}{},
	}
	if err := b.build(d); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b.fn, nil
}

func (b *builder) build(d *Function) error {
	for _, blk := range d.Blocks {
		if _, ok := b.blocks[blk.Name]; ok || blk.Name == "" {
			return fmt.Errorf("invalid or duplicate block name %q", blk.Name)
		}
		b.blocks[blk.Name] = b.fn.CreateBlock()
	}

	for _, jt := range d.JumpTables {
		if _, ok := b.tables[jt.Name]; ok || jt.Name == "" {
			return fmt.Errorf("invalid or duplicate jump table name %q", jt.Name)
		}
		targets := make([]ir.Block, len(jt.Targets))
		for i, name := range jt.Targets {
			target, err := b.block(name)
			if err != nil {
				return fmt.Errorf("jump table %s: %w", jt.Name, err)
			}
			targets[i] = target
		}
		b.tables[jt.Name] = b.fn.CreateJumpTable(targets...)
	}

	for _, v := range slices.Sorted(maps.Keys(d.Values)) {
		loc := d.Values[v]
		value, err := parseValue(v)
		if err != nil {
			return err
		}
		l, err := parseLocation(loc)
		if err != nil {
			return fmt.Errorf("%s: %w", v, err)
		}
		b.fn.SetLocation(value, l)
	}

	for _, blk := range d.Blocks {
		for i := range blk.Insts {
			if err := b.inst(b.blocks[blk.Name], &blk.Insts[i]); err != nil {
				return fmt.Errorf("block %s inst %d: %w", blk.Name, i, err)
			}
		}
	}

	for _, v := range slices.Sorted(maps.Keys(b.used)) {
		if !b.fn.Location(v).IsAssigned() {
			return fmt.Errorf("%s has no location", v)
		}
	}
	return nil
}

func (b *builder) inst(blk ir.Block, d *Inst) error {
	op, err := ir.ParseOpcode(d.Op)
	if err != nil {
		return err
	}
	data := ir.InstData{Opcode: op, Imm: d.Imm, Colocated: d.Colocated}

	if data.Args, err = b.values(d.Args); err != nil {
		return err
	}
	if data.Results, err = b.values(d.Results); err != nil {
		return err
	}
	if n, ok := arity[op]; ok && (len(data.Args) != n[0] || len(data.Results) != n[1]) {
		return fmt.Errorf("%s takes %d arguments and %d results, got %d and %d",
			op, n[0], n[1], len(data.Args), len(data.Results))
	}

	switch op {
	case ir.OpcodeJump, ir.OpcodeBrz, ir.OpcodeBrnz:
		if data.Dest, err = b.block(d.Dest); err != nil {
			return err
		}
	case ir.OpcodeBrTable:
		jt, ok := b.tables[d.Table]
		if !ok {
			return fmt.Errorf("unknown jump table %q", d.Table)
		}
		data.Table = jt
	case ir.OpcodeCall, ir.OpcodeSymbolValue:
		if data.Func, err = ir.ParseExternalName(d.Func); err != nil {
			return err
		}
	case ir.OpcodeVconst:
		value, err := hex.DecodeString(strings.TrimPrefix(d.Constant, "0x"))
		if err != nil {
			return fmt.Errorf("invalid constant %q: %w", d.Constant, err)
		}
		if len(value) != 16 {
			return fmt.Errorf("vconst needs a 16-byte constant, got %d bytes", len(value))
		}
		data.Const = b.fn.Constants.Insert(value)
	case ir.OpcodeRegmove, ir.OpcodeRegspill, ir.OpcodeRegfill:
		if data.Src, err = parseLocation(d.Src); err != nil {
			return fmt.Errorf("src: %w", err)
		}
		if data.Dst, err = parseLocation(d.Dst); err != nil {
			return fmt.Errorf("dst: %w", err)
		}
	}

	if d.Trap != "" {
		switch op {
		case ir.OpcodeTrap, ir.OpcodeTrapz:
		case ir.OpcodeLoad, ir.OpcodeStore:
			data.CanTrap = true
		default:
			return fmt.Errorf("%s can't trap", op)
		}
		if data.Code, err = ir.ParseTrapCode(d.Trap); err != nil {
			return err
		}
	} else if op == ir.OpcodeTrap || op == ir.OpcodeTrapz {
		return fmt.Errorf("%s needs a trap code", op)
	}

	inst := b.fn.AppendInst(blk, data)
	if d.SrcLoc != nil {
		b.fn.SetSrcLoc(inst, ir.SourceLoc(*d.SrcLoc))
	}
	return nil
}

func (b *builder) block(name string) (ir.Block, error) {
	blk, ok := b.blocks[name]
	if !ok {
		return 0, fmt.Errorf("unknown block %q", name)
	}
	return blk, nil
}

func (b *builder) values(names []string) ([]ir.Value, error) {
	if len(names) == 0 {
		return nil, nil
	}
	ret := make([]ir.Value, len(names))
	for i, name := range names {
		v, err := parseValue(name)
		if err != nil {
			return nil, err
		}
		b.used[v] = struct{}{}
		ret[i] = v
	}
	return ret, nil
}

func parseValue(s string) (ir.Value, error) {
	if n, ok := strings.CutPrefix(s, "v"); ok {
		if v, err := strconv.ParseUint(n, 10, 32); err == nil {
			return ir.Value(v), nil
		}
	}
	return 0, fmt.Errorf("invalid value %q", s)
}

// parseLocation parses a register name or a stack slot "ss[offset]".
func parseLocation(s string) (ir.ValueLoc, error) {
	if n, ok := strings.CutPrefix(s, "ss["); ok {
		if n, ok := strings.CutSuffix(n, "]"); ok {
			slot, err := strconv.ParseInt(n, 10, 32)
			if err != nil {
				return ir.ValueLoc{}, fmt.Errorf("invalid stack slot %q: %w", s, err)
			}
			return ir.StackLoc(ir.StackSlot(slot)), nil
		}
	}
	r, err := x86.ParseReg(s)
	if err != nil {
		return ir.ValueLoc{}, err
	}
	return ir.RegLoc(r), nil
}
