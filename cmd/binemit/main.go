package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/tetratelabs/binemit/internal/backend"
	"github.com/tetratelabs/binemit/internal/binemit"
	"github.com/tetratelabs/binemit/internal/funcdesc"
	"github.com/tetratelabs/binemit/internal/ir"
	"github.com/tetratelabs/binemit/internal/isa/x86"
)

func main() {
	os.Exit(doMain(os.Args[1:], os.Stdout, os.Stderr))
}

// doMain is separated out for the purpose of unit testing. It returns the exit code.
func doMain(args []string, stdOut, stdErr io.Writer) int {
	cmd := newRootCmd(stdOut, stdErr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stdErr, "error:", err)
		return 1
	}
	return 0
}

type options struct {
	verbose    bool
	noResolve  bool
	alignment  uint32
	workers    int
	disasm     bool
	yamlReport bool
}

func newRootCmd(stdOut, stdErr io.Writer) *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:           "binemit",
		Short:         "Emit x86-64 machine code for functions described in YAML or TOML",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(stdOut)
	root.SetErr(stdErr)

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log every compiled function and block")
	flags.BoolVar(&opts.noResolve, "no-resolve", false, "leave relocations to local targets unresolved; link always resolves them")
	flags.Uint32Var(&opts.alignment, "align", 16, "alignment of the constant pool, a power of two")
	flags.IntVar(&opts.workers, "workers", 0, "number of functions compiled concurrently, 0 for one per CPU")

	emit := &cobra.Command{
		Use:   "emit FILE",
		Short: "Compile every function of FILE and print its machine code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmit(cmd.Context(), args[0], &opts, stdOut, stdErr)
		},
	}
	emit.Flags().BoolVar(&opts.disasm, "disasm", false, "print the disassembly instead of hex")
	emit.Flags().BoolVar(&opts.yamlReport, "yaml", false, "print a YAML report")

	layout := &cobra.Command{
		Use:   "layout FILE",
		Short: "Print the section sizes and block offsets of every function of FILE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(args[0], stdOut)
		},
	}

	link := &cobra.Command{
		Use:   "link FILE",
		Short: "Compile the functions of FILE into one segment, resolving calls between them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd.Context(), args[0], &opts, stdOut, stdErr)
		},
	}

	root.AddCommand(emit, layout, link)
	return root
}

// newLogger writes human readable debug entries when verbose, and JSON entries of info level and
// above otherwise.
func newLogger(verbose bool, w io.Writer) *zap.Logger {
	if verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel), zap.Development())
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.InfoLevel))
}

func (o *options) config(logger *zap.Logger) *backend.Config {
	return backend.NewConfig().
		WithLogger(logger).
		WithResolveLocal(!o.noResolve).
		WithConstantPoolAlignment(o.alignment).
		WithWorkers(o.workers)
}

func loadFunctions(path string) ([]*ir.Function, error) {
	f, err := funcdesc.Load(path)
	if err != nil {
		return nil, err
	}
	fns, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fns, nil
}

func runEmit(ctx context.Context, path string, opts *options, stdOut, stdErr io.Writer) error {
	fns, err := loadFunctions(path)
	if err != nil {
		return err
	}
	logger := newLogger(opts.verbose, stdErr)
	defer logger.Sync() //nolint:errcheck
	cfg := opts.config(logger)

	reports := make([]funcReport, 0, len(fns))
	for _, fn := range fns {
		r, err := backend.Compile(ctx, cfg, fn)
		if err != nil {
			return err
		}
		if opts.yamlReport {
			reports = append(reports, newFuncReport(r, opts.disasm))
		} else {
			printResult(stdOut, r, opts.disasm)
		}
	}

	if opts.yamlReport {
		enc := yaml.NewEncoder(stdOut)
		enc.SetIndent(2)
		if err := enc.Encode(reports); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return enc.Close()
	}
	return nil
}

func printResult(w io.Writer, r *backend.Result, disasm bool) {
	fmt.Fprintf(w, "%s: %s\n", r.Name, r.Info)
	if disasm {
		fmt.Fprint(w, x86.FormatDisassembly(r.Code[:r.Info.CodeSize]))
		if r.Info.JumpTablesSize > 0 {
			fmt.Fprintf(w, "jump tables: %s\n", hex.EncodeToString(r.Code[r.Info.JumpTables():r.Info.Rodata()]))
		}
	} else {
		fmt.Fprintf(w, "code: %s\n", hex.EncodeToString(r.Code[:r.Info.TotalSize]))
	}
	if int(r.ConstantsOffset) < len(r.Code) {
		fmt.Fprintf(w, "constants at %#x: %s\n", r.ConstantsOffset, hex.EncodeToString(r.Code[r.ConstantsOffset:]))
	}
	for _, rel := range r.Relocs {
		fmt.Fprintf(w, "reloc %s\n", rel)
	}
	for _, trap := range r.Traps {
		fmt.Fprintf(w, "trap %s\n", trap)
	}
}

// funcReport is the YAML form of a backend.Result.
type funcReport struct {
	Name            string           `yaml:"name"`
	Info            binemit.CodeInfo `yaml:"info"`
	ConstantsOffset uint32           `yaml:"constants_offset"`
	Code            string           `yaml:"code"`
	Disassembly     []string         `yaml:"disassembly,omitempty"`
	BlockOffsets    []uint32         `yaml:"block_offsets"`
	Relocs          []relocReport    `yaml:"relocs,omitempty"`
	Traps           []trapReport     `yaml:"traps,omitempty"`
}

type relocReport struct {
	Offset uint32        `yaml:"offset"`
	Kind   binemit.Reloc `yaml:"kind"`
	Target string        `yaml:"target"`
}

type trapReport struct {
	Offset uint32 `yaml:"offset"`
	Code   string `yaml:"code"`
	SrcLoc string `yaml:"srcloc"`
}

func newFuncReport(r *backend.Result, disasm bool) funcReport {
	ret := funcReport{
		Name:            r.Name.String(),
		Info:            r.Info,
		ConstantsOffset: r.ConstantsOffset,
		Code:            hex.EncodeToString(r.Code),
		BlockOffsets:    r.BlockOffsets,
	}
	if disasm {
		for _, inst := range x86.Disassemble(r.Code[:r.Info.CodeSize]) {
			ret.Disassembly = append(ret.Disassembly, inst.Text)
		}
	}
	for _, rel := range r.Relocs {
		ret.Relocs = append(ret.Relocs, relocReport{Offset: rel.Offset, Kind: rel.Kind, Target: relocTarget(rel)})
	}
	for _, trap := range r.Traps {
		ret.Traps = append(ret.Traps, trapReport{Offset: trap.Offset, Code: trap.Code.String(), SrcLoc: trap.SrcLoc.String()})
	}
	return ret
}

func relocTarget(r binemit.Relocation) string {
	switch r.Target {
	case binemit.RelocTargetBlock:
		return fmt.Sprintf("block@%#x", r.BlockOffset)
	case binemit.RelocTargetExternal:
		return fmt.Sprintf("%s%+d", r.Name, r.Addend)
	case binemit.RelocTargetConstant:
		return fmt.Sprintf("const@%#x", r.Constant)
	default:
		return r.JumpTable.String()
	}
}

func runLayout(path string, stdOut io.Writer) error {
	fns, err := loadFunctions(path)
	if err != nil {
		return err
	}
	for _, fn := range fns {
		if err := x86.AssignEncodings(fn); err != nil {
			return fmt.Errorf("%s: %w", fn.Name, err)
		}
		info := binemit.ComputeLayout(fn, x86.EmitInst)
		fmt.Fprintf(stdOut, "%s: %s\n", fn.Name, info)
		for _, b := range fn.Layout.Blocks() {
			fmt.Fprintf(stdOut, "  %s: %#x\n", b, fn.Offsets[b])
		}
		for jt, off := range fn.JumpTableOffsets {
			fmt.Fprintf(stdOut, "  %s: %#x\n", ir.JumpTable(jt), off)
		}
	}
	return nil
}

func runLink(ctx context.Context, path string, opts *options, stdOut, stdErr io.Writer) error {
	fns, err := loadFunctions(path)
	if err != nil {
		return err
	}
	logger := newLogger(opts.verbose, stdErr)
	defer logger.Sync() //nolint:errcheck

	m, err := backend.CompileAll(ctx, opts.config(logger), fns)
	if err != nil {
		return err
	}
	for i, r := range m.Funcs {
		fmt.Fprintf(stdOut, "%#06x %s: %s\n", m.Offsets[i], r.Name, r.Info)
	}
	fmt.Fprintf(stdOut, "code: %s\n", hex.EncodeToString(m.Code))
	for _, rel := range m.Relocs {
		fmt.Fprintf(stdOut, "reloc %s\n", rel)
	}
	return nil
}
