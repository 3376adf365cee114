package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tetratelabs/binemit/internal/binemit"
)

func runMain(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	stdOut, stdErr := &bytes.Buffer{}, &bytes.Buffer{}
	exitCode := doMain(args, stdOut, stdErr)
	return exitCode, stdOut.String(), stdErr.String()
}

func TestEmit(t *testing.T) {
	exitCode, stdOut, stdErr := runMain(t, "emit", "testdata/calls.yaml")
	require.Equal(t, 0, exitCode, stdErr)
	require.Equal(t, `%f: code=14 jump_tables=0 rodata=0 total=14
code: 4801d8e800000000e800000000c3
reloc 0x4: CallPCRel4 %g-4
reloc 0x9: CallPLTRel4 %h-4
%g: code=2 jump_tables=0 rodata=0 total=2
code: 0f0b
trap 0x0: unreachable @0005
`, stdOut)
	require.Empty(t, stdErr)
}

func TestEmit_disasm(t *testing.T) {
	exitCode, stdOut, stdErr := runMain(t, "emit", "--disasm", "testdata/calls.yaml")
	require.Equal(t, 0, exitCode, stdErr)
	require.Contains(t, stdOut, "add rax, rbx\n")
	require.Contains(t, stdOut, "ret\n")
	require.Contains(t, stdOut, "ud2\n")
	require.NotContains(t, stdOut, "code: ")
}

func TestEmit_yaml(t *testing.T) {
	exitCode, stdOut, stdErr := runMain(t, "emit", "--yaml", "testdata/calls.yaml")
	require.Equal(t, 0, exitCode, stdErr)

	var reports []funcReport
	require.NoError(t, yaml.Unmarshal([]byte(stdOut), &reports))
	require.Len(t, reports, 2)
	require.Equal(t, "%f", reports[0].Name)
	require.Equal(t, binemit.CodeInfo{CodeSize: 14, TotalSize: 14}, reports[0].Info)
	require.Equal(t, []relocReport{
		{Offset: 4, Kind: binemit.RelocX86CallPCRel4, Target: "%g-4"},
		{Offset: 9, Kind: binemit.RelocX86CallPLTRel4, Target: "%h-4"},
	}, reports[0].Relocs)
	require.Equal(t, []trapReport{{Offset: 0, Code: "unreachable", SrcLoc: "@0005"}}, reports[1].Traps)
	require.Contains(t, stdOut, "kind: X86CallPLTRel4")
}

func TestEmit_verbose(t *testing.T) {
	exitCode, _, stdErr := runMain(t, "emit", "-v", "testdata/calls.yaml")
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdErr, "compiled function")
	require.Contains(t, stdErr, "block0")
}

func TestLayout(t *testing.T) {
	exitCode, stdOut, stdErr := runMain(t, "layout", "testdata/calls.yaml")
	require.Equal(t, 0, exitCode, stdErr)
	require.Equal(t, `%f: code=14 jump_tables=0 rodata=0 total=14
  block0: 0x0
%g: code=2 jump_tables=0 rodata=0 total=2
  block0: 0x0
`, stdOut)
}

func TestLink(t *testing.T) {
	exitCode, stdOut, stdErr := runMain(t, "link", "testdata/calls.yaml")
	require.Equal(t, 0, exitCode, stdErr)
	require.Equal(t, `0x0000 %f: code=14 jump_tables=0 rodata=0 total=14
0x0010 %g: code=2 jump_tables=0 rodata=0 total=2
code: 4801d8e808000000e800000000c300000f0b
reloc 0x9: CallPLTRel4 %h-4
`, stdOut)
}

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		args   []string
		stdErr string
	}{
		{
			name:   "missing file",
			args:   []string{"emit", "testdata/missing.yaml"},
			stdErr: "error: failed to read description",
		},
		{
			name:   "unknown format",
			args:   []string{"layout", "main.go"},
			stdErr: `error: unknown description format ".go" of main.go`,
		},
		{
			name:   "no file",
			args:   []string{"link"},
			stdErr: "error: accepts 1 arg(s), received 0",
		},
		{
			name:   "invalid alignment",
			args:   []string{"emit", "--align", "3", "testdata/calls.yaml"},
			stdErr: "error: invalid constant pool alignment 3: must be a power of two",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			exitCode, _, stdErr := runMain(t, tc.args...)
			require.Equal(t, 1, exitCode)
			require.Contains(t, stdErr, tc.stdErr)
		})
	}
}
