package x86

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/binemit/internal/ir"
)

func TestRegName(t *testing.T) {
	for r := ir.RegUnit(0); r < numRegUnits; r++ {
		name := RegName(r)
		parsed, err := ParseReg(name)
		require.NoError(t, err)
		require.Equal(t, r, parsed)
	}
	require.Equal(t, "r12", RegName(R12))
	require.Equal(t, "xmm15", RegName(XMM15))
	require.Equal(t, "%40", RegName(40))

	r, err := ParseReg("RBX")
	require.NoError(t, err)
	require.Equal(t, RBX, r)

	_, err = ParseReg("eax")
	require.EqualError(t, err, `unknown register "eax"`)
}

func TestRegClasses(t *testing.T) {
	require.True(t, IsGPR(RAX))
	require.True(t, IsGPR(R15))
	require.False(t, IsGPR(XMM0))
	require.True(t, IsXMM(XMM0))
	require.True(t, IsXMM(XMM15))
	require.False(t, IsXMM(R15))
	require.False(t, IsXMM(numRegUnits))
}

func TestEncodingOf(t *testing.T) {
	for _, tc := range []struct {
		r   ir.RegUnit
		low byte
		ext bool
	}{
		{r: RAX, low: 0},
		{r: RDI, low: 7},
		{r: R8, low: 0, ext: true},
		{r: R13, low: 5, ext: true},
		{r: XMM3, low: 3},
		{r: XMM12, low: 4, ext: true},
	} {
		enc := encodingOf(tc.r)
		require.Equal(t, tc.low, enc.low(), RegName(tc.r))
		require.Equal(t, tc.ext, enc.ext(), RegName(tc.r))
	}
	require.Panics(t, func() { encodingOf(numRegUnits) })
}
