package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/binemit/internal/ir"
)

func TestRegDiversions(t *testing.T) {
	locs := []ir.ValueLoc{ir.RegLoc(0), ir.RegLoc(1), ir.StackLoc(8)}
	d := NewRegDiversions()
	require.True(t, d.IsEmpty())
	require.Equal(t, ir.RegLoc(1), d.Get(1, locs))

	d.RegMove(1, 1, 5)
	require.Equal(t, 1, d.Len())
	require.Equal(t, ir.RegLoc(5), d.Get(1, locs))
	require.Equal(t, ir.RegUnit(5), d.Reg(1, locs))
	div, ok := d.Diversion(1)
	require.True(t, ok)
	require.Equal(t, Diversion{From: ir.RegLoc(1), To: ir.RegLoc(5)}, div)

	// Chained moves keep the original location.
	d.RegSpill(1, 5, 16)
	div, _ = d.Diversion(1)
	require.Equal(t, Diversion{From: ir.RegLoc(1), To: ir.StackLoc(16)}, div)
	require.Panics(t, func() { d.Reg(1, locs) })

	d.RegFill(2, 8, 3)
	require.Equal(t, "{v1: %1->ss[16], v2: ss[8]->%3}", d.String())

	// Moving back home drops the diversion.
	d.RegFill(1, 16, 1)
	_, ok = d.Diversion(1)
	require.False(t, ok)
	require.Equal(t, ir.RegLoc(1), d.Get(1, locs))

	d.Clear()
	require.True(t, d.IsEmpty())
	require.Equal(t, "{}", d.String())
}

func TestRegDiversions_Divert(t *testing.T) {
	var d RegDiversions
	d.Divert(0, ir.RegLoc(0), ir.RegLoc(0))
	require.True(t, d.IsEmpty())

	d.RegMove(0, 0, 2)
	require.PanicsWithValue(t, "BUG: v0 is diverted to %2, not %0", func() {
		d.RegMove(0, 0, 3)
	})
	require.False(t, d.Get(7, nil).IsAssigned())
}
