// Package regalloc holds the register allocation state read during binary emission.
package regalloc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/binemit/internal/ir"
)

// Diversion records a value temporarily moved away from the location register allocation
// assigned to it.
type Diversion struct {
	// From is the location assigned by register allocation.
	From ir.ValueLoc
	// To is the current location.
	To ir.ValueLoc
}

// RegDiversions tracks the values which were moved by regmove, regspill or regfill instructions
// within the current block. Emission clears it at the start of every block.
//
// The zero value is ready to use.
type RegDiversions struct {
	current map[ir.Value]Diversion
}

// NewRegDiversions returns an empty RegDiversions.
func NewRegDiversions() *RegDiversions {
	return &RegDiversions{current: map[ir.Value]Diversion{}}
}

// Clear forgets every diversion.
func (d *RegDiversions) Clear() {
	for v := range d.current {
		delete(d.current, v)
	}
}

// IsEmpty returns true if no value is diverted.
func (d *RegDiversions) IsEmpty() bool { return len(d.current) == 0 }

// Len returns the number of diverted values.
func (d *RegDiversions) Len() int { return len(d.current) }

// Diversion returns the diversion of v, if any.
func (d *RegDiversions) Diversion(v ir.Value) (Diversion, bool) {
	div, ok := d.current[v]
	return div, ok
}

// Get returns the current location of v, given the locations assigned by register allocation.
func (d *RegDiversions) Get(v ir.Value, locations []ir.ValueLoc) ir.ValueLoc {
	if div, ok := d.current[v]; ok {
		return div.To
	}
	if int(v) < len(locations) {
		return locations[v]
	}
	return ir.ValueLoc{}
}

// Reg returns the register currently holding v. Panics if v is not in a register.
func (d *RegDiversions) Reg(v ir.Value, locations []ir.ValueLoc) ir.RegUnit {
	loc := d.Get(v, locations)
	if !loc.IsReg() {
		panic(fmt.Sprintf("BUG: %s is expected in a register but is at %s", v, loc))
	}
	return loc.Reg()
}

// Divert records that v moved from `from` to `to`. When v returns to the location originally
// assigned to it, the diversion is dropped.
//
// Panics if from is not the current location of v.
func (d *RegDiversions) Divert(v ir.Value, from, to ir.ValueLoc) {
	if d.current == nil {
		d.current = map[ir.Value]Diversion{}
	}
	if div, ok := d.current[v]; ok {
		if div.To != from {
			panic(fmt.Sprintf("BUG: %s is diverted to %s, not %s", v, div.To, from))
		}
		if div.From == to {
			delete(d.current, v)
		} else {
			d.current[v] = Diversion{From: div.From, To: to}
		}
		return
	}
	if from != to {
		d.current[v] = Diversion{From: from, To: to}
	}
}

// RegMove records a register to register move of v.
func (d *RegDiversions) RegMove(v ir.Value, from, to ir.RegUnit) {
	d.Divert(v, ir.RegLoc(from), ir.RegLoc(to))
}

// RegSpill records a move of v from a register to a stack slot.
func (d *RegDiversions) RegSpill(v ir.Value, from ir.RegUnit, to ir.StackSlot) {
	d.Divert(v, ir.RegLoc(from), ir.StackLoc(to))
}

// RegFill records a move of v from a stack slot to a register.
func (d *RegDiversions) RegFill(v ir.Value, from ir.StackSlot, to ir.RegUnit) {
	d.Divert(v, ir.StackLoc(from), ir.RegLoc(to))
}

// String implements fmt.Stringer.
func (d *RegDiversions) String() string {
	values := make([]ir.Value, 0, len(d.current))
	for v := range d.current {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	strs := make([]string, len(values))
	for i, v := range values {
		div := d.current[v]
		strs[i] = fmt.Sprintf("%s: %s->%s", v, div.From, div.To)
	}
	return "{" + strings.Join(strs, ", ") + "}"
}
