package ir

import "fmt"

// Encoding is the encoding chosen for an instruction by the ISA, as a (recipe, bits) pair.
//
// The recipe selects the emitter routine and the bits carry recipe-specific opcode information.
// The zero value is an invalid encoding.
type Encoding struct {
	// recipe is the recipe number plus one, so that zero means invalid.
	recipe uint16
	bits   uint16
}

// EncodingInvalid is the encoding of instructions for which none was chosen.
var EncodingInvalid = Encoding{}

// NewEncoding returns a legal Encoding.
func NewEncoding(recipe, bits uint16) Encoding {
	if recipe == 0xffff {
		panic("BUG: recipe number 0xffff is reserved")
	}
	return Encoding{recipe: recipe + 1, bits: bits}
}

// IsLegal returns false for EncodingInvalid.
func (e Encoding) IsLegal() bool { return e.recipe != 0 }

// Recipe returns the recipe number. Panics on an invalid encoding.
func (e Encoding) Recipe() uint16 {
	if !e.IsLegal() {
		panic("BUG: recipe of an invalid encoding")
	}
	return e.recipe - 1
}

// Bits returns the recipe-specific bits.
func (e Encoding) Bits() uint16 { return e.bits }

// String implements fmt.Stringer.
func (e Encoding) String() string {
	if !e.IsLegal() {
		return "-"
	}
	return fmt.Sprintf("#%d/%02x", e.recipe-1, e.bits)
}
