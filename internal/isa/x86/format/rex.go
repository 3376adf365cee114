package format

import "fmt"

// LegacyPrefix is an instruction prefix of groups 1 to 4. See section 2.1.1 of the Intel
// Software Developer's Manual vol. 2A.
type LegacyPrefix byte

const (
	// Group 1.
	PrefixLock  LegacyPrefix = 0xf0
	PrefixRepne LegacyPrefix = 0xf2
	PrefixRep   LegacyPrefix = 0xf3

	// Group 2.
	PrefixCS LegacyPrefix = 0x2e
	PrefixSS LegacyPrefix = 0x36
	PrefixDS LegacyPrefix = 0x3e
	PrefixES LegacyPrefix = 0x26
	PrefixFS LegacyPrefix = 0x64
	PrefixGS LegacyPrefix = 0x65

	// Group 3.
	PrefixOperandSize LegacyPrefix = 0x66

	// Group 4.
	PrefixAddressSize LegacyPrefix = 0x67
)

// IsValid returns true if p is one of the defined prefixes.
func (p LegacyPrefix) IsValid() bool {
	switch p {
	case PrefixLock, PrefixRepne, PrefixRep,
		PrefixCS, PrefixSS, PrefixDS, PrefixES, PrefixFS, PrefixGS,
		PrefixOperandSize, PrefixAddressSize:
		return true
	default:
		return false
	}
}

// Encode implements Encodable.Encode. Panics if p is not a defined prefix.
func (p LegacyPrefix) Encode(sink ByteSink) {
	if !p.IsValid() {
		panic(fmt.Sprintf("BUG: invalid legacy prefix %#x", byte(p)))
	}
	sink.Put1(byte(p))
}

// RexPrefix is the REX prefix, which has 0100 in bits 7:4. See section 2.2.1 of the Intel
// Software Developer's Manual vol. 2A.
type RexPrefix struct {
	// W selects the 64-bit operand size.
	W bool
	// R extends the ModR/M reg field.
	R bool
	// X extends the SIB index field.
	X bool
	// B extends the ModR/M rm field, the SIB base field, or the opcode reg field.
	B bool
}

// IsNeeded returns false if the prefix carries no information, i.e. 0x40.
func (r RexPrefix) IsNeeded() bool { return r.W || r.R || r.X || r.B }

// Byte returns the packed REX byte.
func (r RexPrefix) Byte() byte {
	return 0b0100_0000 | bit(r.W)<<3 | bit(r.R)<<2 | bit(r.X)<<1 | bit(r.B)
}

// Encode implements Encodable.Encode.
func (r RexPrefix) Encode(sink ByteSink) { sink.Put1(r.Byte()) }

func bit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Opcode is a 1, 2 or 3 byte opcode.
type Opcode []byte

// Encode implements Encodable.Encode. Panics if the opcode is not 1 to 3 bytes long.
func (o Opcode) Encode(sink ByteSink) {
	if len(o) == 0 || len(o) > 3 {
		panic(fmt.Sprintf("BUG: opcode must be 1 to 3 bytes long but was %d", len(o)))
	}
	for _, b := range o {
		sink.Put1(b)
	}
}

// RexFormat is the layout of instructions with a REX prefix.
type RexFormat struct {
	LegacyPrefixes Seq[LegacyPrefix]
	Rex            RexPrefix
	Opcode         Opcode
	ModRM          Opt[ModRM]
	SIB            Opt[SIB]
	Displacement   Opt[Encodable]
	Immediate      Opt[Encodable]
}

// Encode implements Encodable.Encode.
func (f *RexFormat) Encode(sink ByteSink) {
	f.LegacyPrefixes.Encode(sink)
	f.Rex.Encode(sink)
	f.Opcode.Encode(sink)
	f.ModRM.Encode(sink)
	f.SIB.Encode(sink)
	f.Displacement.Encode(sink)
	f.Immediate.Encode(sink)
}

// LegacyFormat is the layout of instructions without a REX prefix. It is otherwise the same as
// RexFormat.
type LegacyFormat struct {
	LegacyPrefixes Seq[LegacyPrefix]
	Opcode         Opcode
	ModRM          Opt[ModRM]
	SIB            Opt[SIB]
	Displacement   Opt[Encodable]
	Immediate      Opt[Encodable]
}

// Encode implements Encodable.Encode.
func (f *LegacyFormat) Encode(sink ByteSink) {
	f.LegacyPrefixes.Encode(sink)
	f.Opcode.Encode(sink)
	f.ModRM.Encode(sink)
	f.SIB.Encode(sink)
	f.Displacement.Encode(sink)
	f.Immediate.Encode(sink)
}

// WithRex returns the RexFormat with the same parts as f and the given REX prefix.
func (f *LegacyFormat) WithRex(rex RexPrefix) *RexFormat {
	return &RexFormat{
		LegacyPrefixes: f.LegacyPrefixes,
		Rex:            rex,
		Opcode:         f.Opcode,
		ModRM:          f.ModRM,
		SIB:            f.SIB,
		Displacement:   f.Displacement,
		Immediate:      f.Immediate,
	}
}

// Select returns f as a RexFormat if rex is needed, and f itself otherwise.
func (f *LegacyFormat) Select(rex RexPrefix) Encodable {
	if rex.IsNeeded() {
		return f.WithRex(rex)
	}
	return f
}
