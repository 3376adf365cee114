// Package format models the binary layout of x86 instruction encodings.
//
// Every part of an encoding (prefixes, opcode bytes, ModR/M, SIB, displacement, immediate) is an
// Encodable which writes itself to a ByteSink. Formats are composed of parts with Seq and Opt, so
// that encoding a whole instruction is a matter of encoding its parts in order. The same records
// can be rendered as Go source with Generate.
package format

import "fmt"

// ByteSink receives encoded bytes. Multi-byte writes are little-endian.
//
// binemit.CodeSink implementations satisfy this interface.
type ByteSink interface {
	Put1(uint8)
	Put2(uint16)
	Put4(uint32)
}

// Encodable is a part of an instruction encoding.
type Encodable interface {
	// Encode writes the part to sink.
	Encode(sink ByteSink)
}

// Byte is a single byte.
type Byte uint8

// Encode implements Encodable.Encode.
func (b Byte) Encode(sink ByteSink) { sink.Put1(uint8(b)) }

// Word is a little-endian 16-bit value.
type Word uint16

// Encode implements Encodable.Encode.
func (w Word) Encode(sink ByteSink) { sink.Put2(uint16(w)) }

// Dword is a little-endian 32-bit value.
type Dword uint32

// Encode implements Encodable.Encode.
func (d Dword) Encode(sink ByteSink) { sink.Put4(uint32(d)) }

// Seq is a sequence of parts, encoded in order.
type Seq[T Encodable] []T

// Encode implements Encodable.Encode.
func (s Seq[T]) Encode(sink ByteSink) {
	for _, e := range s {
		e.Encode(sink)
	}
}

// Opt is an optional part, which encodes nothing when absent. The zero value is absent.
type Opt[T Encodable] struct {
	value   T
	present bool
}

// Some returns a present Opt.
func Some[T Encodable](v T) Opt[T] { return Opt[T]{value: v, present: true} }

// None returns an absent Opt.
func None[T Encodable]() Opt[T] { return Opt[T]{} }

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) { return o.value, o.present }

// IsPresent returns true if this was created by Some.
func (o Opt[T]) IsPresent() bool { return o.present }

// Encode implements Encodable.Encode.
func (o Opt[T]) Encode(sink ByteSink) {
	if o.present {
		o.value.Encode(sink)
	}
}

// Disp8 returns an 8-bit displacement.
func Disp8(v int8) Opt[Encodable] { return Some[Encodable](Byte(v)) }

// Disp32 returns a 32-bit displacement.
func Disp32(v int32) Opt[Encodable] { return Some[Encodable](Dword(v)) }

// Imm8 returns an 8-bit immediate.
func Imm8(v int8) Opt[Encodable] { return Some[Encodable](Byte(v)) }

// Imm16 returns a 16-bit immediate.
func Imm16(v int16) Opt[Encodable] { return Some[Encodable](Word(v)) }

// Imm32 returns a 32-bit immediate.
func Imm32(v int32) Opt[Encodable] { return Some[Encodable](Dword(v)) }

// Imm64 returns a 64-bit immediate.
func Imm64(v int64) Opt[Encodable] {
	return Some[Encodable](Seq[Dword]{Dword(uint64(v)), Dword(uint64(v) >> 32)})
}

// Bytes returns the encoding of e.
func Bytes(e Encodable) []byte {
	var b byteSlice
	e.Encode(&b)
	return b
}

type byteSlice []byte

func (b *byteSlice) Put1(v uint8) { *b = append(*b, v) }

func (b *byteSlice) Put2(v uint16) { *b = append(*b, byte(v), byte(v>>8)) }

func (b *byteSlice) Put4(v uint32) {
	*b = append(*b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// ModRM is the ModR/M byte. See section 2.1.3 of the Intel Software Developer's Manual vol. 2A.
type ModRM struct {
	// Mod combines with RM to form 32 possible values: 8 registers and 24 addressing modes.
	Mod uint8
	// Reg is either a register number or three more bits of opcode information.
	Reg uint8
	// RM is either a register operand or is combined with Mod to encode an addressing mode.
	RM uint8
}

// Byte returns the packed ModR/M byte. Panics if any field is out of range.
func (m ModRM) Byte() byte {
	if m.Mod > 0b11 || m.Reg > 0b111 || m.RM > 0b111 {
		panic(fmt.Sprintf("BUG: invalid ModR/M %+v", m))
	}
	return m.Mod<<6 | m.Reg<<3 | m.RM
}

// Encode implements Encodable.Encode.
func (m ModRM) Encode(sink ByteSink) { sink.Put1(m.Byte()) }

// SIB is the scale-index-base byte. See section 2.1.3 of the Intel Software Developer's Manual
// vol. 2A.
type SIB struct {
	// Scale is the scale factor, as a power of two.
	Scale uint8
	// Index is the register number of the index register.
	Index uint8
	// Base is the register number of the base register.
	Base uint8
}

// Byte returns the packed SIB byte. Panics if any field is out of range.
func (s SIB) Byte() byte {
	if s.Scale > 0b11 || s.Index > 0b111 || s.Base > 0b111 {
		panic(fmt.Sprintf("BUG: invalid SIB %+v", s))
	}
	return s.Scale<<6 | s.Index<<3 | s.Base
}

// Encode implements Encodable.Encode.
func (s SIB) Encode(sink ByteSink) { sink.Put1(s.Byte()) }
