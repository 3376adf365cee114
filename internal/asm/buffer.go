// Package asm holds the byte storage that emitted machine code is written to.
package asm

import (
	"encoding/binary"
	"fmt"
)

// Alignment is the boundary on which Next places the beginning of every buffer.
const Alignment = 16

var zero [Alignment]byte

// CodeSegment is a contiguous region holding the machine code of one or more functions.
//
// To append code to a segment, the program must call Next to obtain a buffer view capable of
// writing data at the end of the segment. Next aligns the next write on Alignment bytes and must
// be called before generating the code of each function.
//
// The zero value is a valid, empty code segment, equivalent to being constructed by calling
// NewCodeSegment(nil).
type CodeSegment struct {
	code []byte
	size int
}

// NewCodeSegment constructs a CodeSegment whose content is code.
func NewCodeSegment(code []byte) *CodeSegment {
	return &CodeSegment{code: code, size: len(code)}
}

// Size returns the number of bytes written to the segment, which is less or equal to Len.
func (seg *CodeSegment) Size() int {
	return seg.size
}

// Len returns the length of the storage backing the segment.
func (seg *CodeSegment) Len() int {
	return len(seg.code)
}

// Bytes returns the bytes written to the segment.
//
// The returned slice remains valid until more bytes are written to a buffer of the segment.
func (seg *CodeSegment) Bytes() []byte {
	return seg.code[:seg.size:seg.size]
}

// Next returns a buffer pointed at the end of the code segment to support writing more code to
// it.
//
// Buffers are passed by value, but they hold a reference to the code segment that they were
// created from.
func (seg *CodeSegment) Next() Buffer {
	// Align 16-bytes boundary.
	seg.write(zero[:(Alignment-seg.size%Alignment)%Alignment])
	return Buffer{seg: seg, off: seg.size}
}

func (seg *CodeSegment) append(n int) []byte {
	i := seg.size
	j := seg.size + n
	if j > len(seg.code) {
		seg.grow(n)
	}
	seg.size = j
	return seg.code[i:j:j]
}

func (seg *CodeSegment) write(b []byte) {
	copy(seg.append(len(b)), b)
}

func (seg *CodeSegment) grow(n int) {
	size := len(seg.code)
	want := seg.size + n
	if size >= want {
		return
	}
	if size == 0 {
		size = 4096
	}
	for size < want {
		size *= 2
	}
	b := make([]byte, size)
	copy(b, seg.code[:seg.size])
	seg.code = b
}

// Buffer is a reference type representing a section beginning at the end of a code segment
// where new code can be written. All multi-byte writes are little-endian.
type Buffer struct {
	seg *CodeSegment
	off int
}

// Offset returns the position of the buffer in its segment.
func (buf Buffer) Offset() int {
	return buf.off
}

func (buf Buffer) Len() int {
	return buf.seg.size - buf.off
}

func (buf Buffer) Bytes() []byte {
	i := buf.off
	j := buf.seg.size
	return buf.seg.code[i:j:j]
}

func (buf Buffer) WriteByte(b byte) {
	buf.seg.append(1)[0] = b
}

func (buf Buffer) WriteUint16(u uint16) {
	binary.LittleEndian.PutUint16(buf.seg.append(2), u)
}

func (buf Buffer) WriteUint32(u uint32) {
	binary.LittleEndian.PutUint32(buf.seg.append(4), u)
}

func (buf Buffer) WriteUint64(u uint64) {
	binary.LittleEndian.PutUint64(buf.seg.append(8), u)
}

func (buf Buffer) Write(b []byte) (int, error) {
	buf.seg.write(b)
	return len(b), nil
}

// PatchUint32 overwrites the four bytes at offset of the buffer with u.
func (buf Buffer) PatchUint32(offset int, u uint32) {
	if offset < 0 || offset+4 > buf.Len() {
		panic(fmt.Sprintf("BUG: patch at %d out of range of buffer of length %d", offset, buf.Len()))
	}
	binary.LittleEndian.PutUint32(buf.Bytes()[offset:], u)
}
