package asm_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/binemit/internal/asm"
)

func TestCodeSegmentZeroValue(t *testing.T) {
	var code asm.CodeSegment
	require.Equal(t, 0, code.Size())
	require.Equal(t, 0, code.Len())
	require.Empty(t, code.Bytes())

	buf := code.Next()
	require.Equal(t, 0, buf.Len())
	require.Empty(t, buf.Bytes())
}

func TestCodeSegmentNext(t *testing.T) {
	code := asm.NewCodeSegment([]byte{1, 2, 3})
	require.Equal(t, 3, code.Size())

	buf := code.Next()
	require.Equal(t, asm.Alignment, buf.Offset())
	buf.WriteByte(0xc3)
	require.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xc3}, code.Bytes())

	require.Equal(t, 2*asm.Alignment, code.Next().Offset())

	// Next on an aligned segment doesn't pad.
	aligned := asm.NewCodeSegment(make([]byte, asm.Alignment))
	require.Equal(t, asm.Alignment, aligned.Next().Offset())
	require.Equal(t, asm.Alignment, aligned.Size())
}

func TestBufferWriteByte(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		data := []byte("Hello World!")

		for i, c := range data {
			buf.WriteByte(c)
			require.Equal(t, i+1, buf.Len())
			require.Equal(t, data[:i+1], buf.Bytes())
		}
	})
}

func TestBufferWrite(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		n, err := buf.Write([]byte("Hello World!"))
		require.NoError(t, err)
		require.Equal(t, 12, n)
		require.Equal(t, 12, buf.Len())
		require.Equal(t, []byte("Hello World!"), buf.Bytes())
	})
}

func TestBufferWriteUint(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		buf.WriteUint16(0x0201)
		buf.WriteUint32(0x06050403)
		buf.WriteUint64(0x0e0d0c0b0a090807)
		require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, buf.Bytes())
	})
}

func TestBufferWriteUint32(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		values := []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
		expected := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(expected[4*i:], v)
		}

		for i, v := range values {
			buf.WriteUint32(v)
			require.Equal(t, 4*(i+1), buf.Len())
			require.Equal(t, expected[:4*(i+1)], buf.Bytes())
		}
	})
}

func TestBufferGrow(t *testing.T) {
	var code asm.CodeSegment
	buf := code.Next()
	for i := 0; i < 10000; i++ {
		buf.WriteByte(byte(i))
	}
	require.Equal(t, 10000, buf.Len())
	require.Equal(t, 16384, code.Len())
	for i, b := range buf.Bytes() {
		require.Equal(t, byte(i), b)
	}
}

func TestBufferPatchUint32(t *testing.T) {
	withBuffer(t, func(buf asm.Buffer) {
		buf.WriteByte(0xe8)
		buf.WriteUint32(0)
		buf.PatchUint32(1, 0xfffffffb)
		require.Equal(t, []byte{0xe8, 0xfb, 0xff, 0xff, 0xff}, buf.Bytes())
		require.Panics(t, func() { buf.PatchUint32(2, 0) })
	})
}

func withBuffer(t *testing.T, f func(asm.Buffer)) {
	code := asm.NewCodeSegment(nil)
	// Repeat the test multiple times to ensure that Next works as expected.
	for i := 0; i < 10; i++ {
		buf := code.Next()
		require.Equal(t, 0, buf.Offset()%asm.Alignment)
		f(buf)
	}
}
