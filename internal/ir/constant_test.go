package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstantPool_Insert(t *testing.T) {
	p := NewConstantPool()
	h0 := p.Insert(ConstantData{1, 2, 3})
	h1 := p.Insert(ConstantData{4, 5, 6})
	require.Equal(t, Constant(0), h0)
	require.Equal(t, Constant(1), h1)
	require.Equal(t, h0, p.Insert(ConstantData{1, 2, 3}))

	require.Equal(t, 2, p.Len())
	require.Equal(t, ConstantOffset(0), p.Offset(h0))
	require.Equal(t, ConstantOffset(3), p.Offset(h1))
	require.Equal(t, 6, p.ByteSize())
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, p.Bytes())
	require.Equal(t, ConstantData{4, 5, 6}, p.Get(h1))
}

func TestConstantPool_Insert_copies(t *testing.T) {
	p := NewConstantPool()
	data := ConstantData{0xa, 0xb}
	h := p.Insert(data)
	data[0] = 0xff
	require.Equal(t, ConstantData{0xa, 0xb}, p.Get(h))
	require.Equal(t, h, p.Insert(ConstantData{0xa, 0xb}))
	require.Equal(t, Constant(1), p.Insert(data))
}

func TestConstantPool_Insert_idempotent(t *testing.T) {
	p := NewConstantPool()
	values := []ConstantData{{}, {0}, {0, 0}, {1}, {0}, {}, {1, 2, 3, 4}, {0, 0}}
	first := map[string]Constant{}
	for _, v := range values {
		h := p.Insert(v)
		if prev, ok := first[string(v)]; ok {
			require.Equal(t, prev, h, "value %v", v)
		} else {
			first[string(v)] = h
		}
	}
	require.Equal(t, len(first), p.Len())
	require.Equal(t, 0+1+2+1+4, p.ByteSize())
}

func TestConstantPool_Range(t *testing.T) {
	p := NewConstantPool()
	for _, b := range []byte{5, 3, 9, 3, 1} {
		p.Insert(ConstantData{b})
	}

	var order []byte
	var prevOffset ConstantOffset
	p.Range(func(h Constant, data ConstantData) bool {
		require.Equal(t, Constant(len(order)), h)
		require.True(t, p.Offset(h) >= prevOffset)
		prevOffset = p.Offset(h)
		order = append(order, data[0])
		return true
	})
	require.Equal(t, []byte{5, 3, 9, 1}, order)

	var visited int
	p.Range(func(Constant, ConstantData) bool {
		visited++
		return visited < 2
	})
	require.Equal(t, 2, visited)
}

func TestConstantPool_Clear(t *testing.T) {
	p := NewConstantPool()
	p.Insert(ConstantData{1})
	p.Insert(ConstantData{2, 2})
	p.Clear()
	require.Equal(t, 0, p.Len())
	require.Equal(t, 0, p.ByteSize())
	require.Empty(t, p.Bytes())

	h := p.Insert(ConstantData{2, 2})
	require.Equal(t, Constant(0), h)
	require.Equal(t, ConstantOffset(0), p.Offset(h))
}

func TestConstantPool_unknownHandle(t *testing.T) {
	p := NewConstantPool()
	p.Insert(ConstantData{1})
	require.PanicsWithValue(t, "BUG: const1 was not inserted into this constant pool", func() {
		p.Offset(1)
	})
	require.Panics(t, func() { p.Get(7) })
}

func TestConstantPool_zeroValue(t *testing.T) {
	var p ConstantPool
	require.Equal(t, Constant(0), p.Insert(ConstantData{1}))
	require.Equal(t, Constant(0), p.Insert(ConstantData{1}))
}
