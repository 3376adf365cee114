package ir

import "fmt"

// ConstantData is the raw value of a constant. It must not be modified once inserted into a pool.
type ConstantData []byte

// ConstantOffset is an offset in bytes from the beginning of a constant pool.
type ConstantOffset = uint32

// ConstantPool maps constant values to handles, deduplicating equal values.
//
// Handles are assigned in insertion order and remain valid until Clear is called. The pool is not
// safe for concurrent use; give every concurrently emitted function its own pool.
type ConstantPool struct {
	// handlesToValues is indexed by Constant, which keeps insertion order.
	handlesToValues []ConstantData
	// offsets is indexed by Constant and holds the offset of each value in the laid out pool.
	offsets []ConstantOffset
	// valuesToHandles is keyed by the string conversion of the value so that lookup is by content.
	valuesToHandles map[string]Constant
	size            ConstantOffset
}

// NewConstantPool returns an empty ConstantPool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{valuesToHandles: map[string]Constant{}}
}

// Clear empties the pool. Handles issued before are invalidated.
func (p *ConstantPool) Clear() {
	p.handlesToValues = p.handlesToValues[:0]
	p.offsets = p.offsets[:0]
	for k := range p.valuesToHandles {
		delete(p.valuesToHandles, k)
	}
	p.size = 0
}

// Insert registers data and returns its handle. If an equal value was inserted before, the
// existing handle is returned and the pool is unchanged.
//
// data is copied, so the caller may reuse the slice afterwards.
func (p *ConstantPool) Insert(data ConstantData) Constant {
	if p.valuesToHandles == nil {
		p.valuesToHandles = map[string]Constant{}
	}
	key := string(data)
	if h, ok := p.valuesToHandles[key]; ok {
		return h
	}

	h := Constant(len(p.handlesToValues))
	p.handlesToValues = append(p.handlesToValues, ConstantData(key))
	p.offsets = append(p.offsets, p.size)
	p.valuesToHandles[key] = h
	p.size += ConstantOffset(len(data))
	return h
}

// Get returns the value of the handle h. Panics if h was not issued by this pool.
func (p *ConstantPool) Get(h Constant) ConstantData {
	p.mustContain(h)
	return p.handlesToValues[h]
}

// Offset returns the number of bytes from the beginning of the pool to the value of h.
// Panics if h was not issued by this pool.
func (p *ConstantPool) Offset(h Constant) ConstantOffset {
	p.mustContain(h)
	return p.offsets[h]
}

func (p *ConstantPool) mustContain(h Constant) {
	if int(h) >= len(p.handlesToValues) {
		panic(fmt.Sprintf("BUG: %s was not inserted into this constant pool", h))
	}
}

// Range calls f for each constant in insertion order until f returns false.
func (p *ConstantPool) Range(f func(h Constant, data ConstantData) bool) {
	for i, data := range p.handlesToValues {
		if !f(Constant(i), data) {
			return
		}
	}
}

// Len returns the number of distinct constants in the pool.
func (p *ConstantPool) Len() int {
	return len(p.handlesToValues)
}

// ByteSize returns the combined size of all the distinct values in the pool.
func (p *ConstantPool) ByteSize() int {
	return int(p.size)
}

// Bytes returns the laid out pool: every value in insertion order, back to back.
func (p *ConstantPool) Bytes() []byte {
	ret := make([]byte, 0, p.size)
	for _, data := range p.handlesToValues {
		ret = append(ret, data...)
	}
	return ret
}
