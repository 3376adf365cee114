package binemit

import (
	"encoding/binary"
	"fmt"
)

// ResolveLocal patches in code the PC-relative relocations whose target lies within the
// function, and returns the relocations which are left to the linker.
//
// code starts at offset 0 of the function. jumpTableOffsets is indexed by ir.JumpTable, and
// constantsOffset is where the constant pool was placed relative to the function. Relocated
// fields are 4 bytes wide and relative to their end, unless they reference an external symbol,
// which is never local.
func ResolveLocal(code []byte, relocs []Relocation, jumpTableOffsets []CodeOffset, constantsOffset CodeOffset) []Relocation {
	var unresolved []Relocation
	for _, r := range relocs {
		target, ok := localTarget(r, jumpTableOffsets, constantsOffset)
		if !ok {
			unresolved = append(unresolved, r)
			continue
		}
		if int(r.Offset)+4 > len(code) {
			panic(fmt.Sprintf("BUG: relocation %s out of range of code of size %d", r, len(code)))
		}
		rel := int64(target) - int64(r.Offset+4)
		binary.LittleEndian.PutUint32(code[r.Offset:], uint32(int32(rel)))
	}
	return unresolved
}

func localTarget(r Relocation, jumpTableOffsets []CodeOffset, constantsOffset CodeOffset) (CodeOffset, bool) {
	switch r.Kind {
	case RelocX86PCRel4, RelocX86PCRelRodata4, RelocX86CallPCRel4:
	default:
		return 0, false
	}
	switch r.Target {
	case RelocTargetBlock:
		return r.BlockOffset, true
	case RelocTargetJumpTable:
		return jumpTableOffsets[r.JumpTable], true
	case RelocTargetConstant:
		return constantsOffset + r.Constant, true
	default:
		return 0, false
	}
}

// ConstantsOffset returns where a constant pool aligned on align bytes starts after a function of
// the given total size. align must be a power of two, or zero for no alignment.
func ConstantsOffset(info CodeInfo, align CodeOffset) CodeOffset {
	if align == 0 {
		return info.TotalSize
	}
	if align&(align-1) != 0 {
		panic(fmt.Sprintf("BUG: alignment %d is not a power of two", align))
	}
	return (info.TotalSize + align - 1) &^ (align - 1)
}
