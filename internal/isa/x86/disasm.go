package x86

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// DisassembledInst is one decoded instruction.
type DisassembledInst struct {
	Offset int
	Bytes  []byte
	// Text is the instruction in Intel syntax, or a byte directive if it could not be decoded.
	Text string
}

// String implements fmt.Stringer.
func (d DisassembledInst) String() string {
	hexBytes := make([]string, len(d.Bytes))
	for i, b := range d.Bytes {
		hexBytes[i] = fmt.Sprintf("%02x", b)
	}
	return fmt.Sprintf("0x%04x: %-30s %s", d.Offset, strings.Join(hexBytes, " "), d.Text)
}

// Disassemble decodes code as 64-bit x86 instructions. Bytes which can't be decoded are reported
// one at a time.
//
// x86asm doesn't know VEX prefixes, so VEX instructions are measured here and only vaddps is
// rendered. Other VEX instructions are shown as byte directives.
func Disassemble(code []byte) []DisassembledInst {
	var ret []DisassembledInst
	for offset := 0; offset < len(code); {
		if d, ok := decodeVex(code, offset); ok {
			ret = append(ret, d)
			offset += len(d.Bytes)
			continue
		}
		inst, err := x86asm.Decode(code[offset:], 64)
		if c := code[offset]; err != nil || c == 0xc4 || c == 0xc5 {
			// A c4 or c5 left here starts a truncated VEX instruction.
			ret = append(ret, DisassembledInst{
				Offset: offset,
				Bytes:  code[offset : offset+1],
				Text:   fmt.Sprintf("db 0x%02x", code[offset]),
			})
			offset++
			continue
		}
		ret = append(ret, DisassembledInst{
			Offset: offset,
			Bytes:  code[offset : offset+inst.Len],
			Text:   x86asm.IntelSyntax(inst, uint64(offset), nil),
		})
		offset += inst.Len
	}
	return ret
}

// decodeVex decodes the VEX instruction at offset. It returns false if there is none, or if it is
// truncated.
func decodeVex(code []byte, offset int) (DisassembledInst, bool) {
	c := code[offset:]
	if len(c) == 0 || (c[0] != 0xc4 && c[0] != 0xc5) {
		return DisassembledInst{}, false
	}

	// In 64-bit mode c4 and c5 always start a VEX prefix. R, X, B and vvvv are stored inverted.
	var r, b bool
	var leading, vvvv, l, pp byte
	var n int
	if c[0] == 0xc5 {
		if len(c) < 2 {
			return DisassembledInst{}, false
		}
		r = c[1]&0x80 == 0
		leading = 1
		vvvv, l, pp = ^c[1]>>3&0xf, c[1]>>2&1, c[1]&0b11
		n = 2
	} else {
		if len(c) < 3 {
			return DisassembledInst{}, false
		}
		r, b = c[1]&0x80 == 0, c[1]&0x20 == 0
		leading = c[1] & 0x1f
		vvvv, l, pp = ^c[2]>>3&0xf, c[2]>>2&1, c[2]&0b11
		n = 3
	}

	// Opcode and ModR/M.
	if len(c) < n+2 {
		return DisassembledInst{}, false
	}
	opcode, modrm := c[n], c[n+1]
	n += 2
	mod, reg, rm := modrm>>6, modrm>>3&0b111, modrm&0b111
	if mod != modRegister && rm == rmSIB {
		if len(c) < n+1 {
			return DisassembledInst{}, false
		}
		if mod == modNoDisplacement && c[n]&0b111 == rmRIPRelative {
			n += 4
		}
		n++
	}
	switch {
	case mod == modNoDisplacement && rm == rmRIPRelative, mod == modLongDisplacement:
		n += 4
	case mod == modShortDisplacement:
		n++
	}
	if leading == 3 {
		// Instructions of the 0f3a map take an imm8.
		n++
	}
	if len(c) < n {
		return DisassembledInst{}, false
	}

	d := DisassembledInst{Offset: offset, Bytes: c[:n]}
	if leading == 1 && opcode == 0x58 && pp == 0 && mod == modRegister {
		kind := "xmm"
		if l == 1 {
			kind = "ymm"
		}
		dst, src2 := reg|boolBit(r)<<3, rm|boolBit(b)<<3
		d.Text = fmt.Sprintf("vaddps %s%d, %s%d, %s%d", kind, dst, kind, vvvv, kind, src2)
		return d, true
	}
	directive := make([]string, n)
	for i, v := range d.Bytes {
		directive[i] = fmt.Sprintf("0x%02x", v)
	}
	d.Text = "db " + strings.Join(directive, ", ")
	return d, true
}

func boolBit(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// FormatDisassembly returns the disassembly of code, one instruction per line.
func FormatDisassembly(code []byte) string {
	var sb strings.Builder
	for _, inst := range Disassemble(code) {
		sb.WriteString(inst.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
