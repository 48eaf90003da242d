// Copyright 2025 go-vifjit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emit

import "encoding/binary"

// x86-64 backend. Handlers follow the System V convention for their two
// arguments: RDI = dst, RSI = src.
//
// Register assignment:
//
//	VDest  xmm0    VMaskA xmm2    G0      eax
//	VWork  xmm1    VMaskB xmm3    G1      ecx
//	VPrev  xmm7    VMaskC xmm4    scratch edx
//
// None of these is R14 (g), R15, RBP or X15, which the Go runtime relies on.
var (
	sseVRegs = [numVRegs]byte{VDest: 0, VWork: 1, VPrev: 7, VMaskA: 2, VMaskB: 3, VMaskC: 4}
	sseGRegs = [numGRegs]byte{G0: 0, G1: 1}
	ssePtrs  = [...]byte{Dst: 7, Src: 6}
)

const (
	sseScratch = 2 // edx
	ripRM      = 5 // mod=00 rm=101 selects RIP+disp32
)

type sse struct {
	buf   *Buffer
	sse41 bool
}

func newSSE(buf *Buffer, sse41 bool) *sse {
	return &sse{buf: buf, sse41: sse41}
}

// sse41 adds the single-instruction load+widen forms.
type sse41 struct {
	*sse
}

func (e *sse) Target() Target {
	if e.sse41 {
		return TargetSSE41
	}
	return TargetSSE2
}

func (e *sse) Buffer() *Buffer { return e.buf }

func modrm(mod, reg, rm byte) byte { return mod<<6 | (reg&7)<<3 | rm&7 }

// op emits prefix/opcode bytes followed by a ModRM memory operand [ptr+off]
// and an optional immediate.
func (e *sse) op(opcode []byte, reg byte, p Ptr, off int, imm ...byte) {
	base := ssePtrs[p]
	enc := append([]byte{}, opcode...)
	switch {
	case off == 0:
		enc = append(enc, modrm(0, reg, base))
	case off >= -128 && off <= 127:
		enc = append(enc, modrm(1, reg, base), byte(int8(off)))
	default:
		enc = append(enc, modrm(2, reg, base))
		enc = binary.LittleEndian.AppendUint32(enc, uint32(int32(off)))
	}
	e.buf.emit(append(enc, imm...)...)
}

// rr emits prefix/opcode bytes with a register-direct ModRM.
func (e *sse) rr(opcode []byte, reg, rm byte, imm ...byte) {
	enc := append(append([]byte{}, opcode...), modrm(3, reg, rm))
	e.buf.emit(append(enc, imm...)...)
}

func (e *sse) LoadV32(v VReg, p Ptr, off int) {
	e.op([]byte{0x66, 0x0F, 0x6E}, sseVRegs[v], p, off) // movd xmm, m32
}

func (e *sse) LoadV64(v VReg, p Ptr, off int) {
	e.op([]byte{0xF3, 0x0F, 0x7E}, sseVRegs[v], p, off) // movq xmm, m64
}

func (e *sse) LoadV128(v VReg, p Ptr, off int) {
	e.op([]byte{0xF3, 0x0F, 0x6F}, sseVRegs[v], p, off) // movdqu xmm, m128
}

func (e *sse) LoadV128At(v VReg, target int) {
	const size = 8 // F3 0F 6F modrm disp32
	disp := target - (e.buf.Pos() + size)
	if disp < -1<<31 || disp > 1<<31-1 {
		e.buf.fail("rip displacement %d", disp)
		return
	}
	enc := []byte{0xF3, 0x0F, 0x6F, modrm(0, sseVRegs[v], ripRM)}
	e.buf.emit(binary.LittleEndian.AppendUint32(enc, uint32(int32(disp)))...)
}

func (e *sse) StoreV128(v VReg, p Ptr, off int) {
	e.op([]byte{0xF3, 0x0F, 0x7F}, sseVRegs[v], p, off) // movdqu m128, xmm
}

func (e *sse) LoadU16(g GReg, p Ptr, off int) {
	e.op([]byte{0x0F, 0xB7}, sseGRegs[g], p, off) // movzx r32, m16
}

// Widen8To16 interleaves each byte with itself and shifts the copy back
// down, which sign- or zero-extends depending on the shift.
func (e *sse) Widen8To16(v VReg, unsigned bool) {
	x := sseVRegs[v]
	e.rr([]byte{0x66, 0x0F, 0x60}, x, x) // punpcklbw x, x
	digit := byte(4)                     // psraw
	if unsigned {
		digit = 2 // psrlw
	}
	e.rr([]byte{0x66, 0x0F, 0x71}, digit, x, 8)
}

func (e *sse) Widen16To32(v VReg, unsigned bool) {
	x := sseVRegs[v]
	e.rr([]byte{0x66, 0x0F, 0x61}, x, x) // punpcklwd x, x
	digit := byte(4)                     // psrad
	if unsigned {
		digit = 2 // psrld
	}
	e.rr([]byte{0x66, 0x0F, 0x72}, digit, x, 16)
}

func (e *sse) pshufd(dst, src VReg, order byte) {
	e.rr([]byte{0x66, 0x0F, 0x70}, sseVRegs[dst], sseVRegs[src], order)
}

func (e *sse) DupLane32(dst, src VReg, lane int) {
	if lane < 0 || lane > 3 {
		e.buf.fail("32-bit lane %d", lane)
		return
	}
	e.pshufd(dst, src, byte(lane)*0x55)
}

func (e *sse) DupLane64(dst, src VReg, lane int) {
	switch lane {
	case 0:
		e.pshufd(dst, src, 0x44) // 1 0 1 0
	case 1:
		e.pshufd(dst, src, 0xEE) // 3 2 3 2
	default:
		e.buf.fail("64-bit lane %d", lane)
	}
}

func (e *sse) DupGPR32(dst VReg, g GReg) {
	e.rr([]byte{0x66, 0x0F, 0x6E}, sseVRegs[dst], sseGRegs[g]) // movd xmm, r32
	e.pshufd(dst, dst, 0)
}

func (e *sse) InsertLane32(dst VReg, lane int, g GReg) {
	e.insert(dst, lane, sseGRegs[g])
}

func (e *sse) insert(dst VReg, lane int, r byte) {
	if lane < 0 || lane > 3 {
		e.buf.fail("32-bit lane %d", lane)
		return
	}
	x := sseVRegs[dst]
	if e.sse41 {
		e.rr([]byte{0x66, 0x0F, 0x3A, 0x22}, x, r, byte(lane)) // pinsrd
		return
	}
	// SSE2 only inserts words: low half from r, high half from r>>16.
	hi := r
	if r != sseScratch {
		e.rr([]byte{0x89}, r, sseScratch)     // mov edx, r
		e.rr([]byte{0xC1}, 5, sseScratch, 16) // shr edx, 16
		hi = sseScratch
	}
	e.rr([]byte{0x66, 0x0F, 0xC4}, x, r, byte(2*lane))    // pinsrw x, r, 2l
	e.rr([]byte{0x66, 0x0F, 0xC4}, x, hi, byte(2*lane+1)) // pinsrw x, hi, 2l+1
}

func (e *sse) ZeroLane32(dst VReg, lane int) {
	if lane == 3 {
		x := sseVRegs[dst]
		e.rr([]byte{0x66, 0x0F, 0x73}, 7, x, 4) // pslldq x, 4
		e.rr([]byte{0x66, 0x0F, 0x73}, 3, x, 4) // psrldq x, 4
		return
	}
	e.rr([]byte{0x31}, sseScratch, sseScratch) // xor edx, edx
	e.insert(dst, lane, sseScratch)
}

func (e *sse) And(dst, src VReg) {
	e.rr([]byte{0x66, 0x0F, 0xDB}, sseVRegs[dst], sseVRegs[src]) // pand
}

func (e *sse) Or(dst, src VReg) {
	e.rr([]byte{0x66, 0x0F, 0xEB}, sseVRegs[dst], sseVRegs[src]) // por
}

func (e *sse) ShiftLeftV32(v VReg, n int) {
	if n < 0 || n > 31 {
		e.buf.fail("vector shift %d", n)
		return
	}
	e.rr([]byte{0x66, 0x0F, 0x72}, 6, sseVRegs[v], byte(n)) // pslld
}

func (e *sse) ShiftRightV32(v VReg, n int, unsigned bool) {
	if n < 1 || n > 32 {
		e.buf.fail("vector shift %d", n)
		return
	}
	digit := byte(4) // psrad
	if unsigned {
		digit = 2 // psrld
	}
	e.rr([]byte{0x66, 0x0F, 0x72}, digit, sseVRegs[v], byte(n))
}

func (e *sse) shift(digit byte, dst, src GReg, n int) {
	if n < 0 || n > 31 {
		e.buf.fail("scalar shift %d", n)
		return
	}
	d, s := sseGRegs[dst], sseGRegs[src]
	if d != s {
		e.rr([]byte{0x89}, s, d) // mov d, s
	}
	if n != 0 {
		e.rr([]byte{0xC1}, digit, d, byte(n))
	}
}

func (e *sse) ShiftLeft(dst, src GReg, n int)  { e.shift(4, dst, src, n) }
func (e *sse) ShiftRight(dst, src GReg, n int) { e.shift(5, dst, src, n) }

func (e *sse) Align(n int) { e.buf.pad(n, 0xCC) }

func (e *sse) Ret() { e.buf.emit(0xC3) }

// Prefetch emits prefetcht0. Store hints need PREFETCHW, which is not part
// of the baseline, so they are dropped.
func (e *sse) Prefetch(p Ptr, off int, store bool) {
	if store {
		return
	}
	e.op([]byte{0x0F, 0x18}, 1, p, off)
}

func (e *sse41) LoadWiden8To32(v VReg, p Ptr, off int, unsigned bool) {
	opc := byte(0x21) // pmovsxbd
	if unsigned {
		opc = 0x31 // pmovzxbd
	}
	e.op([]byte{0x66, 0x0F, 0x38, opc}, sseVRegs[v], p, off)
}

func (e *sse41) LoadWiden16To32(v VReg, p Ptr, off int, unsigned bool) {
	opc := byte(0x23) // pmovsxwd
	if unsigned {
		opc = 0x33 // pmovzxwd
	}
	e.op([]byte{0x66, 0x0F, 0x38, opc}, sseVRegs[v], p, off)
}
