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

// AArch64 backend. Handlers follow AAPCS64 for their two arguments:
// X0 = dst, X1 = src.
//
// Register assignment:
//
//	VDest  v0     VMaskA v29    G0 w4
//	VWork  v1     VMaskB v30    G1 w5
//	VPrev  v7     VMaskC v31
//
// R18 (platform), R26-R30 (Go closure context, REGTMP, g, FP, LR) are
// never written.
var (
	neonVRegs = [numVRegs]uint32{VDest: 0, VWork: 1, VPrev: 7, VMaskA: 29, VMaskB: 30, VMaskC: 31}
	neonGRegs = [numGRegs]uint32{G0: 4, G1: 5}
	neonPtrs  = [...]uint32{Dst: 0, Src: 1}
)

const (
	wzr = 31

	neonRet = 0xD65F03C0

	prfPLDL1KEEP = 0x00
	prfPSTL1KEEP = 0x10
)

type neon struct {
	buf *Buffer
}

func newNEON(buf *Buffer) *neon {
	return &neon{buf: buf}
}

func (e *neon) Target() Target     { return TargetNEON }
func (e *neon) Buffer() *Buffer    { return e.buf }
func (e *neon) ins(word uint32)    { e.buf.emit32(word) }
func (e *neon) Align(n int)        { e.buf.pad(n, 0) }
func (e *neon) Ret()               { e.ins(neonRet) }
func (e *neon) vreg(v VReg) uint32 { return neonVRegs[v] }

// ldst encodes the unsigned scaled immediate form of a load/store.
func (e *neon) ldst(base uint32, scale int, rt uint32, p Ptr, off int) {
	if off < 0 || off%scale != 0 || off/scale > 0xFFF {
		e.buf.fail("offset %d for %d-byte access", off, scale)
		return
	}
	e.ins(base | uint32(off/scale)<<10 | neonPtrs[p]<<5 | rt)
}

func (e *neon) LoadV32(v VReg, p Ptr, off int) {
	e.ldst(0xBD400000, 4, e.vreg(v), p, off) // ldr s
}

func (e *neon) LoadV64(v VReg, p Ptr, off int) {
	e.ldst(0xFD400000, 8, e.vreg(v), p, off) // ldr d
}

func (e *neon) LoadV128(v VReg, p Ptr, off int) {
	e.ldst(0x3DC00000, 16, e.vreg(v), p, off) // ldr q
}

func (e *neon) StoreV128(v VReg, p Ptr, off int) {
	e.ldst(0x3D800000, 16, e.vreg(v), p, off) // str q
}

func (e *neon) LoadU16(g GReg, p Ptr, off int) {
	e.ldst(0x79400000, 2, neonGRegs[g], p, off) // ldrh w
}

// LoadV128At uses LDR (literal), which reaches +-1MiB.
func (e *neon) LoadV128At(v VReg, target int) {
	delta := target - e.buf.Pos()
	if delta%4 != 0 || delta < -1<<20 || delta >= 1<<20 {
		e.buf.fail("literal displacement %d", delta)
		return
	}
	imm19 := uint32(delta/4) & 0x7FFFF
	e.ins(0x9C000000 | imm19<<5 | e.vreg(v))
}

// xshll encodes SSHLL/USHLL #0, the 2-stage widening primitive.
func (e *neon) xshll(immh uint32, v VReg, unsigned bool) {
	word := uint32(0x0F00A400)
	if unsigned {
		word |= 1 << 29
	}
	r := e.vreg(v)
	e.ins(word | immh<<19 | r<<5 | r)
}

func (e *neon) Widen8To16(v VReg, unsigned bool)  { e.xshll(0b0001, v, unsigned) } // .8h <- .8b
func (e *neon) Widen16To32(v VReg, unsigned bool) { e.xshll(0b0010, v, unsigned) } // .4s <- .4h

func (e *neon) dupElem(dst, src VReg, imm5 uint32) {
	e.ins(0x4E000400 | imm5<<16 | e.vreg(src)<<5 | e.vreg(dst))
}

func (e *neon) DupLane32(dst, src VReg, lane int) {
	if lane < 0 || lane > 3 {
		e.buf.fail("32-bit lane %d", lane)
		return
	}
	e.dupElem(dst, src, uint32(lane)<<3|0b100)
}

func (e *neon) DupLane64(dst, src VReg, lane int) {
	if lane < 0 || lane > 1 {
		e.buf.fail("64-bit lane %d", lane)
		return
	}
	e.dupElem(dst, src, uint32(lane)<<4|0b1000)
}

func (e *neon) DupGPR32(dst VReg, g GReg) {
	e.ins(0x4E040C00 | neonGRegs[g]<<5 | e.vreg(dst)) // dup v.4s, w
}

func (e *neon) insGPR(dst VReg, lane int, rn uint32) {
	if lane < 0 || lane > 3 {
		e.buf.fail("32-bit lane %d", lane)
		return
	}
	imm5 := uint32(lane)<<3 | 0b100
	e.ins(0x4E001C00 | imm5<<16 | rn<<5 | e.vreg(dst)) // ins v.s[lane], w
}

func (e *neon) InsertLane32(dst VReg, lane int, g GReg) { e.insGPR(dst, lane, neonGRegs[g]) }
func (e *neon) ZeroLane32(dst VReg, lane int)           { e.insGPR(dst, lane, wzr) }

func (e *neon) And(dst, src VReg) {
	d := e.vreg(dst)
	e.ins(0x4E201C00 | e.vreg(src)<<16 | d<<5 | d) // and .16b
}

func (e *neon) Or(dst, src VReg) {
	d := e.vreg(dst)
	e.ins(0x4EA01C00 | e.vreg(src)<<16 | d<<5 | d) // orr .16b
}

func (e *neon) ShiftLeftV32(v VReg, n int) {
	if n < 0 || n > 31 {
		e.buf.fail("vector shift %d", n)
		return
	}
	r := e.vreg(v)
	e.ins(0x4F005400 | uint32(32+n)<<16 | r<<5 | r) // shl .4s
}

func (e *neon) ShiftRightV32(v VReg, n int, unsigned bool) {
	if n < 1 || n > 32 {
		e.buf.fail("vector shift %d", n)
		return
	}
	word := uint32(0x4F000400) // sshr .4s
	if unsigned {
		word = 0x6F000400 // ushr .4s
	}
	r := e.vreg(v)
	e.ins(word | uint32(64-n)<<16 | r<<5 | r)
}

// ubfm is the 32-bit UBFM that LSL, LSR and UBFX alias.
func (e *neon) ubfm(dst, src GReg, immr, imms int) {
	e.ins(0x53000000 | uint32(immr)<<16 | uint32(imms)<<10 | neonGRegs[src]<<5 | neonGRegs[dst])
}

func (e *neon) ShiftLeft(dst, src GReg, n int) {
	if n < 0 || n > 31 {
		e.buf.fail("scalar shift %d", n)
		return
	}
	e.ubfm(dst, src, (32-n)&31, 31-n)
}

func (e *neon) ShiftRight(dst, src GReg, n int) {
	if n < 0 || n > 31 {
		e.buf.fail("scalar shift %d", n)
		return
	}
	e.ubfm(dst, src, n, 31)
}

func (e *neon) ExtractBits(dst, src GReg, lsb, width int) {
	if lsb < 0 || width < 1 || lsb+width > 32 {
		e.buf.fail("bitfield %d:%d", lsb, width)
		return
	}
	e.ubfm(dst, src, lsb, lsb+width-1)
}

func (e *neon) Prefetch(p Ptr, off int, store bool) {
	op := uint32(prfPLDL1KEEP)
	if store {
		op = prfPSTL1KEEP
	}
	e.ldst(0xF9800000, 8, op, p, off) // prfm
}
