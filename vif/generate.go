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

package vif

import (
	"github.com/ajroetker/go-vifjit/logging"
	"github.com/ajroetker/go-vifjit/vif/emit"
)

// Generator emits complete handlers into an emitter's buffer.
type Generator struct {
	// Emitter receives the instructions.
	Emitter emit.Emitter
	// MaskTable is the buffer offset of the mask table read by masked
	// handlers.
	MaskTable int
	// Logger receives warnings about reserved formats. Nil discards them.
	Logger logging.Logger
}

// unpacker carries the state of one generation call.
type unpacker struct {
	e   emit.Emitter
	ctx GenerationContext
	it  int
}

// Generate emits the handler for f: the unpack sequence selected by ctx
// and iteration, a direct store or masked blend, and a return. Reserved
// formats emit nothing, log a warning and report false.
func (g *Generator) Generate(f Format, ctx GenerationContext, iteration int) bool {
	gen := generators[f&(NumFormats-1)]
	if f >= NumFormats || gen == nil {
		if g.Logger != nil {
			g.Logger.Warn("vif: invalid unpack format %d", int(f))
		}
		return false
	}
	u := &unpacker{e: g.Emitter, ctx: ctx, it: iteration}
	gen(u)
	if ctx.Masked {
		u.blend(g.MaskTable)
	} else {
		u.store()
	}
	u.e.Ret()
	return true
}

var generators = [NumFormats]func(u *unpacker){
	S32:   (*unpacker).scalar32,
	S16:   (*unpacker).scalar16,
	S8:    (*unpacker).scalar8,
	V2x32: (*unpacker).v2x32,
	V2x16: (*unpacker).v2x16,
	V2x8:  (*unpacker).v2x8,
	V3x32: (*unpacker).v3x32,
	V3x16: (*unpacker).v3x16,
	V3x8:  (*unpacker).v3x8,
	V4x32: (*unpacker).v4x32,
	V4x16: (*unpacker).v4x16,
	V4x8:  (*unpacker).v4x8,
	V4x5:  (*unpacker).v4x5,
}

func (u *unpacker) prefetch(p emit.Ptr, off int, store bool) {
	if pf, ok := u.e.(emit.Prefetcher); ok {
		pf.Prefetch(p, off, store)
	}
}

func (u *unpacker) store() {
	u.e.StoreV128(emit.VDest, emit.Dst, 0)
	u.prefetch(emit.Dst, 16, true)
}

// widen16 loads four halfwords from the source into v as words.
func (u *unpacker) widen16(v emit.VReg) {
	if fw, ok := u.e.(emit.FusedWidener); ok {
		fw.LoadWiden16To32(v, emit.Src, 0, u.ctx.Unsigned)
	} else {
		u.e.LoadV64(v, emit.Src, 0)
		u.e.Widen16To32(v, u.ctx.Unsigned)
	}
	u.prefetch(emit.Src, 32, false)
}

// widen8 loads four bytes from the source into v as words.
func (u *unpacker) widen8(v emit.VReg) {
	if fw, ok := u.e.(emit.FusedWidener); ok {
		fw.LoadWiden8To32(v, emit.Src, 0, u.ctx.Unsigned)
	} else {
		u.e.LoadV32(v, emit.Src, 0)
		u.e.Widen8To16(v, u.ctx.Unsigned)
		u.e.Widen16To32(v, u.ctx.Unsigned)
	}
	u.prefetch(emit.Src, 16, false)
}

// Scalars load a group of four at iteration 0 and broadcast element
// iteration of the resident group.

func (u *unpacker) scalar32() {
	if u.it == 0 {
		u.e.LoadV128(emit.VWork, emit.Src, 0)
		u.prefetch(emit.Src, 64, false)
	}
	u.e.DupLane32(emit.VDest, emit.VWork, u.it)
}

func (u *unpacker) scalar16() {
	if u.it == 0 {
		u.widen16(emit.VWork)
	}
	u.e.DupLane32(emit.VDest, emit.VWork, u.it)
}

func (u *unpacker) scalar8() {
	if u.it == 0 {
		u.widen8(emit.VWork)
	}
	u.e.DupLane32(emit.VDest, emit.VWork, u.it)
}

// V2 formats load two elements on even iterations and emit v1v0v1v0, then
// v3v2v3v2 from the same register on odd iterations.
func (u *unpacker) v2(load func(emit.VReg)) {
	half := u.it & 1
	if half == 0 {
		load(emit.VWork)
	}
	u.e.DupLane64(emit.VDest, emit.VWork, half)
}

func (u *unpacker) v2x32() {
	u.v2(func(v emit.VReg) { u.e.LoadV128(v, emit.Src, 0) })
	if u.ctx.Aligned() {
		u.e.ZeroLane32(emit.VDest, 3)
	}
}

func (u *unpacker) v2x16() { u.v2(u.widen16) }
func (u *unpacker) v2x8()  { u.v2(u.widen8) }

// V3 formats read four components. The fourth belongs to the next element
// and is kept or zeroed the way the hardware does.

func (u *unpacker) v3x32() {
	u.e.LoadV128(emit.VDest, emit.Src, 0)
	if u.it != u.ctx.Alignment {
		u.e.ZeroLane32(emit.VDest, 3)
	}
}

func (u *unpacker) v3x16() {
	u.widen16(emit.VDest)
	if V3x16ZeroFill(u.it, u.ctx.Alignment) {
		u.e.ZeroLane32(emit.VDest, 3)
	}
}

func (u *unpacker) v3x8() {
	u.widen8(emit.VDest)
	if u.it != u.ctx.Alignment {
		u.e.ZeroLane32(emit.VDest, 3)
	}
}

// V3x16ZeroFill reports whether V3-16 clears lane 3. W becomes zero when
// this element ends on a quadword boundary, which happens on even
// iterations where ((iteration/4)+1+(4-alignment))&3 is zero.
func V3x16ZeroFill(iteration, alignment int) bool {
	boundary := (iteration/4 + 1 + (4 - alignment)) & 3
	return iteration&1 == 0 && boundary == 0
}

func (u *unpacker) v4x32() {
	u.prefetch(emit.Src, 64, false)
	u.e.LoadV128(emit.VDest, emit.Src, 0)
}

func (u *unpacker) v4x16() { u.widen16(emit.VDest) }
func (u *unpacker) v4x8()  { u.widen8(emit.VDest) }

// v4x5 expands a 16-bit A1B5G5R5 word to [R<<3, G<<3, B<<3, A<<7]. Sign
// extension does not apply.
func (u *unpacker) v4x5() {
	e := u.e
	e.LoadU16(emit.G0, emit.Src, 0)

	if bx, ok := e.(emit.BitfieldExtractor); ok {
		channel := func(lsb, width, shift int) {
			bx.ExtractBits(emit.G1, emit.G0, lsb, width)
			e.ShiftLeft(emit.G1, emit.G1, shift)
		}
		channel(0, 5, 3)
		e.DupGPR32(emit.VDest, emit.G1)
		channel(5, 5, 3)
		e.InsertLane32(emit.VDest, 1, emit.G1)
		channel(10, 5, 3)
		e.InsertLane32(emit.VDest, 2, emit.G1)
		channel(15, 1, 7)
		e.InsertLane32(emit.VDest, 3, emit.G1)
		return
	}

	// Each step leaves the next channel in the low bits; the final
	// <<24 >>24 keeps 8 bits per lane.
	e.ShiftLeft(emit.G0, emit.G0, 3) // ABG|R5.000
	e.DupGPR32(emit.VDest, emit.G0)
	e.ShiftRight(emit.G0, emit.G0, 8) // ABG
	e.ShiftLeft(emit.G0, emit.G0, 3)  // AB|G5.000
	e.InsertLane32(emit.VDest, 1, emit.G0)
	e.ShiftRight(emit.G0, emit.G0, 8) // AB
	e.ShiftLeft(emit.G0, emit.G0, 3)  // A|B5.000
	e.InsertLane32(emit.VDest, 2, emit.G0)
	e.ShiftRight(emit.G0, emit.G0, 8) // A
	e.ShiftLeft(emit.G0, emit.G0, 7)  // A.0000000
	e.InsertLane32(emit.VDest, 3, emit.G0)
	e.ShiftLeftV32(emit.VDest, 24)
	e.ShiftRightV32(emit.VDest, 24, true)
}
