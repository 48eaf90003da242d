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
	"encoding/binary"
	"fmt"
)

// Model computes in Go what the generated handlers compute, including the
// register a scalar or V2 handler leaves behind for the next phase.
type Model struct {
	// Masks are the rows masked handlers blend with.
	Masks [NumPhases]MaskTriple

	work Vec
}

// NewModel returns a model using DefaultMasks.
func NewModel() *Model {
	m := &Model{}
	for p := range m.Masks {
		m.Masks[p] = DefaultMasks
	}
	return m
}

// Step applies the handler for k to dst, reading src the way the handler
// does. Bytes past the end of src read as zero.
func (m *Model) Step(k Key, dst *Vec, src []byte) {
	if !k.Valid() || k.Format.Reserved() {
		return
	}
	f, it := k.Format, k.Phase
	var s Vec
	switch f {
	case S32, S16, S8:
		if it == 0 {
			m.work = loadGroup(f, src, k.Unsigned)
		}
		s = Vec{m.work[it], m.work[it], m.work[it], m.work[it]}
	case V2x32, V2x16, V2x8:
		half := it & 1
		if half == 0 {
			m.work = loadGroup(f, src, k.Unsigned)
		}
		x, y := m.work[2*half], m.work[2*half+1]
		s = Vec{x, y, x, y}
		if f == V2x32 && tableAlignment != 0 {
			s[3] = 0
		}
	case V3x32, V3x8:
		s = loadGroup(f, src, k.Unsigned)
		if it != tableAlignment {
			s[3] = 0
		}
	case V3x16:
		s = loadGroup(f, src, k.Unsigned)
		if V3x16ZeroFill(it, tableAlignment) {
			s[3] = 0
		}
	case V4x32, V4x16, V4x8:
		s = loadGroup(f, src, k.Unsigned)
	case V4x5:
		s = ExpandColor(uint16(readLE(src, 0, 2)))
	}
	if k.Masked {
		s = Blend(s, *dst, m.Masks[MaskPhase(k.Phase)])
	}
	*dst = s
}

// Unpack mirrors Table.Unpack.
func (m *Model) Unpack(f Format, unsigned, masked bool, dst []Vec, src []byte) error {
	if !f.Valid() {
		return fmt.Errorf("vif: invalid format %d", int(f))
	}
	if need := f.SourceSpan(len(dst)); len(src) < need {
		return fmt.Errorf("%w: %d %s elements read %d bytes, have %d", ErrShortSource, len(dst), f, need, len(src))
	}
	stride := f.SourceSize()
	for i := range dst {
		k := Key{Format: f, Unsigned: unsigned, Masked: masked, Phase: i % NumPhases}
		m.Step(k, &dst[i], src[i*stride:])
	}
	return nil
}

// ExpandColor converts an A1B5G5R5 word to [R<<3, G<<3, B<<3, A<<7].
func ExpandColor(w uint16) Vec {
	c := uint32(w)
	return Vec{
		(c & 0x1F) << 3,
		(c >> 5 & 0x1F) << 3,
		(c >> 10 & 0x1F) << 3,
		(c >> 15) << 7,
	}
}

// loadGroup reads four components of f's width, extended to 32 bits.
func loadGroup(f Format, src []byte, unsigned bool) Vec {
	size := f.ElementBits() / 8
	var v Vec
	for l := range v {
		x := readLE(src, l*size, size)
		if !unsigned {
			shift := 32 - 8*size
			x = uint32(int32(x<<shift) >> shift)
		}
		v[l] = x
	}
	return v
}

func readLE(src []byte, off, size int) uint32 {
	var b [4]byte
	if off < len(src) {
		copy(b[:size], src[off:])
	}
	return binary.LittleEndian.Uint32(b[:])
}
