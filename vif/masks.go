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

// Vec is one 128-bit destination quadword as four 32-bit lanes.
type Vec [4]uint32

// MaskTriple holds the three masks of a masked write:
// result = (S & Source) | (D & Dest) | Override.
type MaskTriple struct {
	Source   Vec
	Dest     Vec
	Override Vec
}

// DefaultMasks passes unpacked data through unchanged.
var DefaultMasks = MaskTriple{Source: Vec{^uint32(0), ^uint32(0), ^uint32(0), ^uint32(0)}}

// Blend applies m to the unpacked value s and the current destination d.
func Blend(s, d Vec, m MaskTriple) Vec {
	var out Vec
	for l := range out {
		out[l] = s[l]&m.Source[l] | d[l]&m.Dest[l] | m.Override[l]
	}
	return out
}

// MaskPhase returns the mask table row used at a cycle phase. Phases above
// 3 share row 3 and negative phases use row 0.
func MaskPhase(phase int) int { return min(max(phase, 0), 3) }

const (
	maskKinds = 3
	vecBytes  = 16

	// MaskTableSize is the number of bytes a MaskTable occupies: three mask
	// kinds by four phases, 16 bytes each.
	MaskTableSize = maskKinds * NumPhases * vecBytes
)

// maskOffset returns the byte offset of mask kind (0 source, 1 dest,
// 2 override) for a phase. Generated code addresses the same layout.
func maskOffset(kind, phase int) int {
	return (kind*NumPhases + MaskPhase(phase)) * vecBytes
}

// MaskTable is a view of the mask constants read by masked handlers. It
// lives in the same memory as the code so handlers can address it
// PC-relatively.
//
// Writes are not synchronized with running handlers.
type MaskTable struct {
	mem []byte
}

// NewMaskTable returns a view of the first MaskTableSize bytes of mem.
func NewMaskTable(mem []byte) (*MaskTable, error) {
	if len(mem) < MaskTableSize {
		return nil, fmt.Errorf("vif: mask table needs %d bytes, have %d", MaskTableSize, len(mem))
	}
	return &MaskTable{mem: mem[:MaskTableSize:MaskTableSize]}, nil
}

func (m *MaskTable) vec(kind, phase int) []byte {
	off := maskOffset(kind, phase)
	return m.mem[off : off+vecBytes]
}

func (m *MaskTable) get(kind, phase int) Vec {
	b := m.vec(kind, phase)
	var v Vec
	for l := range v {
		v[l] = binary.LittleEndian.Uint32(b[4*l:])
	}
	return v
}

func (m *MaskTable) put(kind, phase int, v Vec) {
	b := m.vec(kind, phase)
	for l, x := range v {
		binary.LittleEndian.PutUint32(b[4*l:], x)
	}
}

// Get returns the triple used at phase.
func (m *MaskTable) Get(phase int) MaskTriple {
	return MaskTriple{
		Source:   m.get(0, phase),
		Dest:     m.get(1, phase),
		Override: m.get(2, phase),
	}
}

// Set replaces the triple used at phase. The row is chosen by MaskPhase.
func (m *MaskTable) Set(phase int, t MaskTriple) {
	m.put(0, phase, t.Source)
	m.put(1, phase, t.Dest)
	m.put(2, phase, t.Override)
}

// SetAll replaces every row.
func (m *MaskTable) SetAll(ts [NumPhases]MaskTriple) {
	for p, t := range ts {
		m.Set(p, t)
	}
}

// All returns every row.
func (m *MaskTable) All() [NumPhases]MaskTriple {
	var out [NumPhases]MaskTriple
	for p := range out {
		out[p] = m.Get(p)
	}
	return out
}

// Reset restores DefaultMasks in every row.
func (m *MaskTable) Reset() {
	for p := 0; p < NumPhases; p++ {
		m.Set(p, DefaultMasks)
	}
}

// MasksFromRegister converts the 32-bit MASK register into mask rows. Each
// cycle c and lane l has a 2-bit selector at bit (c*4+l)*2:
//
//	0  unpacked data
//	1  row register lane l
//	2  column register c
//	3  destination unchanged (write protect)
func MasksFromRegister(mask uint32, row, col Vec) [NumPhases]MaskTriple {
	var out [NumPhases]MaskTriple
	for c := range out {
		t := &out[c]
		for l := 0; l < 4; l++ {
			switch (mask >> ((c*4 + l) * 2)) & 3 {
			case 0:
				t.Source[l] = ^uint32(0)
			case 1:
				t.Override[l] = row[l]
			case 2:
				t.Override[l] = col[c]
			case 3:
				t.Dest[l] = ^uint32(0)
			}
		}
	}
	return out
}
