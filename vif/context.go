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

import "fmt"

const (
	// NumPhases is the length of the write cycle handlers are specialized for.
	NumPhases = 4
	// NumKeys is the size of the handler table: signedness x mask x phase x format.
	NumKeys = 2 * 2 * NumPhases * NumFormats
)

// GenerationContext holds the parameters fixed for one generated handler.
type GenerationContext struct {
	// Unsigned selects zero extension of narrow sources instead of sign
	// extension.
	Unsigned bool
	// Masked blends the result into the destination through the mask table.
	Masked bool
	// Phase is the position within the 4-phase write cycle.
	Phase int
	// Alignment is the position within the current quadword of the VIF
	// packet. V2-32 zero-fills lane 3 whenever it is non-zero; V3 zero-fill
	// compares against it.
	Alignment int
}

// Aligned reports whether the write falls inside a quadword.
func (c GenerationContext) Aligned() bool { return c.Alignment != 0 }

// Key identifies one handler.
type Key struct {
	Format   Format
	Unsigned bool
	Masked   bool
	Phase    int
}

// Index returns the table slot of k, ((u*32 + m*16 + format)*4) + phase.
func (k Key) Index() int {
	return (b2i(k.Unsigned)*32+b2i(k.Masked)*16+int(k.Format))*NumPhases + k.Phase
}

// Valid reports whether k addresses a table slot.
func (k Key) Valid() bool {
	return k.Format < NumFormats && k.Phase >= 0 && k.Phase < NumPhases
}

func (k Key) String() string {
	sign := "signed"
	if k.Unsigned {
		sign = "unsigned"
	}
	mode := "direct"
	if k.Masked {
		mode = "masked"
	}
	return fmt.Sprintf("%s %s %s phase %d", k.Format, sign, mode, k.Phase)
}

// KeyAt is the inverse of Key.Index.
func KeyAt(i int) Key {
	return Key{
		Format:   Format(i / NumPhases % NumFormats),
		Unsigned: i/(NumPhases*32) != 0,
		Masked:   i/(NumPhases*16)%2 != 0,
		Phase:    i % NumPhases,
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
