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

// Package emit encodes the small instruction vocabulary needed by the unpack
// generators into a code Buffer.
//
// Registers are abstract. Each backend maps them onto fixed machine registers
// chosen so that the work register survives between consecutive handler
// calls made from the same assembly loop, and so that nothing reserved by the
// Go runtime is touched.
//
// Optional instruction forms are exposed as separate interfaces. Generators
// query them with a type assertion and fall back to the core vocabulary:
//
//	if bx, ok := e.(emit.BitfieldExtractor); ok {
//		bx.ExtractBits(emit.G0, emit.G0, 10, 5)
//	}
package emit

import (
	"fmt"
	"runtime"
	"strings"
)

// VReg is an abstract 128-bit vector register.
type VReg uint8

const (
	// VDest holds the value about to be written to the destination.
	VDest VReg = iota
	// VWork holds a loaded element group that later phases reuse.
	VWork
	// VPrev holds the current destination contents during a masked write.
	VPrev
	// VMaskA, VMaskB and VMaskC hold the mask triple during a masked write.
	VMaskA
	VMaskB
	VMaskC

	numVRegs
)

var vregNames = [numVRegs]string{"dest", "work", "prev", "maskA", "maskB", "maskC"}

func (v VReg) String() string {
	if v < numVRegs {
		return vregNames[v]
	}
	return fmt.Sprintf("v?%d", uint8(v))
}

// GReg is an abstract 32-bit general purpose register.
type GReg uint8

const (
	G0 GReg = iota
	G1

	numGRegs
)

func (g GReg) String() string {
	return fmt.Sprintf("g%d", uint8(g))
}

// Ptr names one of the two pointer arguments every handler receives.
type Ptr uint8

const (
	// Dst is the first handler argument, the 16-byte destination.
	Dst Ptr = iota
	// Src is the second handler argument, the packed source.
	Src
)

func (p Ptr) String() string {
	if p == Dst {
		return "dst"
	}
	return "src"
}

// Emitter is the instruction vocabulary shared by all backends.
// Offsets are byte displacements from the pointer argument.
type Emitter interface {
	// Target reports which backend this emitter encodes for.
	Target() Target
	// Buffer returns the code buffer being written.
	Buffer() *Buffer

	// LoadV32, LoadV64 and LoadV128 load the low 4, 8 or 16 bytes of v and
	// clear the remaining bytes.
	LoadV32(v VReg, p Ptr, off int)
	LoadV64(v VReg, p Ptr, off int)
	LoadV128(v VReg, p Ptr, off int)
	// LoadV128At loads 16 bytes from the absolute buffer offset target using
	// PC-relative addressing.
	LoadV128At(v VReg, target int)
	StoreV128(v VReg, p Ptr, off int)
	// LoadU16 zero-extends a 16-bit word into g.
	LoadU16(g GReg, p Ptr, off int)

	// Widen8To16 extends the low 8 bytes of v to 8 halfwords.
	Widen8To16(v VReg, unsigned bool)
	// Widen16To32 extends the low 4 halfwords of v to 4 words.
	Widen16To32(v VReg, unsigned bool)

	// DupLane32 broadcasts 32-bit lane of src into all lanes of dst.
	DupLane32(dst, src VReg, lane int)
	// DupLane64 broadcasts 64-bit lane of src into both halves of dst.
	DupLane64(dst, src VReg, lane int)
	// DupGPR32 broadcasts g into all 32-bit lanes of dst.
	DupGPR32(dst VReg, g GReg)
	// InsertLane32 replaces a 32-bit lane of dst with g.
	InsertLane32(dst VReg, lane int, g GReg)
	// ZeroLane32 clears a 32-bit lane of dst.
	ZeroLane32(dst VReg, lane int)

	// And and Or compute dst = dst op src over all 128 bits.
	And(dst, src VReg)
	Or(dst, src VReg)
	// ShiftLeftV32 and ShiftRightV32 shift each 32-bit lane.
	ShiftLeftV32(v VReg, n int)
	ShiftRightV32(v VReg, n int, unsigned bool)

	// ShiftLeft and ShiftRight are 32-bit logical shifts of a general register.
	ShiftLeft(dst, src GReg, n int)
	ShiftRight(dst, src GReg, n int)

	// Align pads the buffer with trap bytes up to a multiple of n.
	Align(n int)
	// Ret emits the return terminator.
	Ret()
}

// Prefetcher emits cache prefetch hints. Hints never fault.
type Prefetcher interface {
	Prefetch(p Ptr, off int, store bool)
}

// BitfieldExtractor extracts width bits starting at lsb in one instruction.
type BitfieldExtractor interface {
	ExtractBits(dst, src GReg, lsb, width int)
}

// FusedWidener loads and widens to 32-bit lanes in one instruction.
type FusedWidener interface {
	LoadWiden8To32(v VReg, p Ptr, off int, unsigned bool)
	LoadWiden16To32(v VReg, p Ptr, off int, unsigned bool)
}

// MaxInstructionLen is the longest single machine instruction any backend
// in this package encodes.
const MaxInstructionLen = 9

// Target identifies an instruction set backend.
type Target int

const (
	// TargetNone means no backend is available on this host.
	TargetNone Target = iota
	// TargetSSE2 is the x86-64 baseline.
	TargetSSE2
	// TargetSSE41 adds PMOVSX/PMOVZX and PINSRD.
	TargetSSE41
	// TargetNEON is AArch64 Advanced SIMD.
	TargetNEON
)

// String returns a human-readable name for the target.
func (t Target) String() string {
	switch t {
	case TargetNone:
		return "none"
	case TargetSSE2:
		return "sse2"
	case TargetSSE41:
		return "sse4.1"
	case TargetNEON:
		return "neon"
	default:
		return "unknown"
	}
}

// Arch returns the GOARCH whose processors execute code for t.
func (t Target) Arch() string {
	switch t {
	case TargetSSE2, TargetSSE41:
		return "amd64"
	case TargetNEON:
		return "arm64"
	default:
		return ""
	}
}

// Native reports whether code for t can run on the current processor
// architecture. It does not check CPU features.
func (t Target) Native() bool {
	return t != TargetNone && t.Arch() == runtime.GOARCH
}

// Targets lists every target that has a backend.
func Targets() []Target {
	return []Target{TargetSSE2, TargetSSE41, TargetNEON}
}

// ParseTarget parses a target name such as "sse4.1" or "neon".
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return TargetNone, nil
	case "sse2", "amd64", "x86_64":
		return TargetSSE2, nil
	case "sse4.1", "sse41", "sse4":
		return TargetSSE41, nil
	case "neon", "arm64", "aarch64", "asimd":
		return TargetNEON, nil
	default:
		return TargetNone, fmt.Errorf("unknown target %q (supported: sse2, sse4.1, neon)", s)
	}
}

// New returns an emitter for t writing into buf.
func New(t Target, buf *Buffer) (Emitter, error) {
	switch t {
	case TargetSSE2:
		return newSSE(buf, false), nil
	case TargetSSE41:
		return &sse41{sse: newSSE(buf, true)}, nil
	case TargetNEON:
		return newNEON(buf), nil
	default:
		return nil, fmt.Errorf("emit: no backend for target %s", t)
	}
}
