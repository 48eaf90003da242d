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
	"fmt"
	"unsafe"

	"github.com/ajroetker/go-vifjit/vif/execmem"
)

// Call runs the handler once. src must hold the format's ReadSize bytes.
// The handler must come from an Executable table.
func (h Handler) Call(dst *Vec, src unsafe.Pointer) {
	if h == 0 {
		panic("vif: call through null handler")
	}
	execmem.Call(uintptr(h), unsafe.Pointer(dst), src)
}

// Unpack converts len(dst) consecutive elements of format f from src,
// starting at phase 0 and cycling through the four phases. All calls run
// from one loop so that scalar and V2 handlers reuse the group loaded by
// the phase before them.
//
// Reserved formats log a warning and leave dst untouched.
func (t *Table) Unpack(f Format, unsigned, masked bool, dst []Vec, src []byte) error {
	if f.Reserved() {
		t.log.Warn("vif: invalid unpack format %d", int(f))
		return nil
	}
	if !f.Valid() {
		return fmt.Errorf("vif: format id %d out of range", int(f))
	}
	if !t.Executable() {
		return ErrNotExecutable
	}
	if len(dst) == 0 {
		return nil
	}
	if need := f.SourceSpan(len(dst)); len(src) < need {
		return fmt.Errorf("%w: %d %s elements read %d bytes, have %d", ErrShortSource, len(dst), f, need, len(src))
	}

	var fns [NumPhases]uintptr
	for p := range fns {
		fns[p] = uintptr(t.Resolve(f, unsigned, masked, p))
	}
	execmem.RunChain(&fns, len(dst), unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), uintptr(f.SourceSize()))
	return nil
}
