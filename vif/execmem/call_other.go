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

//go:build !amd64 && !arm64

package execmem

import "unsafe"

// CanCall reports whether Call and RunChain have an implementation for
// this architecture.
const CanCall = false

func Call(fn uintptr, dst, src unsafe.Pointer) {
	panic("execmem: no call trampoline for this architecture")
}

func RunChain(fns *[4]uintptr, n int, dst, src unsafe.Pointer, srcStride uintptr) {
	panic("execmem: no call trampoline for this architecture")
}
