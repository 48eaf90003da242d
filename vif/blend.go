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

import "github.com/ajroetker/go-vifjit/vif/emit"

// blend merges VDest into the destination through the mask row for the
// current phase: (S & A) | (D & B) | C.
func (u *unpacker) blend(maskTable int) {
	e := u.e
	u.prefetch(emit.Dst, 0, false)
	e.LoadV128(emit.VPrev, emit.Dst, 0)

	e.LoadV128At(emit.VMaskA, maskTable+maskOffset(0, u.ctx.Phase))
	e.LoadV128At(emit.VMaskB, maskTable+maskOffset(1, u.ctx.Phase))
	e.LoadV128At(emit.VMaskC, maskTable+maskOffset(2, u.ctx.Phase))

	e.And(emit.VDest, emit.VMaskA)
	e.And(emit.VPrev, emit.VMaskB)
	e.Or(emit.VDest, emit.VMaskC)
	e.Or(emit.VDest, emit.VPrev)

	e.StoreV128(emit.VDest, emit.Dst, 0)
	u.prefetch(emit.Dst, 16, true)
}
