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
	"golang.org/x/sys/cpu"

	"github.com/ajroetker/go-vifjit/vif/emit"
)

func init() {
	if t, ok := TargetEnv(); ok {
		currentTarget = t
		return
	}

	// SSE2 is part of the amd64 baseline; PMOVSX/PMOVZX and PINSRD need
	// SSE4.1.
	if cpu.X86.HasSSE41 {
		currentTarget = emit.TargetSSE41
	} else {
		currentTarget = emit.TargetSSE2
	}
}
