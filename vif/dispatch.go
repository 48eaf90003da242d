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
	"os"

	"golang.org/x/sys/cpu"

	"github.com/ajroetker/go-vifjit/vif/emit"
)

// currentTarget is the backend selected for this host.
// Set by init() in dispatch_*.go files.
var currentTarget emit.Target

// CurrentTarget returns the backend tables are generated for by default.
func CurrentTarget() emit.Target {
	return currentTarget
}

// TargetEnv reads the VIFJIT_TARGET environment variable. When it names a
// target, that target replaces the detected one; "none" disables code
// generation. ok is false when the variable is unset or not a target name.
func TargetEnv() (t emit.Target, ok bool) {
	val := os.Getenv("VIFJIT_TARGET")
	if val == "" {
		return emit.TargetNone, false
	}
	t, err := emit.ParseTarget(val)
	if err != nil {
		return emit.TargetNone, false
	}
	return t, true
}

// hasFeatures reports whether the CPU implements every instruction the
// backend for t emits. The cpu fields are false off their architecture.
var hasFeatures = func(t emit.Target) bool {
	switch t {
	case emit.TargetSSE2:
		return cpu.X86.HasSSE2
	case emit.TargetSSE41:
		return cpu.X86.HasSSE2 && cpu.X86.HasSSE41
	case emit.TargetNEON:
		return cpu.ARM64.HasASIMD
	default:
		return false
	}
}
