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

// Command vifgen inspects and checks the generated VIF unpack handlers.
//
// Usage:
//
//	vifgen caps                          # CPU features and usable targets
//	vifgen table -target neon -o yaml    # handler layout for a target
//	vifgen dump V4-5 -phase 0 -masked    # machine code of one handler
//	vifgen verify -iterations 64         # run handlers against the Go model
//
// Every flag can also be set through the environment: VIFGEN_<FLAG> for
// global flags and VIFGEN_<COMMAND>_<FLAG> for command flags, with dashes
// written as underscores.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
