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

//go:build !linux

package execmem

import "os"

// Supported reports whether Reserve can map executable memory here.
const Supported = false

func pageSize() int { return os.Getpagesize() }

func mapRegion(int) ([]byte, error) { return nil, ErrUnsupported }
func protect([]byte, bool) error    { return ErrUnsupported }
func unmapRegion([]byte) error      { return ErrUnsupported }
