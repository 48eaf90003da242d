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

// Package vif generates and runs the table of machine-code handlers that
// unpack VIF data: packed 8, 16 and 32-bit scalar and vector components,
// and 5-5-5-1 color, converted into 4-lane 32-bit vectors.
//
// One handler exists for every combination of format, signedness, masked
// write and cycle phase. Handlers are straight-line leaf routines taking a
// destination and a source pointer:
//
//	t, err := vif.NewTable()
//	if err != nil {
//		return err
//	}
//	defer t.Close()
//	err = t.Unpack(vif.V4x5, true, false, dst, src)
package vif

import (
	"fmt"
	"strconv"
	"strings"
)

// Format is an unpack format id in [0, 15]. The id is arity<<2 | width,
// where width 0 is 32-bit, 1 is 16-bit and 2 is 8-bit. Width 3 only exists
// for arity 3, the packed 5-5-5-1 color format.
type Format uint8

const (
	S32 Format = iota
	S16
	S8
	_
	V2x32
	V2x16
	V2x8
	_
	V3x32
	V3x16
	V3x8
	_
	V4x32
	V4x16
	V4x8
	V4x5

	// NumFormats is the size of the format id space, reserved ids included.
	NumFormats = 16
)

var formatNames = [NumFormats]string{
	"S-32", "S-16", "S-8", "",
	"V2-32", "V2-16", "V2-8", "",
	"V3-32", "V3-16", "V3-8", "",
	"V4-32", "V4-16", "V4-8", "V4-5",
}

// Formats returns the 13 valid formats in id order.
func Formats() []Format {
	out := make([]Format, 0, NumFormats)
	for f := Format(0); f < NumFormats; f++ {
		if f.Valid() {
			out = append(out, f)
		}
	}
	return out
}

// Valid reports whether f names a real format.
func (f Format) Valid() bool {
	return f < NumFormats && !f.Reserved()
}

// Reserved reports whether f is one of the ids 3, 7 and 11 that no format
// maps to.
func (f Format) Reserved() bool {
	return f < NumFormats && f != V4x5 && f&3 == 3
}

func (f Format) String() string {
	if f.Valid() {
		return formatNames[f]
	}
	return fmt.Sprintf("invalid(%d)", uint8(f))
}

// ParseFormat accepts names such as "V3-16", "v3_16" or a decimal id.
func ParseFormat(s string) (Format, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	for f, name := range formatNames {
		if name != "" && name == norm {
			return Format(f), nil
		}
	}
	if id, err := strconv.Atoi(norm); err == nil {
		if id >= 0 && id < NumFormats && Format(id).Valid() {
			return Format(id), nil
		}
		return 0, fmt.Errorf("vif: format id %d is reserved or out of range", id)
	}
	return 0, fmt.Errorf("vif: unknown format %q", s)
}

// Lanes returns the number of components per element, 1 to 4.
func (f Format) Lanes() int {
	return int(f>>2) + 1
}

// ElementBits returns the width of one source component. The packed color
// format reports the width of its whole 16-bit word.
func (f Format) ElementBits() int {
	if f == V4x5 {
		return 16
	}
	return 32 >> (f & 3)
}

// SourceSize returns the bytes of source consumed per element.
func (f Format) SourceSize() int {
	if f == V4x5 {
		return 2
	}
	return f.Lanes() * f.ElementBits() / 8
}

// ReadSize returns how many bytes a handler may read from its source
// pointer. Formats with fewer than four components read a full group.
func (f Format) ReadSize() int {
	if f == V4x5 {
		return 2
	}
	return 4 * f.ElementBits() / 8
}

// Period returns how many consecutive elements share one load: 4 for
// scalars, 2 for V2 and 1 otherwise.
func (f Format) Period() int {
	switch f >> 2 {
	case 0:
		return 4
	case 1:
		return 2
	default:
		return 1
	}
}

// SourceSpan returns the source bytes n consecutive elements starting at
// phase 0 may touch.
func (f Format) SourceSpan(n int) int {
	if n <= 0 {
		return 0
	}
	lastLoad := (n - 1) / f.Period() * f.Period()
	return max(lastLoad*f.SourceSize()+f.ReadSize(), n*f.SourceSize())
}
