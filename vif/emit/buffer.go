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

package emit

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrRegionFull is reported when an instruction does not fit in the buffer.
	ErrRegionFull = errors.New("emit: code region exhausted")
	// ErrOperand is reported when an operand cannot be encoded, such as a
	// misaligned offset or an out of range shift.
	ErrOperand = errors.New("emit: operand out of range")
)

// Buffer is a write cursor over a caller-supplied byte slice.
//
// Offsets are absolute positions in the slice, so PC-relative references to
// data stored in the same slice can be computed from them. The first write
// that would run past the end sets a sticky error; every later write is
// dropped and Err keeps returning it.
type Buffer struct {
	mem []byte
	pos int
	err error
}

// NewBuffer returns a buffer writing mem starting at offset start.
func NewBuffer(mem []byte, start int) *Buffer {
	b := &Buffer{mem: mem, pos: start}
	if start < 0 || start > len(mem) {
		b.err = fmt.Errorf("%w: start offset %d outside %d-byte region", ErrRegionFull, start, len(mem))
	}
	return b
}

// Pos returns the offset the next byte will be written at.
func (b *Buffer) Pos() int { return b.pos }

// Len returns the size of the underlying slice.
func (b *Buffer) Len() int { return len(b.mem) }

// Err returns the first overflow, if any.
func (b *Buffer) Err() error { return b.err }

// Slice returns the bytes in [from, to).
func (b *Buffer) Slice(from, to int) []byte { return b.mem[from:to] }

func (b *Buffer) fail(format string, args ...any) {
	if b.err == nil {
		b.err = fmt.Errorf("%w: "+format, append([]any{ErrOperand}, args...)...)
	}
}

func (b *Buffer) reserve(n int) []byte {
	if b.err != nil {
		return nil
	}
	if b.pos+n > len(b.mem) {
		b.err = fmt.Errorf("%w: need %d bytes at offset %d, capacity %d", ErrRegionFull, n, b.pos, len(b.mem))
		return nil
	}
	out := b.mem[b.pos : b.pos+n]
	b.pos += n
	return out
}

func (b *Buffer) emit(bs ...byte) {
	if dst := b.reserve(len(bs)); dst != nil {
		copy(dst, bs)
	}
}

func (b *Buffer) emit32(w uint32) {
	if dst := b.reserve(4); dst != nil {
		binary.LittleEndian.PutUint32(dst, w)
	}
}

func (b *Buffer) pad(n int, fill byte) {
	if n <= 0 {
		return
	}
	for b.pos%n != 0 && b.err == nil {
		b.emit(fill)
	}
}
