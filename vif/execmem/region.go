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

// Package execmem provides named regions of executable memory and the
// trampolines used to call code generated into them.
//
// A Region is laid out as a data part followed by a code part, each rounded
// up to whole pages. The data part is always readable and writable. The
// code part is either writable or executable, never both: writes must be
// bracketed by BeginWrite and EndWrite.
package execmem

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

var (
	// ErrUnsupported is returned on platforms without an executable memory
	// implementation.
	ErrUnsupported = errors.New("execmem: executable memory not supported on this platform")
	// ErrWriteActive is returned by BeginWrite when a write bracket is already open.
	ErrWriteActive = errors.New("execmem: write already in progress")
	// ErrWriteInactive is returned by EndWrite without a matching BeginWrite.
	ErrWriteInactive = errors.New("execmem: no write in progress")
	// ErrReleased is returned by operations on a released region.
	ErrReleased = errors.New("execmem: region released")
)

// Region is a named mapping holding a data part and a code part.
type Region struct {
	name     string
	mem      []byte
	dataSize int

	mu       sync.Mutex
	writing  bool
	released bool
}

// Reserve maps a region with at least dataSize bytes of data and codeSize
// bytes of code. The code part starts out executable.
func Reserve(name string, dataSize, codeSize int) (*Region, error) {
	if dataSize < 0 || codeSize <= 0 {
		return nil, fmt.Errorf("execmem: invalid sizes for %q: data %d, code %d", name, dataSize, codeSize)
	}
	page := pageSize()
	dataSize = roundUp(dataSize, page)
	codeSize = roundUp(codeSize, page)

	mem, err := mapRegion(dataSize + codeSize)
	if err != nil {
		return nil, fmt.Errorf("execmem: mapping %q (%d bytes): %w", name, dataSize+codeSize, err)
	}
	r := &Region{name: name, mem: mem, dataSize: dataSize}
	if err := protect(r.Code(), false); err != nil {
		_ = unmapRegion(mem)
		return nil, fmt.Errorf("execmem: protecting %q: %w", name, err)
	}
	return r, nil
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}

// Name returns the label the region was reserved with.
func (r *Region) Name() string { return r.name }

// Addr returns the address of the first byte of the region.
func (r *Region) Addr() uintptr { return uintptr(unsafe.Pointer(&r.mem[0])) }

// Size returns the total mapped size in bytes.
func (r *Region) Size() int { return len(r.mem) }

// Bytes returns the whole mapping. Writes to the code part are only legal
// between BeginWrite and EndWrite.
func (r *Region) Bytes() []byte { return r.mem }

// Data returns the always-writable data part.
func (r *Region) Data() []byte { return r.mem[:r.dataSize:r.dataSize] }

// Code returns the code part.
func (r *Region) Code() []byte { return r.mem[r.dataSize:] }

// CodeStart returns the offset of the code part within Bytes.
func (r *Region) CodeStart() int { return r.dataSize }

// CodeAddr returns the address of the first byte of the code part.
func (r *Region) CodeAddr() uintptr { return r.Addr() + uintptr(r.dataSize) }

// Writable reports whether a write bracket is open.
func (r *Region) Writable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writing
}

// BeginWrite makes the code part writable and non-executable.
func (r *Region) BeginWrite() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.released:
		return ErrReleased
	case r.writing:
		return ErrWriteActive
	}
	if err := protect(r.Code(), true); err != nil {
		return fmt.Errorf("execmem: %s: begin write: %w", r.name, err)
	}
	r.writing = true
	return nil
}

// EndWrite makes the code part executable again. Instructions fetched
// after EndWrite returns observe every byte written inside the bracket.
func (r *Region) EndWrite() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.released:
		return ErrReleased
	case !r.writing:
		return ErrWriteInactive
	}
	code := r.Code()
	start := r.CodeAddr()
	flushICache(start, start+uintptr(len(code)))
	if err := protect(code, false); err != nil {
		return fmt.Errorf("execmem: %s: end write: %w", r.name, err)
	}
	r.writing = false
	return nil
}

// Release unmaps the region. Code in it must no longer be running.
func (r *Region) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.released = true
	err := unmapRegion(r.mem)
	r.mem = nil
	return err
}
