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
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/ajroetker/go-vifjit/logging"
	"github.com/ajroetker/go-vifjit/vif/emit"
	"github.com/ajroetker/go-vifjit/vif/execmem"
	"github.com/ajroetker/go-vifjit/vif/perf"
)

var (
	// ErrNoTarget is returned when no backend is selected for this host.
	ErrNoTarget = errors.New("vif: no code generation target")
	// ErrNotExecutable is returned when running handlers of a table whose
	// code cannot execute on this host.
	ErrNotExecutable = errors.New("vif: table is not executable")
	// ErrShortSource is returned by Unpack when the source is smaller than
	// the handlers will read.
	ErrShortSource = errors.New("vif: source buffer too short")
	// ErrHandlerTooLarge is returned when a handler outgrows MaxHandlerBytes.
	ErrHandlerTooLarge = errors.New("vif: handler exceeds size limit")
)

const (
	// RegionName labels the executable region and its profiler symbol.
	RegionName = "VIF Unpack"
	// EntryAlign is the alignment of every handler entry point.
	EntryAlign = 16
	// MaxHandlerBytes bounds one handler including entry padding.
	MaxHandlerBytes = 512
	// CodeCapacity is the code size reserved for a table.
	CodeCapacity = NumKeys * MaxHandlerBytes

	// maxHandlerInstructions bounds the longest generator path: masked
	// V4-5 on SSE2 emits 36 instructions.
	maxHandlerInstructions = 48

	// tableAlignment is the alignment marker table handlers are generated
	// with: the write lands inside a quadword.
	tableAlignment = 1
)

// Compilation fails here if a worst-case handler could overflow its share
// of CodeCapacity.
const _ = uint(MaxHandlerBytes - (maxHandlerInstructions*emit.MaxInstructionLen + EntryAlign))

// Handler is the entry point of a generated routine. Zero is the null
// handler of a reserved format.
type Handler uintptr

type entry struct {
	off  int // from the start of the buffer
	size int
}

// Table is the complete set of handlers for one target. It is immutable
// after construction and safe for concurrent use.
type Table struct {
	target    emit.Target
	mem       []byte
	codeStart int
	codeEnd   int
	entries   [NumKeys]entry
	count     int
	masks     *MaskTable
	region    *execmem.Region
	log       logging.Logger
}

// Build generates every handler into mem, starting at codeStart. The mask
// table occupies mem[0:MaskTableSize] and is reset to DefaultMasks.
//
// mem does not need to be executable; a table built this way can be
// inspected but not run. A failed build leaves mem unusable.
func Build(mem []byte, codeStart int, opts ...Option) (*Table, error) {
	return build(mem, codeStart, newOptions(opts))
}

func build(mem []byte, codeStart int, o *options) (*Table, error) {
	if o.target == emit.TargetNone {
		return nil, ErrNoTarget
	}
	if codeStart < MaskTableSize {
		return nil, fmt.Errorf("vif: code must start after the %d-byte mask table, got offset %d", MaskTableSize, codeStart)
	}
	masks, err := NewMaskTable(mem)
	if err != nil {
		return nil, err
	}
	masks.Reset()

	buf := emit.NewBuffer(mem, codeStart)
	e, err := emit.New(o.target, buf)
	if err != nil {
		return nil, err
	}
	g := &Generator{Emitter: e, MaskTable: 0, Logger: o.logger}
	t := &Table{
		target:    o.target,
		mem:       mem,
		codeStart: codeStart,
		masks:     masks,
		log:       o.logger,
	}

	for u := 0; u < 2; u++ {
		for m := 0; m < 2; m++ {
			for phase := 0; phase < NumPhases; phase++ {
				ctx := GenerationContext{
					Unsigned:  u == 1,
					Masked:    m == 1,
					Phase:     phase,
					Alignment: tableAlignment,
				}
				for f := Format(0); f < NumFormats; f++ {
					if f.Reserved() {
						continue
					}
					k := Key{Format: f, Unsigned: ctx.Unsigned, Masked: ctx.Masked, Phase: phase}
					e.Align(EntryAlign)
					start := buf.Pos()
					g.Generate(f, ctx, phase)
					if err := buf.Err(); err != nil {
						return nil, fmt.Errorf("vif: generating %s for %s: %w", k, o.target, err)
					}
					size := buf.Pos() - start
					if size > MaxHandlerBytes {
						return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrHandlerTooLarge, k, size, MaxHandlerBytes)
					}
					t.entries[k.Index()] = entry{off: start, size: size}
					t.count++
				}
			}
		}
	}
	t.codeEnd = buf.Pos()

	o.logger.WithFields(map[string]any{
		"target":   o.target.String(),
		"handlers": t.count,
		"bytes":    t.codeEnd - t.codeStart,
	}).Debug("vif: generated unpack handlers")
	return t, nil
}

// CanExecute reports whether code for target can run in this process: the
// architecture matches and the CPU has the instructions the backend emits.
func CanExecute(target emit.Target) bool {
	return target.Native() && hasFeatures(target) && execmem.Supported && execmem.CanCall
}

// NewTable reserves an executable region and builds an executable table.
// The whole generation pass runs inside one write bracket.
func NewTable(opts ...Option) (*Table, error) {
	o := newOptions(opts)
	if o.target == emit.TargetNone {
		return nil, ErrNoTarget
	}
	if !CanExecute(o.target) {
		return nil, fmt.Errorf("%w: %s code on %s/%s", ErrNotExecutable, o.target, runtime.GOOS, runtime.GOARCH)
	}

	r, err := execmem.Reserve(RegionName, MaskTableSize, CodeCapacity)
	if err != nil {
		return nil, err
	}
	if err := r.BeginWrite(); err != nil {
		_ = r.Release()
		return nil, err
	}
	began := time.Now()
	t, err := build(r.Bytes(), r.CodeStart(), o)
	if endErr := r.EndWrite(); err == nil {
		err = endErr
	}
	if err != nil {
		_ = r.Release()
		return nil, err
	}
	t.region = r
	t.register(o, time.Since(began))
	return t, nil
}

// register reports the code range to the sink. Failures are logged only.
func (t *Table) register(o *options, elapsed time.Duration) {
	base := t.region.Addr()
	if err := o.sink.Register(base+uintptr(t.codeStart), t.codeEnd-t.codeStart, RegionName); err != nil {
		t.log.Warn("vif: registering %s: %v", RegionName, err)
	}
	if o.symbols {
		for i, e := range t.entries {
			if e.size == 0 {
				continue
			}
			label := RegionName + " " + KeyAt(i).String()
			if err := o.sink.Register(base+uintptr(e.off), e.size, label); err != nil {
				t.log.Warn("vif: registering %s: %v", label, err)
			}
		}
	}
	if obs, ok := o.sink.(perf.BuildObserver); ok {
		obs.ObserveBuild(t.target.String(), t.count, elapsed)
	}
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the process-wide table for CurrentTarget, building it
// on first use.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = NewTable()
	})
	return defaultTable, defaultErr
}

// MustDefault is like Default but panics if the table cannot be built.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Target returns the backend the table was generated for.
func (t *Table) Target() emit.Target { return t.target }

// Executable reports whether the handlers can be called.
func (t *Table) Executable() bool { return t.region != nil }

// Count returns the number of non-null entries.
func (t *Table) Count() int { return t.count }

// Masks returns the mask table read by masked handlers, or nil once the
// table is closed.
func (t *Table) Masks() *MaskTable { return t.masks }

// Bytes returns all generated code, padding included.
func (t *Table) Bytes() []byte { return t.mem[t.codeStart:t.codeEnd] }

// Entry returns the offset from the start of Bytes and the size of the
// handler for k. ok is false for null entries.
func (t *Table) Entry(k Key) (offset, size int, ok bool) {
	if !k.Valid() {
		return 0, 0, false
	}
	e := t.entries[k.Index()]
	if e.size == 0 {
		return 0, 0, false
	}
	return e.off - t.codeStart, e.size, true
}

// Code returns the machine code of the handler for k, or nil.
func (t *Table) Code(k Key) []byte {
	if !k.Valid() {
		return nil
	}
	e := t.entries[k.Index()]
	if e.size == 0 {
		return nil
	}
	return t.mem[e.off : e.off+e.size]
}

// Resolve returns the entry point for a combination, or 0 for reserved
// formats and out of range arguments. Entry points of a table that is not
// Executable are addresses in ordinary memory and must not be called.
func (t *Table) Resolve(f Format, unsigned, masked bool, phase int) Handler {
	k := Key{Format: f, Unsigned: unsigned, Masked: masked, Phase: phase}
	if !k.Valid() {
		return 0
	}
	e := t.entries[k.Index()]
	if e.size == 0 {
		return 0
	}
	return Handler(uintptr(unsafe.Pointer(&t.mem[0])) + uintptr(e.off))
}

// Close releases the executable region. Handlers must not run afterwards.
// The table is left empty: every entry is null, Bytes is empty and Masks
// is nil. Tables returned by Default are never closed.
func (t *Table) Close() error {
	if t.region == nil {
		return nil
	}
	r := t.region
	t.region = nil
	t.mem, t.masks = nil, nil
	t.codeStart, t.codeEnd = 0, 0
	t.entries = [NumKeys]entry{}
	t.count = 0
	return r.Release()
}
