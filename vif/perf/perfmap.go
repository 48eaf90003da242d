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

package perf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// PerfMap writes symbol lines in the format Linux perf reads from
// /tmp/perf-<pid>.map: "<start hex> <size hex> <name>".
type PerfMap struct {
	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

// DefaultPerfMapPath returns the file perf looks up for this process.
func DefaultPerfMapPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("perf-%d.map", os.Getpid()))
}

// OpenPerfMap opens path for appending, creating it if needed.
func OpenPerfMap(path string) (*PerfMap, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("perf: open map: %w", err)
	}
	return &PerfMap{w: f, f: f}, nil
}

// NewPerfMap returns a PerfMap writing to w.
func NewPerfMap(w io.Writer) *PerfMap {
	return &PerfMap{w: w}
}

// Register appends one symbol line.
func (p *PerfMap) Register(start uintptr, size int, label string) error {
	if size <= 0 {
		return fmt.Errorf("perf: empty range for %q", label)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.w, "%x %x %s\n", start, size, label); err != nil {
		return fmt.Errorf("perf: write map entry %q: %w", label, err)
	}
	return nil
}

// Close closes the underlying file if OpenPerfMap created it.
func (p *PerfMap) Close() error {
	if p.f == nil {
		return nil
	}
	return p.f.Close()
}
