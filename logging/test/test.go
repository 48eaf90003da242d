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

// Package test provides a Logger that buffers entries for assertions.
//
// Adapted from the Open Policy Agent logging/test package (Apache-2.0).
package test

import (
	"fmt"
	"maps"
	"sync"

	"github.com/ajroetker/go-vifjit/logging"
)

// LogEntry represents a log message.
type LogEntry struct {
	Level   logging.Level
	Fields  map[string]any
	Message string
}

// Logger implementation that buffers messages for test purposes.
type Logger struct {
	level   logging.Level
	fields  map[string]any
	entries *[]LogEntry
	mtx     *sync.Mutex
}

// New instantiates new Logger.
func New() *Logger {
	return &Logger{
		level:   logging.Debug,
		entries: &[]LogEntry{},
		mtx:     &sync.Mutex{},
	}
}

// WithFields returns a logger sharing this logger's buffer.
func (l *Logger) WithFields(fields map[string]any) logging.Logger {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	flds := make(map[string]any, len(l.fields)+len(fields))
	maps.Copy(flds, l.fields)
	maps.Copy(flds, fields)
	return &Logger{level: l.level, fields: flds, entries: l.entries, mtx: l.mtx}
}

// Debug buffers a log message.
func (l *Logger) Debug(f string, a ...any) { l.append(logging.Debug, f, a...) }

// Info buffers a log message.
func (l *Logger) Info(f string, a ...any) { l.append(logging.Info, f, a...) }

// Error buffers a log message.
func (l *Logger) Error(f string, a ...any) { l.append(logging.Error, f, a...) }

// Warn buffers a log message.
func (l *Logger) Warn(f string, a ...any) { l.append(logging.Warn, f, a...) }

// SetLevel set log level.
func (l *Logger) SetLevel(level logging.Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.level = level
}

// GetLevel get log level.
func (l *Logger) GetLevel() logging.Level {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.level
}

// Entries returns a copy of the buffered log entries.
func (l *Logger) Entries() []LogEntry {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return append([]LogEntry(nil), *l.entries...)
}

// Count returns how many buffered entries are at level lvl.
func (l *Logger) Count(lvl logging.Level) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == lvl {
			n++
		}
	}
	return n
}

func (l *Logger) append(lvl logging.Level, f string, a ...any) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if lvl > l.level {
		return
	}
	*l.entries = append(*l.entries, LogEntry{
		Level:   lvl,
		Fields:  l.fields,
		Message: fmt.Sprintf(f, a...),
	})
}
