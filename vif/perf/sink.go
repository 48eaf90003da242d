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

// Package perf receives registrations of generated code ranges so that
// profilers and monitoring can attribute samples and size to them.
package perf

import (
	"errors"
	"time"
)

// Sink accepts a code range registration. Failures are reported but are
// never fatal to code generation.
type Sink interface {
	Register(start uintptr, size int, label string) error
}

// BuildObserver is implemented by sinks that also want generation timings.
type BuildObserver interface {
	ObserveBuild(target string, handlers int, elapsed time.Duration)
}

// Discard is a Sink that drops every registration.
var Discard Sink = discard{}

type discard struct{}

func (discard) Register(uintptr, int, string) error { return nil }

// Multi fans registrations out to every sink and joins their errors.
type Multi []Sink

// Register forwards to every sink, even after one fails.
func (m Multi) Register(start uintptr, size int, label string) error {
	var errs []error
	for _, s := range m {
		if err := s.Register(start, size, label); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ObserveBuild forwards to every sink that is a BuildObserver.
func (m Multi) ObserveBuild(target string, handlers int, elapsed time.Duration) {
	for _, s := range m {
		if o, ok := s.(BuildObserver); ok {
			o.ObserveBuild(target, handlers, elapsed)
		}
	}
}
