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
	"github.com/ajroetker/go-vifjit/logging"
	"github.com/ajroetker/go-vifjit/vif/emit"
	"github.com/ajroetker/go-vifjit/vif/perf"
)

// Option configures Build and NewTable.
type Option func(*options)

type options struct {
	target    emit.Target
	targetSet bool
	logger    logging.Logger
	sink      perf.Sink
	symbols   bool
}

func newOptions(opts []Option) *options {
	o := &options{
		logger: logging.NewNoOpLogger(),
		sink:   perf.Discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	if !o.targetSet {
		o.target = CurrentTarget()
	}
	return o
}

// WithTarget generates code for t instead of CurrentTarget.
func WithTarget(t emit.Target) Option {
	return func(o *options) {
		o.target = t
		o.targetSet = true
	}
}

// WithLogger sets the logger for build diagnostics and reserved-format
// warnings.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSink registers the generated code range with s.
func WithSink(s perf.Sink) Option {
	return func(o *options) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithHandlerSymbols also registers every handler with the sink under its
// own label, in addition to the whole range.
func WithHandlerSymbols() Option {
	return func(o *options) {
		o.symbols = true
	}
}
