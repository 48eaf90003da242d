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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports registered code sizes and build timings to Prometheus.
type Metrics struct {
	codeBytes     *prometheus.GaugeVec
	registrations *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	handlers      *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		codeBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "vifjit",
				Name:      "code_bytes",
				Help:      "Size of registered generated code ranges.",
			},
			[]string{"label"},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vifjit",
				Name:      "registrations_total",
				Help:      "Number of code range registrations.",
			},
			[]string{"label"},
		),
		buildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vifjit",
				Name:      "build_duration_seconds",
				Help:      "Time to generate the unpack handler table.",
				Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
			},
			[]string{"target"},
		),
		handlers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "vifjit",
				Name:      "handlers",
				Help:      "Number of non-null handlers in the last built table.",
			},
			[]string{"target"},
		),
	}
	if reg != nil {
		for _, c := range m.Collectors() {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.codeBytes, m.registrations, m.buildDuration, m.handlers}
}

// Register records the size of the range under its label.
func (m *Metrics) Register(_ uintptr, size int, label string) error {
	m.codeBytes.WithLabelValues(label).Set(float64(size))
	m.registrations.WithLabelValues(label).Inc()
	return nil
}

// ObserveBuild records one table build.
func (m *Metrics) ObserveBuild(target string, handlers int, elapsed time.Duration) {
	m.buildDuration.WithLabelValues(target).Observe(elapsed.Seconds())
	m.handlers.WithLabelValues(target).Set(float64(handlers))
}
