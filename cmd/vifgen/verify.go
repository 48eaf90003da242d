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

package main

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-vifjit/logging"
	"github.com/ajroetker/go-vifjit/vif"
	"github.com/ajroetker/go-vifjit/vif/emit"
	"github.com/ajroetker/go-vifjit/vif/perf"
)

var errMismatch = errors.New("handlers disagree with the model")

type verifyParams struct {
	output     string
	iterations int
	elements   int
	seed       uint64
	perfMap    bool
	metrics    bool
}

type verifyResult struct {
	Format     string `json:"format" yaml:"format"`
	Unsigned   bool   `json:"unsigned" yaml:"unsigned"`
	Masked     bool   `json:"masked" yaml:"masked"`
	Elements   int    `json:"elements" yaml:"elements"`
	Mismatches int    `json:"mismatches" yaml:"mismatches"`
}

type metricSample struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

type verifyReport struct {
	Target  string         `json:"target" yaml:"target"`
	Seed    uint64         `json:"seed" yaml:"seed"`
	Results []verifyResult `json:"results" yaml:"results"`
	Failed  int            `json:"failed" yaml:"failed"`
	Metrics []metricSample `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

func newVerifyCommand(g *globalParams) *cobra.Command {
	params := verifyParams{}
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run every handler against the Go model on random data",
		Long: `Build an executable table and unpack random packets with every format,
signedness and mask mode, comparing each destination quadword with the
result of the Go model. Masked runs use random mask rows.

The target must be executable on this host. The command fails if any
quadword differs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutput(params.output); err != nil {
				return err
			}
			target, err := g.resolveTarget()
			if err != nil {
				return err
			}
			return doVerify(cmd.OutOrStdout(), params, target, g.logger)
		},
	}
	addOutputFlag(cmd, &params.output)
	cmd.Flags().IntVar(&params.iterations, "iterations", 16, "random packets per combination")
	cmd.Flags().IntVar(&params.elements, "elements", 37, "elements per packet")
	cmd.Flags().Uint64Var(&params.seed, "seed", 1, "random seed")
	cmd.Flags().BoolVar(&params.perfMap, "perf-map", false, "register the generated code in "+perf.DefaultPerfMapPath())
	cmd.Flags().BoolVar(&params.metrics, "metrics", false, "report code generation metrics")
	return cmd
}

func verifyTable(params verifyParams, target emit.Target, logger logging.Logger) (verifyReport, error) {
	if params.iterations < 1 || params.elements < 1 {
		return verifyReport{}, fmt.Errorf("iterations and elements must be positive")
	}

	var sinks perf.Multi
	reg := prometheus.NewRegistry()
	if params.metrics {
		m, err := perf.NewMetrics(reg)
		if err != nil {
			return verifyReport{}, err
		}
		sinks = append(sinks, m)
	}
	if params.perfMap {
		pm, err := perf.OpenPerfMap(perf.DefaultPerfMapPath())
		if err != nil {
			return verifyReport{}, err
		}
		defer pm.Close()
		sinks = append(sinks, pm)
	}

	tbl, err := vif.NewTable(vif.WithTarget(target), vif.WithLogger(logger), vif.WithSink(sinks))
	if err != nil {
		return verifyReport{}, err
	}
	defer tbl.Close()

	r := verifyReport{Target: target.String(), Seed: params.seed}
	rng := rand.New(rand.NewPCG(params.seed, params.seed^0x9e3779b97f4a7c15))
	for _, f := range vif.Formats() {
		for _, unsigned := range []bool{false, true} {
			for _, masked := range []bool{false, true} {
				res := verifyResult{Format: f.String(), Unsigned: unsigned, Masked: masked}
				for i := 0; i < params.iterations; i++ {
					res.Mismatches += verifyOnce(rng, tbl, f, unsigned, masked, params.elements)
					res.Elements += params.elements
				}
				r.Results = append(r.Results, res)
			}
		}
	}
	tbl.Masks().Reset()
	r.Failed = lo.CountBy(r.Results, func(res verifyResult) bool { return res.Mismatches > 0 })

	if params.metrics {
		families, err := reg.Gather()
		if err != nil {
			return verifyReport{}, err
		}
		for _, mf := range families {
			for _, m := range mf.GetMetric() {
				var v float64
				switch {
				case m.GetGauge() != nil:
					v = m.GetGauge().GetValue()
				case m.GetCounter() != nil:
					v = m.GetCounter().GetValue()
				case m.GetHistogram() != nil:
					v = m.GetHistogram().GetSampleSum()
				}
				r.Metrics = append(r.Metrics, metricSample{Name: mf.GetName(), Value: v})
			}
		}
	}
	return r, nil
}

// verifyOnce unpacks one random packet with the table and the model and
// returns the number of differing quadwords.
func verifyOnce(rng *rand.Rand, tbl *vif.Table, f vif.Format, unsigned, masked bool, n int) int {
	m := vif.NewModel()
	if masked {
		for p := range m.Masks {
			m.Masks[p] = vif.MaskTriple{
				Source:   randVec(rng),
				Dest:     randVec(rng),
				Override: randVec(rng),
			}
		}
		tbl.Masks().SetAll(m.Masks)
	}
	src := make([]byte, f.SourceSpan(n))
	for i := range src {
		src[i] = byte(rng.Uint32())
	}
	want := make([]vif.Vec, n)
	for i := range want {
		want[i] = randVec(rng)
	}
	got := slices.Clone(want)

	if err := m.Unpack(f, unsigned, masked, want, src); err != nil {
		return n
	}
	if err := tbl.Unpack(f, unsigned, masked, got, src); err != nil {
		return n
	}
	return lo.CountBy(lo.Range(n), func(i int) bool { return want[i] != got[i] })
}

func randVec(rng *rand.Rand) vif.Vec {
	return vif.Vec{rng.Uint32(), rng.Uint32(), rng.Uint32(), rng.Uint32()}
}

func doVerify(w io.Writer, params verifyParams, target emit.Target, logger logging.Logger) error {
	r, err := verifyTable(params, target, logger)
	if err != nil {
		return err
	}
	err = render(w, params.output, r, func() error {
		t := tablewriter.NewWriter(w)
		t.SetHeader(headers("format", "sign", "mode", "elements", "mismatches"))
		t.SetAutoFormatHeaders(false)
		t.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, res := range r.Results {
			sign, mode := "signed", "direct"
			if res.Unsigned {
				sign = "unsigned"
			}
			if res.Masked {
				mode = "masked"
			}
			t.Append([]string{res.Format, sign, mode, strconv.Itoa(res.Elements), strconv.Itoa(res.Mismatches)})
		}
		t.Render()
		for _, s := range r.Metrics {
			fmt.Fprintf(w, "%s %g\n", s.Name, s.Value)
		}
		fmt.Fprintf(w, "%s: %d of %d combinations failed\n", r.Target, r.Failed, len(r.Results))
		return nil
	})
	if err != nil {
		return err
	}
	if r.Failed > 0 {
		return fmt.Errorf("%w: %d combinations on %s", errMismatch, r.Failed, r.Target)
	}
	return nil
}
