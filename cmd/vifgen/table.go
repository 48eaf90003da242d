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
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ajroetker/go-vifjit/logging"
	"github.com/ajroetker/go-vifjit/vif"
	"github.com/ajroetker/go-vifjit/vif/emit"
)

type tableParams struct {
	output string
	format string
	all    bool
}

type handlerRow struct {
	Index    int    `json:"index" yaml:"index"`
	Format   string `json:"format" yaml:"format"`
	Unsigned bool   `json:"unsigned" yaml:"unsigned"`
	Masked   bool   `json:"masked" yaml:"masked"`
	Phase    int    `json:"phase" yaml:"phase"`
	Offset   int    `json:"offset" yaml:"offset"`
	Size     int    `json:"size" yaml:"size"`
	Null     bool   `json:"null,omitempty" yaml:"null,omitempty"`
}

type formatSummary struct {
	Format  string  `json:"format" yaml:"format"`
	Bytes   int     `json:"bytes" yaml:"bytes"`
	Average float64 `json:"average" yaml:"average"`
	Largest int     `json:"largest" yaml:"largest"`
}

type tableReport struct {
	Target    string          `json:"target" yaml:"target"`
	Handlers  int             `json:"handlers" yaml:"handlers"`
	CodeBytes int             `json:"code_bytes" yaml:"code_bytes"`
	Entries   []handlerRow    `json:"entries" yaml:"entries"`
	Formats   []formatSummary `json:"formats" yaml:"formats"`
}

func newTableCommand(g *globalParams) *cobra.Command {
	params := tableParams{}
	cmd := &cobra.Command{
		Use:   "table",
		Short: "List the handler table of a target",
		Long: `Generate the handler table for a target in ordinary memory and list
every entry with its offset and size, followed by per-format totals.

Any target can be listed on any host; nothing is executed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutput(params.output); err != nil {
				return err
			}
			target, err := g.resolveTarget()
			if err != nil {
				return err
			}
			return doTable(cmd.OutOrStdout(), params, target, g.logger)
		},
	}
	addOutputFlag(cmd, &params.output)
	cmd.Flags().StringVar(&params.format, "format", "", "only list handlers of this format (e.g. V3-16)")
	cmd.Flags().BoolVar(&params.all, "all", false, "include the null entries of reserved formats")
	return cmd
}

// buildInMemory generates a table for target into a fresh buffer.
func buildInMemory(target emit.Target, logger logging.Logger) (*vif.Table, error) {
	mem := make([]byte, vif.MaskTableSize+vif.CodeCapacity)
	return vif.Build(mem, vif.MaskTableSize, vif.WithTarget(target), vif.WithLogger(logger))
}

func tableFor(params tableParams, target emit.Target, logger logging.Logger) (tableReport, error) {
	var only *vif.Format
	if params.format != "" {
		f, err := vif.ParseFormat(params.format)
		if err != nil {
			return tableReport{}, err
		}
		only = &f
	}

	tbl, err := buildInMemory(target, logger)
	if err != nil {
		return tableReport{}, err
	}

	r := tableReport{
		Target:    target.String(),
		Handlers:  tbl.Count(),
		CodeBytes: len(tbl.Bytes()),
	}
	for i := 0; i < vif.NumKeys; i++ {
		k := vif.KeyAt(i)
		if only != nil && k.Format != *only {
			continue
		}
		off, size, ok := tbl.Entry(k)
		if !ok && !params.all {
			continue
		}
		r.Entries = append(r.Entries, handlerRow{
			Index:    i,
			Format:   k.Format.String(),
			Unsigned: k.Unsigned,
			Masked:   k.Masked,
			Phase:    k.Phase,
			Offset:   off,
			Size:     size,
			Null:     !ok,
		})
	}

	live := lo.Filter(r.Entries, func(h handlerRow, _ int) bool { return !h.Null })
	byFormat := lo.GroupBy(live, func(h handlerRow) string { return h.Format })
	for _, f := range vif.Formats() {
		rows, ok := byFormat[f.String()]
		if !ok {
			continue
		}
		total := lo.SumBy(rows, func(h handlerRow) int { return h.Size })
		largest := lo.MaxBy(rows, func(a, b handlerRow) bool { return a.Size > b.Size })
		r.Formats = append(r.Formats, formatSummary{
			Format:  f.String(),
			Bytes:   total,
			Average: float64(total) / float64(len(rows)),
			Largest: largest.Size,
		})
	}
	return r, nil
}

func doTable(w io.Writer, params tableParams, target emit.Target, logger logging.Logger) error {
	r, err := tableFor(params, target, logger)
	if err != nil {
		return err
	}
	return render(w, params.output, r, func() error {
		fmt.Fprintf(w, "Target: %s\nHandlers: %d\nCode bytes: %d\n\n", r.Target, r.Handlers, r.CodeBytes)

		et := tablewriter.NewWriter(w)
		et.SetHeader(headers("index", "format", "sign", "mode", "phase", "offset", "size"))
		et.SetAutoFormatHeaders(false)
		et.SetAlignment(tablewriter.ALIGN_RIGHT)
		for _, h := range r.Entries {
			sign, mode := "signed", "direct"
			if h.Unsigned {
				sign = "unsigned"
			}
			if h.Masked {
				mode = "masked"
			}
			offset, size := fmt.Sprintf("%#x", h.Offset), strconv.Itoa(h.Size)
			if h.Null {
				offset, size = "-", "null"
			}
			et.Append([]string{strconv.Itoa(h.Index), h.Format, sign, mode, strconv.Itoa(h.Phase), offset, size})
		}
		et.Render()
		fmt.Fprintln(w)

		ft := tablewriter.NewWriter(w)
		ft.SetHeader(headers("format", "bytes", "average", "largest"))
		ft.SetAutoFormatHeaders(false)
		ft.SetAlignment(tablewriter.ALIGN_RIGHT)
		formats := slices.Clone(r.Formats)
		slices.SortStableFunc(formats, func(a, b formatSummary) int { return b.Bytes - a.Bytes })
		for _, s := range formats {
			ft.Append([]string{s.Format, strconv.Itoa(s.Bytes), strconv.FormatFloat(s.Average, 'f', 1, 64), strconv.Itoa(s.Largest)})
		}
		ft.Render()
		return nil
	})
}
