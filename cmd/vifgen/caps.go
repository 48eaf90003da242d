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
	"runtime"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"

	"github.com/ajroetker/go-vifjit/vif"
	"github.com/ajroetker/go-vifjit/vif/emit"
)

type capsParams struct {
	output string
}

type targetCaps struct {
	Name       string `json:"name" yaml:"name"`
	Arch       string `json:"arch" yaml:"arch"`
	Native     bool   `json:"native" yaml:"native"`
	Executable bool   `json:"executable" yaml:"executable"`
	Selected   bool   `json:"selected" yaml:"selected"`
}

type feature struct {
	Name    string `json:"name" yaml:"name"`
	Present bool   `json:"present" yaml:"present"`
}

type capsReport struct {
	OS       string       `json:"os" yaml:"os"`
	Arch     string       `json:"arch" yaml:"arch"`
	Detected string       `json:"detected" yaml:"detected"`
	Override string       `json:"override,omitempty" yaml:"override,omitempty"`
	Features []feature    `json:"features" yaml:"features"`
	Targets  []targetCaps `json:"targets" yaml:"targets"`
}

func newCapsCommand(g *globalParams) *cobra.Command {
	params := capsParams{}
	cmd := &cobra.Command{
		Use:   "caps",
		Short: "Print CPU features and the code generation targets they allow",
		Long: `Print the CPU features relevant to code generation and, for every
target, whether its code can run in this process.

The selected target is the one tables are built for by default. It can be
overridden with VIFJIT_TARGET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkOutput(params.output); err != nil {
				return err
			}
			selected, err := g.resolveTarget()
			if err != nil {
				return err
			}
			return doCaps(cmd.OutOrStdout(), params, selected)
		},
	}
	addOutputFlag(cmd, &params.output)
	return cmd
}

func cpuFeatures() []feature {
	switch runtime.GOARCH {
	case "amd64":
		return []feature{
			{"sse2", cpu.X86.HasSSE2},
			{"sse3", cpu.X86.HasSSE3},
			{"ssse3", cpu.X86.HasSSSE3},
			{"sse4.1", cpu.X86.HasSSE41},
			{"sse4.2", cpu.X86.HasSSE42},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
		}
	case "arm64":
		return []feature{
			{"asimd", cpu.ARM64.HasASIMD},
			{"fp", cpu.ARM64.HasFP},
			{"asimdhp", cpu.ARM64.HasASIMDHP},
			{"sve", cpu.ARM64.HasSVE},
		}
	}
	return nil
}

func capsFor(selected emit.Target) capsReport {
	r := capsReport{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Detected: vif.CurrentTarget().String(),
		Features: cpuFeatures(),
	}
	if t, ok := vif.TargetEnv(); ok {
		r.Override = t.String()
	}
	for _, t := range emit.Targets() {
		r.Targets = append(r.Targets, targetCaps{
			Name:       t.String(),
			Arch:       t.Arch(),
			Native:     t.Native(),
			Executable: vif.CanExecute(t),
			Selected:   t == selected,
		})
	}
	return r
}

func doCaps(w io.Writer, params capsParams, selected emit.Target) error {
	r := capsFor(selected)
	return render(w, params.output, r, func() error {
		fmt.Fprintf(w, "Platform: %s/%s\nDetected: %s\n", r.OS, r.Arch, r.Detected)
		if r.Override != "" {
			fmt.Fprintf(w, "Override: %s\n", r.Override)
		}
		fmt.Fprintln(w)

		if len(r.Features) > 0 {
			ft := tablewriter.NewWriter(w)
			ft.SetHeader(headers("feature", "present"))
			ft.SetAutoFormatHeaders(false)
			ft.SetAlignment(tablewriter.ALIGN_LEFT)
			for _, f := range r.Features {
				ft.Append([]string{f.Name, strconv.FormatBool(f.Present)})
			}
			ft.Render()
			fmt.Fprintln(w)
		}

		tt := tablewriter.NewWriter(w)
		tt.SetHeader(headers("target", "arch", "native", "executable", "selected"))
		tt.SetAutoFormatHeaders(false)
		tt.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, t := range r.Targets {
			tt.Append([]string{t.Name, t.Arch, strconv.FormatBool(t.Native), strconv.FormatBool(t.Executable), mark(t.Selected)})
		}
		tt.Render()
		return nil
	})
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}
