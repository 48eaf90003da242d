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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/ajroetker/go-vifjit/logging"
	"github.com/ajroetker/go-vifjit/vif"
	"github.com/ajroetker/go-vifjit/vif/emit"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var outputFormats = []string{outputText, outputJSON, outputYAML}

// globalParams are the flags shared by every command.
type globalParams struct {
	target    string
	logLevel  string
	logFormat string
	logger    logging.Logger
}

// resolveTarget returns the flag's target, or the detected one when the
// flag is empty.
func (p *globalParams) resolveTarget() (emit.Target, error) {
	if p.target == "" {
		return vif.CurrentTarget(), nil
	}
	t, err := emit.ParseTarget(p.target)
	if err != nil {
		return emit.TargetNone, err
	}
	return t, nil
}

func newRootCommand() *cobra.Command {
	g := &globalParams{logger: logging.NewNoOpLogger()}

	root := &cobra.Command{
		Use:           "vifgen",
		Short:         "Inspect and verify generated VIF unpack handlers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkEnvironmentVariables(cmd.Root()); err != nil {
				return err
			}
			if err := checkEnvironmentVariables(cmd); err != nil {
				return err
			}
			lvl, err := logging.GetLevel(g.logLevel)
			if err != nil {
				return err
			}
			l := logging.New()
			l.SetOutput(cmd.ErrOrStderr())
			l.SetFormatter(logging.GetFormatter(g.logFormat))
			l.SetLevel(lvl)
			g.logger = l
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.target, "target", "", "code generation target (sse2, sse4.1, neon); detected when empty")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format (text, json, json-pretty)")

	root.AddCommand(
		newCapsCommand(g),
		newTableCommand(g),
		newDumpCommand(g),
		newVerifyCommand(g),
	)
	return root
}

func addOutputFlag(cmd *cobra.Command, output *string) {
	cmd.Flags().StringVarP(output, "output", "o", outputText, fmt.Sprintf("output format %v", outputFormats))
}

func checkOutput(output string) error {
	if !slices.Contains(outputFormats, output) {
		return fmt.Errorf("unknown output format %q, want one of %v", output, outputFormats)
	}
	return nil
}

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, output string, v any, text func() error) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text()
	}
}

var titleCase = cases.Title(language.English)

// headers title-cases table column names.
func headers(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = titleCase.String(n)
	}
	return out
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
