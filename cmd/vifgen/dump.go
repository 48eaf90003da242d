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
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ajroetker/go-vifjit/logging"
	"github.com/ajroetker/go-vifjit/vif"
	"github.com/ajroetker/go-vifjit/vif/emit"
)

type dumpParams struct {
	unsigned bool
	masked   bool
	phase    int
	raw      string
}

func newDumpCommand(g *globalParams) *cobra.Command {
	params := dumpParams{}
	cmd := &cobra.Command{
		Use:   "dump [FORMAT]",
		Short: "Print the machine code of handlers",
		Long: `Print the machine code of the handlers for FORMAT, one block per phase.
NEON code is listed as 32-bit instruction words, x86 code as bytes.

With --raw the complete code area is written to a file instead, for use with
a disassembler:

    $ vifgen dump --target neon --raw table.bin
    $ objdump -D -b binary -m aarch64 table.bin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := g.resolveTarget()
			if err != nil {
				return err
			}
			format := ""
			if len(args) == 1 {
				format = args[0]
			}
			return doDump(cmd.OutOrStdout(), params, target, format, g.logger)
		},
	}
	cmd.Flags().BoolVar(&params.unsigned, "unsigned", false, "dump the zero-extending variant")
	cmd.Flags().BoolVar(&params.masked, "masked", false, "dump the masked variant")
	cmd.Flags().IntVar(&params.phase, "phase", -1, "dump only this phase (0-3); all phases when negative")
	cmd.Flags().StringVar(&params.raw, "raw", "", "write the whole code area to this file")
	return cmd
}

func doDump(w io.Writer, params dumpParams, target emit.Target, format string, logger logging.Logger) error {
	tbl, err := buildInMemory(target, logger)
	if err != nil {
		return err
	}
	if params.raw != "" {
		if err := writeFile(params.raw, tbl.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %d bytes of %s code to %s\n", len(tbl.Bytes()), target, params.raw)
		return nil
	}

	if format == "" {
		return errors.New("a format is required unless --raw is given")
	}
	f, err := vif.ParseFormat(format)
	if err != nil {
		return err
	}
	if f.Reserved() {
		return fmt.Errorf("%s is reserved and has no handlers", f)
	}
	if params.phase >= vif.NumPhases {
		return fmt.Errorf("phase %d out of range [0,%d)", params.phase, vif.NumPhases)
	}

	phases := []int{0, 1, 2, 3}
	if params.phase >= 0 {
		phases = []int{params.phase}
	}
	for _, p := range phases {
		k := vif.Key{Format: f, Unsigned: params.unsigned, Masked: params.masked, Phase: p}
		off, _, _ := tbl.Entry(k)
		fmt.Fprintf(w, "%s (%s) at +%#x:\n", k, target, off)
		writeCode(w, target, off, tbl.Code(k))
		fmt.Fprintln(w)
	}
	return nil
}

func writeCode(w io.Writer, target emit.Target, base int, code []byte) {
	if target != emit.TargetNEON {
		io.WriteString(w, hex.Dump(code))
		return
	}
	for i := 0; i+4 <= len(code); i += 4 {
		fmt.Fprintf(w, "%08x  %08x\n", base+i, binary.LittleEndian.Uint32(code[i:]))
	}
}
