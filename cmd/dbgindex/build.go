// This file is part of dwarfindex.
//
// dwarfindex is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// dwarfindex is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with dwarfindex.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jetsetilly/dwarfindex"
	"github.com/jetsetilly/dwarfindex/internal/config"
	"github.com/jetsetilly/dwarfindex/internal/ixlog"
)

// newBuildCmd builds the "build" subcommand: open every path (or --paths
// entry) and glob, run one Update, and report how much got indexed.
func newBuildCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [paths...]",
		Short: "Open ELF object files and build the DWARF name index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			flags := cfg.Flags()
			if flags == 0 {
				flags = dwarfindex.Types
			}

			paths := append(append([]string{}, cfg.Paths...), args...)
			if len(paths) == 0 {
				return fmt.Errorf("no paths given: pass object files as arguments or set --paths")
			}

			ix, err := dwarfindex.New(flags)
			if err != nil {
				return err
			}
			defer ix.Close()

			for _, pattern := range paths {
				if _, err := ix.OpenGlob(pattern); err != nil {
					return fmt.Errorf("opening %q: %w", pattern, err)
				}
			}

			if err := ix.Update(context.Background()); err != nil {
				for _, line := range ixlog.Recent(20) {
					fmt.Fprintln(cmd.ErrOrStderr(), line)
				}
				return fmt.Errorf("update failed: %w", err)
			}

			n := 0
			it := ix.IterAll()
			for {
				if _, ok := it.Next(); !ok {
					break
				}
				n++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d entries\n", n)
			return nil
		},
	}
	return cmd
}
