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
)

// newIterateCmd builds the "iterate" subcommand: build the index and dump
// every entry it holds, one line per entry.
func newIterateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iterate [paths...]",
		Short: "Dump every entry in the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			flags := cfg.Flags()
			if flags == 0 {
				flags = dwarfindex.Types | dwarfindex.Variables | dwarfindex.Enumerators | dwarfindex.Functions
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
				return fmt.Errorf("update failed: %w", err)
			}

			it := ix.IterAll()
			for {
				e, ok := it.Next()
				if !ok {
					break
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Tag, e.Name, e.File().Path())
			}
			return nil
		},
	}
	return cmd
}
