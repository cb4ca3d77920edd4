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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jetsetilly/dwarfindex/internal/config"
)

// newRootCmd builds the dbgindex command tree. Each invocation gets its own
// *viper.Viper rather than viper's package-level singleton, so tests (and
// any future embedding of this command tree) don't share mutable global
// config state across commands.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "dbgindex",
		Short:         "Build and query a parallel DWARF name index over ELF object files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, flags and DBGINDEX_* env vars only)")

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
	})

	// Bound once, on the root's persistent flag set, so every subcommand
	// inherits the same --types/--variables/--enums/--funcs/--paths/
	// --log-level flags and the same viper bindings; binding them again
	// per-subcommand would just make the last bound command's flags win.
	config.BindFlags(root, v)

	root.AddCommand(newBuildCmd(v), newLookupCmd(v), newIterateCmd(v))
	return root
}
