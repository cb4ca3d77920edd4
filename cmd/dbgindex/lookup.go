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
	"debug/dwarf"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jetsetilly/dwarfindex"
	"github.com/jetsetilly/dwarfindex/internal/config"
)

// tagByName maps the human-readable tag names accepted by --tag to their
// debug/dwarf constant, accepting both the full DWARF name and the handful
// of short aliases people actually type.
func tagByName(name string) (dwarf.Tag, bool) {
	switch name {
	case "base":
		return dwarf.TagBaseType, true
	case "class":
		return dwarf.TagClassType, true
	case "enum", "enumeration":
		return dwarf.TagEnumerationType, true
	case "enumerator":
		return dwarf.TagEnumerator, true
	case "struct", "structure":
		return dwarf.TagStructType, true
	case "typedef":
		return dwarf.TagTypedef, true
	case "union":
		return dwarf.TagUnionType, true
	case "variable":
		return dwarf.TagVariable, true
	case "function", "subprogram":
		return dwarf.TagSubprogram, true
	default:
		return 0, false
	}
}

// newLookupCmd builds the "lookup" subcommand: build the index from
// scratch (same open/update as "build"), then print every entry filed
// under a given name.
func newLookupCmd(v *viper.Viper) *cobra.Command {
	var tagNames []string

	cmd := &cobra.Command{
		Use:   "lookup <name> [paths...]",
		Short: "Look up every indexed entry for a name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			flags := cfg.Flags()
			if flags == 0 {
				flags = dwarfindex.Types | dwarfindex.Variables | dwarfindex.Enumerators | dwarfindex.Functions
			}

			paths := append(append([]string{}, cfg.Paths...), args[1:]...)
			if len(paths) == 0 {
				return fmt.Errorf("no paths given: pass object files as arguments or set --paths")
			}

			var tags dwarfindex.TagSet
			if len(tagNames) > 0 {
				var ts []dwarf.Tag
				for _, n := range tagNames {
					t, ok := tagByName(n)
					if !ok {
						return fmt.Errorf("unknown tag %q", n)
					}
					ts = append(ts, t)
				}
				tags = dwarfindex.Tags(ts...)
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

			it := ix.Iter(name, tags)
			n := 0
			for {
				e, ok := it.Next()
				if !ok {
					break
				}
				n++
				ref := e.Ref()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%#x\t%s\n", e.Tag, ref.File.Path(), e.FileNameHash, fmt.Sprintf("offset=%d", ref.Offset))
			}
			if n == 0 {
				return fmt.Errorf("no entries found for %q", name)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tagNames, "tag", nil, "restrict results to these tags (base, class, enum, enumerator, struct, typedef, union, variable, function); default: all")
	return cmd
}
