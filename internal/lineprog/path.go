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

package lineprog

import "strings"

// splitCanonical splits a directory path into its canonical path
// components: consecutive slashes collapse, single-dot components
// vanish, and ".." consumes a prior component when one is available.
// The result is ordered root-to-leaf, the same order hashDirComponents
// concatenates them in. A leading slash on an absolute path is preserved
// as an empty leading component so "/" hashes distinctly from "".
func splitCanonical(path string) []string {
	if path == "" {
		return nil
	}
	absolute := strings.HasPrefix(path, "/")
	raw := strings.Split(path, "/")

	var out []string
	for _, c := range raw {
		switch c {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, c)
		}
	}
	if absolute {
		out = append([]string{""}, out...)
	}
	return out
}
