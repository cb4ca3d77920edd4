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

// Package config is cmd/dbgindex's layered configuration: cobra flags,
// overridable by a YAML/TOML config file and DBGINDEX_* environment
// variables via viper, with flags bound into viper so every source
// resolves through one lookup. The dwarfindex library package itself
// takes no dependency on cobra or viper - this is CLI-only ambient
// tooling.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jetsetilly/dwarfindex/internal/ixflags"
)

// Config is everything a dbgindex subcommand needs to build an index.
type Config struct {
	Types       bool
	Variables   bool
	Enumerators bool
	Functions   bool
	Paths       []string
	LogLevel    string
}

// BindFlags registers the index-selection and path flags shared by every
// dbgindex subcommand onto cmd, and binds each into v (flags first,
// viper.BindPFlag second, then environment variables) so a config file
// or DBGINDEX_* environment variable can supply the same value without
// the command needing to know which source won.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.Bool("types", false, "index types (base, class, enumeration, structure, typedef, union)")
	flags.Bool("variables", false, "index variables")
	flags.Bool("enums", false, "index enumerators")
	flags.Bool("funcs", false, "index subprograms")
	flags.StringSlice("paths", nil, "ELF object file paths or globs to index")
	flags.String("log-level", "info", "log level (debug, info, warn, error), stored in the config; stderr logging stays at info")

	for _, name := range []string{"types", "variables", "enums", "funcs", "paths", "log-level"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	v.SetEnvPrefix("DBGINDEX")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
}

// Load resolves a Config from v: bound flags, an optional config file (if
// the caller pointed v at one via SetConfigFile), then environment
// variables - viper's own precedence order. A missing config file is not
// an error; an unreadable one (bad syntax) is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return &Config{
		Types:       v.GetBool("types"),
		Variables:   v.GetBool("variables"),
		Enumerators: v.GetBool("enums"),
		Functions:   v.GetBool("funcs"),
		Paths:       v.GetStringSlice("paths"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}

// Flags converts the configured index selection into ixflags.Flags.
// Callers should fall back to a sensible default (e.g. Types) if the
// result has no bits set, since dwarfindex.New rejects an empty selection.
func (c *Config) Flags() ixflags.Flags {
	var f ixflags.Flags
	if c.Types {
		f |= ixflags.Types
	}
	if c.Variables {
		f |= ixflags.Variables
	}
	if c.Enumerators {
		f |= ixflags.Enumerators
	}
	if c.Functions {
		f |= ixflags.Functions
	}
	return f
}
