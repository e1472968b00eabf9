// Package config loads revup's layered configuration.
//
// Values merge from lowest to highest precedence:
// built-in defaults, the repository file (<root>/.revupconfig),
// the user file ($REVUP_CONFIG_PATH or ~/.revupconfig),
// and finally command-line flags.
//
// Files are ini-style: sections name commands, options use
// underscores where the matching flag uses dashes, and booleans are
// "true"/"false". For example, 'revup upload --skip-confirm' persists
// as:
//
//	[upload]
//	skip_confirm = true
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/ini.v1"
)

// EnvConfigPath overrides the location of the user configuration file.
const EnvConfigPath = "REVUP_CONFIG_PATH"

// defaults are the built-in values for options
// that must always resolve.
var defaults = map[string]map[string]string{
	"revup": {
		"remote_name": "origin",
		"main_branch": "main",
	},
	"upload": {
		"branch_format":      "user+branch",
		"auto_add_users":     "no",
		"self_authored_only": "true",
		"update_pr_body":     "true",
		"review_graph":       "true",
		"patchsets":          "true",
	},
}

// Config is the merged file configuration.
type Config struct {
	layers []*ini.File // highest precedence first
}

// Load reads and merges the configuration files for a repository.
// Missing files are fine; malformed files are errors.
func Load(repoRoot string) (*Config, error) {
	userPath := os.Getenv(EnvConfigPath)
	if userPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			userPath = filepath.Join(home, ".revupconfig")
		}
	}

	var layers []*ini.File
	for _, path := range []string{
		userPath,
		filepath.Join(repoRoot, ".revupconfig"),
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}

		f, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load %v: %w", path, err)
		}
		layers = append(layers, f)
	}

	return &Config{layers: layers}, nil
}

// Get reports the configured value for [section] key,
// or "" if it is not set anywhere.
func (c *Config) Get(section, key string) string {
	for _, layer := range c.layers {
		if sec := layer.Section(section); sec.HasKey(key) {
			return sec.Key(key).String()
		}
	}
	if vals, ok := defaults[section]; ok {
		return vals[key]
	}
	return ""
}

// Resolver adapts the configuration into a kong flag resolver
// so file values become flag defaults. Flags given on the command
// line always win.
func (c *Config) Resolver() kong.Resolver {
	return kong.ResolverFunc(func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		section := "revup"
		if parent != nil && parent.Node() != nil && parent.Node().Type == kong.CommandNode {
			section = parent.Node().Name
		}

		key := strings.ReplaceAll(flag.Name, "-", "_")
		value := c.Get(section, key)
		if value == "" {
			return nil, nil
		}

		if flag.IsBool() {
			switch strings.ToLower(value) {
			case "true", "false":
			default:
				return nil, fmt.Errorf("[%v] %v: boolean must be true or false, got %q",
					section, key, value)
			}
		}
		return value, nil
	})
}
