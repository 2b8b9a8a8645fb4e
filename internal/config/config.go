// Package config loads CLI settings from kestrel.yml, KESTREL_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the optional config file looked up in the project root,
// without extension.
const FileName = "kestrel"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KESTREL"

// Config keys
const (
	KeyFramework      = "framework"
	KeyPackageManager = "package_manager"
	KeyEnvFile        = "env_file"
	KeyBackend        = "backend"
	KeyORM            = "orm"
	KeyVerbose        = "verbose"
)

// flagNames maps config keys to the flags that override them.
var flagNames = map[string]string{
	KeyPackageManager: "package-manager",
	KeyBackend:        "backend",
	KeyORM:            "orm",
	KeyVerbose:        "verbose",
}

// Config holds the resolved settings for one run.
type Config struct {
	// Framework is the dependency a project must declare. Defaults to "next".
	Framework string
	// PackageManager forces a package manager; empty means detect from the
	// lockfile.
	PackageManager string
	// EnvFile replaces the reserved name the env sample is staged as; empty
	// keeps the catalog's.
	EnvFile string
	// Backend and ORM preselect answers; both set means no prompt.
	Backend string
	ORM     string
	Verbose bool

	// File is the config file that was read, empty if none.
	File string
}

// Load reads configuration for the project at dir. A missing kestrel.yml is
// not an error. flags may be nil; flags that exist and were set override
// everything else.
func Load(fsys afero.Fs, dir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetFs(fsys)

	v.SetDefault(KeyFramework, "next")
	v.SetDefault(KeyPackageManager, "")
	v.SetDefault(KeyEnvFile, "")
	v.SetDefault(KeyBackend, "")
	v.SetDefault(KeyORM, "")
	v.SetDefault(KeyVerbose, false)

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	// Enable environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagNames {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s.yml: %w", FileName, err)
		}
	}

	cfg := &Config{
		Framework:      strings.TrimSpace(v.GetString(KeyFramework)),
		PackageManager: strings.TrimSpace(v.GetString(KeyPackageManager)),
		EnvFile:        strings.TrimSpace(v.GetString(KeyEnvFile)),
		Backend:        strings.TrimSpace(v.GetString(KeyBackend)),
		ORM:            strings.TrimSpace(v.GetString(KeyORM)),
		Verbose:        v.GetBool(KeyVerbose),
		File:           v.ConfigFileUsed(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Framework == "" {
		return errors.New("framework must not be empty")
	}
	if strings.ContainsAny(c.EnvFile, `/\`) || c.EnvFile == "." || c.EnvFile == ".." {
		return fmt.Errorf("env_file %q must be a file name in the project root", c.EnvFile)
	}
	return nil
}

// Interactive reports whether the operator still has to choose a backend or
// an ORM.
func (c *Config) Interactive() bool {
	return c.Backend == "" || c.ORM == ""
}
