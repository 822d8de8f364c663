package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/kebairia/arkup/internal/target"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// SecretResolver turns a "vault:" DSN reference into a real DSN.
type SecretResolver interface {
	LookupDSN(ctx context.Context, ref string) (string, error)
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, and decodes into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any)
	for _, inc := range v.GetStringSlice("include") {
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
		Result:           c,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("%w: build decoder: %v", ErrLoadConfig, err)
	}
	if err := dec.Decode(v.AllSettings()); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}
	return nil
}

// Validate checks the shape of the configuration before any target runs.
func (c *Config) Validate() error {
	if c.Backup.OutputDirectory == "" {
		return fmt.Errorf("%w: backup.output_dir is required", ErrValidateConfig)
	}
	seen := map[string]bool{}
	check := func(name string) error {
		if name == "" {
			return fmt.Errorf("%w: every target needs a name", ErrValidateConfig)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate target name %q", ErrValidateConfig, name)
		}
		seen[name] = true
		return nil
	}
	for _, t := range c.SQLite {
		if err := check(t.Name); err != nil {
			return err
		}
		if t.Path == "" {
			return fmt.Errorf("%w: sqlite target %q needs a path", ErrValidateConfig, t.Name)
		}
	}
	for _, t := range append(append([]RelationalTargetConfig{}, c.Postgres...), c.MySQL...) {
		if err := check(t.Name); err != nil {
			return err
		}
		if t.DSN == "" {
			return fmt.Errorf("%w: relational target %q needs a dsn", ErrValidateConfig, t.Name)
		}
	}
	for _, t := range c.Paths {
		if err := check(t.Name); err != nil {
			return err
		}
		if t.Path == "" {
			return fmt.Errorf("%w: path target %q needs a path", ErrValidateConfig, t.Name)
		}
	}
	return nil
}

// Resolve builds the read-only target list the core consumes. Vault DSN
// references are resolved here, so the engines only ever see plain DSNs.
// secrets may be nil when no target uses a "vault:" reference.
func (c *Config) Resolve(ctx context.Context, secrets SecretResolver) ([]target.Target, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	targets := make([]target.Target, 0,
		len(c.SQLite)+len(c.Postgres)+len(c.MySQL)+len(c.Paths))

	for _, tc := range c.SQLite {
		targets = append(targets, target.SQLite{
			Common: c.commonFor(tc.CommonTargetConfig),
			Path:   tc.Path,
		})
	}
	for _, group := range []struct {
		kind target.Kind
		list []RelationalTargetConfig
	}{
		{target.KindPostgres, c.Postgres},
		{target.KindMySQL, c.MySQL},
	} {
		for _, tc := range group.list {
			dsn, err := c.resolveDSN(ctx, secrets, tc)
			if err != nil {
				return nil, err
			}
			targets = append(targets, target.Relational{
				Common:        c.commonFor(tc.CommonTargetConfig),
				Kind:          group.kind,
				DSN:           dsn,
				IncludeTables: tc.IncludeTables,
				ExcludeTables: tc.ExcludeTables,
				IncludeSchema: boolOr(tc.IncludeSchema, true),
				IncludeData:   boolOr(tc.IncludeData, true),
			})
		}
	}
	for _, tc := range c.Paths {
		targets = append(targets, target.Path{
			Common:           c.commonFor(tc.CommonTargetConfig),
			Path:             tc.Path,
			IncludeGlobs:     tc.Include,
			ExcludeGlobs:     tc.Exclude,
			MaxFileSize:      int64(tc.MaxFileSize),
			FollowSymlinks:   tc.FollowSymlinks,
			PreserveMetadata: tc.PreserveMetadata,
		})
	}
	return targets, nil
}

func (c *Config) commonFor(tc CommonTargetConfig) target.Common {
	return target.Common{
		Name:     tc.Name,
		Compress: boolOr(tc.Compress, c.Backup.Compress),
		Filename: tc.Filename,
	}
}

func (c *Config) resolveDSN(
	ctx context.Context,
	secrets SecretResolver,
	tc RelationalTargetConfig,
) (string, error) {
	if !strings.HasPrefix(tc.DSN, "vault:") {
		return tc.DSN, nil
	}
	if secrets == nil {
		return "", fmt.Errorf("%w: target %q uses a vault DSN but vault is not configured",
			ErrValidateConfig, tc.Name)
	}
	dsn, err := secrets.LookupDSN(ctx, tc.DSN)
	if err != nil {
		return "", fmt.Errorf("resolve DSN for target %q: %w", tc.Name, err)
	}
	return dsn, nil
}

func boolOr(b *bool, fallback bool) bool {
	if b != nil {
		return *b
	}
	return fallback
}
