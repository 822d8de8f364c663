package config

import (
	"reflect"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mitchellh/mapstructure"
)

// ByteSize is an int64 byte count that decodes from YAML either as a bare
// number or as a human string like "10MB".
type ByteSize int64

// Config represents the top-level YAML configuration file.
type Config struct {
	Include   []string        `mapstructure:"include"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Retention RetentionConfig `mapstructure:"retention"`
	Vault     VaultConfig     `mapstructure:"vault"`

	// Targets, grouped per engine like the per-engine instance lists.
	SQLite   []SQLiteTargetConfig     `mapstructure:"sqlite"`
	Postgres []RelationalTargetConfig `mapstructure:"postgres"`
	MySQL    []RelationalTargetConfig `mapstructure:"mysql"`
	Paths    []PathTargetConfig       `mapstructure:"paths"`
}

// BackupConfig contains global backup options.
type BackupConfig struct {
	OutputDirectory string        `mapstructure:"output_dir"`
	Compress        bool          `mapstructure:"compress"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Workers         int           `mapstructure:"workers"`
}

// RetentionConfig selects how many artifacts to keep and for how long.
type RetentionConfig struct {
	KeepLast   int `mapstructure:"keep_last"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// VaultConfig holds connection settings for HashiCorp Vault. Only needed
// when a DSN uses a "vault:" reference.
type VaultConfig struct {
	Address  string `mapstructure:"address"`
	RoleID   string `mapstructure:"role_id"`
	SecretID string `mapstructure:"secret_id"`
}

// CommonTargetConfig carries the modifiers every target accepts.
type CommonTargetConfig struct {
	Name string `mapstructure:"name"`
	// Compress overrides the global default when set.
	Compress *bool  `mapstructure:"compress"`
	Filename string `mapstructure:"filename"`
}

// SQLiteTargetConfig backs up a SQLite database file.
type SQLiteTargetConfig struct {
	CommonTargetConfig `mapstructure:",squash"`
	Path               string `mapstructure:"path"`
}

// RelationalTargetConfig backs up a PostgreSQL or MySQL database. DSN may
// be a plain connection string or a "vault:<mount>/<path>#<field>"
// reference resolved at load time.
type RelationalTargetConfig struct {
	CommonTargetConfig `mapstructure:",squash"`
	DSN                string   `mapstructure:"dsn"`
	IncludeTables      []string `mapstructure:"include_tables"`
	ExcludeTables      []string `mapstructure:"exclude_tables"`
	IncludeSchema      *bool    `mapstructure:"include_schema"`
	IncludeData        *bool    `mapstructure:"include_data"`
}

// PathTargetConfig backs up a file or directory tree.
type PathTargetConfig struct {
	CommonTargetConfig `mapstructure:",squash"`
	Path               string   `mapstructure:"path"`
	Include            []string `mapstructure:"include"`
	Exclude            []string `mapstructure:"exclude"`
	MaxFileSize        ByteSize `mapstructure:"max_file_size"`
	FollowSymlinks     bool     `mapstructure:"follow_symlinks"`
	PreserveMetadata   bool     `mapstructure:"preserve_metadata"`
}

// stringToByteSizeHookFunc decodes "10MB"-style strings into ByteSize.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		n, err := humanize.ParseBytes(data.(string))
		if err != nil {
			return nil, err
		}
		return ByteSize(n), nil
	}
}
