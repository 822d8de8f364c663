package target

// Kind identifies what a backup artifact was produced from.
type Kind string

const (
	KindSQLite     Kind = "sqlite"
	KindPostgres   Kind = "postgresql"
	KindMySQL      Kind = "mysql"
	KindFile       Kind = "file"
	KindDirectory  Kind = "directory"
	KindUnresolved Kind = "path"
)

// IsDatabase reports whether k refers to a database target.
func (k Kind) IsDatabase() bool {
	switch k {
	case KindSQLite, KindPostgres, KindMySQL:
		return true
	}
	return false
}

// Common holds the modifiers shared by every target.
type Common struct {
	Name     string
	Compress bool
	// Filename overrides the auto-generated artifact base name when set.
	Filename string
}

// BaseName returns the artifact base name for the target.
func (c Common) BaseName() string {
	if c.Filename != "" {
		return c.Filename
	}
	return c.Name
}

// Target is the closed union of configured backup jobs. The concrete
// variants are SQLite, Relational, and Path; the orchestrator switches
// over them exhaustively.
type Target interface {
	TargetName() string
	isTarget()
}

// SQLite backs up a SQLite database file.
type SQLite struct {
	Common
	Path string
}

// Relational backs up a server-based database reachable through a DSN.
type Relational struct {
	Common
	Kind Kind // KindPostgres or KindMySQL
	// DSN is the fully-resolved connection string. Secret references are
	// resolved by the config layer before the target reaches the core.
	DSN           string
	IncludeTables []string
	ExcludeTables []string
	IncludeSchema bool
	IncludeData   bool
}

// Path backs up a single file or a directory tree. Whether the path is a
// file or a directory is resolved once per run by the filesystem engine.
type Path struct {
	Common
	Path         string
	IncludeGlobs []string
	ExcludeGlobs []string
	// MaxFileSize skips files larger than this many bytes when > 0.
	MaxFileSize      int64
	FollowSymlinks   bool
	PreserveMetadata bool
}

func (t SQLite) TargetName() string     { return t.Name }
func (t Relational) TargetName() string { return t.Name }
func (t Path) TargetName() string       { return t.Name }

func (SQLite) isTarget()     {}
func (Relational) isTarget() {}
func (Path) isTarget()       {}
