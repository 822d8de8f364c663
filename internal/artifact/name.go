package artifact

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the artifact timestamp, ISO 8601 with ':' replaced by
// '-' so the result is a safe filename on every filesystem.
const TimestampLayout = "2006-01-02T15-04-05"

// SidecarSuffix is appended to an artifact filename for its metadata sidecar.
const SidecarSuffix = ".meta"

// PartialSuffix marks an artifact that is still being written. Partial files
// are renamed into place on success and never recognized as artifacts.
const PartialSuffix = ".partial"

// Artifact names carry the timestamp directly before the extension chain.
// Single-file backups keep the source extension, so the rule anchors on the
// timestamp rather than on ".sql"/".tar" alone.
var namePattern = regexp.MustCompile(
	`^.+_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}(\.[A-Za-z0-9]+)*$`,
)

// Filename builds the canonical artifact name: {base}_{timestamp}{ext}[.gz].
// ext must include its leading dot (".sql", ".tar", or an original file
// extension for single-file backups).
func Filename(base string, ts time.Time, ext string, compressed bool) string {
	name := base + "_" + ts.Format(TimestampLayout) + ext
	if compressed {
		name += ".gz"
	}
	return name
}

// IsArtifactName reports whether name follows the artifact naming
// convention. The retention pruner deletes only recognized names, so the
// rule is deliberately strict: unrelated files sharing an extension are
// never candidates.
func IsArtifactName(name string) bool {
	if strings.HasSuffix(name, SidecarSuffix) || strings.HasSuffix(name, PartialSuffix) {
		return false
	}
	return namePattern.MatchString(name)
}
