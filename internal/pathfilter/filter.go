package pathfilter

import "github.com/bmatcuk/doublestar/v4"

// ShouldInclude decides whether a forward-slash relative path survives the
// include/exclude pattern lists.
//
// Exclude always wins: a path matching any exclude pattern is out, even if
// an include pattern also matches. When includes is non-empty the path must
// match at least one of them; an empty include list admits everything not
// excluded. '**' crosses directory boundaries, '*' and '?' do not. Callers
// must normalize separators to '/' first; no matching happens against
// backslash paths.
func ShouldInclude(rel string, includes, excludes []string) bool {
	for _, pattern := range excludes {
		if matches(pattern, rel) {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, pattern := range includes {
		if matches(pattern, rel) {
			return true
		}
	}
	return false
}

// matches treats a malformed pattern as a non-match rather than an error;
// pattern validity is a configuration concern, not a per-file one.
func matches(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}
