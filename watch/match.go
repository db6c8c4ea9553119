package watch

import "path/filepath"

// FnMatch builds a Matcher from a shell glob pattern, matching the
// original's full fnmatch semantics (the whole basename must match, not
// just a prefix).
func FnMatch(pattern string) Matcher {
	return func(basename string) bool {
		ok, err := filepath.Match(pattern, basename)
		return err == nil && ok
	}
}
