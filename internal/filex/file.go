// Package filex holds filesystem helpers for the local database file.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DBPath returns the filesystem path of a sqlite DSN, or "" when the DSN
// names an in-memory database.
func DBPath(dsn string) string {
	path := dsn
	if strings.HasPrefix(path, "file:") {
		path = strings.TrimPrefix(path, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			if strings.Contains(path[i:], "mode=memory") {
				return ""
			}
			path = path[:i]
		}
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

// EnsureParentDir creates the directory that will hold path. Paths in the
// current directory need nothing.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}
