package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var unsafePath = regexp.MustCompile(`[^a-zA-Z0-9.\-]+`)

// SanitizeSubject replaces characters unsafe for filesystem paths.
// Allows alphanumeric, dots, and hyphens; IPv6 colons become underscores.
func SanitizeSubject(subject string) string {
	return unsafePath.ReplaceAllString(subject, "_")
}

// ReportPath generates a consistent file path for a session report
// Format: {baseDir}/{subject}_{YYYYMMDD}_{HHMMSS}.md
func ReportPath(baseDir, subject string, startedAt time.Time) string {
	name := fmt.Sprintf("%s_%s.md", SanitizeSubject(subject), startedAt.Format("20060102_150405"))
	return filepath.Join(baseDir, name)
}

// EnsureDir creates a directory and all parent directories if they don't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
