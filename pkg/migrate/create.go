package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var slugRe = regexp.MustCompile(`[^a-z0-9_]+`)

// CreateSQLMigration writes <dir>/<version>_<slug>.sql and returns its path.
// A name of the form "create_<table>" gets a table skeleton both engines
// accept; any other name gets empty Up and Down sections. The version is
// never older than the newest migration already in dir.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	version, err := nextVersion(dir, time.Now().UTC())
	if err != nil {
		return "", err
	}

	body := migrationTemplate(slug)
	if err := validateSQL(body); err != nil {
		return "", fmt.Errorf("generated migration for %q: %w", slug, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version, slug))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, f.Close()
}

func migrationSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugRe.ReplaceAllString(slug, "_")
	return strings.Trim(slug, "_")
}

// nextVersion returns now formatted as a version, bumped one second past the
// newest version in dir when the clock is behind it.
func nextVersion(dir string, now time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read dir %q: %w", dir, err)
	}
	latest := ""
	for _, e := range entries {
		if m := sqlFileRe.FindStringSubmatch(e.Name()); m != nil && m[1] > latest {
			latest = m[1]
		}
	}
	version := now.Format(versionLayout)
	if version > latest {
		return version, nil
	}
	last, err := time.Parse(versionLayout, latest)
	if err != nil {
		return "", fmt.Errorf("parse version %q: %w", latest, err)
	}
	return last.Add(time.Second).Format(versionLayout), nil
}

func migrationTemplate(slug string) string {
	table, ok := strings.CutPrefix(slug, "create_")
	if !ok || table == "" {
		return fmt.Sprintf("%s\n-- %s\n\n%s\n-- revert %s\n", upMarker, slug, downMarker, slug)
	}
	return fmt.Sprintf(`%s
CREATE TABLE IF NOT EXISTS %[2]s (
  id TEXT PRIMARY KEY
);

%s
DROP TABLE IF EXISTS %[2]s;
`, upMarker, table, downMarker)
}
