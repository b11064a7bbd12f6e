package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

var (
	sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

	createRe = regexp.MustCompile(`(?i)\bCREATE\s+(UNIQUE\s+)?(TABLE|INDEX)\s+`)
	dropRe   = regexp.MustCompile(`(?i)\bDROP\s+(TABLE|INDEX)\s+`)

	// Constructs only one of the two engines accepts.
	engineSpecific = map[string]*regexp.Regexp{
		"SERIAL":            regexp.MustCompile(`(?i)\b(BIG|SMALL)?SERIAL\b`),
		"AUTOINCREMENT":     regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`),
		"JSONB":             regexp.MustCompile(`(?i)\bJSONB\b`),
		"TIMESTAMPTZ":       regexp.MustCompile(`(?i)\bTIMESTAMPTZ\b`),
		"UUID column":       regexp.MustCompile(`(?i)\w\s+UUID\b`),
		"::cast":            regexp.MustCompile(`::`),
		"now()":             regexp.MustCompile(`(?i)\bnow\s*\(`),
		"gen_random_uuid()": regexp.MustCompile(`(?i)\bgen_random_uuid\s*\(`),
		"PRAGMA":            regexp.MustCompile(`(?i)\bPRAGMA\b`),
		"CREATE EXTENSION":  regexp.MustCompile(`(?i)\bCREATE\s+EXTENSION\b`),
	}
)

// ValidateDir checks the migration sources in dir. See ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks that every migration in fsys runs unchanged on both sqlite
// and postgres and can be applied over an existing schema: versioned file
// names, an Up and a Down section in that order, IF NOT EXISTS on every
// CREATE TABLE/INDEX, IF EXISTS on every DROP, and no engine-specific syntax.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := validateSQL(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func validateSQL(txt string) error {
	up := strings.Index(txt, upMarker)
	down := strings.Index(txt, downMarker)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", upMarker)
	case down < 0:
		return fmt.Errorf("missing %q", downMarker)
	case down < up:
		return fmt.Errorf("%q must precede %q", upMarker, downMarker)
	}

	body := stripComments(txt)
	for _, loc := range createRe.FindAllStringIndex(body, -1) {
		if !hasPrefixFold(body[loc[1]:], "IF NOT EXISTS") {
			return fmt.Errorf("%q must use IF NOT EXISTS", strings.TrimSpace(body[loc[0]:loc[1]]))
		}
	}
	for _, loc := range dropRe.FindAllStringIndex(body, -1) {
		if !hasPrefixFold(body[loc[1]:], "IF EXISTS") {
			return fmt.Errorf("%q must use IF EXISTS", strings.TrimSpace(body[loc[0]:loc[1]]))
		}
	}

	names := make([]string, 0, len(engineSpecific))
	for name := range engineSpecific {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if engineSpecific[name].MatchString(body) {
			return fmt.Errorf("uses %s, which sqlite and postgres do not both accept", name)
		}
	}
	return nil
}

// stripComments drops "--" line comments, goose annotations included.
func stripComments(txt string) string {
	lines := strings.Split(txt, "\n")
	for i, l := range lines {
		if j := strings.Index(l, "--"); j >= 0 {
			lines[i] = l[:j]
		}
	}
	return strings.Join(lines, "\n")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
