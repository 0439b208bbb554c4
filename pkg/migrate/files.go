package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNameRe     = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	nameSanitizeRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// File is one goose SQL migration on disk.
type File struct {
	Version int64
	Name    string
	Path    string
}

// ListFiles returns the SQL migrations in fsys ordered by version. Other files
// are skipped; a malformed name or a repeated version is an error.
func ListFiles(fsys fs.FS) ([]File, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []File
	seen := map[int64]string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(entry.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", entry.Name())
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, entry.Name())
		}
		seen[version] = entry.Name()
		files = append(files, File{Version: version, Name: m[2], Path: entry.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// ValidateFS checks every migration in fsys: an Up section before a Down
// section, and balanced StatementBegin/StatementEnd markers.
func ValidateFS(fsys fs.FS) error {
	files, err := ListFiles(fsys)
	if err != nil {
		return err
	}
	for _, f := range files {
		body, err := fs.ReadFile(fsys, f.Path)
		if err != nil {
			return fmt.Errorf("read %q: %w", f.Path, err)
		}
		if err := validateBody(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", f.Path, err)
		}
	}
	return nil
}

// ValidateDir is ValidateFS over a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

func validateBody(body string) error {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("Down section precedes Up")
	}
	open := 0
	for _, line := range strings.Split(body, "\n") {
		switch strings.TrimSpace(line) {
		case "-- +goose StatementBegin":
			open++
			if open > 1 {
				return fmt.Errorf("nested StatementBegin")
			}
		case "-- +goose StatementEnd":
			open--
			if open < 0 {
				return fmt.Errorf("StatementEnd without StatementBegin")
			}
		}
	}
	if open != 0 {
		return fmt.Errorf("unterminated StatementBegin")
	}
	return nil
}

// CreateSQLMigration writes an empty migration into dir and returns its path.
// The version is the current UTC time, bumped past the newest existing
// version so files created in the same second still sort after it.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := strings.Trim(nameSanitizeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	existing, err := ListFiles(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	version := now.UTC()
	if n := len(existing); n > 0 {
		latest, err := time.Parse(versionLayout, strconv.FormatInt(existing[n-1].Version, 10))
		if err == nil && !version.After(latest) {
			version = latest.Add(time.Second)
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), safe))
	body := fmt.Sprintf(`-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- undo %[1]s
-- +goose StatementEnd
`, safe)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
