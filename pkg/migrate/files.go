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
	fileNameRe  = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	nonSlugRune = regexp.MustCompile(`[^a-z0-9]+`)
)

// Validate checks naming, version uniqueness and goose annotations for every .sql file in migrations.
func Validate(migrations fs.FS) error {
	versions, err := scan(migrations)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("migrate: no migrations found")
	}
	return nil
}

// scan returns version -> file name and fails on the first malformed file.
func scan(migrations fs.FS) (map[int64]string, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: list migrations: %w", err)
	}

	versions := make(map[int64]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		match := fileNameRe.FindStringSubmatch(name)
		if match == nil {
			return nil, fmt.Errorf("migrate: %s: name must look like %s_description.sql", name, versionLayout)
		}
		version, _ := strconv.ParseInt(match[1], 10, 64)
		if other, dup := versions[version]; dup {
			return nil, fmt.Errorf("migrate: %s and %s share version %d", other, name, version)
		}
		versions[version] = name

		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				return nil, fmt.Errorf("migrate: %s is missing %q", name, marker)
			}
		}
	}
	return versions, nil
}

// NewFile writes an empty goose migration into dir. The version is the later of now and one past the
// newest existing file, so a skewed clock never produces an out-of-order migration.
func NewFile(dir, description string, now time.Time) (string, error) {
	slug := strings.Trim(nonSlugRune.ReplaceAllString(strings.ToLower(description), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migrate: description %q has no usable characters", description)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("migrate: create %s: %w", dir, err)
	}

	existing, err := scan(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	version, _ := strconv.ParseInt(now.UTC().Format(versionLayout), 10, 64)
	if latest := latestVersion(existing); version <= latest {
		version = latest + 1
	}

	path := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, slug))
	body := "-- +goose Up\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n\n" +
		"-- +goose Down\n-- +goose StatementBegin\n\n-- +goose StatementEnd\n"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("migrate: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(body); err != nil {
		return "", fmt.Errorf("migrate: write %s: %w", path, err)
	}
	return path, nil
}

func latestVersion(versions map[int64]string) int64 {
	keys := make([]int64, 0, len(versions))
	for v := range versions {
		keys = append(keys, v)
	}
	if len(keys) == 0 {
		return 0
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys[len(keys)-1]
}
