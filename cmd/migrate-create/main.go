package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	migrationFile = regexp.MustCompile(`^(\d+)_.+\.(up|down)\.sql$`)
	unsafeChars   = regexp.MustCompile(`[^a-z0-9]+`)
)

func main() {
	name := flag.String("name", "", "migration name")
	dir := flag.String("dir", filepath.Join("db", "migrations"), "migrations directory")
	flag.Parse()

	slug := sanitizeName(*name)
	if slug == "" {
		slog.Error("migration name is required")
		os.Exit(1)
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		slog.Error("create migrations dir failed", "error", err)
		os.Exit(1)
	}
	version, err := nextVersion(*dir)
	if err != nil {
		slog.Error("scan migrations failed", "error", err)
		os.Exit(1)
	}

	base := fmt.Sprintf("%06d_%s", version, slug)
	upPath := filepath.Join(*dir, base+".up.sql")
	downPath := filepath.Join(*dir, base+".down.sql")
	if err := writeFile(upPath, "BEGIN;\n\nCOMMIT;\n"); err != nil {
		slog.Error("create up migration failed", "error", err)
		os.Exit(1)
	}
	if err := writeFile(downPath, "BEGIN;\n\nCOMMIT;\n"); err != nil {
		slog.Error("create down migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("created migration", "up", upPath, "down", downPath)
}

// sanitizeName lowercases a free-form name into a snake_case slug.
func sanitizeName(name string) string {
	slug := unsafeChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(slug, "_")
}

// nextVersion returns one past the highest sequence number in dir.
func nextVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	highest := 0
	for _, entry := range entries {
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if version > highest {
			highest = version
		}
	}
	return highest + 1, nil
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
