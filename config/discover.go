// Package config turns a set of declarative JSON/YAML files into the list of
// models.Server values the core schedules and polls.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover resolves a configured path into the set of files the agent should
// parse. If path is a single regular file, the result is that one file
// (file-mode). If path is a directory, the result is every entry directly
// inside it whose name passes IsProcessConfigFile (dir-mode). Hidden files
// (leading ".") are always excluded.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: discover %s: %w", path, err)
	}

	if !info.IsDir() {
		if !IsProcessConfigFile(path) {
			return nil, fmt.Errorf("config: discover %s: not a recognized config file", path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("config: discover %s: %w", path, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		full := filepath.Join(path, e.Name())
		if IsProcessConfigFile(full) {
			files = append(files, full)
		}
	}
	sort.Strings(files)
	return files, nil
}

// IsProcessConfigFile reports whether path names a file the agent should
// parse as configuration: the base name must not start with "." and must end
// in ".json", ".yml", or ".yaml"; the path must either not exist (so
// deletions remain observable to the watcher) or be a regular file.
func IsProcessConfigFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if !hasConfigExt(base) {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		// A nonexistent path is allowed through so deletions are still
		// recognized as config-file events; any other stat error is
		// treated as "not a usable file".
		return os.IsNotExist(err)
	}
	return info.Mode().IsRegular()
}

func hasConfigExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json", ".yml", ".yaml":
		return true
	default:
		return false
	}
}
