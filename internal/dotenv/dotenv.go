// Package dotenv is a minimal .env loader, a direct Go port of the original
// tool's text2sql/env.py parsing rules: no external dependencies, KEY=VALUE
// lines, optional "export " prefix, single/double-quoted values, and "#"
// comments.
package dotenv

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	loadOnce sync.Once
)

// ParseLine parses a single .env line, returning (key, value, true) on a
// recognized assignment, or ("", "", false) for blank lines, comments, or
// malformed lines.
func ParseLine(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")
	trimmed = strings.TrimLeft(trimmed, " \t")

	idx := strings.Index(trimmed, "=")
	if idx < 0 {
		return "", "", false
	}

	key := strings.TrimSpace(trimmed[:idx])
	if key == "" {
		return "", "", false
	}
	value := strings.TrimSpace(trimmed[idx+1:])
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true
}

// defaultPaths returns [cwd/.env, repoRoot/.env] when repoRoot != cwd.
func defaultPaths(repoRoot string) []string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	paths := []string{filepath.Join(cwd, ".env")}
	if repoRoot != "" && repoRoot != cwd {
		paths = append(paths, filepath.Join(repoRoot, ".env"))
	}
	return paths
}

// LoadOnce loads every KEY=VALUE pair found across paths into the process
// environment, skipping keys already set unless override is true. Subsequent
// calls in the same process are no-ops, matching the original's load-once
// semantics (tests should use Load directly to bypass the guard).
func LoadOnce(paths []string, override bool) {
	loadOnce.Do(func() {
		Load(paths, override)
	})
}

// Load loads every KEY=VALUE pair found across paths into the process
// environment unconditionally (no load-once guard). If paths is nil, the
// default search path is used.
func Load(paths []string, override bool) {
	if paths == nil {
		paths = defaultPaths("")
	}
	for _, path := range paths {
		loadFile(path, override)
	}
}

func loadFile(path string, override bool) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if !override {
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
		}
		os.Setenv(key, value)
	}
}
