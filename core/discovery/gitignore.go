package discovery

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadIgnorePatterns reads .gitignore and .chainspectignore from root and
// returns the combined patterns. Missing files contribute no patterns and
// no error.
func LoadIgnorePatterns(root string) ([]string, error) {
	patterns, err := loadIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil, err
	}

	extra, err := loadIgnoreFile(filepath.Join(root, ".chainspectignore"))
	if err != nil {
		return nil, err
	}

	return append(patterns, extra...), nil
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck // best-effort close on read-only file

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return patterns, nil
}

// IsIgnored reports whether a relative path matches any of the provided
// gitignore patterns. It supports basic gitignore semantics:
//   - Exact name matches (e.g. "node_modules")
//   - Wildcard patterns via filepath.Match (e.g. "*.log")
//   - Directory-only patterns ending with "/" (e.g. "vendor/")
//   - Negation patterns prefixed with "!" that un-ignore a path
//
// The .git directory is always ignored regardless of patterns.
func IsIgnored(path string, patterns []string) bool {
	if isGitPath(path) {
		return true
	}

	ignored := false
	for _, pattern := range patterns {
		neg := false
		p := pattern

		if strings.HasPrefix(p, "!") {
			neg = true
			p = strings.TrimPrefix(p, "!")
		}

		if matchPattern(path, p) {
			ignored = !neg
		}
	}

	return ignored
}

// isGitPath reports whether path is inside the .git directory.
func isGitPath(path string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for _, part := range parts {
		if part == ".git" {
			return true
		}
	}
	return false
}

// matchPattern checks whether a relative path matches a single gitignore
// pattern. It handles directory patterns (trailing /) and wildcards.
func matchPattern(path, pattern string) bool {
	path = filepath.ToSlash(path)
	pattern = filepath.ToSlash(pattern)

	dirOnly := strings.HasSuffix(pattern, "/")
	if dirOnly {
		pattern = strings.TrimSuffix(pattern, "/")
	}

	parts := strings.Split(path, "/")

	// Root-anchored patterns: "/foo" matches foo only at the project root.
	if strings.HasPrefix(pattern, "/") {
		pattern = strings.TrimPrefix(pattern, "/")
		if dirOnly {
			return strings.HasPrefix(path, pattern+"/") || path == pattern
		}
		matched, _ := filepath.Match(pattern, path)
		return matched
	}

	// A pattern containing a slash must match from the project root.
	if strings.Contains(pattern, "/") {
		if dirOnly {
			return strings.HasPrefix(path, pattern+"/") || path == pattern
		}
		matched, _ := filepath.Match(pattern, path)
		return matched
	}

	// Pattern without slash: match against any path component.
	for i, part := range parts {
		matched, _ := filepath.Match(pattern, part)
		if !matched {
			continue
		}
		// Directory-only patterns need something after the matched
		// component.
		if dirOnly && i == len(parts)-1 {
			continue
		}
		return true
	}

	return false
}
