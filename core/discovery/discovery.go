// Package discovery finds dependency lockfiles in a project tree.
//
// It recursively walks a project directory and returns the relative paths
// of every supported lockfile. Gitignore patterns are respected, dependency
// install directories are skipped, and the .git directory is never entered.
package discovery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chainspect/chainspect/core/manifest"
)

// skipDirs are directory names never descended into. Lockfiles inside these
// describe transitive environments, not the project's own dependency
// declarations.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	".git":         {},
	"dist":         {},
	"build":        {},
	"__pycache__":  {},
	".venv":        {},
}

// Walker recursively discovers lockfiles under Root.
type Walker struct {
	// Root is the directory to walk.
	Root string
	// IgnorePatterns holds gitignore-style patterns for skipping paths.
	IgnorePatterns []string
	// Exclude lists additional path substrings to skip, from project
	// configuration.
	Exclude []string
}

// NewWalker creates a Walker rooted at root. It loads ignore patterns from
// .gitignore and .chainspectignore in the root directory; if neither exists
// the walker proceeds with no ignore patterns.
func NewWalker(root string, exclude ...string) *Walker {
	patterns, _ := LoadIgnorePatterns(root)
	return &Walker{
		Root:           root,
		IgnorePatterns: patterns,
		Exclude:        exclude,
	}
}

// Walk traverses the root directory and returns the relative paths of all
// supported lockfiles, sorted.
func (w *Walker) Walk() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(w.Root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if IsIgnored(rel, w.IgnorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		if !manifest.Supported(path) {
			return nil
		}
		if IsIgnored(rel, w.IgnorePatterns) {
			return nil
		}
		for _, pattern := range w.Exclude {
			if strings.Contains(rel, pattern) {
				return nil
			}
		}

		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering manifests in %s: %w", w.Root, err)
	}

	sort.Strings(paths)
	return paths, nil
}
