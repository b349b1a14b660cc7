// Package manifest parses dependency lockfiles from multiple ecosystems
// into a uniform package inventory.
//
// Supported formats are npm package-lock.json, Python requirements.txt,
// go.sum, Gemfile.lock, and Cargo.lock. Format detection is driven by the
// filename so callers can feed arbitrary paths without configuration.
package manifest

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// Well-known ecosystem identifiers. These match the registry and advisory
// APIs the auditor talks to, lowercased.
const (
	EcosystemNpm      = "npm"
	EcosystemPyPI     = "pypi"
	EcosystemGo       = "go"
	EcosystemRubyGems = "rubygems"
	EcosystemCrates   = "crates"
)

// Package is a single dependency extracted from a lockfile.
type Package struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Ecosystem string `json:"ecosystem"`
	// Source is the path of the manifest the package was read from,
	// as given by the caller.
	Source string `json:"source,omitempty"`
}

// parsers maps well-known lockfile basenames to their parser functions.
var parsers = map[string]func([]byte) ([]Package, error){
	"package-lock.json": parsePackageLock,
	"requirements.txt":  parseRequirements,
	"go.sum":            parseGoSum,
	"Gemfile.lock":      parseGemfileLock,
	"Cargo.lock":        parseCargoLock,
}

// Supported reports whether path names a lockfile format the parser
// understands.
func Supported(path string) bool {
	_, ok := parsers[filepath.Base(path)]
	return ok
}

// SupportedNames returns the recognised lockfile basenames, sorted.
func SupportedNames() []string {
	names := make([]string, 0, len(parsers))
	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseFile detects the lockfile format from its filename and delegates to
// the matching parser. Every returned package carries path as its Source.
func ParseFile(path string, content []byte) ([]Package, error) {
	parse, ok := parsers[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("unsupported lockfile type: %s", filepath.Base(path))
	}
	pkgs, err := parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	for i := range pkgs {
		pkgs[i].Source = path
	}
	return pkgs, nil
}

// Inventory is a thread-safe, ordered collection of parsed packages.
// Duplicate name/version/ecosystem entries from different manifests are
// kept; the audit layer decides how to aggregate per finding.
type Inventory struct {
	mu   sync.Mutex
	pkgs []Package
}

// Add appends packages to the inventory.
func (inv *Inventory) Add(pkgs ...Package) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.pkgs = append(inv.pkgs, pkgs...)
}

// Len returns the number of packages collected so far.
func (inv *Inventory) Len() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.pkgs)
}

// Packages returns a copy of all collected packages in insertion order.
func (inv *Inventory) Packages() []Package {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make([]Package, len(inv.pkgs))
	copy(out, inv.pkgs)
	return out
}

// ByEcosystem returns the packages belonging to the given ecosystem.
func (inv *Inventory) ByEcosystem(eco string) []Package {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var result []Package
	for _, p := range inv.pkgs {
		if p.Ecosystem == eco {
			result = append(result, p)
		}
	}
	return result
}

// Ecosystems returns the distinct ecosystems present in the inventory,
// sorted.
func (inv *Inventory) Ecosystems() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	seen := make(map[string]struct{})
	for _, p := range inv.pkgs {
		seen[p.Ecosystem] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for eco := range seen {
		out = append(out, eco)
	}
	sort.Strings(out)
	return out
}
