// Package catalog provides the static target data consumed by typosquat
// detection and reputation scoring: per-ecosystem lists of popular packages
// annotated with approximate weekly download volume and a high-value flag,
// plus a curated list of known-malicious package names.
//
// The data ships embedded in the binary so the auditor is fully offline
// capable. It is configuration, not logic: the detection core depends only
// on Lookup and Iterate, which keeps it trivially testable against small
// synthetic catalogs.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed data/popular_npm.json data/popular_pypi.json data/popular_crates.json data/known_malicious.json
var dataFS embed.FS

// PopularPackage is one catalog entry. Entries are immutable once loaded.
type PopularPackage struct {
	Name string `json:"name"`

	// WeeklyDownloads is the approximate weekly download volume, used to
	// weight how aggressively near-misses on this target are escalated.
	WeeklyDownloads int64 `json:"weeklyDownloads,omitempty"`

	// HighValue marks security-sensitive or historically attacked targets
	// that warrant lower detection thresholds.
	HighValue bool `json:"highValue,omitempty"`
}

// Catalog is a read-only set of popular-package lists keyed by ecosystem.
// All methods are safe for concurrent use after construction.
type Catalog struct {
	byEcosystem map[string][]PopularPackage
	index       map[string]map[string]int // ecosystem → name → position
	malicious   map[string]map[string]struct{}
}

// New builds a Catalog from explicit per-ecosystem entries. Intended for
// tests and for merging user-supplied extra targets onto the defaults.
func New(entries map[string][]PopularPackage) *Catalog {
	c := &Catalog{
		byEcosystem: make(map[string][]PopularPackage, len(entries)),
		index:       make(map[string]map[string]int, len(entries)),
		malicious:   make(map[string]map[string]struct{}),
	}
	for eco, pkgs := range entries {
		c.add(eco, pkgs)
	}
	return c
}

func (c *Catalog) add(eco string, pkgs []PopularPackage) {
	idx := c.index[eco]
	if idx == nil {
		idx = make(map[string]int, len(pkgs))
		c.index[eco] = idx
	}
	for _, p := range pkgs {
		// Names are unique within an ecosystem; later duplicates are dropped.
		if _, exists := idx[p.Name]; exists {
			continue
		}
		c.byEcosystem[eco] = append(c.byEcosystem[eco], p)
		idx[p.Name] = len(c.byEcosystem[eco]) - 1
	}
}

// Lookup returns the catalog entry exactly matching name in the given
// ecosystem, or nil. Matching is case-sensitive: registries treat names
// case-sensitively and the popular lists are stored in canonical form.
func (c *Catalog) Lookup(name, ecosystem string) *PopularPackage {
	idx, ok := c.index[ecosystem]
	if !ok {
		return nil
	}
	i, ok := idx[name]
	if !ok {
		return nil
	}
	p := c.byEcosystem[ecosystem][i]
	return &p
}

// Iterate returns all entries for an ecosystem. The returned slice must not
// be modified.
func (c *Catalog) Iterate(ecosystem string) []PopularPackage {
	return c.byEcosystem[ecosystem]
}

// Ecosystems returns the sorted list of ecosystems present in the catalog.
func (c *Catalog) Ecosystems() []string {
	out := make([]string, 0, len(c.byEcosystem))
	for eco := range c.byEcosystem {
		out = append(out, eco)
	}
	sort.Strings(out)
	return out
}

// KnownMalicious reports whether the name appears in the curated list of
// known malicious packages for the ecosystem. Matching is case-insensitive:
// malware campaigns routinely re-publish the same name with case tricks.
func (c *Catalog) KnownMalicious(name, ecosystem string) bool {
	set, ok := c.malicious[ecosystem]
	if !ok {
		return false
	}
	_, found := set[strings.ToLower(name)]
	return found
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog built from the embedded data files. The data
// is parsed exactly once per process.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := loadEmbedded()
		if err != nil {
			// The embedded data is validated by tests; a decode failure here
			// means a corrupt build. Fall back to an empty catalog rather
			// than panicking inside a library.
			c = New(nil)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func loadEmbedded() (*Catalog, error) {
	files := map[string]string{
		"npm":    "data/popular_npm.json",
		"pypi":   "data/popular_pypi.json",
		"crates": "data/popular_crates.json",
	}

	c := New(nil)
	for eco, path := range files {
		data, err := dataFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var pkgs []PopularPackage
		if err := json.Unmarshal(data, &pkgs); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		c.add(eco, pkgs)
	}

	data, err := dataFS.ReadFile("data/known_malicious.json")
	if err != nil {
		return nil, fmt.Errorf("reading known_malicious.json: %w", err)
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing known_malicious.json: %w", err)
	}
	for eco, names := range raw {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[strings.ToLower(n)] = struct{}{}
		}
		c.malicious[eco] = set
	}

	return c, nil
}
