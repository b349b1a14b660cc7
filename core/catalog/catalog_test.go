package catalog

import (
	"testing"
)

func TestDefaultLoadsEmbeddedData(t *testing.T) {
	t.Parallel()

	cat := Default()

	for _, eco := range []string{"npm", "pypi", "crates"} {
		if len(cat.Iterate(eco)) == 0 {
			t.Errorf("Iterate(%q) is empty; embedded data failed to load", eco)
		}
	}
}

func TestDefaultUniqueNamesPerEcosystem(t *testing.T) {
	t.Parallel()

	cat := Default()
	for _, eco := range cat.Ecosystems() {
		seen := make(map[string]struct{})
		for _, p := range cat.Iterate(eco) {
			if _, dup := seen[p.Name]; dup {
				t.Errorf("ecosystem %s has duplicate entry %q", eco, p.Name)
			}
			seen[p.Name] = struct{}{}
		}
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	cat := Default()

	tests := []struct {
		name, eco string
		found     bool
		highValue bool
	}{
		{"lodash", "npm", true, true},
		{"axios", "npm", true, true},
		{"react-router-dom", "npm", true, false},
		{"bcryptjs", "npm", true, true},
		{"requests", "pypi", true, true},
		{"serde", "crates", true, true},
		{"lodash", "pypi", false, false}, // ecosystems are disjoint
		{"no-such-package", "npm", false, false},
		{"lodash", "rubygems", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.eco+"/"+tt.name, func(t *testing.T) {
			t.Parallel()
			got := cat.Lookup(tt.name, tt.eco)
			if (got != nil) != tt.found {
				t.Fatalf("Lookup(%q, %q) found=%v, want %v", tt.name, tt.eco, got != nil, tt.found)
			}
			if got != nil && got.HighValue != tt.highValue {
				t.Errorf("Lookup(%q, %q).HighValue = %v, want %v", tt.name, tt.eco, got.HighValue, tt.highValue)
			}
		})
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	t.Parallel()

	cat := Default()
	p := cat.Lookup("lodash", "npm")
	if p == nil {
		t.Fatal("lodash missing from npm catalog")
	}
	p.HighValue = false

	again := cat.Lookup("lodash", "npm")
	if !again.HighValue {
		t.Error("mutating a Lookup result leaked into the catalog")
	}
}

func TestKnownMalicious(t *testing.T) {
	t.Parallel()

	cat := Default()

	tests := []struct {
		name, eco string
		want      bool
	}{
		{"crossenv", "npm", true},
		{"CrossEnv", "npm", true}, // case-insensitive
		{"flatmap-stream", "npm", true},
		{"colourama", "pypi", true},
		{"jeilyfish", "pypi", true},
		{"rustdecimal", "crates", true},
		{"lodash", "npm", false},
		{"crossenv", "pypi", false},
	}

	for _, tt := range tests {
		t.Run(tt.eco+"/"+tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cat.KnownMalicious(tt.name, tt.eco); got != tt.want {
				t.Errorf("KnownMalicious(%q, %q) = %v, want %v", tt.name, tt.eco, got, tt.want)
			}
		})
	}
}

func TestNewSyntheticCatalog(t *testing.T) {
	t.Parallel()

	cat := New(map[string][]PopularPackage{
		"npm": {
			{Name: "alpha", WeeklyDownloads: 100},
			{Name: "beta", HighValue: true},
			{Name: "alpha", WeeklyDownloads: 999}, // duplicate dropped
		},
	})

	if got := len(cat.Iterate("npm")); got != 2 {
		t.Fatalf("Iterate returned %d entries, want 2", got)
	}
	if p := cat.Lookup("alpha", "npm"); p == nil || p.WeeklyDownloads != 100 {
		t.Errorf("Lookup(alpha) = %+v, want first-loaded entry kept", p)
	}
	if got := cat.Ecosystems(); len(got) != 1 || got[0] != "npm" {
		t.Errorf("Ecosystems() = %v, want [npm]", got)
	}
}
