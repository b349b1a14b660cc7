// Package registry fetches package metadata from ecosystem registries
// (npm, PyPI, crates.io) with on-disk caching.
//
// The metadata feeds reputation scoring and the explain command; all
// registry-specific response shapes are normalised into Metadata so the
// rest of the pipeline never sees a raw registry payload.
package registry

import (
	"errors"
	"time"
)

// ErrNotFound is returned when the registry has no package by that name.
// For an audit this is itself a signal: a dependency that resolves locally
// but does not exist upstream deserves attention.
var ErrNotFound = errors.New("package not found in registry")

// Release is a single published version of a package.
type Release struct {
	Version    string    `json:"version"`
	ReleasedAt time.Time `json:"releasedAt,omitempty"`
	Yanked     bool      `json:"yanked,omitempty"`
}

// Metadata is the registry-neutral description of a published package.
type Metadata struct {
	Name        string    `json:"name"`
	Ecosystem   string    `json:"ecosystem"`
	Description string    `json:"description,omitempty"`
	Latest      string    `json:"latest,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	ModifiedAt  time.Time `json:"modifiedAt,omitempty"`
	Releases    []Release `json:"releases,omitempty"`
	Maintainers []string  `json:"maintainers,omitempty"`
	// Deprecated carries the registry's deprecation message for the latest
	// version, empty when the package is not deprecated.
	Deprecated string `json:"deprecated,omitempty"`
	Repository string `json:"repository,omitempty"`
	Downloads  int64  `json:"downloads,omitempty"`
}

// Age returns how long the package has existed, or zero when the registry
// did not report a creation time.
func (m *Metadata) Age(now time.Time) time.Duration {
	if m.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(m.CreatedAt)
}

// SinceLastRelease returns the time elapsed since the most recent release,
// or zero when release times are unknown.
func (m *Metadata) SinceLastRelease(now time.Time) time.Duration {
	var latest time.Time
	for _, r := range m.Releases {
		if r.ReleasedAt.After(latest) {
			latest = r.ReleasedAt
		}
	}
	if latest.IsZero() {
		return 0
	}
	return now.Sub(latest)
}
