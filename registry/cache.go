package registry

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileCache stores registry metadata on disk with TTL-based staleness
// checks.
type fileCache struct {
	dir string
	ttl time.Duration
}

func newFileCache(dir string, ttl time.Duration) *fileCache {
	return &fileCache{dir: dir, ttl: ttl}
}

// load reads cached metadata for the given package. Returns os.ErrNotExist
// if the cache file does not exist.
func (c *fileCache) load(ecosystem, name string) (*Metadata, error) {
	data, err := os.ReadFile(c.path(ecosystem, name))
	if err != nil {
		return nil, err
	}

	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("corrupt cache for %s/%s: %w", ecosystem, name, err)
	}
	return &md, nil
}

// store writes metadata to the cache using atomic write (temp file +
// rename).
func (c *fileCache) store(ecosystem, name string, md *Metadata) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	target := c.path(ecosystem, name)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp cache file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

// isStale returns true if the cached metadata for the package is missing or
// older than the configured TTL.
func (c *fileCache) isStale(ecosystem, name string) bool {
	info, err := os.Stat(c.path(ecosystem, name))
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > c.ttl
}

// path returns the deterministic cache file path for a package, derived
// from the SHA-256 hash of ecosystem and name (truncated to 16 hex
// characters). Hashing sidesteps scoped-name slashes and case collisions
// on case-insensitive filesystems.
func (c *fileCache) path(ecosystem, name string) string {
	h := sha256.Sum256([]byte(ecosystem + "\x00" + name))
	return filepath.Join(c.dir, fmt.Sprintf("%x.json", h[:8]))
}
