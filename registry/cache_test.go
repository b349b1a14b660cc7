package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chainspect/chainspect/core/manifest"
)

func TestFileCache_RoundTrip(t *testing.T) {
	cache := newFileCache(t.TempDir(), time.Hour)

	md := &Metadata{
		Name:      "lodash",
		Ecosystem: manifest.EcosystemNpm,
		Latest:    "4.17.21",
	}
	if err := cache.store(manifest.EcosystemNpm, "lodash", md); err != nil {
		t.Fatalf("store returned error: %v", err)
	}

	got, err := cache.load(manifest.EcosystemNpm, "lodash")
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if got.Name != "lodash" || got.Latest != "4.17.21" {
		t.Errorf("loaded %+v", got)
	}
}

func TestFileCache_Miss(t *testing.T) {
	cache := newFileCache(t.TempDir(), time.Hour)
	if _, err := cache.load(manifest.EcosystemNpm, "never-stored"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestFileCache_Staleness(t *testing.T) {
	cache := newFileCache(t.TempDir(), time.Hour)
	md := &Metadata{Name: "lodash", Ecosystem: manifest.EcosystemNpm}

	if !cache.isStale(manifest.EcosystemNpm, "lodash") {
		t.Error("missing entry should be stale")
	}
	if err := cache.store(manifest.EcosystemNpm, "lodash", md); err != nil {
		t.Fatalf("store returned error: %v", err)
	}
	if cache.isStale(manifest.EcosystemNpm, "lodash") {
		t.Error("fresh entry reported stale")
	}

	cache.ttl = time.Nanosecond
	time.Sleep(time.Millisecond)
	if !cache.isStale(manifest.EcosystemNpm, "lodash") {
		t.Error("expired entry reported fresh")
	}
}

func TestFileCache_Corrupt(t *testing.T) {
	dir := t.TempDir()
	cache := newFileCache(dir, time.Hour)

	path := cache.path(manifest.EcosystemNpm, "lodash")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.load(manifest.EcosystemNpm, "lodash"); err == nil {
		t.Fatal("expected error for corrupt cache entry")
	}
}

func TestFileCache_PathIsDeterministic(t *testing.T) {
	cache := newFileCache("/tmp/cache", time.Hour)

	a := cache.path(manifest.EcosystemNpm, "@babel/core")
	b := cache.path(manifest.EcosystemNpm, "@babel/core")
	if a != b {
		t.Error("paths for the same package differ")
	}
	if a == cache.path(manifest.EcosystemPyPI, "@babel/core") {
		t.Error("ecosystem not part of the cache key")
	}
	// Scoped names must not escape the cache directory.
	if filepath.Dir(a) != "/tmp/cache" {
		t.Errorf("path %q escapes the cache dir", a)
	}
}
