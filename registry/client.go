package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/chainspect/chainspect/core/manifest"
)

const (
	defaultCacheTTL    = 1 * time.Hour
	defaultHTTPTimeout = 30 * time.Second
	maxBodySize        = 10 * 1024 * 1024 // 10 MB
)

// Default registry API endpoints.
const (
	DefaultNpmURL    = "https://registry.npmjs.org"
	DefaultPyPIURL   = "https://pypi.org"
	DefaultCratesURL = "https://crates.io"
)

// Client fetches, caches, and normalises package metadata from ecosystem
// registries.
type Client struct {
	baseURLs   map[string]string
	cache      *fileCache
	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithCacheDir sets the directory for caching registry responses.
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) { c.cache.dir = dir }
}

// WithCacheTTL sets how long cached metadata is considered fresh.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.cache.ttl = ttl }
}

// WithHTTPClient sets a custom HTTP client for registry fetches.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the API endpoint for one ecosystem, typically to
// point tests at an httptest server or production use at a registry mirror.
func WithBaseURL(ecosystem, url string) ClientOption {
	return func(c *Client) { c.baseURLs[ecosystem] = url }
}

// WithRateLimit caps outgoing registry requests at rps requests per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewClient creates a registry Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	cacheDir := filepath.Join(os.Getenv("HOME"), ".chainspect", "cache", "registry")

	c := &Client{
		baseURLs: map[string]string{
			manifest.EcosystemNpm:    DefaultNpmURL,
			manifest.EcosystemPyPI:   DefaultPyPIURL,
			manifest.EcosystemCrates: DefaultCratesURL,
		},
		cache:      newFileCache(cacheDir, defaultCacheTTL),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns metadata for the named package, serving from the cache when
// fresh. On network errors a stale cache entry is returned as a fallback;
// ErrNotFound is returned when the registry reports the package does not
// exist.
func (c *Client) Fetch(ctx context.Context, ecosystem, name string) (*Metadata, error) {
	base, ok := c.baseURLs[ecosystem]
	if !ok {
		return nil, fmt.Errorf("no registry configured for ecosystem %q", ecosystem)
	}

	if !c.cache.isStale(ecosystem, name) {
		if md, err := c.cache.load(ecosystem, name); err == nil {
			return md, nil
		}
		// Cache corrupt or unreadable, fall through to fetch.
	}

	md, err := c.fetch(ctx, base, ecosystem, name)
	if err != nil {
		if err == ErrNotFound {
			return nil, err
		}
		// Try stale cache as fallback.
		if cached, cacheErr := c.cache.load(ecosystem, name); cacheErr == nil {
			return cached, nil
		}
		return nil, err
	}

	_ = c.cache.store(ecosystem, name, md)
	return md, nil
}

func (c *Client) fetch(ctx context.Context, base, ecosystem, name string) (*Metadata, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var endpoint string
	switch ecosystem {
	case manifest.EcosystemNpm:
		// Scoped names keep their slash encoded: @babel%2fcore.
		endpoint = base + "/" + url.PathEscape(name)
	case manifest.EcosystemPyPI:
		endpoint = base + "/pypi/" + url.PathEscape(name) + "/json"
	case manifest.EcosystemCrates:
		endpoint = base + "/api/v1/crates/" + url.PathEscape(name)
	default:
		return nil, fmt.Errorf("no registry configured for ecosystem %q", ecosystem)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch ecosystem {
	case manifest.EcosystemNpm:
		return parseNpm(body)
	case manifest.EcosystemPyPI:
		return parsePyPI(name, body)
	default:
		return parseCrates(body)
	}
}

// npmDocument is the subset of the npm registry packument the auditor
// reads.
type npmDocument struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	DistTags    map[string]string `json:"dist-tags"`
	Time        map[string]string `json:"time"`
	Maintainers []struct {
		Name string `json:"name"`
	} `json:"maintainers"`
	Versions map[string]struct {
		Deprecated string `json:"deprecated"`
	} `json:"versions"`
	Repository struct {
		URL string `json:"url"`
	} `json:"repository"`
}

func parseNpm(body []byte) (*Metadata, error) {
	var doc npmDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing npm metadata: %w", err)
	}

	md := &Metadata{
		Name:        doc.Name,
		Ecosystem:   manifest.EcosystemNpm,
		Description: doc.Description,
		Latest:      doc.DistTags["latest"],
		Repository:  doc.Repository.URL,
	}
	for _, m := range doc.Maintainers {
		md.Maintainers = append(md.Maintainers, m.Name)
	}

	for key, stamp := range doc.Time {
		t, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			continue
		}
		switch key {
		case "created":
			md.CreatedAt = t
		case "modified":
			md.ModifiedAt = t
		default:
			md.Releases = append(md.Releases, Release{Version: key, ReleasedAt: t})
		}
	}
	sortReleases(md.Releases)

	if v, ok := doc.Versions[md.Latest]; ok {
		md.Deprecated = v.Deprecated
	}
	return md, nil
}

// pypiDocument is the subset of the PyPI JSON API response the auditor
// reads.
type pypiDocument struct {
	Info struct {
		Name       string `json:"name"`
		Summary    string `json:"summary"`
		Version    string `json:"version"`
		ProjectURL string `json:"project_url"`
		Yanked     bool   `json:"yanked"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime string `json:"upload_time_iso_8601"`
		Yanked     bool   `json:"yanked"`
	} `json:"releases"`
}

func parsePyPI(name string, body []byte) (*Metadata, error) {
	var doc pypiDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing PyPI metadata: %w", err)
	}

	md := &Metadata{
		Name:        doc.Info.Name,
		Ecosystem:   manifest.EcosystemPyPI,
		Description: doc.Info.Summary,
		Latest:      doc.Info.Version,
		Repository:  doc.Info.ProjectURL,
	}
	if md.Name == "" {
		md.Name = name
	}

	for ver, files := range doc.Releases {
		rel := Release{Version: ver}
		for _, f := range files {
			if t, err := time.Parse(time.RFC3339, f.UploadTime); err == nil {
				if rel.ReleasedAt.IsZero() || t.Before(rel.ReleasedAt) {
					rel.ReleasedAt = t
				}
			}
			rel.Yanked = rel.Yanked || f.Yanked
		}
		md.Releases = append(md.Releases, rel)
	}
	sortReleases(md.Releases)

	if len(md.Releases) > 0 {
		md.CreatedAt = md.Releases[0].ReleasedAt
		md.ModifiedAt = md.Releases[len(md.Releases)-1].ReleasedAt
	}
	return md, nil
}

// cratesDocument is the subset of the crates.io API response the auditor
// reads.
type cratesDocument struct {
	Crate struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		MaxVersion  string `json:"max_version"`
		CreatedAt   string `json:"created_at"`
		UpdatedAt   string `json:"updated_at"`
		Downloads   int64  `json:"downloads"`
		Repository  string `json:"repository"`
	} `json:"crate"`
	Versions []struct {
		Num       string `json:"num"`
		CreatedAt string `json:"created_at"`
		Yanked    bool   `json:"yanked"`
	} `json:"versions"`
}

func parseCrates(body []byte) (*Metadata, error) {
	var doc cratesDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing crates.io metadata: %w", err)
	}

	md := &Metadata{
		Name:        doc.Crate.Name,
		Ecosystem:   manifest.EcosystemCrates,
		Description: doc.Crate.Description,
		Latest:      doc.Crate.MaxVersion,
		Repository:  doc.Crate.Repository,
		Downloads:   doc.Crate.Downloads,
	}
	if t, err := time.Parse(time.RFC3339, doc.Crate.CreatedAt); err == nil {
		md.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, doc.Crate.UpdatedAt); err == nil {
		md.ModifiedAt = t
	}
	for _, v := range doc.Versions {
		rel := Release{Version: v.Num, Yanked: v.Yanked}
		if t, err := time.Parse(time.RFC3339, v.CreatedAt); err == nil {
			rel.ReleasedAt = t
		}
		md.Releases = append(md.Releases, rel)
	}
	sortReleases(md.Releases)
	return md, nil
}

// sortReleases orders releases by publication time, oldest first, so
// CreatedAt/ModifiedAt derivation and staleness checks are deterministic.
func sortReleases(releases []Release) {
	sort.Slice(releases, func(i, j int) bool {
		return releases[i].ReleasedAt.Before(releases[j].ReleasedAt)
	})
}
