// Package osv queries the OSV.dev advisory database for known
// vulnerabilities affecting an inventory of packages.
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/manifest"
)

// DefaultBaseURL is the production OSV.dev API endpoint.
const DefaultBaseURL = "https://api.osv.dev"

// batchLimit is the maximum number of queries per OSV batch request.
const batchLimit = 1000

// Vulnerability is a single advisory returned for a package.
type Vulnerability struct {
	ID       string            `json:"id"`
	Summary  string            `json:"summary"`
	Details  string            `json:"details,omitempty"`
	Aliases  []string          `json:"aliases,omitempty"`
	Severity findings.Severity `json:"severity"`
}

// Client talks to an OSV-compatible batch query API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint, typically an
// httptest server or a caching proxy.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing batch requests at rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// NewClient returns a Client for the production OSV.dev endpoint. The
// default rate limit is deliberately gentle; OSV is a free public service.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type batchQuery struct {
	Package struct {
		Name      string `json:"name"`
		Ecosystem string `json:"ecosystem"`
	} `json:"package"`
	Version string `json:"version,omitempty"`
}

type batchRequest struct {
	Queries []batchQuery `json:"queries"`
}

type batchResult struct {
	Vulns []rawVuln `json:"vulns"`
}

type batchResponse struct {
	Results []batchResult `json:"results"`
}

type rawVuln struct {
	ID       string        `json:"id"`
	Summary  string        `json:"summary"`
	Details  string        `json:"details"`
	Aliases  []string      `json:"aliases"`
	Severity []rawSeverity `json:"severity"`
}

type rawSeverity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

// Query looks up known vulnerabilities for the given packages and returns a
// map from package index to advisories. Packages with no advisories are
// absent from the map.
//
// On network errors the partial result gathered so far is returned without
// an error; an audit should degrade to offline detection rather than fail
// because an advisory service is unreachable.
func (c *Client) Query(ctx context.Context, pkgs []manifest.Package) (map[int][]Vulnerability, error) {
	result := make(map[int][]Vulnerability)

	for start := 0; start < len(pkgs); start += batchLimit {
		end := min(start+batchLimit, len(pkgs))
		batch := pkgs[start:end]

		if err := c.limiter.Wait(ctx); err != nil {
			return result, err
		}

		queries := make([]batchQuery, len(batch))
		for i, p := range batch {
			queries[i].Package.Name = p.Name
			queries[i].Package.Ecosystem = ecosystemToOSV(p.Ecosystem)
			queries[i].Version = p.Version
		}

		body, err := json.Marshal(batchRequest{Queries: queries})
		if err != nil {
			return nil, fmt.Errorf("marshalling OSV request: %w", err)
		}

		url := strings.TrimRight(c.baseURL, "/") + "/v1/querybatch"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating OSV request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return result, nil
		}

		results, decodeErr := decodeBatch(resp)
		_ = resp.Body.Close()
		if decodeErr != nil {
			return result, nil
		}

		for i, r := range results {
			if len(r.Vulns) == 0 {
				continue
			}
			vulns := make([]Vulnerability, len(r.Vulns))
			for j, v := range r.Vulns {
				vulns[j] = Vulnerability{
					ID:       v.ID,
					Summary:  v.Summary,
					Details:  v.Details,
					Aliases:  v.Aliases,
					Severity: mapSeverity(v),
				}
			}
			result[start+i] = vulns
		}
	}

	return result, nil
}

func decodeBatch(resp *http.Response) ([]batchResult, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSV API returned status %d", resp.StatusCode)
	}
	var br batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, err
	}
	return br.Results, nil
}

// mapSeverity converts OSV severity entries to a findings Severity. It
// looks for a CVSS_V3 score first, then CVSS_V2, and falls back to medium
// when no numeric score is present.
func mapSeverity(v rawVuln) findings.Severity {
	for _, s := range v.Severity {
		if s.Type == "CVSS_V3" || s.Type == "CVSS_V2" {
			return cvssToSeverity(s.Score)
		}
	}
	return findings.SeverityMedium
}

// cvssToSeverity converts a plain numeric CVSS base score ("9.8") to a
// Severity. CVSS vector strings do not embed the base score, so anything
// that does not parse as a float maps to medium.
func cvssToSeverity(score string) findings.Severity {
	f, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return findings.SeverityMedium
	}
	switch {
	case f >= 9.0:
		return findings.SeverityCritical
	case f >= 7.0:
		return findings.SeverityHigh
	case f >= 4.0:
		return findings.SeverityMedium
	case f >= 0.1:
		return findings.SeverityLow
	default:
		return findings.SeverityInfo
	}
}

// ecosystemToOSV maps chainspect's internal ecosystem names to the
// ecosystem strings expected by the OSV.dev API.
func ecosystemToOSV(eco string) string {
	switch eco {
	case manifest.EcosystemGo:
		return "Go"
	case manifest.EcosystemNpm:
		return "npm"
	case manifest.EcosystemPyPI:
		return "PyPI"
	case manifest.EcosystemRubyGems:
		return "RubyGems"
	case manifest.EcosystemCrates:
		return "crates.io"
	default:
		return eco
	}
}
