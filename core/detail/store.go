package detail

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/report"
)

// Store loads and queries findings.
type Store struct {
	findings []findings.Finding
	basePath string
}

// Filter defines criteria for filtering findings.
type Filter struct {
	Severities     []findings.Severity
	RulePattern    string
	PackagePattern string
	Ecosystem      string
}

// LoadFromFile loads findings from a findings.json report file.
func LoadFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading findings file: %w", err)
	}

	var rep report.JSONReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing findings JSON: %w", err)
	}

	// Derive basePath from the findings file location.
	basePath := filepath.Dir(path)

	return &Store{
		findings: rep.Findings,
		basePath: basePath,
	}, nil
}

// LoadFromSet wraps an in-memory FindingSet.
func LoadFromSet(fs *findings.FindingSet, basePath string) *Store {
	return &Store{
		findings: fs.Findings(),
		basePath: basePath,
	}
}

// Filter returns findings matching the given criteria.
func (s *Store) Filter(f Filter) []findings.Finding {
	var result []findings.Finding
	for i := range s.findings {
		finding := s.findings[i]
		if !matchesSeverity(finding.Severity, f.Severities) {
			continue
		}
		if !matchesPattern(finding.RuleID, f.RulePattern) {
			continue
		}
		if !matchesPattern(finding.Subject.Package, f.PackagePattern) {
			continue
		}
		if f.Ecosystem != "" && finding.Subject.Ecosystem != f.Ecosystem {
			continue
		}
		result = append(result, finding)
	}
	return result
}

// ByFingerprint looks up a finding by its fingerprint.
func (s *Store) ByFingerprint(fp string) (findings.Finding, bool) {
	for i := range s.findings {
		finding := s.findings[i]
		if finding.Fingerprint == fp {
			return finding, true
		}
	}
	return findings.Finding{}, false
}

// All returns all findings.
func (s *Store) All() []findings.Finding {
	return s.findings
}

// Ecosystems returns the distinct ecosystems present across all findings,
// sorted alphabetically.
func (s *Store) Ecosystems() []string {
	seen := make(map[string]struct{})
	for i := range s.findings {
		eco := s.findings[i].Subject.Ecosystem
		if eco == "" {
			continue
		}
		seen[eco] = struct{}{}
	}
	ecosystems := make([]string, 0, len(seen))
	for eco := range seen {
		ecosystems = append(ecosystems, eco)
	}
	sort.Strings(ecosystems)
	return ecosystems
}

// Count returns the total number of findings.
func (s *Store) Count() int {
	return len(s.findings)
}

// BasePath returns the audited directory the findings came from.
func (s *Store) BasePath() string {
	return s.basePath
}

func matchesSeverity(sev findings.Severity, allowed []findings.Severity) bool {
	if len(allowed) == 0 {
		return true
	}
	for i := range allowed {
		if allowed[i] == sev {
			return true
		}
	}
	return false
}

// matchesPattern matches a value against a glob-like pattern.
// Supports trailing "*" wildcard and substring matching.
func matchesPattern(value, pattern string) bool {
	if pattern == "" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		prefix := strings.TrimSuffix(pattern, "*")
		return strings.HasPrefix(value, prefix)
	}
	if matched, err := filepath.Match(pattern, value); err == nil && matched {
		return true
	}
	return strings.Contains(value, pattern)
}
