package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project-level configuration file looked up in the
// audit target directory.
const ConfigFileName = ".chainspect.yaml"

// AuditConfig holds project-level configuration loaded from
// .chainspect.yaml.
type AuditConfig struct {
	Audit   AuditSettings   `yaml:"audit"`
	Output  OutputSettings  `yaml:"output"`
	Explain ExplainSettings `yaml:"explain"`
}

// AuditSettings controls which manifests are audited and how the detectors
// behave.
type AuditSettings struct {
	// Exclude lists path substrings to skip during manifest discovery, in
	// addition to the built-in node_modules/vendor/.git exclusions.
	Exclude []string `yaml:"exclude"`

	// Threshold overrides the default similarity threshold for typosquat
	// detection. Zero means the detector default.
	Threshold float64 `yaml:"threshold"`

	// Allow lists package names that must never be flagged, e.g. internal
	// packages that intentionally shadow a public name. Entries are
	// "name" or "ecosystem:name".
	Allow []string `yaml:"allow"`

	// AllowedSuffixes extends the built-in legitimate suffix list
	// ("-es", "-js", "-cli") with organisation-specific ones.
	AllowedSuffixes []string `yaml:"allowed_suffixes"`

	// FailOn is the minimum severity that makes the audit exit non-zero.
	// Defaults to "high".
	FailOn string `yaml:"fail_on"`

	// BaselinePath points at the accepted-findings baseline file,
	// relative to the audit target. Empty means .chainspect/baseline.json.
	BaselinePath string `yaml:"baseline_path"`

	OSV        OSVConfig        `yaml:"osv"`
	Reputation ReputationConfig `yaml:"reputation"`
}

// OSVConfig controls OSV.dev vulnerability enrichment.
type OSVConfig struct {
	Disabled bool `yaml:"disabled"`
}

// ReputationConfig controls registry-metadata reputation scoring. Scoring
// needs network access to the package registries, so it is opt-in.
type ReputationConfig struct {
	Enabled bool `yaml:"enabled"`
	// MinScore is the score below which a REP-001 finding is emitted.
	// Zero means the default of 40.
	MinScore int `yaml:"min_score"`
}

// OutputSettings controls default output format and directory.
type OutputSettings struct {
	Format    string `yaml:"format"`
	Directory string `yaml:"directory"`
}

// ExplainSettings controls defaults for the explain command.
type ExplainSettings struct {
	APIKeyEnv string `yaml:"api_key_env"` // env var name to read API key from (default: OPENAI_API_KEY)
	Model     string `yaml:"model"`       // LLM model name (default: gpt-4o)
	BaseURL   string `yaml:"base_url"`    // custom OpenAI-compatible API base URL
	Timeout   string `yaml:"timeout"`     // per-request timeout (e.g., "2m", "30s")
}

// LoadAuditConfig reads .chainspect.yaml from root and returns the parsed
// config. If the file does not exist, a zero-value AuditConfig is returned
// with no error.
func LoadAuditConfig(root string) (*AuditConfig, error) {
	path := filepath.Join(root, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &AuditConfig{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg AuditConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}
