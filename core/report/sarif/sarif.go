// Package sarif generates SARIF 2.1.0 reports from findings.
//
// The Static Analysis Results Interchange Format (SARIF) is an OASIS standard
// for the output of static analysis tools. This package produces SARIF v2.1.0
// documents that are compatible with GitHub Code Scanning, Azure DevOps, and
// other SARIF consumers. Findings are located at the lockfile they were
// parsed from, since package audits have no source region to point at.
package sarif

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/chainspect/chainspect/core/findings"
)

const (
	// sarifVersion is the SARIF specification version produced by this reporter.
	sarifVersion = "2.1.0"

	// sarifSchema is the JSON schema URI for SARIF 2.1.0.
	sarifSchema = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/errata01/os/schemas/sarif-schema-2.1.0.json"

	// toolName is the name of the tool embedded in the SARIF driver.
	toolName = "chainspect"

	// informationURI is the project URL embedded in the SARIF driver.
	informationURI = "https://github.com/chainspect/chainspect"
)

// ---------------------------------------------------------------------------
// SARIF 2.1.0 envelope types
// ---------------------------------------------------------------------------

// Report is the top-level SARIF document containing the schema version
// and one or more analysis runs.
type Report struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single invocation of an analysis tool.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool that produced the run.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains identifying information about the tool and the catalog of
// rules it can report on.
type Driver struct {
	Name           string                `json:"name"`
	Version        string                `json:"version"`
	InformationURI string                `json:"informationUri"`
	Rules          []ReportingDescriptor `json:"rules"`
}

// ReportingDescriptor defines a single rule in the SARIF rule catalog.
type ReportingDescriptor struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	ShortDescription     Message       `json:"shortDescription"`
	HelpURI              string        `json:"helpUri,omitempty"`
	DefaultConfiguration Configuration `json:"defaultConfiguration"`
}

// Configuration holds the default severity level for a rule.
type Configuration struct {
	Level string `json:"level"`
}

// Message is a SARIF message object containing human-readable text.
type Message struct {
	Text string `json:"text"`
}

// Result is a single finding expressed in SARIF format.
type Result struct {
	RuleID       string            `json:"ruleId"`
	RuleIndex    int               `json:"ruleIndex"`
	Level        string            `json:"level"`
	Message      Message           `json:"message"`
	Locations    []Location        `json:"locations"`
	Fingerprints map[string]string `json:"fingerprints"`
}

// Location wraps a physical location within a source artifact.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation identifies the artifact the result applies to.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
}

// ArtifactLocation is a URI reference to a manifest file.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// ---------------------------------------------------------------------------
// Reporter implementation
// ---------------------------------------------------------------------------

// ruleDescriptions maps the built-in rule IDs to their catalog entries.
// Findings with rule IDs outside this map still get a catalog entry derived
// from the finding itself.
var ruleDescriptions = map[string]struct {
	description string
	severity    findings.Severity
}{
	findings.RuleTyposquat:      {"Package name is confusingly similar to a popular package", findings.SeverityHigh},
	findings.RuleKnownMalicious: {"Package name appears on a known-malicious list", findings.SeverityCritical},
	findings.RuleLowReputation:  {"Registry metadata reputation score below threshold", findings.SeverityMedium},
	findings.RuleVulnerability:  {"Known vulnerability reported by an advisory database", findings.SeverityHigh},
}

// Reporter produces SARIF 2.1.0 documents from a FindingSet. It
// implements the report.Reporter interface.
type Reporter struct {
	// ToolVersion is the version string embedded in the SARIF tool driver.
	ToolVersion string
}

// NewReporter returns a Reporter configured with the given tool version.
func NewReporter(version string) *Reporter {
	return &Reporter{ToolVersion: version}
}

// Generate builds a complete SARIF 2.1.0 JSON document from the given
// FindingSet. Findings are sorted deterministically before serialization to
// guarantee reproducible output. The returned bytes are pretty-printed JSON.
func (r *Reporter) Generate(fs *findings.FindingSet) ([]byte, error) {
	fs.SortDeterministic()

	items := fs.Findings()

	ruleCatalog, ruleIndex := buildRuleCatalog(items)

	results := make([]Result, 0, len(items))
	for _, f := range items {
		idx, ok := ruleIndex[f.RuleID]
		if !ok {
			idx = 0
		}

		uri := f.Subject.Manifest
		if uri == "" {
			// Single-name checks have no manifest to point at.
			uri = "."
		}

		msg := f.Message
		if f.Subject.Package != "" {
			msg = fmt.Sprintf("%s@%s (%s): %s", f.Subject.Package, f.Subject.Version, f.Subject.Ecosystem, f.Message)
		}

		results = append(results, Result{
			RuleID:    f.RuleID,
			RuleIndex: idx,
			Level:     severityToLevel(f.Severity),
			Message:   Message{Text: msg},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: uri},
					},
				},
			},
			Fingerprints: map[string]string{
				"chainspect/v1": f.Fingerprint,
			},
		})
	}

	report := Report{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:           toolName,
						Version:        r.ToolVersion,
						InformationURI: informationURI,
						Rules:          ruleCatalog,
					},
				},
				Results: results,
			},
		},
	}

	return json.MarshalIndent(report, "", "  ")
}

// WriteToFile generates the SARIF report and writes it to the specified path
// with 0644 permissions. Parent directories must already exist.
func (r *Reporter) WriteToFile(fs *findings.FindingSet, path string) error {
	data, err := r.Generate(fs)
	if err != nil {
		return fmt.Errorf("sarif: generate report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// severityToLevel maps a chainspect severity to the corresponding SARIF level
// string. Critical and high map to "error", medium to "warning", and low/info
// to "note".
func severityToLevel(s findings.Severity) string {
	switch s {
	case findings.SeverityCritical, findings.SeverityHigh:
		return "error"
	case findings.SeverityMedium:
		return "warning"
	case findings.SeverityLow, findings.SeverityInfo:
		return "note"
	default:
		return "note"
	}
}

// buildRuleCatalog constructs the SARIF rules array and a map from rule ID to
// its index within that array. Built-in rules get their catalog description;
// unknown rule IDs fall back to the first finding's data. Entries are sorted
// by rule ID for deterministic output.
func buildRuleCatalog(items []findings.Finding) ([]ReportingDescriptor, map[string]int) {
	type ruleInfo struct {
		id       string
		severity findings.Severity
		desc     string
	}

	seen := make(map[string]struct{})
	var unique []ruleInfo

	for _, f := range items {
		if _, exists := seen[f.RuleID]; exists {
			continue
		}
		seen[f.RuleID] = struct{}{}

		info := ruleInfo{id: f.RuleID, severity: f.Severity, desc: f.Message}
		if known, ok := ruleDescriptions[f.RuleID]; ok {
			info.severity = known.severity
			info.desc = known.description
		}
		unique = append(unique, info)
	}

	sort.Slice(unique, func(i, j int) bool {
		return unique[i].id < unique[j].id
	})

	catalog := make([]ReportingDescriptor, 0, len(unique))
	index := make(map[string]int, len(unique))

	for _, ri := range unique {
		idx := len(catalog)
		index[ri.id] = idx
		catalog = append(catalog, ReportingDescriptor{
			ID:               ri.id,
			Name:             ri.id,
			ShortDescription: Message{Text: ri.desc},
			HelpURI:          informationURI,
			DefaultConfiguration: Configuration{
				Level: severityToLevel(ri.severity),
			},
		})
	}

	return catalog, index
}
