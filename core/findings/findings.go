// Package findings defines the canonical audit findings model used across
// all chainspect detectors and reporters. Every detector produces Finding
// values which are collected into a FindingSet for deduplication, sorting,
// and downstream consumption by report formatters.
package findings

import (
	"sort"
)

// Severity indicates how critical a finding is. The values are ordered from
// most to least severe.
type Severity string

// Severity level constants ordered from most to least severe.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities for comparison; higher is more severe.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// AtLeast reports whether s is at least as severe as threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return severityRank[s] >= severityRank[threshold]
}

// Confidence expresses how certain the detector is that the finding is a
// true positive rather than a false positive.
type Confidence string

// Confidence level constants for finding certainty.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rule identifiers for the built-in detectors.
const (
	RuleTyposquat      = "TYPO-001" // name confusingly similar to a popular package
	RuleKnownMalicious = "TYPO-002" // name on a known-malicious list
	RuleLowReputation  = "REP-001"  // registry metadata reputation below threshold
	RuleVulnerability  = "VULN-001" // known vulnerability reported by an advisory database
)

// Subject identifies the package a finding is about and where it was
// declared.
type Subject struct {
	Package   string `json:"package"`
	Version   string `json:"version,omitempty"`
	Ecosystem string `json:"ecosystem"`
	// Manifest is the lockfile the package was read from, when the finding
	// came from an audit rather than a single-name check.
	Manifest string `json:"manifest,omitempty"`
}

// Finding is a single audit observation produced by a detector. It is the
// canonical unit of output for the entire chainspect pipeline.
type Finding struct {
	ID          string            `json:"id,omitempty"`
	RuleID      string            `json:"ruleId"`
	Severity    Severity          `json:"severity"`
	Confidence  Confidence        `json:"confidence"`
	Subject     Subject           `json:"subject"`
	Message     string            `json:"message"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// FindingSet is an ordered, deduplicated collection of findings. It is the
// primary data structure passed between pipeline stages.
type FindingSet struct {
	items []Finding
}

// NewFindingSet returns an empty FindingSet ready for use.
func NewFindingSet() *FindingSet {
	return &FindingSet{}
}

// Add appends a finding to the set. If the finding has an empty Fingerprint,
// one is computed automatically from RuleID, Subject, and Message so that
// every finding in the set is always fingerprintable.
func (fs *FindingSet) Add(f Finding) {
	if f.Fingerprint == "" {
		f.Fingerprint = ComputeFingerprint(f.RuleID, f.Subject, f.Message)
	}
	fs.items = append(fs.items, f)
}

// Merge appends every finding from other into fs.
func (fs *FindingSet) Merge(other *FindingSet) {
	if other == nil {
		return
	}
	fs.items = append(fs.items, other.items...)
}

// Deduplicate removes findings that share the same Fingerprint, keeping only
// the first occurrence. Call this after all findings have been added and
// before producing output.
func (fs *FindingSet) Deduplicate() {
	seen := make(map[string]struct{}, len(fs.items))
	unique := make([]Finding, 0, len(fs.items))
	for _, f := range fs.items {
		if _, exists := seen[f.Fingerprint]; exists {
			continue
		}
		seen[f.Fingerprint] = struct{}{}
		unique = append(unique, f)
	}
	fs.items = unique
}

// SortDeterministic orders findings by severity (most severe first), then
// RuleID, then manifest path, then package name. This guarantees stable,
// reproducible output regardless of the order in which detectors emit their
// results.
func (fs *FindingSet) SortDeterministic() {
	sort.SliceStable(fs.items, func(i, j int) bool {
		a, b := fs.items[i], fs.items[j]
		if severityRank[a.Severity] != severityRank[b.Severity] {
			return severityRank[a.Severity] > severityRank[b.Severity]
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		if a.Subject.Manifest != b.Subject.Manifest {
			return a.Subject.Manifest < b.Subject.Manifest
		}
		return a.Subject.Package < b.Subject.Package
	})
}

// Findings returns the current slice of findings. The caller must not modify
// the returned slice.
func (fs *FindingSet) Findings() []Finding {
	return fs.items
}

// Len returns the number of findings in the set.
func (fs *FindingSet) Len() int {
	return len(fs.items)
}

// MaxSeverity returns the highest severity present in the set, or
// SeverityInfo for an empty set.
func (fs *FindingSet) MaxSeverity() Severity {
	max := SeverityInfo
	for _, f := range fs.items {
		if f.Severity.AtLeast(max) {
			max = f.Severity
		}
	}
	return max
}

// CountBySeverity returns the number of findings per severity level.
func (fs *FindingSet) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range fs.items {
		counts[f.Severity]++
	}
	return counts
}
