package sarif

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chainspect/chainspect/core/findings"
)

func sampleFindings() *findings.FindingSet {
	fs := findings.NewFindingSet()
	fs.Add(findings.Finding{
		RuleID:     findings.RuleTyposquat,
		Severity:   findings.SeverityHigh,
		Confidence: findings.ConfidenceHigh,
		Subject: findings.Subject{
			Package:   "lodahs",
			Version:   "1.0.0",
			Ecosystem: "npm",
			Manifest:  "package-lock.json",
		},
		Message: "name is confusingly similar to lodash",
	})
	fs.Add(findings.Finding{
		RuleID:     findings.RuleVulnerability,
		Severity:   findings.SeverityMedium,
		Confidence: findings.ConfidenceHigh,
		Subject: findings.Subject{
			Package:   "minimist",
			Version:   "0.0.8",
			Ecosystem: "npm",
			Manifest:  "package-lock.json",
		},
		Message:  "GHSA-vh95-rmgr-6w4m: prototype pollution",
		Metadata: map[string]string{"advisory": "GHSA-vh95-rmgr-6w4m"},
	})
	return fs
}

func generate(t *testing.T, fs *findings.FindingSet) Report {
	t.Helper()
	r := NewReporter("0.1.0")
	data, err := r.Generate(fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to parse SARIF JSON: %v", err)
	}
	return report
}

func TestGenerate_Envelope(t *testing.T) {
	report := generate(t, sampleFindings())

	if report.Version != "2.1.0" {
		t.Fatalf("expected version 2.1.0, got %q", report.Version)
	}
	if !strings.Contains(report.Schema, "sarif-schema-2.1.0") {
		t.Fatalf("unexpected schema URI %q", report.Schema)
	}
	if len(report.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(report.Runs))
	}
	driver := report.Runs[0].Tool.Driver
	if driver.Name != "chainspect" {
		t.Fatalf("expected driver name 'chainspect', got %q", driver.Name)
	}
	if driver.Version != "0.1.0" {
		t.Fatalf("expected driver version '0.1.0', got %q", driver.Version)
	}
}

func TestGenerate_Results(t *testing.T) {
	report := generate(t, sampleFindings())

	results := report.Runs[0].Results
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	var typo *Result
	for i := range results {
		if results[i].RuleID == findings.RuleTyposquat {
			typo = &results[i]
		}
	}
	if typo == nil {
		t.Fatal("TYPO-001 result not found")
	}
	if typo.Level != "error" {
		t.Fatalf("expected level 'error', got %q", typo.Level)
	}
	if !strings.Contains(typo.Message.Text, "lodahs@1.0.0") {
		t.Fatalf("message does not name the package: %q", typo.Message.Text)
	}
	if typo.Locations[0].PhysicalLocation.ArtifactLocation.URI != "package-lock.json" {
		t.Fatalf("unexpected artifact URI %q", typo.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	}
	if typo.Fingerprints["chainspect/v1"] == "" {
		t.Fatal("expected a chainspect/v1 fingerprint")
	}
}

func TestGenerate_RuleCatalog(t *testing.T) {
	report := generate(t, sampleFindings())

	rules := report.Runs[0].Tool.Driver.Rules
	if len(rules) != 2 {
		t.Fatalf("expected 2 catalog entries, got %d", len(rules))
	}
	// Catalog is sorted by rule ID: TYPO-001 before VULN-001.
	if rules[0].ID != findings.RuleTyposquat || rules[1].ID != findings.RuleVulnerability {
		t.Fatalf("unexpected catalog order: %q, %q", rules[0].ID, rules[1].ID)
	}
	if rules[0].DefaultConfiguration.Level != "error" {
		t.Fatalf("expected TYPO-001 default level 'error', got %q", rules[0].DefaultConfiguration.Level)
	}

	// Rule index on each result must point at its catalog entry.
	for _, res := range report.Runs[0].Results {
		if rules[res.RuleIndex].ID != res.RuleID {
			t.Fatalf("result rule index %d does not match rule %s", res.RuleIndex, res.RuleID)
		}
	}
}

func TestGenerate_NoManifestFallsBackToDot(t *testing.T) {
	fs := findings.NewFindingSet()
	fs.Add(findings.Finding{
		RuleID:   findings.RuleTyposquat,
		Severity: findings.SeverityHigh,
		Subject:  findings.Subject{Package: "lodahs", Ecosystem: "npm"},
		Message:  "name is confusingly similar to lodash",
	})

	report := generate(t, fs)
	uri := report.Runs[0].Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI
	if uri != "." {
		t.Fatalf("expected URI '.', got %q", uri)
	}
}

func TestGenerate_EmptyFindings(t *testing.T) {
	report := generate(t, findings.NewFindingSet())

	if len(report.Runs[0].Results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(report.Runs[0].Results))
	}
	if len(report.Runs[0].Tool.Driver.Rules) != 0 {
		t.Fatalf("expected empty rule catalog, got %d entries", len(report.Runs[0].Tool.Driver.Rules))
	}
}

func TestSeverityToLevel(t *testing.T) {
	tests := []struct {
		severity findings.Severity
		want     string
	}{
		{findings.SeverityCritical, "error"},
		{findings.SeverityHigh, "error"},
		{findings.SeverityMedium, "warning"},
		{findings.SeverityLow, "note"},
		{findings.SeverityInfo, "note"},
		{findings.Severity("bogus"), "note"},
	}
	for _, tt := range tests {
		if got := severityToLevel(tt.severity); got != tt.want {
			t.Errorf("severityToLevel(%s) = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestWriteToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "findings.sarif")

	r := NewReporter("0.1.0")
	if err := r.WriteToFile(sampleFindings(), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("written file is not valid SARIF JSON: %v", err)
	}
}
