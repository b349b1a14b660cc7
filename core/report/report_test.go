package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chainspect/chainspect/core/findings"
)

// sampleFindingSet returns a FindingSet with findings added out of order so
// tests can verify deterministic sorting.
func sampleFindingSet() *findings.FindingSet {
	fs := findings.NewFindingSet()

	fs.Add(findings.Finding{
		RuleID:     findings.RuleVulnerability,
		Severity:   findings.SeverityMedium,
		Confidence: findings.ConfidenceHigh,
		Subject: findings.Subject{
			Package:   "lodash",
			Version:   "4.17.20",
			Ecosystem: "npm",
			Manifest:  "package-lock.json",
		},
		Message:  "GHSA-1234: prototype pollution",
		Metadata: map[string]string{"advisory": "GHSA-1234"},
	})
	fs.Add(findings.Finding{
		RuleID:     findings.RuleTyposquat,
		Severity:   findings.SeverityCritical,
		Confidence: findings.ConfidenceHigh,
		Subject: findings.Subject{
			Package:   "expresss",
			Ecosystem: "npm",
			Manifest:  "package-lock.json",
		},
		Message: "expresss resembles express",
	})
	return fs
}

func TestJSONReporter_Generate(t *testing.T) {
	data, err := NewJSONReporter("1.2.3").Generate(sampleFindingSet())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	var report JSONReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if report.Meta.ToolName != "chainspect" || report.Meta.ToolVersion != "1.2.3" {
		t.Errorf("meta = %+v", report.Meta)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(report.Findings))
	}
	// Critical sorts first.
	if report.Findings[0].Subject.Package != "expresss" {
		t.Errorf("first finding = %+v, want the critical typosquat", report.Findings[0])
	}
	if report.Summary[findings.SeverityCritical] != 1 || report.Summary[findings.SeverityMedium] != 1 {
		t.Errorf("summary = %v", report.Summary)
	}
}

func TestJSONReporter_EmptySet(t *testing.T) {
	data, err := NewJSONReporter("dev").Generate(findings.NewFindingSet())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.Contains(string(data), `"findings": []`) {
		t.Errorf("empty set should render an empty array, got:\n%s", data)
	}
}

func TestJSONReporter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := NewJSONReporter("dev").WriteToFile(sampleFindingSet(), path); err != nil {
		t.Fatalf("WriteToFile returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	var report JSONReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("written report is not valid JSON: %v", err)
	}
}

func TestCSVReporter_Generate(t *testing.T) {
	data, err := NewCSVReporter().Generate(sampleFindingSet())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), data)
	}
	if !strings.HasPrefix(lines[0], "rule_id,severity,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "TYPO-001") || !strings.Contains(lines[1], "critical") {
		t.Errorf("first data row should be the critical typosquat: %s", lines[1])
	}
	if !strings.Contains(lines[2], "VULN-001") {
		t.Errorf("second data row: %s", lines[2])
	}
}

func TestCSVReporter_Empty(t *testing.T) {
	data, err := NewCSVReporter().Generate(findings.NewFindingSet())
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Errorf("empty set should yield only the header, got:\n%s", data)
	}
}
