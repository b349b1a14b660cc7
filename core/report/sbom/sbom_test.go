package sbom

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/manifest"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testInventory() *manifest.Inventory {
	inv := &manifest.Inventory{}
	inv.Add(
		manifest.Package{Name: "express", Version: "4.18.2", Ecosystem: "npm"},
		manifest.Package{Name: "lodash", Version: "4.17.21", Ecosystem: "npm"},
		manifest.Package{Name: "golang.org/x/text", Version: "v0.14.0", Ecosystem: "go"},
		manifest.Package{Name: "flask", Version: "3.0.0", Ecosystem: "pypi"},
		manifest.Package{Name: "rails", Version: "7.1.2", Ecosystem: "rubygems"},
	)
	return inv
}

func advisoryFinding(pkg, version, eco, id string) findings.Finding {
	return findings.Finding{
		RuleID:     findings.RuleVulnerability,
		Severity:   findings.SeverityHigh,
		Confidence: findings.ConfidenceHigh,
		Subject: findings.Subject{
			Package:   pkg,
			Version:   version,
			Ecosystem: eco,
		},
		Message:  id + ": prototype pollution",
		Metadata: map[string]string{"advisory": id},
	}
}

// ---------------------------------------------------------------------------
// CycloneDX
// ---------------------------------------------------------------------------

func TestCycloneDX_SchemaFields(t *testing.T) {
	r := NewCycloneDXReporter("0.1.0")
	data, err := r.Generate(testInventory(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report CDXReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to parse CycloneDX JSON: %v", err)
	}

	if report.BOMFormat != "CycloneDX" {
		t.Fatalf("expected bomFormat 'CycloneDX', got %q", report.BOMFormat)
	}
	if report.SpecVersion != "1.5" {
		t.Fatalf("expected specVersion '1.5', got %q", report.SpecVersion)
	}
	if report.Version != 1 {
		t.Fatalf("expected version 1, got %d", report.Version)
	}
}

func TestCycloneDX_ToolMetadata(t *testing.T) {
	r := NewCycloneDXReporter("0.1.0")
	data, err := r.Generate(testInventory(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report CDXReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to parse CycloneDX JSON: %v", err)
	}

	if len(report.Metadata.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(report.Metadata.Tools))
	}
	tool := report.Metadata.Tools[0]
	if tool.Name != "chainspect" {
		t.Fatalf("expected tool name 'chainspect', got %q", tool.Name)
	}
	if tool.Version != "0.1.0" {
		t.Fatalf("expected tool version '0.1.0', got %q", tool.Version)
	}
}

func TestCycloneDX_ComponentCount(t *testing.T) {
	r := NewCycloneDXReporter("0.1.0")
	data, err := r.Generate(testInventory(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report CDXReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to parse CycloneDX JSON: %v", err)
	}

	if len(report.Components) != 5 {
		t.Fatalf("expected 5 components, got %d", len(report.Components))
	}
}

func TestCycloneDX_PURLGeneration(t *testing.T) {
	tests := []struct {
		pkg  manifest.Package
		want string
	}{
		{manifest.Package{Name: "express", Version: "4.18.2", Ecosystem: "npm"}, "pkg:npm/express@4.18.2"},
		{manifest.Package{Name: "flask", Version: "3.0.0", Ecosystem: "pypi"}, "pkg:pypi/flask@3.0.0"},
		{manifest.Package{Name: "golang.org/x/text", Version: "v0.14.0", Ecosystem: "go"}, "pkg:golang/golang.org/x/text@v0.14.0"},
		{manifest.Package{Name: "rails", Version: "7.1.2", Ecosystem: "rubygems"}, "pkg:gem/rails@7.1.2"},
		{manifest.Package{Name: "serde", Version: "1.0.196", Ecosystem: "crates"}, "pkg:cargo/serde@1.0.196"},
		{manifest.Package{Name: "weird", Version: "1.0.0", Ecosystem: "conda"}, ""},
	}

	for _, tt := range tests {
		if got := buildPURL(tt.pkg); got != tt.want {
			t.Errorf("buildPURL(%s/%s) = %q, want %q", tt.pkg.Ecosystem, tt.pkg.Name, got, tt.want)
		}
	}
}

func TestCycloneDX_DeterministicOrder(t *testing.T) {
	r := NewCycloneDXReporter("0.1.0")

	inv := &manifest.Inventory{}
	inv.Add(
		manifest.Package{Name: "zlib", Version: "1.0.0", Ecosystem: "pypi"},
		manifest.Package{Name: "express", Version: "4.18.2", Ecosystem: "npm"},
		manifest.Package{Name: "axios", Version: "1.6.0", Ecosystem: "npm"},
	)

	data, err := r.Generate(inv, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report CDXReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to parse CycloneDX JSON: %v", err)
	}

	want := []string{"axios", "express", "zlib"}
	for i, name := range want {
		if report.Components[i].Name != name {
			t.Fatalf("component %d: expected %q, got %q", i, name, report.Components[i].Name)
		}
	}
}

func TestCycloneDX_Vulnerabilities(t *testing.T) {
	r := NewCycloneDXReporter("0.1.0")
	ff := []findings.Finding{
		advisoryFinding("lodash", "4.17.21", "npm", "GHSA-35jh-r3h4-6jhm"),
	}

	data, err := r.Generate(testInventory(), ff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report CDXReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to parse CycloneDX JSON: %v", err)
	}

	if len(report.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 vulnerability, got %d", len(report.Vulnerabilities))
	}
	v := report.Vulnerabilities[0]
	if v.ID != "GHSA-35jh-r3h4-6jhm" {
		t.Fatalf("unexpected vulnerability ID %q", v.ID)
	}
	if v.Source.Name != "OSV" {
		t.Fatalf("expected source OSV, got %q", v.Source.Name)
	}
	if len(v.Affects) != 1 {
		t.Fatalf("expected 1 affects entry, got %d", len(v.Affects))
	}

	// The affects ref must point at the lodash component.
	var lodashRef string
	for _, c := range report.Components {
		if c.Name == "lodash" {
			lodashRef = c.BOMRef
		}
	}
	if v.Affects[0].Ref != lodashRef {
		t.Fatalf("affects ref %q does not match lodash bom-ref %q", v.Affects[0].Ref, lodashRef)
	}
}

func TestCycloneDX_SkipsFindingsWithoutAdvisory(t *testing.T) {
	r := NewCycloneDXReporter("0.1.0")
	ff := []findings.Finding{
		{
			RuleID:   findings.RuleTyposquat,
			Severity: findings.SeverityHigh,
			Subject:  findings.Subject{Package: "lodahs", Version: "1.0.0", Ecosystem: "npm"},
			Message:  "possible typosquat of lodash",
		},
	}

	data, err := r.Generate(testInventory(), ff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report CDXReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("failed to parse CycloneDX JSON: %v", err)
	}
	if len(report.Vulnerabilities) != 0 {
		t.Fatalf("expected 0 vulnerabilities, got %d", len(report.Vulnerabilities))
	}
}

func TestCycloneDX_WriteToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.cdx.json")

	r := NewCycloneDXReporter("0.1.0")
	if err := r.WriteToFile(testInventory(), nil, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	var report CDXReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("written file is not valid CycloneDX JSON: %v", err)
	}
}

// ---------------------------------------------------------------------------
// SPDX
// ---------------------------------------------------------------------------

func TestSPDX_SchemaFields(t *testing.T) {
	r := NewSPDXReporter("0.1.0")
	data, err := r.Generate(testInventory(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc SPDXDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to parse SPDX JSON: %v", err)
	}

	if doc.SPDXVersion != "SPDX-2.3" {
		t.Fatalf("expected spdxVersion 'SPDX-2.3', got %q", doc.SPDXVersion)
	}
	if doc.DataLicense != "CC0-1.0" {
		t.Fatalf("expected dataLicense 'CC0-1.0', got %q", doc.DataLicense)
	}
	if doc.SPDXID != "SPDXRef-DOCUMENT" {
		t.Fatalf("expected SPDXID 'SPDXRef-DOCUMENT', got %q", doc.SPDXID)
	}
}

func TestSPDX_PackagesAndRelationships(t *testing.T) {
	r := NewSPDXReporter("0.1.0")
	data, err := r.Generate(testInventory(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc SPDXDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to parse SPDX JSON: %v", err)
	}

	if len(doc.Packages) != 5 {
		t.Fatalf("expected 5 packages, got %d", len(doc.Packages))
	}
	if len(doc.Relationships) != 5 {
		t.Fatalf("expected 5 relationships, got %d", len(doc.Relationships))
	}
	for _, rel := range doc.Relationships {
		if rel.SPDXElementID != "SPDXRef-DOCUMENT" || rel.RelationshipType != "DESCRIBES" {
			t.Fatalf("unexpected relationship: %+v", rel)
		}
	}
}

func TestSPDX_SecurityRefs(t *testing.T) {
	r := NewSPDXReporter("0.1.0")
	ff := []findings.Finding{
		advisoryFinding("flask", "3.0.0", "pypi", "PYSEC-2024-0001"),
	}

	data, err := r.Generate(testInventory(), ff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc SPDXDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to parse SPDX JSON: %v", err)
	}

	var flask *SPDXPackage
	for i := range doc.Packages {
		if doc.Packages[i].Name == "flask" {
			flask = &doc.Packages[i]
		}
	}
	if flask == nil {
		t.Fatal("flask package not found in SPDX document")
	}

	var found bool
	for _, ref := range flask.ExternalRefs {
		if ref.ReferenceCategory == "SECURITY" && ref.ReferenceLocator == "https://osv.dev/vulnerability/PYSEC-2024-0001" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected SECURITY external ref on flask, got %+v", flask.ExternalRefs)
	}
}

func TestSPDX_NoAssertionDefaults(t *testing.T) {
	r := NewSPDXReporter("0.1.0")
	data, err := r.Generate(testInventory(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc SPDXDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to parse SPDX JSON: %v", err)
	}

	for _, p := range doc.Packages {
		if p.DeclaredLicense != "NOASSERTION" {
			t.Fatalf("package %s: expected NOASSERTION license, got %q", p.Name, p.DeclaredLicense)
		}
		if p.DownloadLocation != "NOASSERTION" {
			t.Fatalf("package %s: expected NOASSERTION download location, got %q", p.Name, p.DownloadLocation)
		}
	}
}

func TestSPDX_WriteToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bom.spdx.json")

	r := NewSPDXReporter("0.1.0")
	if err := r.WriteToFile(testInventory(), nil, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written file: %v", err)
	}
	var doc SPDXDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("written file is not valid SPDX JSON: %v", err)
	}
}
