package diff

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/report"
)

func finding(fp, pkg string) findings.Finding {
	return findings.Finding{
		RuleID:      findings.RuleTyposquat,
		Severity:    findings.SeverityHigh,
		Subject:     findings.Subject{Package: pkg, Ecosystem: "npm"},
		Message:     "name is confusingly similar to a popular package",
		Fingerprint: fp,
	}
}

func TestCompare_Classification(t *testing.T) {
	base := []findings.Finding{
		finding("fp1", "lodahs"),
		finding("fp2", "crossenv"),
	}
	head := []findings.Finding{
		finding("fp2", "crossenv"),
		finding("fp3", "reqeusts"),
	}

	result := Compare(base, head)

	if len(result.New) != 1 || result.New[0].Fingerprint != "fp3" {
		t.Fatalf("unexpected new findings: %+v", result.New)
	}
	if len(result.Fixed) != 1 || result.Fixed[0].Fingerprint != "fp1" {
		t.Fatalf("unexpected fixed findings: %+v", result.Fixed)
	}
	if len(result.Unchanged) != 1 || result.Unchanged[0].Fingerprint != "fp2" {
		t.Fatalf("unexpected unchanged findings: %+v", result.Unchanged)
	}
	if !result.HasRegressions() {
		t.Fatal("expected regressions")
	}
}

func TestCompare_Identical(t *testing.T) {
	ff := []findings.Finding{finding("fp1", "lodahs")}

	result := Compare(ff, ff)
	if result.HasRegressions() {
		t.Fatal("identical reports should have no regressions")
	}
	if len(result.Fixed) != 0 {
		t.Fatalf("expected no fixed findings, got %d", len(result.Fixed))
	}
	if len(result.Unchanged) != 1 {
		t.Fatalf("expected 1 unchanged finding, got %d", len(result.Unchanged))
	}
}

func TestCompare_Empty(t *testing.T) {
	result := Compare(nil, nil)
	if result.HasRegressions() || len(result.Fixed) != 0 || len(result.Unchanged) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.json")
	headPath := filepath.Join(dir, "head.json")

	writeReport := func(path string, ff ...findings.Finding) {
		t.Helper()
		fs := findings.NewFindingSet()
		for _, f := range ff {
			fs.Add(f)
		}
		r := report.NewJSONReporter("test")
		if err := r.WriteToFile(fs, path); err != nil {
			t.Fatalf("writing report: %v", err)
		}
	}

	writeReport(basePath, finding("", "lodahs"))
	writeReport(headPath, finding("", "lodahs"), finding("", "reqeusts"))

	result, err := CompareFiles(basePath, headPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.New) != 1 {
		t.Fatalf("expected 1 new finding, got %d", len(result.New))
	}
	if result.New[0].Subject.Package != "reqeusts" {
		t.Fatalf("expected reqeusts to be new, got %s", result.New[0].Subject.Package)
	}
	if len(result.Unchanged) != 1 {
		t.Fatalf("expected 1 unchanged finding, got %d", len(result.Unchanged))
	}
	if result.BasePath != basePath || result.HeadPath != headPath {
		t.Fatalf("paths not recorded: %+v", result)
	}
}

func TestCompareFiles_MissingFile(t *testing.T) {
	if _, err := CompareFiles("/nonexistent/base.json", "/nonexistent/head.json"); err == nil {
		t.Fatal("expected error for missing report")
	}
}

func TestCompareFiles_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CompareFiles(path, path); err == nil {
		t.Fatal("expected error for malformed report")
	}
}
