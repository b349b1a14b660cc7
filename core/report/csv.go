package report

import (
	"bytes"
	"encoding/csv"
	"os"

	"github.com/chainspect/chainspect/core/findings"
)

// csvHeader is the fixed column order of the CSV output.
var csvHeader = []string{
	"rule_id", "severity", "confidence",
	"ecosystem", "package", "version", "manifest",
	"message",
}

// CSVReporter produces a flat CSV table from a FindingSet, one row per
// finding, for spreadsheets and quick shell-side filtering.
type CSVReporter struct{}

// NewCSVReporter returns a CSVReporter.
func NewCSVReporter() *CSVReporter {
	return &CSVReporter{}
}

// Generate sorts the finding set deterministically and renders it as CSV
// with a header row. An empty set yields just the header.
func (r *CSVReporter) Generate(fs *findings.FindingSet) ([]byte, error) {
	fs.SortDeterministic()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, f := range fs.Findings() {
		row := []string{
			f.RuleID,
			string(f.Severity),
			string(f.Confidence),
			f.Subject.Ecosystem,
			f.Subject.Package,
			f.Subject.Version,
			f.Subject.Manifest,
			f.Message,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteToFile generates the CSV report and writes it to the specified path
// with 0644 permissions.
func (r *CSVReporter) WriteToFile(fs *findings.FindingSet, path string) error {
	data, err := r.Generate(fs)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
