// Package diff compares two findings reports by fingerprint. It classifies
// findings as new, fixed, or unchanged between a base and head audit so CI
// can fail on regressions while ignoring pre-existing findings. Both CLI
// and MCP share this logic.
package diff

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/report"
)

// Result holds the classified differences between two reports.
type Result struct {
	New       []findings.Finding `json:"new"`
	Fixed     []findings.Finding `json:"fixed"`
	Unchanged []findings.Finding `json:"unchanged"`
	BasePath  string             `json:"base"`
	HeadPath  string             `json:"head"`
}

// HasRegressions reports whether the head report introduced findings absent
// from the base report.
func (r *Result) HasRegressions() bool {
	return len(r.New) > 0
}

// Compare classifies head findings against base findings by fingerprint.
// Order within each class follows the input order.
func Compare(base, head []findings.Finding) *Result {
	baseSet := make(map[string]struct{}, len(base))
	for _, f := range base {
		baseSet[f.Fingerprint] = struct{}{}
	}
	headSet := make(map[string]struct{}, len(head))
	for _, f := range head {
		headSet[f.Fingerprint] = struct{}{}
	}

	result := &Result{}
	for _, f := range head {
		if _, ok := baseSet[f.Fingerprint]; ok {
			result.Unchanged = append(result.Unchanged, f)
		} else {
			result.New = append(result.New, f)
		}
	}
	for _, f := range base {
		if _, ok := headSet[f.Fingerprint]; !ok {
			result.Fixed = append(result.Fixed, f)
		}
	}
	return result
}

// CompareFiles loads two findings reports from disk and compares them.
func CompareFiles(basePath, headPath string) (*Result, error) {
	base, err := loadReport(basePath)
	if err != nil {
		return nil, err
	}
	head, err := loadReport(headPath)
	if err != nil {
		return nil, err
	}

	result := Compare(base, head)
	result.BasePath = basePath
	result.HeadPath = headPath
	return result, nil
}

// loadReport reads a findings report file and returns its findings.
func loadReport(path string) ([]findings.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}
	var rep report.JSONReport
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return rep.Findings, nil
}
