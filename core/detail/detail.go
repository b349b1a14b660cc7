// Package detail provides enriched finding details with catalog target
// metadata and related findings. It is the data layer for the "chainspect
// show" command, the MCP tools, and the assist module.
package detail

import (
	"github.com/chainspect/chainspect/core/catalog"
	"github.com/chainspect/chainspect/core/findings"
)

// FindingDetail is a Finding enriched with target metadata and related
// findings.
type FindingDetail struct {
	findings.Finding
	Target  *catalog.PopularPackage `json:"target,omitempty"`
	Related []RelatedFinding        `json:"related,omitempty"`
}

// RelatedFinding is a summary of a finding related to the detailed one.
type RelatedFinding struct {
	Fingerprint string `json:"fingerprint"`
	RuleID      string `json:"rule_id"`
	Package     string `json:"package"`
	Manifest    string `json:"manifest,omitempty"`
	Message     string `json:"message"`
}

// Enrich produces a FindingDetail for the given finding. The catalog is
// consulted for the impersonated target recorded in the finding metadata;
// related findings share a manifest or a rule with the detailed one.
func Enrich(f *findings.Finding, allFindings []findings.Finding, cat *catalog.Catalog) *FindingDetail {
	if f == nil {
		return nil
	}
	d := &FindingDetail{
		Finding: *f,
	}

	if cat != nil {
		if target := f.Metadata["target"]; target != "" {
			d.Target = cat.Lookup(target, f.Subject.Ecosystem)
		}
	}

	for i := range allFindings {
		other := allFindings[i]
		if other.Fingerprint == f.Fingerprint {
			continue
		}
		sameManifest := other.Subject.Manifest != "" &&
			other.Subject.Manifest == f.Subject.Manifest
		sameRule := other.RuleID == f.RuleID
		if sameManifest || sameRule {
			d.Related = append(d.Related, RelatedFinding{
				Fingerprint: other.Fingerprint,
				RuleID:      other.RuleID,
				Package:     other.Subject.Package,
				Manifest:    other.Subject.Manifest,
				Message:     other.Message,
			})
		}
	}

	return d
}
