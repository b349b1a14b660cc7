// Package sbom generates CycloneDX and SPDX SBOM documents from an audited
// package inventory. Both generators produce deterministic JSON output
// suitable for ingestion by vulnerability scanners and compliance tools.
// Advisory findings from the audit are embedded so a consumer sees which
// inventory entries are affected without re-running the audit.
package sbom

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/manifest"
)

// ---------------------------------------------------------------------------
// CycloneDX 1.5 JSON
// ---------------------------------------------------------------------------

// CDXReport is the top-level CycloneDX BOM structure.
type CDXReport struct {
	BOMFormat       string             `json:"bomFormat"`
	SpecVersion     string             `json:"specVersion"`
	SerialNumber    string             `json:"serialNumber"`
	Version         int                `json:"version"`
	Metadata        CDXMetadata        `json:"metadata"`
	Components      []CDXComponent     `json:"components"`
	Vulnerabilities []CDXVulnerability `json:"vulnerabilities,omitempty"`
}

// CDXMetadata holds tool and timestamp information.
type CDXMetadata struct {
	Timestamp string    `json:"timestamp"`
	Tools     []CDXTool `json:"tools"`
}

// CDXTool identifies the tool that generated the BOM.
type CDXTool struct {
	Vendor  string `json:"vendor"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CDXComponent represents a single dependency.
type CDXComponent struct {
	Type    string `json:"type"`
	BOMRef  string `json:"bom-ref"`
	Name    string `json:"name"`
	Version string `json:"version"`
	PURL    string `json:"purl"`
}

// CDXVulnerability represents a known advisory in the CycloneDX format.
type CDXVulnerability struct {
	ID          string      `json:"id"`
	Source      CDXSource   `json:"source"`
	Ratings     []CDXRating `json:"ratings,omitempty"`
	Description string      `json:"description,omitempty"`
	Affects     []CDXAffect `json:"affects"`
}

// CDXSource identifies the advisory database source.
type CDXSource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CDXRating holds a severity rating for a vulnerability.
type CDXRating struct {
	Severity string `json:"severity"`
}

// CDXAffect identifies a component affected by a vulnerability.
type CDXAffect struct {
	Ref string `json:"ref"`
}

// CycloneDXReporter generates CycloneDX 1.5 JSON SBOMs.
type CycloneDXReporter struct {
	ToolVersion string
}

// NewCycloneDXReporter returns a reporter configured with the given tool version.
func NewCycloneDXReporter(version string) *CycloneDXReporter {
	return &CycloneDXReporter{ToolVersion: version}
}

// Generate produces a CycloneDX JSON byte slice from the audited inventory.
// Findings with an advisory identifier become vulnerability entries linked
// back to the affected component by bom-ref.
func (r *CycloneDXReporter) Generate(inv *manifest.Inventory, ff []findings.Finding) ([]byte, error) {
	pkgs := sortedPackages(inv)

	components := make([]CDXComponent, 0, len(pkgs))
	bomRefs := make(map[string]string) // ecosystem/name@version -> bom-ref
	for i, p := range pkgs {
		bomRef := fmt.Sprintf("pkg:%d", i)
		bomRefs[packageKey(p.Ecosystem, p.Name, p.Version)] = bomRef
		components = append(components, CDXComponent{
			Type:    "library",
			BOMRef:  bomRef,
			Name:    p.Name,
			Version: p.Version,
			PURL:    buildPURL(p),
		})
	}

	var cdxVulns []CDXVulnerability
	for _, f := range sortedAdvisories(ff) {
		ref, ok := bomRefs[packageKey(f.Subject.Ecosystem, f.Subject.Package, f.Subject.Version)]
		if !ok {
			continue
		}
		id := f.Metadata["advisory"]
		cdxVulns = append(cdxVulns, CDXVulnerability{
			ID: id,
			Source: CDXSource{
				Name: "OSV",
				URL:  "https://osv.dev/vulnerability/" + id,
			},
			Ratings:     []CDXRating{{Severity: string(f.Severity)}},
			Description: f.Message,
			Affects:     []CDXAffect{{Ref: ref}},
		})
	}

	report := CDXReport{
		BOMFormat:    "CycloneDX",
		SpecVersion:  "1.5",
		SerialNumber: "urn:uuid:chainspect-audit",
		Version:      1,
		Metadata: CDXMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Tools: []CDXTool{
				{
					Vendor:  "chainspect",
					Name:    "chainspect",
					Version: r.ToolVersion,
				},
			},
		},
		Components:      components,
		Vulnerabilities: cdxVulns,
	}

	return json.MarshalIndent(report, "", "  ")
}

// WriteToFile generates the CycloneDX report and writes it to the given path.
func (r *CycloneDXReporter) WriteToFile(inv *manifest.Inventory, ff []findings.Finding, path string) error {
	data, err := r.Generate(inv, ff)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ---------------------------------------------------------------------------
// SPDX 2.3 JSON
// ---------------------------------------------------------------------------

// SPDXDocument is the top-level SPDX document structure.
type SPDXDocument struct {
	SPDXVersion       string             `json:"spdxVersion"`
	DataLicense       string             `json:"dataLicense"`
	SPDXID            string             `json:"SPDXID"`
	Name              string             `json:"name"`
	DocumentNamespace string             `json:"documentNamespace"`
	CreationInfo      SPDXCreationInfo   `json:"creationInfo"`
	Packages          []SPDXPackage      `json:"packages"`
	Relationships     []SPDXRelationship `json:"relationships"`
}

// SPDXCreationInfo contains creation metadata.
type SPDXCreationInfo struct {
	Created  string   `json:"created"`
	Creators []string `json:"creators"`
}

// SPDXPackage represents a single package in the SPDX document.
type SPDXPackage struct {
	SPDXID           string            `json:"SPDXID"`
	Name             string            `json:"name"`
	VersionInfo      string            `json:"versionInfo"`
	DeclaredLicense  string            `json:"licenseDeclared"`
	DownloadLocation string            `json:"downloadLocation"`
	FilesAnalyzed    bool              `json:"filesAnalyzed"`
	ExternalRefs     []SPDXExternalRef `json:"externalRefs,omitempty"`
}

// SPDXExternalRef is a reference to an external resource.
type SPDXExternalRef struct {
	ReferenceCategory string `json:"referenceCategory"`
	ReferenceType     string `json:"referenceType"`
	ReferenceLocator  string `json:"referenceLocator"`
}

// SPDXRelationship describes a relationship between SPDX elements.
type SPDXRelationship struct {
	SPDXElementID      string `json:"spdxElementId"`
	RelationshipType   string `json:"relationshipType"`
	RelatedSPDXElement string `json:"relatedSpdxElement"`
}

// SPDXReporter generates SPDX 2.3 JSON SBOMs.
type SPDXReporter struct {
	ToolVersion string
}

// NewSPDXReporter returns a reporter configured with the given tool version.
func NewSPDXReporter(version string) *SPDXReporter {
	return &SPDXReporter{ToolVersion: version}
}

// Generate produces an SPDX 2.3 JSON byte slice from the audited inventory.
// Advisory findings become SECURITY external refs on the affected package.
func (r *SPDXReporter) Generate(inv *manifest.Inventory, ff []findings.Finding) ([]byte, error) {
	pkgs := sortedPackages(inv)

	// Index advisory IDs by affected package for external-ref lookup.
	advisories := make(map[string][]string)
	for _, f := range sortedAdvisories(ff) {
		key := packageKey(f.Subject.Ecosystem, f.Subject.Package, f.Subject.Version)
		advisories[key] = append(advisories[key], f.Metadata["advisory"])
	}

	spdxPkgs := make([]SPDXPackage, 0, len(pkgs))
	relationships := make([]SPDXRelationship, 0, len(pkgs))

	for i, p := range pkgs {
		spdxID := fmt.Sprintf("SPDXRef-Package-%d", i)
		purl := buildPURL(p)

		pkg := SPDXPackage{
			SPDXID:           spdxID,
			Name:             p.Name,
			VersionInfo:      p.Version,
			DeclaredLicense:  "NOASSERTION",
			DownloadLocation: "NOASSERTION",
			FilesAnalyzed:    false,
		}

		var refs []SPDXExternalRef
		if purl != "" {
			refs = append(refs, SPDXExternalRef{
				ReferenceCategory: "PACKAGE-MANAGER",
				ReferenceType:     "purl",
				ReferenceLocator:  purl,
			})
		}
		for _, id := range advisories[packageKey(p.Ecosystem, p.Name, p.Version)] {
			refs = append(refs, SPDXExternalRef{
				ReferenceCategory: "SECURITY",
				ReferenceType:     "advisory",
				ReferenceLocator:  "https://osv.dev/vulnerability/" + id,
			})
		}
		if len(refs) > 0 {
			pkg.ExternalRefs = refs
		}

		spdxPkgs = append(spdxPkgs, pkg)

		relationships = append(relationships, SPDXRelationship{
			SPDXElementID:      "SPDXRef-DOCUMENT",
			RelationshipType:   "DESCRIBES",
			RelatedSPDXElement: spdxID,
		})
	}

	doc := SPDXDocument{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXID:            "SPDXRef-DOCUMENT",
		Name:              "chainspect-audit",
		DocumentNamespace: "https://github.com/chainspect/chainspect/audits",
		CreationInfo: SPDXCreationInfo{
			Created:  time.Now().UTC().Format(time.RFC3339),
			Creators: []string{fmt.Sprintf("Tool: chainspect-%s", r.ToolVersion)},
		},
		Packages:      spdxPkgs,
		Relationships: relationships,
	}

	return json.MarshalIndent(doc, "", "  ")
}

// WriteToFile generates the SPDX report and writes it to the given path.
func (r *SPDXReporter) WriteToFile(inv *manifest.Inventory, ff []findings.Finding, path string) error {
	data, err := r.Generate(inv, ff)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// purlEcosystems maps internal ecosystem names to PURL type prefixes.
var purlEcosystems = map[string]string{
	manifest.EcosystemNpm:      "npm",
	manifest.EcosystemPyPI:     "pypi",
	manifest.EcosystemGo:       "golang",
	manifest.EcosystemRubyGems: "gem",
	manifest.EcosystemCrates:   "cargo",
}

// buildPURL constructs a Package URL (purl) for the given package.
// See https://github.com/package-url/purl-spec for the format.
func buildPURL(p manifest.Package) string {
	purlType, ok := purlEcosystems[p.Ecosystem]
	if !ok {
		return ""
	}
	return fmt.Sprintf("pkg:%s/%s@%s", purlType, p.Name, p.Version)
}

func packageKey(ecosystem, name, version string) string {
	return ecosystem + "/" + name + "@" + version
}

// sortedPackages returns the inventory sorted by ecosystem, name, version
// so document output is deterministic.
func sortedPackages(inv *manifest.Inventory) []manifest.Package {
	pkgs := inv.Packages()
	sort.Slice(pkgs, func(i, j int) bool {
		a, b := pkgs[i], pkgs[j]
		if a.Ecosystem != b.Ecosystem {
			return a.Ecosystem < b.Ecosystem
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Version < b.Version
	})
	return pkgs
}

// sortedAdvisories filters findings down to those carrying an advisory
// identifier and sorts them by that identifier.
func sortedAdvisories(ff []findings.Finding) []findings.Finding {
	var out []findings.Finding
	for _, f := range ff {
		if f.Metadata["advisory"] != "" {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata["advisory"] < out[j].Metadata["advisory"]
	})
	return out
}
