package typosquat

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/chainspect/chainspect/core/catalog"
	"github.com/chainspect/chainspect/core/similarity"
)

// Risk classifies how likely a match is to be a deliberate typosquat, from
// marginal similarity (RiskLow) to a near-certain attack on a high-value
// target (RiskCritical).
type Risk int

// Risk levels in ascending order of severity.
const (
	RiskLow Risk = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the canonical upper-case label for the risk level.
func (r Risk) String() string {
	switch r {
	case RiskCritical:
		return "CRITICAL"
	case RiskHigh:
		return "HIGH"
	case RiskMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// MarshalJSON encodes the risk as its string label.
func (r Risk) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a risk from its string label. Unknown labels decode
// as RiskLow.
func (r *Risk) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "CRITICAL":
		*r = RiskCritical
	case "HIGH":
		*r = RiskHigh
	case "MEDIUM":
		*r = RiskMedium
	default:
		*r = RiskLow
	}
	return nil
}

// Match reports that a candidate name resembles one catalog target. A
// candidate may produce zero, one, or several matches when it resembles
// several popular names.
type Match struct {
	Target     string                  `json:"target"`
	Pattern    Pattern                 `json:"pattern,omitempty"`
	Similarity float64                 `json:"similarity"`
	Risk       Risk                    `json:"risk"`
	TargetInfo *catalog.PopularPackage `json:"targetInfo,omitempty"`
}

// Options controls a single Check invocation.
type Options struct {
	// Ecosystem selects the catalog to compare against. Empty or unknown
	// values fall back to npm.
	Ecosystem string

	// Threshold is the minimum combined similarity for a numeric match.
	// Zero means DefaultThreshold. Structural pattern matches are reported
	// regardless of the numeric threshold.
	Threshold float64

	// IncludePatternMatches keeps RiskLow matches in the output. By default
	// they are dropped to avoid over-alerting on marginal similarity.
	IncludePatternMatches bool
}

// DefaultThreshold is the default minimum combined similarity.
const DefaultThreshold = 0.75

// prefilterMinSimilarity bounds the cheap length/first-char prefilter that
// keeps full metric computation off most catalog entries.
const prefilterMinSimilarity = 0.7

// RiskThresholds holds the tunable cut-offs for risk classification. The
// exact values are calibrated against the false-positive regression corpus
// rather than derived from a closed formula.
type RiskThresholds struct {
	// Medium and High are combined-similarity floors for the base risk.
	Medium float64
	High   float64

	// StrongPattern is the pattern confidence at or above which structural
	// evidence escalates the risk a full level.
	StrongPattern float64

	// EscalateDownloads is the weekly download volume at which a target is
	// treated like a high-value one: near-misses on very popular packages
	// are escalated faster.
	EscalateDownloads int64
}

// DefaultRiskThresholds returns the calibrated default cut-offs.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		Medium:            0.84,
		High:              0.92,
		StrongPattern:     0.85,
		EscalateDownloads: 10_000_000,
	}
}

// Detector checks candidate names against an injected target catalog. The
// catalog is read-only and the detector carries no other state, so a single
// Detector is safe for concurrent use.
type Detector struct {
	cat           *catalog.Catalog
	thresholds    RiskThresholds
	extraSuffixes []string
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithRiskThresholds overrides the default risk classification cut-offs.
func WithRiskThresholds(t RiskThresholds) DetectorOption {
	return func(d *Detector) { d.thresholds = t }
}

// WithAllowedSuffixes whitelists additional suffix variants as legitimate
// relative to any catalog target.
func WithAllowedSuffixes(suffixes ...string) DetectorOption {
	return func(d *Detector) {
		d.extraSuffixes = append(d.extraSuffixes, suffixes...)
	}
}

// NewDetector creates a Detector over the given catalog.
func NewDetector(cat *catalog.Catalog, opts ...DetectorOption) *Detector {
	d := &Detector{
		cat:        cat,
		thresholds: DefaultRiskThresholds(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check evaluates a candidate package name against every catalog target of
// the selected ecosystem and returns the offending matches, strongest
// first.
func (d *Detector) Check(name string, opts Options) []Match {
	eco := NormalizeEcosystem(opts.Ecosystem)
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	// A real catalog entry is never a typosquat, neither of itself (exact
	// hit) nor of a neighbour it happens to resemble: "requests" and
	// "colors" look like variants of other names but are independently
	// popular packages.
	if d.cat.Lookup(name, eco) != nil {
		return nil
	}

	var matches []Match
	for _, target := range d.cat.Iterate(eco) {
		if d.isLegitimateVariant(name, target.Name) {
			continue
		}
		if !similarity.CouldBeSimilar(name, target.Name, prefilterMinSimilarity) {
			continue
		}

		sim := similarity.Combined(name, target.Name)
		pattern := strongestPattern(DetectPatterns(name, target.Name))
		if sim < threshold && pattern == nil {
			continue
		}

		risk := d.classify(sim, pattern, target)
		if risk == RiskLow && !opts.IncludePatternMatches {
			continue
		}

		info := target
		m := Match{
			Target:     target.Name,
			Similarity: sim,
			Risk:       risk,
			TargetInfo: &info,
		}
		if pattern != nil {
			m.Pattern = pattern.Pattern
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Risk != matches[j].Risk {
			return matches[i].Risk > matches[j].Risk
		}
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Target < matches[j].Target
	})

	return matches
}

// classify derives the risk level from similarity magnitude, structural
// pattern evidence, and target importance. High-value and very popular
// targets escalate a level: a near-miss on a security-critical package
// matters more than one on an obscure name.
func (d *Detector) classify(sim float64, pattern *PatternMatch, target catalog.PopularPackage) Risk {
	t := d.thresholds

	risk := RiskLow
	switch {
	case sim >= t.High:
		risk = RiskHigh
	case sim >= t.Medium:
		risk = RiskMedium
	}

	if pattern != nil {
		if pattern.Confidence >= t.StrongPattern {
			risk = escalate(risk)
		} else if risk < RiskMedium {
			risk = RiskMedium
		}
	}

	if (target.HighValue || target.WeeklyDownloads >= t.EscalateDownloads) && risk > RiskLow {
		risk = escalate(risk)
	}

	return risk
}

func escalate(r Risk) Risk {
	if r >= RiskCritical {
		return RiskCritical
	}
	return r + 1
}

// strongestPattern returns the highest-confidence pattern match, or nil.
func strongestPattern(matches []PatternMatch) *PatternMatch {
	var best *PatternMatch
	for i := range matches {
		if best == nil || matches[i].Confidence > best.Confidence {
			best = &matches[i]
		}
	}
	return best
}

// NormalizeEcosystem maps free-form ecosystem identifiers ("pip",
// "cargo", "rust") to catalog keys. Anything unrecognised defaults to npm.
func NormalizeEcosystem(eco string) string {
	switch strings.ToLower(strings.TrimSpace(eco)) {
	case "pypi", "python", "pip":
		return "pypi"
	case "crates", "crates.io", "cargo", "rust":
		return "crates"
	default:
		return "npm"
	}
}
