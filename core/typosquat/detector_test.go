package typosquat

import (
	"testing"

	"github.com/chainspect/chainspect/core/catalog"
)

func defaultDetector() *Detector {
	return NewDetector(catalog.Default())
}

func TestCheck_SwappedName(t *testing.T) {
	t.Parallel()

	matches := defaultDetector().Check("lodahs", Options{})
	if len(matches) == 0 {
		t.Fatal("Check(lodahs) returned no matches, want lodash")
	}
	if matches[0].Target != "lodash" {
		t.Errorf("first match target = %q, want lodash", matches[0].Target)
	}
	if matches[0].Risk < RiskMedium {
		t.Errorf("Check(lodahs) risk = %s, want at least MEDIUM", matches[0].Risk)
	}
	if matches[0].Pattern != PatternCharacterSwap {
		t.Errorf("Check(lodahs) pattern = %s, want character-swap", matches[0].Pattern)
	}
}

func TestCheck_DuplicatedCharacter(t *testing.T) {
	t.Parallel()

	matches := defaultDetector().Check("expresss", Options{})
	if len(matches) == 0 {
		t.Fatal("Check(expresss) returned no matches, want express")
	}
	m := matches[0]
	if m.Target != "express" {
		t.Errorf("target = %q, want express", m.Target)
	}
	if m.Risk < RiskMedium {
		t.Errorf("risk = %s, want MEDIUM or higher", m.Risk)
	}
	if m.TargetInfo == nil || m.TargetInfo.WeeklyDownloads <= 0 {
		t.Errorf("TargetInfo = %+v, want populated download volume", m.TargetInfo)
	}
}

func TestCheck_HighValueTargetEscalates(t *testing.T) {
	t.Parallel()

	matches := defaultDetector().Check("axos", Options{})
	var axios *Match
	for i := range matches {
		if matches[i].Target == "axios" {
			axios = &matches[i]
			break
		}
	}
	if axios == nil {
		t.Fatalf("Check(axos) = %v, want a match against axios", matches)
	}
	if axios.Risk <= RiskLow {
		t.Errorf("Check(axos) risk = %s, want above LOW for a high-value target", axios.Risk)
	}
}

func TestCheck_RealPackagesProduceNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{"lodash", Options{}},                          // exact catalog hit
		{"requests", Options{Ecosystem: "pypi"}},       // independently popular
		{"colors", Options{}},                          // looks like a plural, is real
		{"bcryptjs", Options{}},                        // looks like a js decoy, is real
		{"react-router-dom", Options{}},                // long legitimate compound
		{"@babel/core", Options{}},                     // scoped original
		{"ts-loader", Options{}},                       // loader family member
		{"babel-loader", Options{}},                    // loader family member
		{"serde", Options{Ecosystem: "rust"}},          // ecosystem alias resolves
		{"requests", Options{Ecosystem: "pip"}},        // ecosystem alias resolves
		{"lodash", Options{Ecosystem: "unrecognised"}}, // unknown ecosystems fall back to npm
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := defaultDetector().Check(tt.name, tt.opts); len(got) != 0 {
				t.Errorf("Check(%q, %+v) = %v, want no matches", tt.name, tt.opts, got)
			}
		})
	}
}

func TestCheck_FalsePositiveFloor(t *testing.T) {
	t.Parallel()

	// Regression list of legitimate names that must never alert at MEDIUM or
	// above, whatever the catalog grows to contain.
	legitimate := []struct {
		name string
		opts Options
	}{
		{"bcryptjs", Options{}},
		{"react-router-dom", Options{}},
		{"@babel/core", Options{}},
		{"requests", Options{Ecosystem: "pypi"}},
		{"colors", Options{}},
		{"ts-loader", Options{}},
		{"babel-loader", Options{}},
		{"lodash-es", Options{}},
		{"vue-axios", Options{}},
		{"@types/lodash", Options{}},
	}

	for _, tt := range legitimate {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.opts.IncludePatternMatches = true
			for _, m := range defaultDetector().Check(tt.name, tt.opts) {
				if m.Risk >= RiskMedium {
					t.Errorf("Check(%q) produced %s match against %q; legitimate names must stay below MEDIUM",
						tt.name, m.Risk, m.Target)
				}
			}
		})
	}
}

func TestCheck_UnknownEcosystemFallsBackToNpm(t *testing.T) {
	t.Parallel()

	matches := defaultDetector().Check("lodahs", Options{Ecosystem: "no-such-ecosystem"})
	if len(matches) == 0 || matches[0].Target != "lodash" {
		t.Errorf("Check(lodahs, unknown ecosystem) = %v, want npm fallback matching lodash", matches)
	}
}

func TestCheck_PyPI(t *testing.T) {
	t.Parallel()

	matches := defaultDetector().Check("flaskk", Options{Ecosystem: "pypi"})
	if len(matches) == 0 || matches[0].Target != "flask" {
		t.Fatalf("Check(flaskk, pypi) = %v, want match against flask", matches)
	}
}

func TestCheck_ThresholdMonotonicity(t *testing.T) {
	t.Parallel()

	d := defaultDetector()

	for _, name := range []string{"lodahs", "expresss", "axos", "mooment"} {
		loose := d.Check(name, Options{Threshold: 0.7})
		strict := d.Check(name, Options{Threshold: 0.95})

		looseTargets := make(map[string]struct{}, len(loose))
		for _, m := range loose {
			looseTargets[m.Target] = struct{}{}
		}
		for _, m := range strict {
			if _, ok := looseTargets[m.Target]; !ok {
				t.Errorf("Check(%q): target %q matched at threshold 0.95 but not 0.7", name, m.Target)
			}
		}
	}
}

func TestCheck_Ranking(t *testing.T) {
	t.Parallel()

	cat := catalog.New(map[string][]catalog.PopularPackage{
		"npm": {
			{Name: "abcdefgh"},
			{Name: "abcdefgx", HighValue: true},
		},
	})
	matches := NewDetector(cat).Check("abcdefgq", Options{IncludePatternMatches: true})

	for i := 1; i < len(matches); i++ {
		prev, curr := matches[i-1], matches[i]
		if prev.Risk < curr.Risk {
			t.Fatalf("matches not sorted by risk: %s before %s", prev.Risk, curr.Risk)
		}
		if prev.Risk == curr.Risk && prev.Similarity < curr.Similarity {
			t.Fatalf("matches not sorted by similarity within risk level")
		}
	}
}

func TestCheck_LowRiskExcludedByDefault(t *testing.T) {
	t.Parallel()

	// Similarity just over the default threshold, no structural pattern, and
	// an unremarkable target: a marginal LOW match.
	cat := catalog.New(map[string][]catalog.PopularPackage{
		"npm": {{Name: "abcdefgh", WeeklyDownloads: 1000}},
	})
	d := NewDetector(cat)

	if got := d.Check("abcdxfgq", Options{}); len(got) != 0 {
		t.Errorf("marginal match surfaced by default: %v", got)
	}

	got := d.Check("abcdxfgq", Options{IncludePatternMatches: true})
	if len(got) != 1 {
		t.Fatalf("Check with IncludePatternMatches = %v, want exactly one LOW match", got)
	}
	if got[0].Risk != RiskLow {
		t.Errorf("marginal match risk = %s, want LOW", got[0].Risk)
	}
}

func TestCheck_InjectedCatalog(t *testing.T) {
	t.Parallel()

	// Detection runs against whatever catalog is injected; two detectors
	// with different catalogs are fully independent.
	a := NewDetector(catalog.New(map[string][]catalog.PopularPackage{
		"npm": {{Name: "leftish", HighValue: true}},
	}))
	b := NewDetector(catalog.New(map[string][]catalog.PopularPackage{
		"npm": {{Name: "rightish", HighValue: true}},
	}))

	if got := a.Check("leftihs", Options{}); len(got) != 1 || got[0].Target != "leftish" {
		t.Errorf("detector a: %v, want single match on leftish", got)
	}
	if got := b.Check("leftihs", Options{}); len(got) != 0 {
		t.Errorf("detector b matched %v against an unrelated catalog", got)
	}
}

func TestCheck_CustomRiskThresholds(t *testing.T) {
	t.Parallel()

	cat := catalog.New(map[string][]catalog.PopularPackage{
		"npm": {{Name: "abcdefgh"}},
	})

	strict := NewDetector(cat, WithRiskThresholds(RiskThresholds{
		Medium:            0.5,
		High:              0.7,
		StrongPattern:     0.85,
		EscalateDownloads: 10_000_000,
	}))

	got := strict.Check("abcdxfgq", Options{})
	if len(got) != 1 || got[0].Risk < RiskHigh {
		t.Errorf("lowered thresholds: %v, want a HIGH match", got)
	}
}

func TestRiskString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		risk Risk
		want string
	}{
		{RiskLow, "LOW"},
		{RiskMedium, "MEDIUM"},
		{RiskHigh, "HIGH"},
		{RiskCritical, "CRITICAL"},
	}
	for _, tt := range tests {
		if got := tt.risk.String(); got != tt.want {
			t.Errorf("Risk(%d).String() = %q, want %q", tt.risk, got, tt.want)
		}
	}
}
