// Package reputation scores the trustworthiness of a published package
// from its registry metadata.
//
// Scoring is deduction based: a package starts at 100 and loses points for
// each suspicious signal. The score is a triage aid, not a verdict; the
// individual signals are always reported alongside it so a reviewer can see
// why a package scored low.
package reputation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/chainspect/chainspect/registry"
)

// Signal is one suspicious trait observed in a package's metadata.
type Signal struct {
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	Deduction int    `json:"deduction"`
}

// Signal codes emitted by Score.
const (
	SignalNewPackage     = "new-package"
	SignalStale          = "stale"
	SignalDeprecated     = "deprecated"
	SignalYankedLatest   = "yanked-latest"
	SignalNoDescription  = "no-description"
	SignalNoRepository   = "no-repository"
	SignalSoloMaintainer = "solo-maintainer"
	SignalVersionJump    = "version-jump"
	SignalBurstReleases  = "burst-releases"
)

// Report carries the final score together with every signal that reduced
// it.
type Report struct {
	Package   string   `json:"package"`
	Ecosystem string   `json:"ecosystem"`
	Score     int      `json:"score"`
	Signals   []Signal `json:"signals,omitempty"`
}

// Thresholds tune the scorer. The zero value is not useful; use
// DefaultThresholds as a starting point.
type Thresholds struct {
	// MinAge is the age below which a package is considered suspiciously
	// new. Freshly published names are the favourite vehicle for typosquats
	// and dependency-confusion attacks.
	MinAge time.Duration
	// StaleAfter is the time without a release after which a package is
	// considered abandoned.
	StaleAfter time.Duration
	// BurstWindow and BurstCount flag registry spam: BurstCount or more
	// releases inside BurstWindow.
	BurstWindow time.Duration
	BurstCount  int
}

// DefaultThresholds returns the scorer defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinAge:      30 * 24 * time.Hour,
		StaleAfter:  2 * 365 * 24 * time.Hour,
		BurstWindow: 24 * time.Hour,
		BurstCount:  10,
	}
}

// Scorer evaluates registry metadata against a set of thresholds.
type Scorer struct {
	thresholds Thresholds
	now        func() time.Time
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithThresholds overrides the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Scorer) { s.thresholds = t }
}

// WithClock fixes the scorer's notion of the current time, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// NewScorer returns a Scorer with default thresholds.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates the metadata and returns a report. A nil metadata value
// yields a zero score: a package that cannot be found upstream has no
// reputation at all.
func (s *Scorer) Score(md *registry.Metadata) Report {
	if md == nil {
		return Report{Score: 0, Signals: []Signal{{
			Code:      SignalNewPackage,
			Detail:    "package has no registry metadata",
			Deduction: 100,
		}}}
	}

	r := Report{Package: md.Name, Ecosystem: md.Ecosystem, Score: 100}
	now := s.now()

	deduct := func(code, detail string, points int) {
		r.Signals = append(r.Signals, Signal{Code: code, Detail: detail, Deduction: points})
		r.Score -= points
	}

	if age := md.Age(now); age > 0 && age < s.thresholds.MinAge {
		deduct(SignalNewPackage,
			fmt.Sprintf("first published %d days ago", int(age.Hours()/24)), 30)
	}
	if idle := md.SinceLastRelease(now); idle > s.thresholds.StaleAfter {
		deduct(SignalStale,
			fmt.Sprintf("no release for %d days", int(idle.Hours()/24)), 15)
	}
	if md.Deprecated != "" {
		deduct(SignalDeprecated, "registry marks the package deprecated: "+md.Deprecated, 25)
	}
	if yankedLatest(md) {
		deduct(SignalYankedLatest, "latest release is yanked", 25)
	}
	if strings.TrimSpace(md.Description) == "" {
		deduct(SignalNoDescription, "no description published", 10)
	}
	if strings.TrimSpace(md.Repository) == "" {
		deduct(SignalNoRepository, "no source repository linked", 10)
	}
	if len(md.Maintainers) == 1 {
		deduct(SignalSoloMaintainer, "single maintainer account", 5)
	}
	if jump, from, to := majorJump(md.Releases); jump > 1 {
		deduct(SignalVersionJump,
			fmt.Sprintf("major version jumped from %s to %s", from, to), 20)
	}
	if burst := releaseBurst(md.Releases, s.thresholds.BurstWindow); burst >= s.thresholds.BurstCount {
		deduct(SignalBurstReleases,
			fmt.Sprintf("%d releases inside %s", burst, s.thresholds.BurstWindow), 20)
	}

	if r.Score < 0 {
		r.Score = 0
	}
	return r
}

// yankedLatest reports whether the release matching md.Latest is yanked.
func yankedLatest(md *registry.Metadata) bool {
	for _, rel := range md.Releases {
		if rel.Version == md.Latest {
			return rel.Yanked
		}
	}
	return false
}

// majorJump finds the largest jump between consecutive major versions in
// semver order. A package going from 1.x straight to 9.x is a classic
// trick to win naive "highest version" resolution, the same mechanism
// dependency-confusion attacks exploit.
func majorJump(releases []registry.Release) (jump uint64, from, to string) {
	versions := make([]*semver.Version, 0, len(releases))
	for _, rel := range releases {
		v, err := semver.NewVersion(rel.Version)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	if len(versions) < 2 {
		return 0, "", ""
	}
	sort.Sort(semver.Collection(versions))

	for i := 1; i < len(versions); i++ {
		prev, curr := versions[i-1], versions[i]
		if curr.Major() > prev.Major() && curr.Major()-prev.Major() > jump {
			jump = curr.Major() - prev.Major()
			from, to = prev.Original(), curr.Original()
		}
	}
	return jump, from, to
}

// releaseBurst returns the largest number of releases published within any
// single window.
func releaseBurst(releases []registry.Release, window time.Duration) int {
	times := make([]time.Time, 0, len(releases))
	for _, rel := range releases {
		if !rel.ReleasedAt.IsZero() {
			times = append(times, rel.ReleasedAt)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	best := 0
	for i := range times {
		j := i
		for j < len(times) && times[j].Sub(times[i]) <= window {
			j++
		}
		if j-i > best {
			best = j - i
		}
	}
	return best
}
