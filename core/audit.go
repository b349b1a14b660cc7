// Package core provides the shared audit pipeline for chainspect.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chainspect/chainspect/core/baseline"
	"github.com/chainspect/chainspect/core/catalog"
	"github.com/chainspect/chainspect/core/discovery"
	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/manifest"
	"github.com/chainspect/chainspect/core/osv"
	"github.com/chainspect/chainspect/core/reputation"
	"github.com/chainspect/chainspect/core/typosquat"
	"github.com/chainspect/chainspect/registry"
)

// defaultMinReputation is the reputation score below which a REP-001
// finding is emitted when reputation scoring is enabled.
const defaultMinReputation = 40

// AuditResult holds the complete output of an audit pipeline run.
type AuditResult struct {
	Findings  *findings.FindingSet
	Inventory *manifest.Inventory
	// Manifests lists the lockfiles that were parsed, relative to the
	// audit target.
	Manifests []string
}

// AuditOptions holds optional parameters for RunAuditWithOptions. The zero
// value means config-file and built-in defaults apply. CLI flags take
// precedence over .chainspect.yaml values.
type AuditOptions struct {
	// Threshold overrides the typosquat similarity threshold.
	Threshold float64

	// DisableOSV disables OSV.dev vulnerability lookups. When true
	// (and reputation scoring is off) the audit runs fully offline.
	DisableOSV bool

	// EnableReputation turns on registry-metadata reputation scoring.
	EnableReputation bool

	// Workers caps the typosquat worker pool. Zero means GOMAXPROCS.
	Workers int

	// NoBaseline skips baseline filtering so every finding is reported,
	// including ones the project has accepted. The baseline command uses
	// this to regenerate the baseline from a full audit.
	NoBaseline bool

	// OSVClient and RegistryClient override the default clients, mainly
	// for tests.
	OSVClient      *osv.Client
	RegistryClient *registry.Client
}

// RunAudit executes the full audit pipeline against the given target
// directory: it discovers lockfiles, builds a package inventory, and runs
// the typosquat, known-malicious, and vulnerability detectors over it. If a
// .chainspect.yaml config file is present in the target directory, its
// audit settings are applied.
func RunAudit(ctx context.Context, target string) (*AuditResult, error) {
	return RunAuditWithOptions(ctx, target, AuditOptions{})
}

// RunAuditWithOptions executes the full audit pipeline with the given
// options. See RunAudit for a description of the pipeline stages.
func RunAuditWithOptions(ctx context.Context, target string, opts AuditOptions) (*AuditResult, error) {
	cfg, err := LoadAuditConfig(target)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// Phase 1: discover and parse manifests.
	paths, err := discovery.NewWalker(target, cfg.Audit.Exclude...).Walk()
	if err != nil {
		return nil, err
	}

	inventory := &manifest.Inventory{}
	for _, rel := range paths {
		content, readErr := os.ReadFile(filepath.Join(target, rel))
		if readErr != nil {
			return nil, fmt.Errorf("reading lockfile %s: %w", rel, readErr)
		}
		pkgs, parseErr := manifest.ParseFile(rel, content)
		if parseErr != nil {
			// A malformed lockfile should not sink the whole audit.
			slog.Warn("skipping unparseable lockfile", "path", rel, "err", parseErr)
			continue
		}
		inventory.Add(pkgs...)
	}

	// Phase 2: name confusion and known-malicious detection.
	allFindings := findings.NewFindingSet()
	cat := catalog.Default()
	detector := typosquat.NewDetector(cat,
		typosquat.WithAllowedSuffixes(cfg.Audit.AllowedSuffixes...))

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = cfg.Audit.Threshold
	}
	allow := allowSet(cfg.Audit.Allow)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	pkgs := inventory.Packages()
	results := make([]*findings.FindingSet, len(pkgs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, pkg := range pkgs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = checkPackage(detector, cat, pkg, threshold, allow)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, fs := range results {
		allFindings.Merge(fs)
	}

	// Phase 3: known vulnerabilities via OSV.
	if !opts.DisableOSV && !cfg.Audit.OSV.Disabled {
		client := opts.OSVClient
		if client == nil {
			client = osv.NewClient()
		}
		addVulnFindings(ctx, client, allFindings, pkgs)
	}

	// Phase 4: registry reputation, opt-in.
	if opts.EnableReputation || cfg.Audit.Reputation.Enabled {
		client := opts.RegistryClient
		if client == nil {
			client = registry.NewClient()
		}
		minScore := cfg.Audit.Reputation.MinScore
		if minScore == 0 {
			minScore = defaultMinReputation
		}
		addReputationFindings(ctx, client, allFindings, pkgs, minScore)
	}

	// Phase 5: deduplicate and sort.
	allFindings.Deduplicate()
	allFindings.SortDeterministic()

	// Phase 6: drop findings accepted in the project baseline.
	if !opts.NoBaseline {
		blPath := cfg.Audit.BaselinePath
		if blPath == "" {
			blPath = baseline.DefaultPath(target)
		} else if !filepath.IsAbs(blPath) {
			blPath = filepath.Join(target, blPath)
		}
		if bl, blErr := baseline.Load(blPath); blErr == nil && bl.Len() > 0 {
			kept := findings.NewFindingSet()
			for _, f := range bl.Filter(allFindings.Findings()) {
				kept.Add(f)
			}
			allFindings = kept
		} else if blErr != nil {
			slog.Warn("ignoring unreadable baseline", "path", blPath, "err", blErr)
		}
	}

	return &AuditResult{
		Findings:  allFindings,
		Inventory: inventory,
		Manifests: paths,
	}, nil
}

// CheckPackage runs the offline name-confusion detectors against a single
// package name, outside of any manifest context. It backs the check
// command and the MCP check_package tool.
func CheckPackage(name, ecosystem string, threshold float64) *findings.FindingSet {
	cat := catalog.Default()
	detector := typosquat.NewDetector(cat)
	pkg := manifest.Package{Name: name, Ecosystem: typosquat.NormalizeEcosystem(ecosystem)}
	return checkPackage(detector, cat, pkg, threshold, nil)
}

// checkPackage produces TYPO-001/TYPO-002 findings for one package.
func checkPackage(detector *typosquat.Detector, cat *catalog.Catalog, pkg manifest.Package, threshold float64, allow map[string]struct{}) *findings.FindingSet {
	fs := findings.NewFindingSet()

	if !catalogCovers(cat, pkg.Ecosystem) {
		return fs
	}
	if allowed(allow, pkg) {
		return fs
	}

	subject := findings.Subject{
		Package:   pkg.Name,
		Version:   pkg.Version,
		Ecosystem: pkg.Ecosystem,
		Manifest:  pkg.Source,
	}

	if cat.KnownMalicious(pkg.Name, pkg.Ecosystem) {
		fs.Add(findings.Finding{
			RuleID:     findings.RuleKnownMalicious,
			Severity:   findings.SeverityCritical,
			Confidence: findings.ConfidenceHigh,
			Subject:    subject,
			Message:    fmt.Sprintf("%s is a known malicious package", pkg.Name),
		})
		// A confirmed malicious name does not also need a similarity
		// finding.
		return fs
	}

	matches := detector.Check(pkg.Name, typosquat.Options{
		Ecosystem: pkg.Ecosystem,
		Threshold: threshold,
	})
	for _, m := range matches {
		f := findings.Finding{
			RuleID:     findings.RuleTyposquat,
			Severity:   riskToSeverity(m.Risk),
			Confidence: matchConfidence(m),
			Subject:    subject,
			Message:    typosquatMessage(pkg.Name, m),
			Metadata: map[string]string{
				"target":     m.Target,
				"similarity": fmt.Sprintf("%.3f", m.Similarity),
			},
		}
		if m.Pattern != "" {
			f.Metadata["pattern"] = string(m.Pattern)
		}
		fs.Add(f)
	}
	return fs
}

// addVulnFindings queries OSV and appends VULN-001 findings.
func addVulnFindings(ctx context.Context, client *osv.Client, fs *findings.FindingSet, pkgs []manifest.Package) {
	vulns, err := client.Query(ctx, pkgs)
	if err != nil {
		slog.Warn("OSV lookup failed", "err", err)
		return
	}
	for idx, list := range vulns {
		pkg := pkgs[idx]
		for _, v := range list {
			msg := v.ID
			if v.Summary != "" {
				msg += ": " + v.Summary
			}
			fs.Add(findings.Finding{
				RuleID:     findings.RuleVulnerability,
				Severity:   v.Severity,
				Confidence: findings.ConfidenceHigh,
				Subject: findings.Subject{
					Package:   pkg.Name,
					Version:   pkg.Version,
					Ecosystem: pkg.Ecosystem,
					Manifest:  pkg.Source,
				},
				Message:  msg,
				Metadata: map[string]string{"advisory": v.ID},
			})
		}
	}
}

// addReputationFindings scores registry metadata and appends REP-001
// findings for packages scoring below minScore.
func addReputationFindings(ctx context.Context, client *registry.Client, fs *findings.FindingSet, pkgs []manifest.Package, minScore int) {
	scorer := reputation.NewScorer()
	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		key := pkg.Ecosystem + "/" + pkg.Name
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		md, err := client.Fetch(ctx, pkg.Ecosystem, pkg.Name)
		if err != nil && err != registry.ErrNotFound {
			slog.Debug("registry fetch failed", "package", key, "err", err)
			continue
		}

		report := scorer.Score(md)
		if report.Score >= minScore {
			continue
		}

		meta := map[string]string{"score": fmt.Sprintf("%d", report.Score)}
		var details []string
		for _, s := range report.Signals {
			details = append(details, s.Detail)
		}
		fs.Add(findings.Finding{
			RuleID:     findings.RuleLowReputation,
			Severity:   findings.SeverityMedium,
			Confidence: findings.ConfidenceMedium,
			Subject: findings.Subject{
				Package:   pkg.Name,
				Version:   pkg.Version,
				Ecosystem: pkg.Ecosystem,
				Manifest:  pkg.Source,
			},
			Message:  fmt.Sprintf("reputation score %d: %s", report.Score, strings.Join(details, "; ")),
			Metadata: meta,
		})
	}
}

// catalogCovers reports whether the popular-package catalog has entries
// for the ecosystem. Running name-confusion checks against an ecosystem
// the catalog does not cover would compare, say, Go module paths against
// npm names.
func catalogCovers(cat *catalog.Catalog, ecosystem string) bool {
	for _, eco := range cat.Ecosystems() {
		if eco == ecosystem {
			return true
		}
	}
	return false
}

// allowSet builds the config allowlist lookup: entries are "name" or
// "ecosystem:name".
func allowSet(entries []string) map[string]struct{} {
	if len(entries) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		set[e] = struct{}{}
	}
	return set
}

func allowed(allow map[string]struct{}, pkg manifest.Package) bool {
	if allow == nil {
		return false
	}
	if _, ok := allow[pkg.Name]; ok {
		return true
	}
	_, ok := allow[pkg.Ecosystem+":"+pkg.Name]
	return ok
}

// riskToSeverity maps a typosquat risk level to a finding severity.
func riskToSeverity(r typosquat.Risk) findings.Severity {
	switch r {
	case typosquat.RiskCritical:
		return findings.SeverityCritical
	case typosquat.RiskHigh:
		return findings.SeverityHigh
	case typosquat.RiskMedium:
		return findings.SeverityMedium
	default:
		return findings.SeverityLow
	}
}

// matchConfidence derives finding confidence from the match evidence: a
// structural pattern plus high similarity is strong evidence, similarity
// alone is weaker.
func matchConfidence(m typosquat.Match) findings.Confidence {
	if m.Pattern != "" && m.Similarity >= 0.85 {
		return findings.ConfidenceHigh
	}
	if m.Pattern != "" || m.Similarity >= 0.9 {
		return findings.ConfidenceMedium
	}
	return findings.ConfidenceLow
}

func typosquatMessage(name string, m typosquat.Match) string {
	msg := fmt.Sprintf("%s is confusingly similar to %s (similarity %.2f", name, m.Target, m.Similarity)
	if m.Pattern != "" {
		msg += ", " + string(m.Pattern)
	}
	msg += ")"
	if m.TargetInfo != nil && m.TargetInfo.WeeklyDownloads > 0 {
		msg += fmt.Sprintf("; %s has %d weekly downloads", m.Target, m.TargetInfo.WeeklyDownloads)
	}
	return msg
}

