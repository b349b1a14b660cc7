// Package main is the entry point for the chainspect CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chainspect "github.com/chainspect/chainspect/core"
	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/report"
	"github.com/chainspect/chainspect/core/report/sarif"
	"github.com/chainspect/chainspect/core/report/sbom"
	"github.com/chainspect/chainspect/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the CLI and returns the exit code.
// 0 = clean (no blocking findings), 1 = findings detected, 2 = error.
func run(args []string) int {
	fs := flag.NewFlagSet("chainspect", flag.ContinueOnError)

	var (
		formatFlag  string
		outputDir   string
		failOnFlag  string
		noOSV       bool
		reputation  bool
		threshold   float64
		quietFlag   bool
		verboseFlag bool
		versionFlag bool
	)

	fs.StringVar(&formatFlag, "format", "json", "output formats: json,csv,sarif,cdx,spdx,all (comma-separated)")
	fs.StringVar(&outputDir, "output", ".", "output directory for report files")
	fs.StringVar(&failOnFlag, "fail-on", "", "minimum severity that causes a non-zero exit (default: any finding)")
	fs.BoolVar(&noOSV, "no-osv", false, "skip OSV.dev vulnerability lookups (fully offline audit)")
	fs.BoolVar(&reputation, "reputation", false, "enable registry-metadata reputation scoring")
	fs.Float64Var(&threshold, "threshold", 0, "typosquat similarity threshold override (0 = default)")
	fs.BoolVar(&quietFlag, "quiet", false, "suppress all output except errors")
	fs.BoolVar(&quietFlag, "q", false, "suppress all output except errors (shorthand)")
	fs.BoolVar(&verboseFlag, "verbose", false, "enable verbose output")
	fs.BoolVar(&verboseFlag, "v", false, "enable verbose output (shorthand)")
	fs.BoolVar(&versionFlag, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: chainspect <command> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  audit <path>   Audit a project's lockfiles for name-confusion attacks\n")
		fmt.Fprintf(os.Stderr, "  check <name>   Check a single package name against the popular-package catalog\n")
		fmt.Fprintf(os.Stderr, "  show <path>    Browse audit findings interactively\n")
		fmt.Fprintf(os.Stderr, "  watch <path>   Re-audit whenever a lockfile changes\n")
		fmt.Fprintf(os.Stderr, "  badge          Generate an SVG status badge\n")
		fmt.Fprintf(os.Stderr, "  baseline       Manage the accepted-findings baseline\n")
		fmt.Fprintf(os.Stderr, "  diff           Compare two findings reports\n")
		fmt.Fprintf(os.Stderr, "  explain <path> Explain findings using an LLM\n")
		fmt.Fprintf(os.Stderr, "  serve          Start MCP server on stdio\n")
		fmt.Fprintf(os.Stderr, "  version        Print version and exit\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if versionFlag {
		fmt.Printf("chainspect %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: chainspect <command> [flags]")
		return 2
	}

	command := remaining[0]
	switch command {
	case "audit":
		if len(remaining) < 2 {
			fmt.Fprintln(os.Stderr, "Usage: chainspect audit <path> [flags]")
			return 2
		}
		return runAudit(remaining[1], auditFlags{
			formats:    parseFormats(formatFlag),
			outputDir:  outputDir,
			failOn:     failOnFlag,
			noOSV:      noOSV,
			reputation: reputation,
			threshold:  threshold,
			quiet:      quietFlag,
			verbose:    verboseFlag,
		})
	case "check":
		return runCheck(remaining[1:])
	case "show":
		return runShow(remaining[1:])
	case "watch":
		return runWatch(remaining[1:])
	case "badge":
		return runBadge(remaining[1:])
	case "baseline":
		return runBaseline(remaining[1:])
	case "diff":
		return runDiff(remaining[1:])
	case "explain":
		return runExplain(remaining[1:])
	case "serve":
		return runServe(remaining[1:])
	case "version":
		fmt.Printf("chainspect %s (commit: %s, built: %s)\n", version, commit, date)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		fmt.Fprintln(os.Stderr, "Usage: chainspect <command> [flags]")
		return 2
	}
}

type auditFlags struct {
	formats    []string
	outputDir  string
	failOn     string
	noOSV      bool
	reputation bool
	threshold  float64
	quiet      bool
	verbose    bool
}

func runAudit(target string, flags auditFlags) int {
	if !flags.quiet {
		fmt.Printf("chainspect %s auditing %s\n", version, target)
	}

	if flags.verbose {
		fmt.Println("[discover] walking directory for lockfiles...")
	}

	result, err := chainspect.RunAuditWithOptions(context.Background(), target, chainspect.AuditOptions{
		Threshold:        flags.threshold,
		DisableOSV:       flags.noOSV,
		EnableReputation: flags.reputation,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: audit failed: %v\n", err)
		return 2
	}

	findingCount := result.Findings.Len()
	pkgCount := result.Inventory.Len()

	if !flags.quiet {
		fmt.Printf("[results] %d findings across %d packages (%d lockfiles)\n",
			findingCount, pkgCount, len(result.Manifests))
	}

	// Generate reports.
	if err := os.MkdirAll(flags.outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating output directory: %v\n", err)
		return 2
	}

	for _, format := range flags.formats {
		switch format {
		case "json":
			path := filepath.Join(flags.outputDir, "findings.json")
			r := report.NewJSONReporter(version)
			if err := r.WriteToFile(result.Findings, path); err != nil {
				fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", path, err)
				return 2
			}
			if flags.verbose {
				fmt.Printf("[report] wrote %s\n", path)
			}

		case "csv":
			path := filepath.Join(flags.outputDir, "findings.csv")
			r := report.NewCSVReporter()
			if err := r.WriteToFile(result.Findings, path); err != nil {
				fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", path, err)
				return 2
			}
			if flags.verbose {
				fmt.Printf("[report] wrote %s\n", path)
			}

		case "sarif":
			path := filepath.Join(flags.outputDir, "findings.sarif")
			r := sarif.NewReporter(version)
			if err := r.WriteToFile(result.Findings, path); err != nil {
				fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", path, err)
				return 2
			}
			if flags.verbose {
				fmt.Printf("[report] wrote %s\n", path)
			}

		case "cdx":
			path := filepath.Join(flags.outputDir, "bom.cdx.json")
			r := sbom.NewCycloneDXReporter(version)
			if err := r.WriteToFile(result.Inventory, result.Findings.Findings(), path); err != nil {
				fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", path, err)
				return 2
			}
			if flags.verbose {
				fmt.Printf("[report] wrote %s\n", path)
			}

		case "spdx":
			path := filepath.Join(flags.outputDir, "bom.spdx.json")
			r := sbom.NewSPDXReporter(version)
			if err := r.WriteToFile(result.Inventory, result.Findings.Findings(), path); err != nil {
				fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", path, err)
				return 2
			}
			if flags.verbose {
				fmt.Printf("[report] wrote %s\n", path)
			}

		default:
			fmt.Fprintf(os.Stderr, "error: unknown format %q\n", format)
			return 2
		}
	}

	if !flags.quiet {
		fmt.Println("[done]")
	}

	return auditExitCode(result.Findings, flags.failOn, target)
}

// auditExitCode decides the process exit code from the finding set. The
// fail-on threshold comes from the flag if set, otherwise from
// .chainspect.yaml, otherwise any finding fails the audit.
func auditExitCode(fs *findings.FindingSet, failOnFlag, target string) int {
	failOn := failOnFlag
	if failOn == "" {
		if cfg, err := chainspect.LoadAuditConfig(target); err == nil {
			failOn = cfg.Audit.FailOn
		}
	}

	if fs.Len() == 0 {
		return 0
	}
	if failOn == "" {
		return 1
	}
	if fs.MaxSeverity().AtLeast(findings.Severity(failOn)) {
		return 1
	}
	return 0
}

func runServe(args []string) int {
	serveFS := flag.NewFlagSet("serve", flag.ContinueOnError)
	var allowedPaths string
	serveFS.StringVar(&allowedPaths, "allowed-paths", "", "comma-separated list of allowed workspace paths")

	if err := serveFS.Parse(args); err != nil {
		return 2
	}

	var paths []string
	if allowedPaths != "" {
		for _, p := range strings.Split(allowedPaths, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				paths = append(paths, p)
			}
		}
	}

	srv := server.New(version, paths)
	if err := srv.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "error: MCP server failed: %v\n", err)
		return 2
	}
	return 0
}

// parseFormats splits the comma-separated format flag into individual format
// strings. "all" expands to all supported formats.
func parseFormats(flag string) []string {
	if flag == "all" {
		return []string{"json", "csv", "sarif", "cdx", "spdx"}
	}

	var formats []string
	for _, f := range strings.Split(flag, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return []string{"json"}
	}
	return formats
}
