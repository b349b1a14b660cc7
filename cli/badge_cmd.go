package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	chainspect "github.com/chainspect/chainspect/core"
	"github.com/chainspect/chainspect/core/badge"
	"github.com/chainspect/chainspect/core/findings"
	"github.com/chainspect/chainspect/core/report"
)

func runBadge(args []string) int {
	fs := flag.NewFlagSet("badge", flag.ContinueOnError)

	var (
		input  string
		output string
		label  string
		grade  bool
		noOSV  bool
	)
	fs.StringVar(&input, "input", "", "path to findings.json (default: run audit)")
	fs.StringVar(&output, "output", ".github/chainspect-badge.svg", "output SVG file path")
	fs.StringVar(&label, "label", "chainspect", "badge label text")
	fs.BoolVar(&grade, "grade", false, "emit a letter grade instead of finding counts")
	fs.BoolVar(&noOSV, "no-osv", false, "skip OSV.dev vulnerability lookups")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	var set *findings.FindingSet

	if input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: reading %s: %v\n", input, err)
			return 2
		}
		var rep report.JSONReport
		if err := json.Unmarshal(data, &rep); err != nil {
			fmt.Fprintf(os.Stderr, "error: parsing findings JSON: %v\n", err)
			return 2
		}
		set = findings.NewFindingSet()
		for _, f := range rep.Findings {
			set.Add(f)
		}
	} else {
		target := "."
		if fs.NArg() > 0 {
			target = fs.Arg(0)
		}
		result, err := chainspect.RunAuditWithOptions(context.Background(), target, chainspect.AuditOptions{
			DisableOSV: noOSV,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: audit failed: %v\n", err)
			return 2
		}
		set = result.Findings
	}

	var result *badge.Result
	if grade {
		result = badge.Generate(set, label)
	} else {
		result = badge.GenerateStatus(set, label)
	}

	if dir := filepath.Dir(output); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "error: creating directory %s: %v\n", dir, err)
			return 2
		}
	}

	if err := os.WriteFile(output, []byte(result.SVG), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", output, err)
		return 2
	}

	fmt.Printf("[badge] wrote %s (%s: %s)\n", output, result.Label, result.Value)
	return 0
}
