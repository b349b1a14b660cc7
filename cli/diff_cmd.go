package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/chainspect/chainspect/core/diff"
)

func runDiff(args []string) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	var jsonFlag bool
	fs.BoolVar(&jsonFlag, "json", false, "output as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: chainspect diff [flags] <base.json> <head.json>")
		return 2
	}

	result, err := diff.CompareFiles(fs.Arg(0), fs.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if jsonFlag {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		fmt.Println(string(data))
	} else {
		fmt.Printf("diff: %d new, %d fixed, %d unchanged\n",
			len(result.New), len(result.Fixed), len(result.Unchanged))
		for _, f := range result.New {
			fmt.Printf("  + %-8s %-8s %s@%s (%s): %s\n",
				f.RuleID, f.Severity, f.Subject.Package, f.Subject.Version, f.Subject.Ecosystem, f.Message)
		}
		for _, f := range result.Fixed {
			fmt.Printf("  - %-8s %-8s %s@%s (%s)\n",
				f.RuleID, f.Severity, f.Subject.Package, f.Subject.Version, f.Subject.Ecosystem)
		}
	}

	if result.HasRegressions() {
		return 1
	}
	return 0
}
