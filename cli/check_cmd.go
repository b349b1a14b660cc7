package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	chainspect "github.com/chainspect/chainspect/core"
)

// runCheck implements "chainspect check <name>": a one-shot check of a
// single package name against the popular-package catalog, without touching
// any lockfiles or the network.
func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)

	var (
		ecosystem  string
		threshold  float64
		jsonOutput bool
	)

	fs.StringVar(&ecosystem, "ecosystem", "npm", "package ecosystem: npm, pypi, crates")
	fs.Float64Var(&threshold, "threshold", 0, "similarity threshold override (0 = default)")
	fs.BoolVar(&jsonOutput, "json", false, "output findings as JSON")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: chainspect check <name> [flags]")
		return 2
	}
	name := fs.Arg(0)

	result := chainspect.CheckPackage(name, ecosystem, threshold)

	if jsonOutput {
		data, err := json.MarshalIndent(result.Findings(), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: marshalling JSON: %v\n", err)
			return 2
		}
		fmt.Println(string(data))
	} else {
		if result.Len() == 0 {
			fmt.Printf("%s (%s): no name-confusion findings\n", name, ecosystem)
			return 0
		}
		for _, f := range result.Findings() {
			fmt.Printf("%s  %-8s  %s\n", f.Severity, f.RuleID, f.Message)
		}
	}

	if result.Len() > 0 {
		return 1
	}
	return 0
}
