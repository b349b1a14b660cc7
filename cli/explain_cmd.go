package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chainspect/chainspect/assist"
	chainspect "github.com/chainspect/chainspect/core"
)

// runExplain runs an audit and generates LLM-powered explanations of
// findings.
func runExplain(args []string) int {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)

	var (
		model     string
		baseURL   string
		batchSize int
		output    string
	)

	fs.StringVar(&model, "model", "", "LLM model name (default: gpt-4o)")
	fs.StringVar(&baseURL, "base-url", "", "custom OpenAI-compatible API base URL")
	fs.IntVar(&batchSize, "batch-size", 10, "findings per LLM request")
	fs.StringVar(&output, "output", "explanations.json", "output file path")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: chainspect explain <path> [flags]")
		return 2
	}
	target := fs.Arg(0)

	// Merge flag values with .chainspect.yaml explain settings.
	cfg, err := chainspect.LoadAuditConfig(target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if model == "" {
		model = cfg.Explain.Model
	}
	if model == "" {
		model = assist.DefaultModel
	}
	if baseURL == "" {
		baseURL = cfg.Explain.BaseURL
	}
	apiKeyEnv := cfg.Explain.APIKeyEnv
	if apiKeyEnv == "" {
		apiKeyEnv = "OPENAI_API_KEY"
	}

	if os.Getenv(apiKeyEnv) == "" && baseURL == "" {
		fmt.Fprintf(os.Stderr, "error: %s environment variable is required (or set --base-url for a local endpoint)\n", apiKeyEnv)
		return 2
	}

	// Run audit.
	fmt.Printf("chainspect auditing %s\n", target)
	result, err := chainspect.RunAudit(context.Background(), target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: audit failed: %v\n", err)
		return 2
	}

	findingCount := result.Findings.Len()
	fmt.Printf("[results] %d findings\n", findingCount)

	if findingCount == 0 {
		fmt.Println("[explain] no findings to explain")
		return 0
	}

	// Build provider.
	providerOpts := []assist.OpenAIOption{assist.WithModel(model)}
	if baseURL != "" {
		providerOpts = append(providerOpts, assist.WithBaseURL(baseURL))
	}
	if key := os.Getenv(apiKeyEnv); key != "" {
		providerOpts = append(providerOpts, assist.WithAPIKey(key))
	}
	if cfg.Explain.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Explain.Timeout); err == nil {
			providerOpts = append(providerOpts, assist.WithTimeout(d))
		}
	}
	provider := assist.NewOpenAIProvider(providerOpts...)

	// Build explainer.
	var explainerOpts []assist.Option
	if batchSize > 0 {
		explainerOpts = append(explainerOpts, assist.WithBatchSize(batchSize))
	}
	explainer := assist.NewExplainer(provider, explainerOpts...)

	// Generate explanations.
	fmt.Println("[explain] generating explanations...")
	report, err := explainer.Explain(context.Background(), result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: explain failed: %v\n", err)
		return 2
	}

	// Write report.
	if err := report.WriteFile(output); err != nil {
		fmt.Fprintf(os.Stderr, "error: writing %s: %v\n", output, err)
		return 2
	}

	fmt.Printf("[explain] wrote %s (%d explanations)\n", output, len(report.Explanations))
	if report.Summary != "" {
		fmt.Printf("[summary] %s\n", report.Summary)
	}
	fmt.Println("[done]")
	return 0
}
