package assist

import (
	"fmt"
	"strings"

	core "github.com/chainspect/chainspect/core"
	"github.com/chainspect/chainspect/core/findings"
)

// systemPrompt returns the system message that instructs the LLM on how to
// analyze and explain chainspect audit findings.
func systemPrompt() string {
	return `You are a supply-chain security expert analyzing findings from chainspect, a dependency auditor.
For each finding, provide a JSON array with objects containing these fields:
- "fingerprint": the finding fingerprint (string)
- "rule_id": the rule ID (string)
- "package": the affected package name (string)
- "title": a concise title for the issue (string)
- "explanation": what this finding means in plain language (string)
- "impact": why this matters and what could go wrong (string)
- "remediation": specific, actionable steps to fix the issue (string)
- "references": relevant URLs for further reading (array of strings, optional)

Respond ONLY with a valid JSON array. Do not include markdown fences or other text.
Be concise and actionable. Focus on practical remediation advice.`
}

// formatFindings converts a batch of findings into structured text for the LLM.
func formatFindings(ff []findings.Finding) string {
	var b strings.Builder
	for i, f := range ff {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "Fingerprint: %s\n", f.Fingerprint)
		fmt.Fprintf(&b, "Rule ID: %s\n", f.RuleID)
		fmt.Fprintf(&b, "Severity: %s\n", f.Severity)
		fmt.Fprintf(&b, "Confidence: %s\n", f.Confidence)
		fmt.Fprintf(&b, "Package: %s\n", f.Subject.Package)
		if f.Subject.Version != "" {
			fmt.Fprintf(&b, "Version: %s\n", f.Subject.Version)
		}
		fmt.Fprintf(&b, "Ecosystem: %s\n", f.Subject.Ecosystem)
		if f.Subject.Manifest != "" {
			fmt.Fprintf(&b, "Manifest: %s\n", f.Subject.Manifest)
		}
		fmt.Fprintf(&b, "Message: %s\n", f.Message)
		if len(f.Metadata) > 0 {
			for k, v := range f.Metadata {
				fmt.Fprintf(&b, "Metadata %s: %s\n", k, v)
			}
		}
	}
	return b.String()
}

// formatContext summarises the audit result for the LLM so it can provide
// contextually aware explanations.
func formatContext(result *core.AuditResult) string {
	var b strings.Builder
	b.WriteString("Audit context:\n")

	// Findings by severity.
	counts := result.Findings.CountBySeverity()
	fmt.Fprintf(&b, "Total findings: %d\n", result.Findings.Len())
	for _, sev := range []findings.Severity{
		findings.SeverityCritical,
		findings.SeverityHigh,
		findings.SeverityMedium,
		findings.SeverityLow,
		findings.SeverityInfo,
	} {
		if c := counts[sev]; c > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", sev, c)
		}
	}

	// Dependencies by ecosystem.
	if result.Inventory != nil && result.Inventory.Len() > 0 {
		b.WriteString("Dependencies:\n")
		for _, eco := range result.Inventory.Ecosystems() {
			fmt.Fprintf(&b, "  %s: %d packages\n", eco, len(result.Inventory.ByEcosystem(eco)))
		}
	}

	// Audited lockfiles.
	if len(result.Manifests) > 0 {
		fmt.Fprintf(&b, "Lockfiles: %s\n", strings.Join(result.Manifests, ", "))
	}

	return b.String()
}

// summaryPrompt returns a user message asking the LLM to produce an executive
// summary of all explained findings.
func summaryPrompt(explanations []FindingExplanation) string {
	var b strings.Builder
	b.WriteString("Based on these dependency audit findings, provide a 2-3 sentence executive summary ")
	b.WriteString("of the project's supply-chain risk. Highlight the most critical issues.\n\n")
	for _, e := range explanations {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", e.RuleID, e.Title, e.Explanation)
	}
	b.WriteString("\nRespond with ONLY the summary text, no JSON.")
	return b.String()
}
