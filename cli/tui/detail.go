package tui

import (
	"fmt"
	"strings"

	coredetail "github.com/chainspect/chainspect/core/detail"
)

// renderDetail renders the detail view for a single finding.
func renderDetail(m *Model) string {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return "No finding selected."
	}

	f := m.filtered[m.cursor]
	d := coredetail.Enrich(&f, m.store.All(), m.catalog)

	var b strings.Builder

	// Header.
	sevBadge := severityStyle(f.Severity).Render(strings.ToUpper(string(f.Severity)))
	b.WriteString(fmt.Sprintf(" %s · %s · %s\n",
		ruleIDStyle.Render(f.RuleID),
		f.Message,
		sevBadge))
	b.WriteString(headerStyle.Render(strings.Repeat("─", m.width)))
	b.WriteString("\n")

	// Subject.
	subject := f.Subject.Package
	if f.Subject.Version != "" {
		subject += "@" + f.Subject.Version
	}
	b.WriteString(" " + packageStyle.Render(subject) +
		subtleStyle.Render("  ("+f.Subject.Ecosystem+")") + "\n")
	if f.Subject.Manifest != "" {
		b.WriteString(" " + subtleStyle.Render("declared in "+f.Subject.Manifest) + "\n")
	}
	b.WriteString("\n")

	// Impersonated target.
	if d.Target != nil {
		b.WriteString(" " + sectionHeaderStyle.Render("Target") + "\n")
		b.WriteString("   " + targetStyle.Render(d.Target.Name) + "\n")
		if d.Target.WeeklyDownloads > 0 {
			b.WriteString(fmt.Sprintf("   %s %d/week\n",
				subtleStyle.Render("downloads:"), d.Target.WeeklyDownloads))
		}
		if d.Target.HighValue {
			b.WriteString("   " + severityStyle(f.Severity).Render("high-value target") + "\n")
		}
		b.WriteString("\n")
	}

	// Metadata.
	if len(f.Metadata) > 0 {
		b.WriteString(" " + sectionHeaderStyle.Render("Metadata") + "\n")
		for k, v := range f.Metadata {
			b.WriteString(fmt.Sprintf("   %s: %s\n", subtleStyle.Render(k), v))
		}
		b.WriteString("\n")
	}

	// Related findings.
	if len(d.Related) > 0 {
		b.WriteString(" " + sectionHeaderStyle.Render("Related") + "\n")
		for _, rel := range d.Related {
			b.WriteString(fmt.Sprintf("   %s  %s  %s\n",
				ruleIDStyle.Render(rel.RuleID),
				packageStyle.Render(rel.Package),
				rel.Message))
		}
		b.WriteString("\n")
	}

	// Help.
	b.WriteString(helpStyle.Render(" esc back  n/p next/prev  q quit"))
	b.WriteString("\n")

	return b.String()
}
