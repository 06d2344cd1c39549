package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/sambabib/depconfusion/pkg/analyzer"
)

// Styles holds the console colors used by TextRenderer.
type Styles struct {
	Heading  lipgloss.Style
	Updated  lipgloss.Style
	Outdated lipgloss.Style
	Phantom  lipgloss.Style
	Severity map[string]lipgloss.Style
	Muted    lipgloss.Style
}

// TextRenderer prints a report for humans.
type TextRenderer struct {
	w      io.Writer
	styles Styles
}

// NewTextRenderer creates a renderer writing to w. With color false no ANSI
// sequences are emitted regardless of the terminal.
func NewTextRenderer(w io.Writer, color bool) *TextRenderer {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &TextRenderer{w: w, styles: newStyles(r)}
}

func newStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Heading:  r.NewStyle().Bold(true).Underline(true),
		Updated:  r.NewStyle().Foreground(lipgloss.Color("10")),
		Outdated: r.NewStyle().Foreground(lipgloss.Color("11")),
		Phantom:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Severity: map[string]lipgloss.Style{
			"critical": r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
			"high":     r.NewStyle().Foreground(lipgloss.Color("9")),
			"moderate": r.NewStyle().Foreground(lipgloss.Color("11")),
			"low":      r.NewStyle().Foreground(lipgloss.Color("14")),
			"info":     r.NewStyle().Foreground(lipgloss.Color("8")),
		},
		Muted: r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// severityOrder ranks npm audit severities from worst to least.
var severityOrder = map[string]int{"critical": 0, "high": 1, "moderate": 2, "low": 3, "info": 4}

// Render prints the buckets of report, or only filter when it is set.
// declared is the number of declarations in the manifest, used for the summary line.
func (t *TextRenderer) Render(report analyzer.Report, filter analyzer.Bucket, declared int) {
	if declared == 0 {
		fmt.Fprintln(t.w, "No dependencies found in package.json")
		return
	}

	for _, b := range analyzer.Buckets {
		if filter != "" && b != filter {
			continue
		}
		t.renderBucket(b, report.Bucket(b))
	}

	summary := fmt.Sprintf("%d updated, %d outdated, %d phantom", len(report.Updated), len(report.Outdated), len(report.Phantom))
	if skipped := declared - report.Total(); skipped > 0 {
		summary += fmt.Sprintf(", %d skipped", skipped)
	}
	fmt.Fprintln(t.w, t.styles.Muted.Render(summary))
	for _, s := range report.Skipped {
		fmt.Fprintln(t.w, t.styles.Muted.Render(fmt.Sprintf("  skipped %s (%s): %s", s.Name, s.Section, s.Reason)))
	}
}

func (t *TextRenderer) renderBucket(b analyzer.Bucket, entries []analyzer.Entry) {
	var title string
	switch b {
	case analyzer.BucketUpdated:
		title = "Up to date"
	case analyzer.BucketOutdated:
		title = "Outdated"
	case analyzer.BucketPhantom:
		title = "Phantom packages (not in the registry)"
	}
	fmt.Fprintf(t.w, "%s (%d)\n", t.styles.Heading.Render(title), len(entries))
	if len(entries) == 0 {
		fmt.Fprintln(t.w)
		return
	}

	w := tabwriter.NewWriter(t.w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		switch b {
		case analyzer.BucketUpdated:
			fmt.Fprintf(w, "  %s\t%s\t%s\n", t.styles.Updated.Render(e.Name), e.Declared, e.Section)
		case analyzer.BucketOutdated:
			fmt.Fprintf(w, "  %s\t%s\tlatest %s\t%s\n", t.styles.Outdated.Render(e.Name), e.Version, e.Latest, e.Section)
		case analyzer.BucketPhantom:
			fmt.Fprintf(w, "  %s\t%s\t%s\n", t.styles.Phantom.Render(e.Name), e.Declared, e.Section)
		}
	}
	w.Flush()

	if b == analyzer.BucketPhantom {
		fmt.Fprintln(t.w, t.styles.Phantom.Render("  Unpublished names can be claimed publicly (dependency confusion)."))
	}
	if b == analyzer.BucketOutdated {
		for _, e := range entries {
			t.renderVulnerabilities(e)
		}
	}
	fmt.Fprintln(t.w)
}

func (t *TextRenderer) renderVulnerabilities(e analyzer.Entry) {
	v := e.Vulnerabilities
	if v == nil {
		return
	}
	if !v.FoundVulns {
		fmt.Fprintf(t.w, "  %s@%s: %s\n", e.Name, e.Version, t.styles.Muted.Render("no known vulnerabilities"))
		return
	}

	severities := make([]string, 0, len(v.SeverityCounts))
	for s := range v.SeverityCounts {
		severities = append(severities, s)
	}
	sort.Slice(severities, func(i, j int) bool {
		return rank(severities[i]) < rank(severities[j])
	})
	counts := make([]string, 0, len(severities))
	for _, s := range severities {
		counts = append(counts, t.severity(s).Render(fmt.Sprintf("%d %s", v.SeverityCounts[s], s)))
	}
	fmt.Fprintf(t.w, "  %s@%s: %s\n", e.Name, e.Version, strings.Join(counts, ", "))

	for _, a := range v.Advisories {
		line := fmt.Sprintf("    [%s] %s", t.severity(a.Severity).Render(a.Severity), a.Title)
		if len(a.CVEs) > 0 {
			line += " " + strings.Join(a.CVEs, ",")
		}
		if a.CVSSScore > 0 {
			line += fmt.Sprintf(" CVSS %.1f", a.CVSSScore)
		}
		if a.VulnerableVersions != "" {
			line += " affects " + a.VulnerableVersions
		}
		fmt.Fprintln(t.w, line)
		if a.URL != "" {
			fmt.Fprintln(t.w, "      "+t.styles.Muted.Render(a.URL))
		}
	}
}

func (t *TextRenderer) severity(s string) lipgloss.Style {
	if st, ok := t.styles.Severity[s]; ok {
		return st
	}
	return t.styles.Muted
}

func rank(severity string) int {
	if r, ok := severityOrder[severity]; ok {
		return r
	}
	return len(severityOrder)
}
