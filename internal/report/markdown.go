package report

import (
	"fmt"
	"io"
)

// MarkdownGenerator renders a Report as a plain-text markdown summary,
// suited for pasting into an issue or chat message.
type MarkdownGenerator struct {
	IncludeDetails bool
}

// Generate renders report into w as markdown.
func (g *MarkdownGenerator) Generate(report *Report, w io.Writer) error {
	s := report.Statistics

	fmt.Fprintf(w, "# %s\n\n", report.Title)
	fmt.Fprintf(w, "- target: `%s`\n", report.TargetPath)
	fmt.Fprintf(w, "- generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintln(w, "## statistics")
	fmt.Fprintf(w, "- executions: %d\n", s.Executions)
	fmt.Fprintf(w, "- crashes: %d\n", s.Crashes)
	fmt.Fprintf(w, "- hangs: %d\n", s.Hangs)
	fmt.Fprintf(w, "- errors: %d\n", s.Errors)
	fmt.Fprintf(w, "- interesting inputs: %d\n", s.InterestingInputs)
	fmt.Fprintf(w, "- execs/sec: %.1f\n", s.ExecsPerSec)
	fmt.Fprintf(w, "- coverage: %.2f%%\n\n", s.CoveragePercent)

	fmt.Fprintf(w, "## crash clusters (%d)\n\n", len(report.Crashes))
	if len(report.Crashes) == 0 {
		fmt.Fprintln(w, "no crashes recorded")
		return nil
	}

	for _, c := range report.Crashes {
		fmt.Fprintf(w, "### cluster #%d (%s)\n", c.ID, c.Severity)
		fmt.Fprintf(w, "- representative: `%s`\n", c.Representative)
		fmt.Fprintf(w, "- members: %d\n", c.MemberCount)
		if g.IncludeDetails {
			for _, m := range c.Members {
				fmt.Fprintf(w, "  - `%s`\n", m)
			}
		}
		fmt.Fprintln(w)
	}

	return nil
}

// Extension returns the file extension.
func (g *MarkdownGenerator) Extension() string {
	return "md"
}
