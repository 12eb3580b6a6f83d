package findings

import (
	"fmt"
	"strings"

	"github.com/cricksy/video-analysis/internal/models"
)

// AssembleReport builds the coach-facing prose companion to a Findings set
// for one pass (spec §4.4: "assembles coach report"). The text is
// deterministic given the same findings input, so tests can assert on it.
func AssembleReport(mode models.AnalysisMode, phase models.Phase, f *models.Findings) *models.Report {
	title := fmt.Sprintf("%s %s Summary", strings.Title(string(mode)), strings.Title(string(phase)))

	if len(f.Findings) == 0 {
		return &models.Report{
			Text: fmt.Sprintf("%s: no technical issues detected against the reference thresholds for this pass.", title),
			Sections: []models.ReportSection{
				{Title: title, Body: "Clean technique across every measured metric for this pass."},
			},
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d finding(s), overall severity %s.\n", title, len(f.Findings), f.OverallLevel)
	sections := make([]models.ReportSection, 0, len(f.Findings))
	for _, finding := range f.Findings {
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", finding.Severity, finding.Title, finding.Message)
		sections = append(sections, models.ReportSection{
			Title: finding.Title,
			Body:  fmt.Sprintf("%s %s", finding.Message, finding.WhyMatters),
		})
	}

	return &models.Report{Text: sb.String(), Sections: sections}
}
