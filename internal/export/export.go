// Package export implements the ExportGate (spec §4.5): a deterministic,
// mode-labeled PDF report rendered from a terminal AnalysisJob's persisted
// findings and report artifacts.
package export

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/cricksy/video-analysis/internal/apperrors"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// Gate renders terminal AnalysisJob artifacts into a PDF report.
type Gate struct {
	store interfaces.JobStore
}

// NewGate builds an ExportGate.
func NewGate(store interfaces.JobStore) *Gate {
	return &Gate{store: store}
}

var modeTitles = map[models.AnalysisMode]string{
	models.ModeBatting:       "Batting Analysis Report",
	models.ModeBowling:       "Bowling Analysis Report",
	models.ModeWicketkeeping: "Wicketkeeping Analysis Report",
	models.ModeFielding:      "Fielding Analysis Report",
}

// ExportReport renders job's consolidated report to PDF bytes, refusing with
// ErrPreconditionFailed unless the job is in a terminal success state.
func (g *Gate) ExportReport(ctx context.Context, jobID string) ([]byte, error) {
	job, err := g.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %s not found", apperrors.ErrNotFound, jobID)
	}
	if !job.Status.IsTerminalSuccess() {
		return nil, fmt.Errorf("%w: job %s is in status %s, export requires done/completed", apperrors.ErrPreconditionFailed, jobID, job.Status)
	}

	mode := resolveExportMode(job)

	degraded := job.DeepFindings == nil || job.DeepReport == nil
	allDegraded := degraded && (job.QuickFindings == nil || job.QuickReport == nil)

	findings, reportText := consolidate(job)
	priorities, secondary, thisWeek := triage(findings)

	return render(renderInput{
		title:      titleFor(mode),
		jobID:      job.ID,
		degraded:   allDegraded || (degraded && job.DeepResults == nil && job.QuickResults == nil),
		reportText: reportText,
		findings:   findings,
		priorities: priorities,
		secondary:  secondary,
		thisWeek:   thisWeek,
		completed:  job.CompletedAt,
	})
}

// resolveExportMode implements spec §4.5's mode resolution for export:
// prefer analysis_mode_used from the persisted results (deep pass first,
// then quick), fall back to job.analysis_mode, then the default mode.
// This is distinct from models.ResolveMode, which resolves mode for a
// worker about to run a pass and has no results to consult yet.
func resolveExportMode(job *models.AnalysisJob) models.AnalysisMode {
	if mode, ok := modeUsedFrom(job.DeepResults); ok {
		return mode
	}
	if mode, ok := modeUsedFrom(job.QuickResults); ok {
		return mode
	}
	if job.AnalysisMode != "" {
		return job.AnalysisMode
	}
	return models.DefaultMode
}

func modeUsedFrom(results map[string]any) (models.AnalysisMode, bool) {
	v, ok := results["analysis_mode_used"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return models.AnalysisMode(s), true
}

func titleFor(mode models.AnalysisMode) string {
	if t, ok := modeTitles[mode]; ok {
		return t
	}
	return "Analysis Report"
}

// consolidate prefers the deep pass's findings/report when present; falls
// back to quick-only findings, which retain their phase label (spec §4.5).
func consolidate(job *models.AnalysisJob) ([]models.Finding, string) {
	switch {
	case job.DeepFindings != nil && job.DeepReport != nil:
		return job.DeepFindings.Findings, job.DeepReport.Text
	case job.QuickFindings != nil && job.QuickReport != nil:
		return job.QuickFindings.Findings, job.QuickReport.Text
	default:
		return nil, "Analysis artifacts are unavailable for this job."
	}
}

// triage splits findings into top priorities (up to 3 high severity, topped
// up to 2 with the next most severe when fewer are high), secondary focus
// (up to 2 remaining), and exactly 3 "this week" action bullets.
func triage(findings []models.Finding) (priorities, secondary []models.Finding, thisWeek []string) {
	ranked := make([]models.Finding, len(findings))
	copy(ranked, findings)
	sort.SliceStable(ranked, func(i, j int) bool {
		return severityRank(ranked[i].Severity) > severityRank(ranked[j].Severity)
	})

	for _, f := range ranked {
		switch {
		case len(priorities) < 3 && f.Severity == models.SeverityHigh:
			priorities = append(priorities, f)
		case len(priorities) < 2:
			priorities = append(priorities, f)
		case len(secondary) < 2:
			secondary = append(secondary, f)
		}
	}

	for _, f := range ranked {
		if len(thisWeek) >= 3 {
			break
		}
		if len(f.SuggestedDrills) > 0 {
			thisWeek = append(thisWeek, fmt.Sprintf("%s: %s", f.Title, f.SuggestedDrills[0]))
		} else {
			thisWeek = append(thisWeek, f.Title)
		}
	}
	for len(thisWeek) < 3 {
		thisWeek = append(thisWeek, "Maintain current form; no corrective drill required this week.")
	}

	return priorities, secondary, thisWeek
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	default:
		return 1
	}
}

type renderInput struct {
	title      string
	jobID      string
	degraded   bool
	reportText string
	findings   []models.Finding
	priorities []models.Finding
	secondary  []models.Finding
	thisWeek   []string
	completed  *time.Time
}

func render(in renderInput) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(in.title, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, in.title, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	completedAt := "unknown"
	if in.completed != nil {
		completedAt = in.completed.Format(time.RFC3339)
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Job %s — completed %s", in.jobID, completedAt), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if in.degraded {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(180, 0, 0)
		pdf.CellFormat(0, 8, "PARTIAL REPORT — one or more analysis passes did not complete", "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Coach Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, in.reportText, "", "L", false)
	pdf.Ln(3)

	writeFindingList(pdf, "Top Priorities", in.priorities)
	writeFindingList(pdf, "Secondary Focus", in.secondary)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "This Week", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, item := range in.thisWeek {
		pdf.CellFormat(0, 6, "- "+item, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	writeEvidenceAppendix(pdf, in.findings)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFindingList(pdf *fpdf.Fpdf, heading string, findings []models.Finding) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, heading, "", 1, "L", false, 0, "")
	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "None.", "", 1, "L", false, 0, "")
		pdf.Ln(2)
		return
	}
	for _, f := range findings {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 6, fmt.Sprintf("[%s] %s", badge(f.Severity), f.Title), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, f.Message, "", "L", false)
		if f.WhyMatters != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.MultiCell(0, 5, "Why it matters: "+f.WhyMatters, "", "L", false)
		}
		drills := f.SuggestedDrills
		if len(drills) > 3 {
			drills = drills[:3]
		}
		for _, d := range drills {
			pdf.SetFont("Helvetica", "", 9)
			pdf.CellFormat(0, 5, "  drill: "+d, "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}
}

func writeEvidenceAppendix(pdf *fpdf.Fpdf, findings []models.Finding) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "Evidence Appendix", "", 1, "L", false, 0, "")
	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "No findings recorded.", "", 1, "L", false, 0, "")
		return
	}
	for i, f := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s (%s pass)", f.Code, phaseLabel(f.Phase)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		keys := make([]string, 0, len(f.Evidence))
		for k := range f.Evidence {
			if k == "trend" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pdf.CellFormat(0, 5, fmt.Sprintf("  %s: %v", k, f.Evidence[k]), "", 1, "L", false, 0, "")
		}
		if png, ok := trendSparkline(f); ok {
			writeTrendImage(pdf, fmt.Sprintf("trend-%d", i), png)
		}
	}
}

func phaseLabel(p models.Phase) string {
	if p == "" {
		return "unspecified"
	}
	return string(p)
}

func badge(s models.Severity) string {
	switch s {
	case models.SeverityHigh:
		return "HIGH"
	case models.SeverityMedium:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
