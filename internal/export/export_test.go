package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricksy/video-analysis/internal/apperrors"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
)

// pdfTextContains checks the PDF's /Title info-dict entry, which fpdf writes
// as a plain (uncompressed) literal string regardless of stream compression.
func pdfTextContains(pdf []byte, s string) bool {
	return bytes.Contains(pdf, []byte(s))
}

type fakeGateStore struct {
	jobs map[string]*models.AnalysisJob
}

func (f *fakeGateStore) CreateSessionAndJob(ctx context.Context, s *models.Session, j *models.AnalysisJob) error {
	return nil
}
func (f *fakeGateStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return nil, nil
}
func (f *fakeGateStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	return nil
}
func (f *fakeGateStore) ListSessions(ctx context.Context, opts interfaces.SessionListOptions) ([]*models.Session, error) {
	return nil, nil
}
func (f *fakeGateStore) DeleteSession(ctx context.Context, id string) error { return nil }
func (f *fakeGateStore) DeleteSessionsBulk(ctx context.Context, opts interfaces.BulkDeleteOptions) ([]*models.Session, error) {
	return nil, nil
}
func (f *fakeGateStore) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	return f.jobs[id], nil
}
func (f *fakeGateStore) ListJobsBySession(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeGateStore) TransitionPreflightOK(ctx context.Context, jobID string) (*models.AnalysisJob, bool, error) {
	return nil, false, nil
}
func (f *fakeGateStore) TransitionPreflightMissing(ctx context.Context, jobID, message string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeGateStore) ClaimNext(ctx context.Context) (*models.AnalysisJob, error) { return nil, nil }
func (f *fakeGateStore) ClaimByID(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeGateStore) PersistQuickArtifacts(ctx context.Context, jobID string, mode models.AnalysisMode, results map[string]any, fnd *models.Findings, report *models.Report, key string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeGateStore) TransitionToDeepRunning(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeGateStore) PersistDeepArtifacts(ctx context.Context, jobID string, results map[string]any, fnd *models.Findings, report *models.Report, key string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeGateStore) MarkFailed(ctx context.Context, jobID, msg string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeGateStore) ResetStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}
func (f *fakeGateStore) Close() error { return nil }

func TestGate_ExportReport_RejectsNonTerminal(t *testing.T) {
	store := &fakeGateStore{jobs: map[string]*models.AnalysisJob{
		"j1": {ID: "j1", Status: models.JobStatusDeepRunning},
	}}
	gate := NewGate(store)

	_, err := gate.ExportReport(context.Background(), "j1")
	assert.ErrorIs(t, err, apperrors.ErrPreconditionFailed)
}

func TestGate_ExportReport_RejectsUnknownJob(t *testing.T) {
	store := &fakeGateStore{jobs: map[string]*models.AnalysisJob{}}
	gate := NewGate(store)

	_, err := gate.ExportReport(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGate_ExportReport_RendersPDFForDoneJob(t *testing.T) {
	job := &models.AnalysisJob{
		ID:           "j2",
		Status:       models.JobStatusDone,
		AnalysisMode: models.ModeBatting,
		DeepFindings: &models.Findings{
			Findings: []models.Finding{
				{Code: "BAT_HEAD_DRIFT", Title: "Head drift", Severity: models.SeverityHigh, Message: "Head moves too far", WhyMatters: "Reduces bat control", SuggestedDrills: []string{"Mirror drill"}, Evidence: map[string]any{"head_drift_cm": 9.5}, Phase: models.PhaseDeep},
			},
			OverallLevel: models.SeverityHigh,
		},
		DeepReport: &models.Report{Text: "One high-severity finding detected."},
	}
	store := &fakeGateStore{jobs: map[string]*models.AnalysisJob{"j2": job}}
	gate := NewGate(store)

	bytes, err := gate.ExportReport(context.Background(), "j2")
	require.NoError(t, err)
	assert.NotEmpty(t, bytes)
	assert.Equal(t, "%PDF", string(bytes[:4]))
}

func TestGate_ExportReport_TitleUsesModeUsedFromResultsNotJobField(t *testing.T) {
	job := &models.AnalysisJob{
		ID:     "j4",
		Status: models.JobStatusDone,
		// AnalysisMode intentionally left unset: this job's mode was
		// resolved from session.analysis_context, not the job column.
		DeepResults: map[string]any{"analysis_mode_used": "bowling"},
		DeepFindings: &models.Findings{
			Findings: []models.Finding{
				{Code: "BOWL_LOW_RELEASE", Title: "Low release point", Severity: models.SeverityMedium, Message: "Release height below target", Phase: models.PhaseDeep},
			},
			OverallLevel: models.SeverityMedium,
		},
		DeepReport: &models.Report{Text: "One medium-severity finding detected."},
	}
	store := &fakeGateStore{jobs: map[string]*models.AnalysisJob{"j4": job}}
	gate := NewGate(store)

	bytes, err := gate.ExportReport(context.Background(), "j4")
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(bytes[:4]))
	assert.Equal(t, models.ModeBowling, resolveExportMode(job))
	assert.True(t, pdfTextContains(bytes, "Bowling Analysis Report"), "expected PDF title to reflect resolved bowling mode")
	assert.False(t, pdfTextContains(bytes, "Batting Analysis Report"), "PDF must not default to batting when mode resolves via session context")
}

func TestGate_ExportReport_DegradedWhenArtifactsMissing(t *testing.T) {
	job := &models.AnalysisJob{ID: "j3", Status: models.JobStatusCompleted}
	store := &fakeGateStore{jobs: map[string]*models.AnalysisJob{"j3": job}}
	gate := NewGate(store)

	bytes, err := gate.ExportReport(context.Background(), "j3")
	require.NoError(t, err)
	assert.NotEmpty(t, bytes)
}

func TestTriage_ExactlyThreeThisWeekBullets(t *testing.T) {
	findings := []models.Finding{
		{Title: "A", Severity: models.SeverityHigh},
	}
	_, _, thisWeek := triage(findings)
	assert.Len(t, thisWeek, 3)
}
