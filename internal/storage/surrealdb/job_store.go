package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// sessionRecord and jobRecord are the SurrealDB wire shapes. The business ID
// is also stored in the body (session_id / job_id) and selected back as id,
// mirroring the teacher's "alias id" pattern for job_queue.
type sessionRecord struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Title           string    `json:"title"`
	PlayerIDs       []string  `json:"player_ids"`
	Notes           string    `json:"notes"`
	AnalysisContext string    `json:"analysis_context"`
	CameraView      string    `json:"camera_view"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type jobRecord struct {
	ID                string         `json:"id"`
	SessionID         string         `json:"session_id"`
	Status            string         `json:"status"`
	Stage             string         `json:"stage"`
	ProgressPct       int            `json:"progress_pct"`
	AnalysisMode      string         `json:"analysis_mode"`
	SampleFPS         int            `json:"sample_fps"`
	IncludeFrames     bool           `json:"include_frames"`
	S3Key             string         `json:"s3_key"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage      string         `json:"error_message"`
	QuickResults      map[string]any `json:"quick_results,omitempty"`
	DeepResults       map[string]any `json:"deep_results,omitempty"`
	QuickFindings     *models.Findings `json:"quick_findings,omitempty"`
	QuickReport       *models.Report   `json:"quick_report,omitempty"`
	DeepFindings      *models.Findings `json:"deep_findings,omitempty"`
	DeepReport        *models.Report   `json:"deep_report,omitempty"`
	QuickResultsS3Key string         `json:"quick_results_s3_key"`
	DeepResultsS3Key  string         `json:"deep_results_s3_key"`
	Attempts          int            `json:"attempts"`
}

func (r *jobRecord) toModel() *models.AnalysisJob {
	return &models.AnalysisJob{
		ID:                r.ID,
		SessionID:         r.SessionID,
		Status:            models.JobStatus(r.Status),
		Stage:             r.Stage,
		ProgressPct:       r.ProgressPct,
		AnalysisMode:      models.AnalysisMode(r.AnalysisMode),
		SampleFPS:         r.SampleFPS,
		IncludeFrames:     r.IncludeFrames,
		S3Key:             r.S3Key,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		CompletedAt:       r.CompletedAt,
		ErrorMessage:      r.ErrorMessage,
		QuickResults:      r.QuickResults,
		DeepResults:       r.DeepResults,
		QuickFindings:     r.QuickFindings,
		QuickReport:       r.QuickReport,
		DeepFindings:      r.DeepFindings,
		DeepReport:        r.DeepReport,
		QuickResultsS3Key: r.QuickResultsS3Key,
		DeepResultsS3Key:  r.DeepResultsS3Key,
		Attempts:          r.Attempts,
	}
}

func (r *sessionRecord) toModel() *models.Session {
	return &models.Session{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		Title:           r.Title,
		PlayerIDs:       r.PlayerIDs,
		Notes:           r.Notes,
		AnalysisContext: r.AnalysisContext,
		CameraView:      r.CameraView,
		Status:          models.SessionStatus(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

const jobSelectFields = "job_id as id, session_id, status, stage, progress_pct, analysis_mode, sample_fps, " +
	"include_frames, s3_key, created_at, updated_at, completed_at, error_message, quick_results, deep_results, " +
	"quick_findings, quick_report, deep_findings, deep_report, quick_results_s3_key, deep_results_s3_key, attempts"

const sessionSelectFields = "session_id as id, owner_id, title, player_ids, notes, analysis_context, " +
	"camera_view, status, created_at, updated_at"

// JobStore implements interfaces.JobStore using SurrealDB, following the
// teacher's two-step select-then-conditional-update claim pattern for
// exactly-once dequeue (spec §4.3).
type JobStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *surrealdb.DB, logger *common.Logger) *JobStore {
	return &JobStore{db: db, logger: logger}
}

func (s *JobStore) CreateSessionAndJob(ctx context.Context, session *models.Session, job *models.AnalysisJob) error {
	now := time.Now()
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	session.CreatedAt, session.UpdatedAt = now, now
	if session.Status == "" {
		session.Status = models.SessionStatusPending
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.SessionID = session.ID
	job.CreatedAt, job.UpdatedAt = now, now
	if job.Status == "" {
		job.Status = models.JobStatusAwaitingUpload
		job.Stage = models.StageAwaitingUpload
	}

	sessionSQL := `UPSERT $rid SET session_id = $id, owner_id = $owner_id, title = $title,
		player_ids = $player_ids, notes = $notes, analysis_context = $analysis_context,
		camera_view = $camera_view, status = $status, created_at = $created_at, updated_at = $updated_at`
	sessionVars := map[string]any{
		"rid":              surrealmodels.NewRecordID("session", session.ID),
		"id":               session.ID,
		"owner_id":         session.OwnerID,
		"title":            session.Title,
		"player_ids":       session.PlayerIDs,
		"notes":            session.Notes,
		"analysis_context": session.AnalysisContext,
		"camera_view":      session.CameraView,
		"status":           string(session.Status),
		"created_at":       session.CreatedAt,
		"updated_at":       session.UpdatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sessionSQL, sessionVars); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	jobSQL := `UPSERT $rid SET job_id = $id, session_id = $session_id, status = $status, stage = $stage,
		progress_pct = $progress_pct, analysis_mode = $analysis_mode, sample_fps = $sample_fps,
		include_frames = $include_frames, s3_key = $s3_key, created_at = $created_at, updated_at = $updated_at,
		error_message = '', attempts = 0`
	jobVars := map[string]any{
		"rid":            surrealmodels.NewRecordID("analysis_job", job.ID),
		"id":             job.ID,
		"session_id":     job.SessionID,
		"status":         string(job.Status),
		"stage":          job.Stage,
		"progress_pct":   0,
		"analysis_mode":  string(job.AnalysisMode),
		"sample_fps":     job.SampleFPS,
		"include_frames": job.IncludeFrames,
		"s3_key":         job.S3Key,
		"created_at":     job.CreatedAt,
		"updated_at":     job.UpdatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, jobSQL, jobVars); err != nil {
		return fmt.Errorf("failed to create analysis job: %w", err)
	}
	return nil
}

func (s *JobStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sql := "SELECT " + sessionSelectFields + " FROM session WHERE session_id = $id LIMIT 1"
	results, err := surrealdb.Query[[]sessionRecord](ctx, s.db, sql, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].toModel(), nil
}

func (s *JobStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	sql := "UPDATE $rid SET status = $status, updated_at = $now"
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("session", id),
		"status": string(status),
		"now":    time.Now(),
	}
	_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return nil
}

func (s *JobStore) ListSessions(ctx context.Context, opts interfaces.SessionListOptions) ([]*models.Session, error) {
	sql := "SELECT " + sessionSelectFields + " FROM session WHERE owner_id = $owner_id"
	vars := map[string]any{"owner_id": opts.OwnerID}
	if opts.StatusFilter != "" {
		sql += " AND status = $status"
		vars["status"] = string(opts.StatusFilter)
	}
	if opts.ExcludeFailed {
		sql += " AND status != $failed"
		vars["failed"] = string(models.SessionStatusFailed)
	}
	sql += " ORDER BY created_at DESC"
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	sql += " LIMIT $limit START $offset"
	vars["limit"] = limit
	vars["offset"] = opts.Offset

	results, err := surrealdb.Query[[]sessionRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var sessions []*models.Session
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			sessions = append(sessions, (*results)[0].Result[i].toModel())
		}
	}
	return sessions, nil
}

func (s *JobStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE analysis_job WHERE session_id = $id", map[string]any{"id": id}); err != nil {
		return fmt.Errorf("failed to delete jobs for session: %w", err)
	}
	if _, err := surrealdb.Delete[sessionRecord](ctx, s.db, surrealmodels.NewRecordID("session", id)); err != nil && !isNotFoundErr(err) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *JobStore) DeleteSessionsBulk(ctx context.Context, opts interfaces.BulkDeleteOptions) ([]*models.Session, error) {
	sql := "SELECT " + sessionSelectFields + " FROM session WHERE owner_id = $owner_id"
	vars := map[string]any{"owner_id": opts.OwnerID}
	if opts.StatusFilter != "" {
		sql += " AND status = $status"
		vars["status"] = string(opts.StatusFilter)
	}
	if opts.OlderThan != nil {
		sql += " AND created_at < $older_than"
		vars["older_than"] = *opts.OlderThan
	}

	results, err := surrealdb.Query[[]sessionRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to select sessions for bulk delete: %w", err)
	}
	var deleted []*models.Session
	if results == nil || len(*results) == 0 {
		return deleted, nil
	}
	for i := range (*results)[0].Result {
		sess := (*results)[0].Result[i].toModel()
		if err := s.DeleteSession(ctx, sess.ID); err != nil {
			return deleted, err
		}
		deleted = append(deleted, sess)
	}
	return deleted, nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	sql := "SELECT " + jobSelectFields + " FROM analysis_job WHERE job_id = $id LIMIT 1"
	results, err := surrealdb.Query[[]jobRecord](ctx, s.db, sql, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return (*results)[0].Result[0].toModel(), nil
}

func (s *JobStore) ListJobsBySession(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error) {
	sql := "SELECT " + jobSelectFields + " FROM analysis_job WHERE session_id = $session_id ORDER BY created_at DESC"
	results, err := surrealdb.Query[[]jobRecord](ctx, s.db, sql, map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	var jobs []*models.AnalysisJob
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			jobs = append(jobs, (*results)[0].Result[i].toModel())
		}
	}
	return jobs, nil
}

// TransitionPreflightOK's WHERE clause re-checks status the same way
// ClaimByID does, so only the caller whose UPDATE actually matches a row
// is told it performed the transition; a concurrent second caller sees an
// empty result set and must not enqueue again.
func (s *JobStore) TransitionPreflightOK(ctx context.Context, jobID string) (*models.AnalysisJob, bool, error) {
	now := time.Now()
	sql := `UPDATE $rid SET status = $queued, stage = $stage, updated_at = $now
		WHERE status IN [$awaiting, $failed]`
	vars := map[string]any{
		"rid":      surrealmodels.NewRecordID("analysis_job", jobID),
		"queued":   string(models.JobStatusQueued),
		"stage":    models.StageQueued,
		"now":      now,
		"awaiting": string(models.JobStatusAwaitingUpload),
		"failed":   string(models.JobStatusFailed),
	}
	results, err := surrealdb.Query[[]jobRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, false, fmt.Errorf("failed to transition job to queued: %w", err)
	}
	transitioned := results != nil && len(*results) > 0 && len((*results)[0].Result) > 0
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, false, err
	}
	if job != nil && transitioned {
		_ = s.UpdateSessionStatus(ctx, job.SessionID, models.SessionStatusUploaded)
	}
	return job, transitioned, nil
}

func (s *JobStore) TransitionPreflightMissing(ctx context.Context, jobID, message string) (*models.AnalysisJob, error) {
	return s.MarkFailed(ctx, jobID, message)
}

// ClaimNext is the teacher's two-step dequeue: select one candidate, then
// atomically update it from queued to quick_running, re-checking status in
// the WHERE clause so a concurrent claimant cannot win twice.
func (s *JobStore) ClaimNext(ctx context.Context) (*models.AnalysisJob, error) {
	sql := "SELECT " + jobSelectFields + " FROM analysis_job WHERE status = $queued ORDER BY created_at ASC LIMIT 1"
	candidates, err := surrealdb.Query[[]jobRecord](ctx, s.db, sql, map[string]any{"queued": string(models.JobStatusQueued)})
	if err != nil {
		return nil, fmt.Errorf("failed to select candidate job: %w", err)
	}
	if candidates == nil || len(*candidates) == 0 || len((*candidates)[0].Result) == 0 {
		return nil, nil
	}
	candidate := (*candidates)[0].Result[0]
	return s.ClaimByID(ctx, candidate.ID)
}

func (s *JobStore) ClaimByID(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	now := time.Now()
	sql := `UPDATE $rid SET status = $running, stage = $stage, updated_at = $now, attempts = attempts + 1
		WHERE status = $queued`
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("analysis_job", jobID),
		"running": string(models.JobStatusQuickRunning),
		"stage":   models.StageQuickAnalyzing,
		"now":     now,
		"queued":  string(models.JobStatusQueued),
	}
	results, err := surrealdb.Query[[]map[string]any](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		// The conditional UPDATE matched no row: another worker won the race
		// (or the job was not queued); report no claim.
		return nil, nil
	}
	return s.GetJob(ctx, jobID)
}

func (s *JobStore) PersistQuickArtifacts(ctx context.Context, jobID string, mode models.AnalysisMode, results map[string]any, findings *models.Findings, report *models.Report, resultsS3Key string) (*models.AnalysisJob, error) {
	if findings == nil || report == nil {
		return nil, fmt.Errorf("persist quick artifacts: findings and report are both required before transition")
	}
	now := time.Now()
	sql := `UPDATE $rid SET status = $done, stage = $stage, updated_at = $now, analysis_mode = $mode,
		quick_results = $results, quick_findings = $findings, quick_report = $report,
		quick_results_s3_key = $s3key WHERE status = $running`
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("analysis_job", jobID),
		"done":    string(models.JobStatusQuickDone),
		"stage":   models.StageQuickAnalyzing,
		"now":     now,
		"mode":    string(mode),
		"results": results,
		"findings": findings,
		"report":  report,
		"s3key":   resultsS3Key,
		"running": string(models.JobStatusQuickRunning),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to persist quick artifacts: %w", err)
	}
	return s.GetJob(ctx, jobID)
}

func (s *JobStore) TransitionToDeepRunning(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	now := time.Now()
	sql := `UPDATE $rid SET status = $deep, stage = $stage, updated_at = $now WHERE status = $quickdone`
	vars := map[string]any{
		"rid":      surrealmodels.NewRecordID("analysis_job", jobID),
		"deep":     string(models.JobStatusDeepRunning),
		"stage":    models.StageDeepAnalyzing,
		"now":      now,
		"quickdone": string(models.JobStatusQuickDone),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to transition to deep_running: %w", err)
	}
	return s.GetJob(ctx, jobID)
}

func (s *JobStore) PersistDeepArtifacts(ctx context.Context, jobID string, results map[string]any, findings *models.Findings, report *models.Report, resultsS3Key string) (*models.AnalysisJob, error) {
	if findings == nil || report == nil {
		return nil, fmt.Errorf("persist deep artifacts: findings and report are both required before transition")
	}
	now := time.Now()
	sql := `UPDATE $rid SET status = $done, stage = $stage, updated_at = $now, completed_at = $now,
		deep_results = $results, deep_findings = $findings, deep_report = $report,
		deep_results_s3_key = $s3key WHERE status = $running`
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID("analysis_job", jobID),
		"done":    string(models.JobStatusDone),
		"stage":   models.StageDone,
		"now":     now,
		"results": results,
		"findings": findings,
		"report":  report,
		"s3key":   resultsS3Key,
		"running": string(models.JobStatusDeepRunning),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to persist deep artifacts: %w", err)
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job != nil {
		_ = s.UpdateSessionStatus(ctx, job.SessionID, models.SessionStatusReady)
	}
	return job, nil
}

func (s *JobStore) MarkFailed(ctx context.Context, jobID, errorMessage string) (*models.AnalysisJob, error) {
	now := time.Now()
	sql := `UPDATE $rid SET status = $failed, stage = $stage, updated_at = $now, error_message = $msg`
	vars := map[string]any{
		"rid":    surrealmodels.NewRecordID("analysis_job", jobID),
		"failed": string(models.JobStatusFailed),
		"stage":  models.StageFailed,
		"now":    now,
		"msg":    errorMessage,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to mark job failed: %w", err)
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job != nil {
		_ = s.UpdateSessionStatus(ctx, job.SessionID, models.SessionStatusFailed)
	}
	return job, nil
}

// ResetStaleRunningJobs recovers jobs orphaned by a worker crash: any job
// still in a running state past the visibility window is bounced back to
// queued, following the teacher's ResetRunningJobs startup recovery pattern.
func (s *JobStore) ResetStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	sql := `UPDATE analysis_job SET status = $queued, stage = $stage, updated_at = $now
		WHERE status IN [$quickrun, $deeprun] AND updated_at < $cutoff`
	vars := map[string]any{
		"queued":   string(models.JobStatusQueued),
		"stage":    models.StageQueued,
		"now":      time.Now(),
		"quickrun": string(models.JobStatusQuickRunning),
		"deeprun":  string(models.JobStatusDeepRunning),
		"cutoff":   cutoff,
	}
	results, err := surrealdb.Query[[]jobRecord](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale running jobs: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return len((*results)[0].Result), nil
	}
	return 0, nil
}

func (s *JobStore) Close() error {
	return nil
}

// isNotFoundErr mirrors the teacher's isNotFoundError: SurrealDB v3 returns
// this specific message from Delete on a record that no longer exists.
func isNotFoundErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Expected a single result output when using the ONLY keyword")
}

// Compile-time check.
var _ interfaces.JobStore = (*JobStore)(nil)
