package models

import "time"

// JobStatus is a state in the AnalysisJob state machine (spec §4.2).
type JobStatus string

const (
	JobStatusAwaitingUpload JobStatus = "awaiting_upload"
	JobStatusQueued         JobStatus = "queued"
	JobStatusQuickRunning   JobStatus = "quick_running"
	JobStatusQuickDone      JobStatus = "quick_done"
	JobStatusDeepRunning    JobStatus = "deep_running"
	JobStatusDone           JobStatus = "done"
	JobStatusCompleted      JobStatus = "completed" // legacy alias for JobStatusDone
	JobStatusFailed         JobStatus = "failed"
)

// IsTerminalSuccess reports whether status is a terminal success state.
// "completed" is a legacy alias for "done" (spec §4.2, §9).
func (s JobStatus) IsTerminalSuccess() bool {
	return s == JobStatusDone || s == JobStatusCompleted
}

// IsClaimable reports whether a job in this status may be claimed by a worker.
// Only "queued" jobs are claimable; "awaiting_upload" explicitly is not (spec §4.2).
func (s JobStatus) IsClaimable() bool {
	return s == JobStatusQueued
}

// AnalysisMode selects which metrics matter and which finding codes are in scope.
type AnalysisMode string

const (
	ModeBatting       AnalysisMode = "batting"
	ModeBowling       AnalysisMode = "bowling"
	ModeWicketkeeping AnalysisMode = "wicketkeeping"
	ModeFielding      AnalysisMode = "fielding"
)

// DefaultMode is used when neither the job nor the session name a mode (spec §4.4).
const DefaultMode = ModeBatting

// ValidModes lists the closed set of analysis modes recognized by the system.
var ValidModes = []AnalysisMode{ModeBatting, ModeBowling, ModeWicketkeeping, ModeFielding}

// IsValidMode reports whether m is one of the recognized analysis modes.
func IsValidMode(m AnalysisMode) bool {
	for _, v := range ValidModes {
		if v == m {
			return true
		}
	}
	return false
}

// AnalysisJob is one attempted analysis over one session's video (spec §3).
type AnalysisJob struct {
	ID             string       `json:"id"`
	SessionID      string       `json:"session_id"`
	Status         JobStatus    `json:"status"`
	Stage          string       `json:"stage"`
	ProgressPct    int          `json:"progress_pct"`
	AnalysisMode   AnalysisMode `json:"analysis_mode,omitempty"`
	SampleFPS      int          `json:"sample_fps"`
	IncludeFrames  bool         `json:"include_frames"`
	S3Key          string       `json:"s3_key"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	ErrorMessage   string       `json:"error_message,omitempty"`

	// Persisted artifacts (spec §3, §4.4).
	QuickResults      map[string]any `json:"quick_results,omitempty"`
	DeepResults       map[string]any `json:"deep_results,omitempty"`
	QuickFindings     *Findings      `json:"quick_findings,omitempty"`
	QuickReport       *Report        `json:"quick_report,omitempty"`
	DeepFindings      *Findings      `json:"deep_findings,omitempty"`
	DeepReport        *Report        `json:"deep_report,omitempty"`
	QuickResultsS3Key string         `json:"quick_results_s3_key,omitempty"`
	DeepResultsS3Key  string         `json:"deep_results_s3_key,omitempty"`

	// Attempts is incremented on every claim; ReceiveCount tracks queue redelivery
	// for DLQ accounting (spec §4.3, §5 backpressure).
	Attempts int `json:"attempts"`
}

// Stage labels used across the state machine (spec §4.1, §4.3).
const (
	StageAwaitingUpload = "AWAITING_UPLOAD"
	StageQueued         = "QUEUED"
	StageQuickAnalyzing = "QUICK_ANALYZING"
	StageDeepAnalyzing  = "DEEP_ANALYZING"
	StageDone           = "DONE"
	StageFailed         = "FAILED"
)

// JobEvent is broadcast to WebSocket clients when a job's state changes
// (supplemented feature — SPEC_FULL §12, modeled on the teacher's JobEvent).
type JobEvent struct {
	Type      string       `json:"type"` // "job_claimed", "job_quick_done", "job_deep_running", "job_done", "job_failed"; no event is sent when a job becomes queued
	Job       *AnalysisJob `json:"job"`
	Timestamp time.Time    `json:"timestamp"`
}

// ResolveMode implements the mode resolution law from spec §4.4:
//
//	mode := job.analysis_mode || session.analysis_context || "batting"
func ResolveMode(job *AnalysisJob, session *Session) AnalysisMode {
	if job != nil && job.AnalysisMode != "" && IsValidMode(job.AnalysisMode) {
		return job.AnalysisMode
	}
	if session != nil && session.AnalysisContext != "" && IsValidMode(AnalysisMode(session.AnalysisContext)) {
		return AnalysisMode(session.AnalysisContext)
	}
	return DefaultMode
}
