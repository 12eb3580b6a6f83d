// Package interfaces defines the port contracts the core pipeline consults:
// durable storage, blob storage, the message queue, and the external
// collaborators named as non-goals in spec §1 (auth, pose/metrics).
package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/cricksy/video-analysis/internal/models"
)

// JobStore provides transactional CRUD over Session and AnalysisJob rows,
// including the conditional claim update workers use to race-safely
// dequeue work (spec §2, §4.2, §4.3).
type JobStore interface {
	CreateSessionAndJob(ctx context.Context, session *models.Session, job *models.AnalysisJob) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error
	ListSessions(ctx context.Context, opts SessionListOptions) ([]*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsBulk(ctx context.Context, opts BulkDeleteOptions) ([]*models.Session, error)

	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)
	ListJobsBySession(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error)

	// TransitionPreflightOK moves a job from awaiting_upload/failed to queued,
	// bumping the session to uploaded, in a single transaction (spec §4.1).
	// The returned bool reports whether THIS call performed the transition —
	// false means a concurrent caller already won the race, which the caller
	// must use to avoid double-enqueueing (spec §2 "at most one enqueue").
	TransitionPreflightOK(ctx context.Context, jobID string) (job *models.AnalysisJob, transitioned bool, err error)
	// TransitionPreflightMissing moves a job to failed with the given message.
	TransitionPreflightMissing(ctx context.Context, jobID, message string) (*models.AnalysisJob, error)

	// ClaimNext atomically claims one queued job, transitioning it to
	// quick_running. Returns (nil, nil) if no job is claimable.
	ClaimNext(ctx context.Context) (*models.AnalysisJob, error)
	// ClaimByID atomically claims a specific queued job (used by the
	// queue-driven worker once it has a job_id off the wire).
	ClaimByID(ctx context.Context, jobID string) (*models.AnalysisJob, error)

	// PersistQuickArtifacts also writes the resolved AnalysisMode to the job
	// row (spec §6 read model: GET /analysis-jobs/{id} must carry
	// analysis_mode even for session-context-resolved jobs).
	PersistQuickArtifacts(ctx context.Context, jobID string, mode models.AnalysisMode, results map[string]any, findings *models.Findings, report *models.Report, resultsS3Key string) (*models.AnalysisJob, error)
	TransitionToDeepRunning(ctx context.Context, jobID string) (*models.AnalysisJob, error)
	PersistDeepArtifacts(ctx context.Context, jobID string, results map[string]any, findings *models.Findings, report *models.Report, resultsS3Key string) (*models.AnalysisJob, error)

	MarkFailed(ctx context.Context, jobID, errorMessage string) (*models.AnalysisJob, error)
	ResetStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int, error)

	Close() error
}

// SessionListOptions configures GET /sessions pagination/filtering (spec §6).
type SessionListOptions struct {
	OwnerID       string
	Limit         int
	Offset        int
	StatusFilter  models.SessionStatus
	ExcludeFailed bool
}

// BulkDeleteOptions configures DELETE /sessions/bulk (spec §6).
type BulkDeleteOptions struct {
	OwnerID      string
	StatusFilter models.SessionStatus
	OlderThan    *time.Time
}

// BlobStore issues presigned URLs and moves bytes for uploaded video and
// offloaded result payloads (spec §2 "BlobStore port").
type BlobStore interface {
	// PresignPut returns a short-lived URL the client can PUT the object to.
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// Head checks object existence without downloading it (preflight, spec §4.1).
	Head(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Message is one unit received off the MessageQueue (spec §6 "queue message format").
type Message struct {
	ID            string // provider-assigned message/receipt handle
	ReceiptHandle string
	JobID         string
	ReceiveCount  int
}

// MessageQueue abstracts durable dispatch with visibility-timeout-based
// exclusion and DLQ redrive (spec §2 "MessageQueue port", GLOSSARY).
type MessageQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Receive long-polls for up to maxMessages messages, waiting up to
	// waitTime for at least one to arrive.
	Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
	// ChangeVisibility extends or shortens how long a received message stays
	// hidden from other consumers.
	ChangeVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error
}

// AuthorizationContext is the opaque context the core consults for ownership
// and entitlement checks; authentication/role/tier gating itself is an
// external collaborator (spec §1 non-goals).
type AuthorizationContext struct {
	UserID string
	Roles  []string
}

// IsOwner reports whether this context's user owns the given resource.
func (a *AuthorizationContext) IsOwner(ownerID string) bool {
	return a != nil && a.UserID != "" && a.UserID == ownerID
}

// IsAdmin reports whether this context carries an admin role.
func (a *AuthorizationContext) IsAdmin() bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// PoseFrame is one sampled frame's pose-estimation output (spec §1 non-goals:
// treated as a pure function's output, not implemented here).
type PoseFrame struct {
	TimestampMS int64              `json:"timestamp_ms"`
	FrameIndex  int                `json:"frame_index"`
	Keypoints   map[string][3]float64 `json:"keypoints"` // joint name -> (x, y, confidence)
	Reliability float64            `json:"reliability"`
}

// PoseAnalyzer samples a video at sampleFPS and returns per-frame pose data.
// Pure function boundary per spec §1; the real CV pipeline lives outside this module.
type PoseAnalyzer func(ctx context.Context, videoPath string, sampleFPS int) ([]PoseFrame, error)

// Metrics is the biomechanical measurement set computed from pose frames,
// keyed by metric name (spec §1 non-goals: MetricsComputer is a pure function).
type Metrics map[string]any

// MetricsComputer derives Metrics from a sequence of pose frames.
type MetricsComputer func(frames []PoseFrame) (Metrics, error)
