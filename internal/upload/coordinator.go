// Package upload implements the UploadCoordinator from spec §4.1: the
// two-phase upload lifecycle (InitiateUpload, CompleteUpload, DeleteSession)
// that avoids the S3-404 race of enqueuing before the PUT completes.
package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cricksy/video-analysis/internal/apperrors"
	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
	"github.com/cricksy/video-analysis/internal/storage"
)

// Coordinator wires JobStore, BlobStore, and MessageQueue for the upload
// lifecycle.
type Coordinator struct {
	store  interfaces.JobStore
	blobs  storage.BlobStore
	queue  interfaces.MessageQueue
	logger *common.Logger
	ttl    time.Duration
	bucket string
}

// New builds a Coordinator. bucket is echoed back on InitiateResult.S3Bucket
// (spec §6 wire contract); it is the configured blob bucket name and carries
// no meaning for the file backend beyond a label.
func New(store interfaces.JobStore, blobs storage.BlobStore, queue interfaces.MessageQueue, logger *common.Logger, presignTTL time.Duration, bucket string) *Coordinator {
	return &Coordinator{store: store, blobs: blobs, queue: queue, logger: logger, ttl: presignTTL, bucket: bucket}
}

// InitiateResult is the response shape for InitiateUpload.
type InitiateResult struct {
	JobID        string `json:"job_id"`
	PresignedURL string `json:"presigned_url"`
	S3Bucket     string `json:"s3_bucket"`
	S3Key        string `json:"s3_key"`
}

// InitiateUpload creates an awaiting_upload AnalysisJob and returns a
// presigned PUT URL for the caller to upload the raw video to (spec §4.1).
func (c *Coordinator) InitiateUpload(ctx context.Context, ownerID, sessionID string, sampleFPS int, includeFrames bool) (*InitiateResult, error) {
	session, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session %s not found", apperrors.ErrNotFound, sessionID)
	}
	if ownerID != "" && ownerID != session.OwnerID {
		return nil, fmt.Errorf("%w: caller does not own session %s", apperrors.ErrForbidden, sessionID)
	}
	if session.Status.IsTerminal() && session.Status != models.SessionStatusReady {
		return nil, fmt.Errorf("%w: session %s is in terminal state %s", apperrors.ErrPreconditionFailed, sessionID, session.Status)
	}

	jobID := uuid.New().String()
	s3Key := fmt.Sprintf("%s/%s/%s.mp4", session.OwnerID, sessionID, jobID)

	job := &models.AnalysisJob{
		ID:            jobID,
		SessionID:     sessionID,
		Status:        models.JobStatusAwaitingUpload,
		Stage:         models.StageAwaitingUpload,
		ProgressPct:   0,
		SampleFPS:     sampleFPS,
		IncludeFrames: includeFrames,
		S3Key:         s3Key,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	if err := c.store.CreateSessionAndJob(ctx, session, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	presignedURL, err := c.blobs.PresignPut(ctx, s3Key, "video/mp4", c.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	c.logger.Info().Str("job_id", jobID).Str("session_id", sessionID).Str("s3_key", s3Key).Msg("Upload initiated")

	return &InitiateResult{JobID: jobID, PresignedURL: presignedURL, S3Bucket: c.bucket, S3Key: s3Key}, nil
}

// CompleteResult is the response shape for CompleteUpload.
type CompleteResult struct {
	Status         models.JobStatus `json:"status"`
	SQSMessageSent bool              `json:"sqs_message_sent"`
}

// CompleteUpload performs the S3 preflight HEAD check and, on success,
// transitions the job to queued and enqueues it — in that order, so an
// enqueue never outruns a committed DB transition (spec §4.1).
func (c *Coordinator) CompleteUpload(ctx context.Context, jobID string) (*CompleteResult, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("%w: job %s not found", apperrors.ErrNotFound, jobID)
	}

	// Idempotent no-op for any job already past the preflight point.
	switch job.Status {
	case models.JobStatusQueued, models.JobStatusQuickRunning, models.JobStatusQuickDone,
		models.JobStatusDeepRunning, models.JobStatusDone, models.JobStatusCompleted:
		return &CompleteResult{Status: job.Status}, nil
	}

	if job.Status != models.JobStatusAwaitingUpload && job.Status != models.JobStatusFailed {
		return nil, fmt.Errorf("%w: job %s in status %s cannot complete upload", apperrors.ErrPreconditionFailed, jobID, job.Status)
	}

	exists, err := c.blobs.Head(ctx, job.S3Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}
	if !exists {
		if _, err := c.store.TransitionPreflightMissing(ctx, jobID, "Upload not found"); err != nil {
			c.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to mark job failed after missing preflight")
		}
		return nil, fmt.Errorf("%w: object at %s not found", apperrors.ErrUploadNotFound, job.S3Key)
	}

	updated, transitioned, err := c.store.TransitionPreflightOK(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("transition preflight ok: %w", err)
	}

	// A concurrent CompleteUpload call already won the transition; this call
	// must not enqueue a second message for the same job (spec §2: at most
	// one enqueue per completed upload).
	if !transitioned {
		c.logger.Info().Str("job_id", jobID).Msg("Preflight transition already performed by a concurrent call; skipping enqueue")
		return &CompleteResult{Status: updated.Status, SQSMessageSent: false}, nil
	}

	if err := c.queue.Enqueue(ctx, jobID); err != nil {
		// The job stays queued in the DB with no queue message. The worker
		// pool claims only jobs it receives from the queue, and
		// ResetStaleRunningJobs touches only running jobs, so nothing picks
		// this job up until it is enqueued again.
		c.logger.Warn().Str("job_id", jobID).Err(err).Msg("Failed to enqueue job after preflight; job remains queued without a queue message")
		return &CompleteResult{Status: updated.Status, SQSMessageSent: false}, nil
	}

	c.logger.Info().Str("job_id", jobID).Msg("Upload completed, job queued")
	return &CompleteResult{Status: updated.Status, SQSMessageSent: true}, nil
}

// DeleteSession cascade-deletes a session's jobs and best-effort deletes its
// blobs; the DB commit succeeds even if blob deletion fails (spec §4.1).
func (c *Coordinator) DeleteSession(ctx context.Context, sessionID string) error {
	jobs, err := c.store.ListJobsBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	for _, job := range jobs {
		if job.S3Key == "" {
			continue
		}
		if err := c.blobs.Delete(ctx, job.S3Key); err != nil {
			c.logger.Warn().Str("job_id", job.ID).Str("s3_key", job.S3Key).Err(err).Msg("Best-effort blob delete failed")
		}
	}

	if err := c.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
