package upload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricksy/video-analysis/internal/apperrors"
	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
	"github.com/cricksy/video-analysis/internal/queue"
	"github.com/cricksy/video-analysis/internal/storage"
)

type fakeStore struct {
	sessions map[string]*models.Session
	jobs     map[string]*models.AnalysisJob
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]*models.Session{}, jobs: map[string]*models.AnalysisJob{}}
}

func (f *fakeStore) CreateSessionAndJob(ctx context.Context, s *models.Session, j *models.AnalysisJob) error {
	f.sessions[s.ID] = s
	f.jobs[j.ID] = j
	return nil
}
func (f *fakeStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return f.sessions[id], nil
}
func (f *fakeStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	if s, ok := f.sessions[id]; ok {
		s.Status = status
	}
	return nil
}
func (f *fakeStore) ListSessions(ctx context.Context, opts interfaces.SessionListOptions) ([]*models.Session, error) {
	return nil, nil
}
func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}
func (f *fakeStore) DeleteSessionsBulk(ctx context.Context, opts interfaces.BulkDeleteOptions) ([]*models.Session, error) {
	return nil, nil
}
func (f *fakeStore) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	return f.jobs[id], nil
}
func (f *fakeStore) ListJobsBySession(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error) {
	var out []*models.AnalysisJob
	for _, j := range f.jobs {
		if j.SessionID == sessionID {
			out = append(out, j)
		}
	}
	return out, nil
}
func (f *fakeStore) TransitionPreflightOK(ctx context.Context, jobID string) (*models.AnalysisJob, bool, error) {
	job := f.jobs[jobID]
	if job.Status != models.JobStatusAwaitingUpload && job.Status != models.JobStatusFailed {
		return job, false, nil
	}
	job.Status = models.JobStatusQueued
	job.Stage = models.StageQueued
	if s, ok := f.sessions[job.SessionID]; ok {
		s.Status = models.SessionStatusUploaded
	}
	return job, true, nil
}
func (f *fakeStore) TransitionPreflightMissing(ctx context.Context, jobID, message string) (*models.AnalysisJob, error) {
	job := f.jobs[jobID]
	job.Status = models.JobStatusFailed
	job.ErrorMessage = message
	return job, nil
}
func (f *fakeStore) ClaimNext(ctx context.Context) (*models.AnalysisJob, error) { return nil, nil }
func (f *fakeStore) ClaimByID(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeStore) PersistQuickArtifacts(ctx context.Context, jobID string, mode models.AnalysisMode, results map[string]any, fnd *models.Findings, report *models.Report, key string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeStore) TransitionToDeepRunning(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeStore) PersistDeepArtifacts(ctx context.Context, jobID string, results map[string]any, fnd *models.Findings, report *models.Report, key string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeStore) MarkFailed(ctx context.Context, jobID, msg string) (*models.AnalysisJob, error) {
	job := f.jobs[jobID]
	job.Status = models.JobStatusFailed
	job.ErrorMessage = msg
	return job, nil
}
func (f *fakeStore) ResetStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}
func (f *fakeStore) Close() error { return nil }

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeStore, storage.BlobStore, interfaces.MessageQueue) {
	t.Helper()
	store := newFakeStore()
	blobs, err := storage.NewFileBlobStore(common.NewSilentLogger(), &storage.FileBlobConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	mq := queue.NewMemQueue(time.Minute)
	return New(store, blobs, mq, common.NewSilentLogger(), 15*time.Minute, "test-bucket"), store, blobs, mq
}

func TestCoordinator_InitiateUpload_CreatesAwaitingJob(t *testing.T) {
	c, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	store.sessions["s1"] = &models.Session{ID: "s1", OwnerID: "owner-1", Status: models.SessionStatusPending}

	res, err := c.InitiateUpload(ctx, "owner-1", "s1", 10, false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.JobID)
	assert.Contains(t, res.PresignedURL, "key=")

	job := store.jobs[res.JobID]
	assert.Equal(t, models.JobStatusAwaitingUpload, job.Status)
}

func TestCoordinator_InitiateUpload_RejectsWrongOwner(t *testing.T) {
	c, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	store.sessions["s1"] = &models.Session{ID: "s1", OwnerID: "owner-1"}

	_, err := c.InitiateUpload(ctx, "owner-2", "s1", 10, false)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCoordinator_CompleteUpload_MissingObjectFailsJob(t *testing.T) {
	c, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	store.sessions["s1"] = &models.Session{ID: "s1", OwnerID: "o1"}
	store.jobs["j1"] = &models.AnalysisJob{ID: "j1", SessionID: "s1", Status: models.JobStatusAwaitingUpload, S3Key: "o1/s1/j1.mp4"}

	_, err := c.CompleteUpload(ctx, "j1")
	assert.ErrorIs(t, err, apperrors.ErrUploadNotFound)
	assert.Equal(t, models.JobStatusFailed, store.jobs["j1"].Status)
}

func TestCoordinator_CompleteUpload_HappyPathQueuesAndEnqueues(t *testing.T) {
	c, store, blobs, mq := newTestCoordinator(t)
	ctx := context.Background()
	store.sessions["s1"] = &models.Session{ID: "s1", OwnerID: "o1"}
	store.jobs["j1"] = &models.AnalysisJob{ID: "j1", SessionID: "s1", Status: models.JobStatusAwaitingUpload, S3Key: "o1/s1/j1.mp4"}
	require.NoError(t, blobs.Put(ctx, "o1/s1/j1.mp4", []byte("data"), "video/mp4"))

	res, err := c.CompleteUpload(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, res.Status)
	assert.True(t, res.SQSMessageSent)
	assert.Equal(t, models.SessionStatusUploaded, store.sessions["s1"].Status)

	msgs, err := mq.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "j1", msgs[0].JobID)
}

func TestCoordinator_CompleteUpload_IdempotentForQueuedJob(t *testing.T) {
	c, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	store.jobs["j1"] = &models.AnalysisJob{ID: "j1", Status: models.JobStatusQueued}

	res, err := c.CompleteUpload(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, res.Status)
	assert.False(t, res.SQSMessageSent)
}

func TestCoordinator_DeleteSession_BestEffortBlobDelete(t *testing.T) {
	c, store, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	store.sessions["s1"] = &models.Session{ID: "s1"}
	store.jobs["j1"] = &models.AnalysisJob{ID: "j1", SessionID: "s1", S3Key: "o1/s1/j1.mp4"}

	err := c.DeleteSession(ctx, "s1")
	require.NoError(t, err)
	_, ok := store.sessions["s1"]
	assert.False(t, ok)
}
