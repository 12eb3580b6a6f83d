package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
	"github.com/cricksy/video-analysis/internal/queue"
	"github.com/cricksy/video-analysis/internal/storage"
)

// fakeJobStore is an in-memory interfaces.JobStore for worker pool tests.
type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[string]*models.AnalysisJob
	sessions map[string]*models.Session
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*models.AnalysisJob{}, sessions: map[string]*models.Session{}}
}

func (f *fakeJobStore) seed(session *models.Session, job *models.AnalysisJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	f.jobs[job.ID] = job
}

func (f *fakeJobStore) CreateSessionAndJob(ctx context.Context, s *models.Session, j *models.AnalysisJob) error {
	f.seed(s, j)
	return nil
}
func (f *fakeJobStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id], nil
}
func (f *fakeJobStore) UpdateSessionStatus(ctx context.Context, id string, status models.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.Status = status
	}
	return nil
}
func (f *fakeJobStore) ListSessions(ctx context.Context, opts interfaces.SessionListOptions) ([]*models.Session, error) {
	return nil, nil
}
func (f *fakeJobStore) DeleteSession(ctx context.Context, id string) error { return nil }
func (f *fakeJobStore) DeleteSessionsBulk(ctx context.Context, opts interfaces.BulkDeleteOptions) ([]*models.Session, error) {
	return nil, nil
}
func (f *fakeJobStore) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id], nil
}
func (f *fakeJobStore) ListJobsBySession(ctx context.Context, sessionID string) ([]*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeJobStore) TransitionPreflightOK(ctx context.Context, jobID string) (*models.AnalysisJob, bool, error) {
	return nil, false, nil
}
func (f *fakeJobStore) TransitionPreflightMissing(ctx context.Context, jobID, message string) (*models.AnalysisJob, error) {
	return nil, nil
}
func (f *fakeJobStore) ClaimNext(ctx context.Context) (*models.AnalysisJob, error) { return nil, nil }
func (f *fakeJobStore) ClaimByID(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.Status != models.JobStatusQueued {
		return nil, nil
	}
	job.Status = models.JobStatusQuickRunning
	job.Attempts++
	return job, nil
}
func (f *fakeJobStore) PersistQuickArtifacts(ctx context.Context, jobID string, mode models.AnalysisMode, results map[string]any, fnd *models.Findings, report *models.Report, key string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	job.AnalysisMode = mode
	job.QuickResults, job.QuickFindings, job.QuickReport = results, fnd, report
	job.Status = models.JobStatusQuickDone
	return job, nil
}
func (f *fakeJobStore) TransitionToDeepRunning(ctx context.Context, jobID string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	job.Status = models.JobStatusDeepRunning
	return job, nil
}
func (f *fakeJobStore) PersistDeepArtifacts(ctx context.Context, jobID string, results map[string]any, fnd *models.Findings, report *models.Report, key string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	job.DeepResults, job.DeepFindings, job.DeepReport = results, fnd, report
	job.Status = models.JobStatusDone
	return job, nil
}
func (f *fakeJobStore) MarkFailed(ctx context.Context, jobID, msg string) (*models.AnalysisJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := f.jobs[jobID]
	job.Status = models.JobStatusFailed
	job.ErrorMessage = msg
	return job, nil
}
func (f *fakeJobStore) ResetStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}
func (f *fakeJobStore) Close() error { return nil }

func newTestDeps(t *testing.T, store interfaces.JobStore, mq interfaces.MessageQueue) Deps {
	t.Helper()
	blobs, err := storage.NewFileBlobStore(common.NewSilentLogger(), &storage.FileBlobConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	return Deps{
		Store: store,
		Blobs: blobs,
		Queue: mq,
		Pose: func(ctx context.Context, videoPath string, sampleFPS int) ([]interfaces.PoseFrame, error) {
			return []interfaces.PoseFrame{{TimestampMS: 0, FrameIndex: 0, Reliability: 0.9}}, nil
		},
		Metrics: func(frames []interfaces.PoseFrame) (interfaces.Metrics, error) {
			return interfaces.Metrics{"head_drift_cm": 2.0}, nil
		},
		Logger: common.NewSilentLogger(),
		Config: common.WorkerConfig{Concurrency: 1, VisibilityTimeoutSeconds: 60, JobDeadlineSeconds: 5, PollSeconds: 1, MaxReceiveCount: 3, SampleFPS: 5},
	}
}

func TestPool_RunJob_HappyPathReachesDone(t *testing.T) {
	store := newFakeJobStore()
	mq := queue.NewMemQueue(time.Minute)
	ctx := context.Background()

	require.NoError(t, mq.Enqueue(ctx, "job-1"))

	blobs, err := storage.NewFileBlobStore(common.NewSilentLogger(), &storage.FileBlobConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, blobs.Put(ctx, "videos/job-1.mp4", []byte("fake-mp4-bytes"), "video/mp4"))

	session := &models.Session{ID: "s1", Status: models.SessionStatusUploaded}
	job := &models.AnalysisJob{ID: "job-1", SessionID: "s1", Status: models.JobStatusQueued, S3Key: "videos/job-1.mp4", SampleFPS: 5}
	store.seed(session, job)

	deps := newTestDeps(t, store, mq)
	deps.Blobs = blobs
	pool := NewPool(deps)

	msgs, err := mq.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	pool.handleMessage(ctx, msgs[0])

	final, _ := store.GetJob(ctx, "job-1")
	assert.Equal(t, models.JobStatusDone, final.Status)
	assert.NotNil(t, final.QuickFindings)
	assert.NotNil(t, final.DeepFindings)
}

func TestPool_HandleMessage_AlreadyClaimedDropsMessage(t *testing.T) {
	store := newFakeJobStore()
	mq := queue.NewMemQueue(time.Minute)
	ctx := context.Background()
	require.NoError(t, mq.Enqueue(ctx, "job-2"))

	session := &models.Session{ID: "s2"}
	job := &models.AnalysisJob{ID: "job-2", SessionID: "s2", Status: models.JobStatusDone}
	store.seed(session, job)

	deps := newTestDeps(t, store, mq)
	pool := NewPool(deps)

	msgs, _ := mq.Receive(ctx, 1, 0)
	pool.handleMessage(ctx, msgs[0])

	err := mq.Delete(ctx, msgs[0].ReceiptHandle)
	assert.Error(t, err, "message should already have been deleted by handleMessage")
}

func TestPool_HandleMessage_ExceedsMaxReceiveMarksFailed(t *testing.T) {
	store := newFakeJobStore()
	mq := queue.NewMemQueue(time.Minute)
	ctx := context.Background()

	session := &models.Session{ID: "s3"}
	job := &models.AnalysisJob{ID: "job-3", SessionID: "s3", Status: models.JobStatusQueued}
	store.seed(session, job)

	deps := newTestDeps(t, store, mq)
	pool := NewPool(deps)

	msg := interfaces.Message{ID: "h1", ReceiptHandle: "h1", JobID: "job-3", ReceiveCount: 99}
	pool.handleMessage(ctx, msg)

	final, _ := store.GetJob(ctx, "job-3")
	assert.Equal(t, models.JobStatusFailed, final.Status)
}
