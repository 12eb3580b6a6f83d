// Package worker implements the AnalysisWorker pool from spec §4.3: a
// long-running pool of N goroutines that claim queued AnalysisJobs, run the
// quick-then-deep analysis pipeline, and persist findings/report artifacts
// under the §4.4 guardrail. Grounded on the teacher's JobManager
// processor-pool pattern (safeGo, context-cancelled loops, panic recovery).
package worker

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cricksy/video-analysis/internal/apperrors"
	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/findings"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/models"
	"github.com/cricksy/video-analysis/internal/progress"
	"github.com/cricksy/video-analysis/internal/storage"
)

// Deps wires the pool's collaborators. Pose/Metrics are pure-function
// boundaries per spec §1 non-goals — the real CV pipeline lives outside
// this module; tests supply fakes.
type Deps struct {
	Store   interfaces.JobStore
	Blobs   storage.BlobStore
	Queue   interfaces.MessageQueue
	Pose    interfaces.PoseAnalyzer
	Metrics interfaces.MetricsComputer
	Hub     *progress.Hub
	Logger  *common.Logger
	Config  common.WorkerConfig
}

// Pool runs the worker loops.
type Pool struct {
	deps       Deps
	dispatcher *findings.Dispatcher
	breaker    *circuitBreaker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool constructs a Pool ready to Start.
func NewPool(deps Deps) *Pool {
	return &Pool{
		deps:       deps,
		dispatcher: findings.NewDispatcher(),
		breaker:    newCircuitBreaker(5, 30*time.Second),
	}
}

// safeGo launches a goroutine with panic recovery and logging, mirroring
// the teacher's JobManager.safeGo.
func (p *Pool) safeGo(name string, fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.deps.Logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in worker goroutine")
			}
		}()
		fn()
	}()
}

// Start launches the orphan-recovery sweep and N worker loops.
func (p *Pool) Start() {
	if p.cancel != nil {
		p.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	if count, err := p.deps.Store.ResetStaleRunningJobs(ctx, p.deps.Config.VisibilityTimeout()); err != nil {
		p.deps.Logger.Warn().Err(err).Msg("Failed to reset orphaned running jobs")
	} else if count > 0 {
		p.deps.Logger.Info().Int("count", count).Msg("Reset orphaned running jobs to queued")
	}

	concurrency := p.deps.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	for i := 0; i < concurrency; i++ {
		name := fmt.Sprintf("worker-%d", i)
		p.safeGo(name, func() { p.loop(ctx) })
	}

	p.deps.Logger.Info().Int("concurrency", concurrency).Msg("Analysis worker pool started")
}

// Stop cancels all loops, draining in-flight jobs as their per-job deadline
// or current step allows, and waits for completion (spec §4.3 SIGTERM draining).
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.wg.Wait()
	p.deps.Logger.Info().Msg("Analysis worker pool stopped")
}

// loop long-polls the queue and processes messages until ctx is cancelled.
func (p *Pool) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := p.deps.Queue.Receive(ctx, 1, p.deps.Config.PollInterval())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.deps.Logger.Warn().Err(err).Msg("Worker: queue receive error")
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		for _, msg := range msgs {
			p.handleMessage(ctx, msg)
		}
	}
}

// handleMessage claims the job named by msg and runs it to a terminal state,
// or requeues/acks the queue message per the outcome (spec §4.3 step 8).
func (p *Pool) handleMessage(ctx context.Context, msg interfaces.Message) {
	logger := p.deps.Logger.WithCorrelationId(msg.JobID)

	if msg.ReceiveCount > p.deps.Config.MaxReceiveCount {
		logger.Error().Int("receive_count", msg.ReceiveCount).Msg("Worker: message exceeded max receive count, marking failed")
		if _, err := p.deps.Store.MarkFailed(ctx, msg.JobID, "exceeded max receive count without successful claim"); err != nil {
			logger.Warn().Err(err).Msg("Worker: failed to mark job failed after DLQ threshold")
		}
		p.deps.Queue.Delete(ctx, msg.ReceiptHandle)
		return
	}

	job, err := p.deps.Store.ClaimByID(ctx, msg.JobID)
	if err != nil {
		logger.Warn().Err(err).Msg("Worker: claim error")
		return
	}
	if job == nil {
		// Already claimed/processed by another worker; drop the message.
		p.deps.Queue.Delete(ctx, msg.ReceiptHandle)
		return
	}

	session, err := p.deps.Store.GetSession(ctx, job.SessionID)
	if err != nil {
		logger.Warn().Err(err).Msg("Worker: failed to load session for mode resolution")
	}
	mode := models.ResolveMode(job, session)

	deadline := p.deps.Config.JobDeadline()
	runCtx, cancelRun := context.WithTimeout(ctx, deadline)
	defer cancelRun()

	if err := p.runJob(runCtx, logger, job, mode); err != nil {
		if apperrors.Kind(err).Retryable() {
			logger.Warn().Err(err).Msg("Worker: transient failure, leaving message for redelivery")
			p.deps.Queue.ChangeVisibility(ctx, msg.ReceiptHandle, 0)
			return
		}
		logger.Error().Err(err).Msg("Worker: job failed")
		if _, markErr := p.deps.Store.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			logger.Warn().Err(markErr).Msg("Worker: failed to persist failure status")
		}
		p.broadcast("job_failed", job)
		p.deps.Queue.Delete(ctx, msg.ReceiptHandle)
		return
	}

	p.deps.Queue.Delete(ctx, msg.ReceiptHandle)
}

// runJob executes the quick-then-deep pipeline for one claimed job
// (spec §4.3 steps 4-7).
func (p *Pool) runJob(ctx context.Context, logger *common.Logger, job *models.AnalysisJob, mode models.AnalysisMode) error {
	logger.Info().Str("job_id", job.ID).Str("analysis_mode", string(mode)).Msg("Worker: claimed job")
	p.broadcast("job_claimed", job)

	videoPath, cleanup, err := p.downloadVideo(ctx, job.S3Key)
	if err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	defer cleanup()

	quickSampleFPS := job.SampleFPS
	if quickSampleFPS <= 0 {
		quickSampleFPS = p.deps.Config.SampleFPS
	}

	quickFindings, quickReport, quickResults, err := p.runPass(ctx, videoPath, quickSampleFPS, mode, models.PhaseQuick)
	if err != nil {
		return fmt.Errorf("quick pass: %w", err)
	}
	if err := guardArtifacts(quickFindings, quickReport); err != nil {
		return fmt.Errorf("%w: quick pass", err)
	}

	job, err = p.deps.Store.PersistQuickArtifacts(ctx, job.ID, mode, quickResults, quickFindings, quickReport, "")
	if err != nil {
		return fmt.Errorf("persist quick artifacts: %w", err)
	}
	logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("findings_len", len(quickFindings.Findings)).
		Msg("Worker: quick pass done")
	p.broadcast("job_quick_done", job)

	job, err = p.deps.Store.TransitionToDeepRunning(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("transition to deep running: %w", err)
	}
	p.broadcast("job_deep_running", job)

	deepSampleFPS := quickSampleFPS * 2
	deepFindings, deepReport, deepResults, err := p.runPass(ctx, videoPath, deepSampleFPS, mode, models.PhaseDeep)
	if err != nil {
		return fmt.Errorf("deep pass: %w", err)
	}
	if err := guardArtifacts(deepFindings, deepReport); err != nil {
		return fmt.Errorf("%w: deep pass", err)
	}

	job, err = p.deps.Store.PersistDeepArtifacts(ctx, job.ID, deepResults, deepFindings, deepReport, "")
	if err != nil {
		return fmt.Errorf("persist deep artifacts: %w", err)
	}
	logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("findings_len", len(deepFindings.Findings)).
		Msg("Worker: deep pass done")
	p.broadcast("job_done", job)

	return nil
}

// guardArtifacts implements the §4.4 persistence guardrail at the point the
// pass finishes, before even attempting to persist — PersistQuickArtifacts/
// PersistDeepArtifacts enforce it again at the store layer as the
// authoritative check.
func guardArtifacts(f *models.Findings, r *models.Report) error {
	if f == nil || r == nil {
		return apperrors.ErrArtifactMissing
	}
	if f.Findings == nil {
		f.Findings = []models.Finding{}
	}
	return nil
}

// runPass executes one PoseAnalyzer -> MetricsComputer -> FindingsDispatcher
// -> report assembly cycle and returns the opaque results blob alongside
// the structured artifacts.
func (p *Pool) runPass(ctx context.Context, videoPath string, sampleFPS int, mode models.AnalysisMode, phase models.Phase) (*models.Findings, *models.Report, map[string]any, error) {
	frames, err := p.deps.Pose(ctx, videoPath, sampleFPS)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("pose analysis: %w", err)
	}

	metrics, err := p.deps.Metrics(frames)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("metrics computation: %w", err)
	}

	f, err := p.dispatcher.Dispatch(mode, metrics, phase)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("findings dispatch: %w", err)
	}

	report := findings.AssembleReport(mode, phase, f)

	results := map[string]any{
		"analysis_mode_used": string(mode),
		"phase":              string(phase),
		"sample_fps":         sampleFPS,
		"frame_count":        len(frames),
		"metrics":            metrics,
	}

	return f, report, results, nil
}

// downloadVideo fetches the job's video to a scoped temp file, returning a
// cleanup func guaranteed to run on every exit path (spec §4.3 step 4).
func (p *Pool) downloadVideo(ctx context.Context, s3Key string) (string, func(), error) {
	if !p.breaker.Allow() {
		return "", func() {}, fmt.Errorf("blob store circuit open: %w", apperrors.ErrTransient)
	}

	reader, err := p.deps.Blobs.GetReader(ctx, s3Key)
	if err != nil {
		p.breaker.RecordFailure()
		return "", func() {}, fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}
	defer reader.Close()
	p.breaker.RecordSuccess()

	tmp, err := os.CreateTemp("", "analysis-video-*.mp4")
	if err != nil {
		return "", func() {}, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := tmp.ReadFrom(reader); err != nil {
		tmp.Close()
		cleanup()
		return "", func() {}, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("close temp file: %w", err)
	}

	return tmp.Name(), cleanup, nil
}

// broadcast is a nil-safe wrapper around Hub.Broadcast.
func (p *Pool) broadcast(eventType string, job *models.AnalysisJob) {
	if p.deps.Hub == nil {
		return
	}
	p.deps.Hub.Broadcast(models.JobEvent{Type: eventType, Job: job, Timestamp: time.Now()})
}
