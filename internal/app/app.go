// Package app wires the video-analysis service's collaborators together:
// configuration, logging, the SurrealDB-backed JobStore, blob storage, the
// durable message queue, JWT verification, the WebSocket progress hub, the
// UploadCoordinator, the AnalysisWorker pool, and the ExportGate. It is the
// shared core used by cmd/video-analysis-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cricksy/video-analysis/internal/analysis"
	"github.com/cricksy/video-analysis/internal/authz"
	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/export"
	"github.com/cricksy/video-analysis/internal/interfaces"
	"github.com/cricksy/video-analysis/internal/progress"
	"github.com/cricksy/video-analysis/internal/queue"
	"github.com/cricksy/video-analysis/internal/storage"
	"github.com/cricksy/video-analysis/internal/storage/surrealdb"
	"github.com/cricksy/video-analysis/internal/upload"
	"github.com/cricksy/video-analysis/internal/worker"
)

// App holds all initialized collaborators and configuration. It is the
// shared core used by cmd/video-analysis-server.
type App struct {
	Config *common.Config
	Logger *common.Logger

	Store interfaces.JobStore
	Blobs storage.BlobStore
	Queue interfaces.MessageQueue

	Auth    *authz.Verifier
	Hub     *progress.Hub
	Upload  *upload.Coordinator
	Workers *worker.Pool
	Export  *export.Gate

	StartupTime time.Time

	dbManager *surrealdb.Manager
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, and all service collaborators.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("VIDEO_ANALYSIS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "video-analysis.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/video-analysis.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Blob.Backend == storage.BackendFile && config.Blob.FileBasePath != "" && !filepath.IsAbs(config.Blob.FileBasePath) {
		config.Blob.FileBasePath = filepath.Join(binDir, config.Blob.FileBasePath)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLogger(config.Logging.Level)

	dbManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}
	store := dbManager.Store()

	ctx := context.Background()
	blobStore, err := storage.NewBlobStore(ctx, logger, blobStoreConfigFrom(config.Blob))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	messageQueue, err := newMessageQueue(ctx, config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize message queue: %w", err)
	}

	verifier := authz.NewVerifier(config.Auth.JWTSecret)
	hub := progress.NewHub(logger)

	uploadCoordinator := upload.New(store, blobStore, messageQueue, logger, config.Blob.PresignedURLTTL(), config.Blob.Bucket)

	workerPool := worker.NewPool(worker.Deps{
		Store:   store,
		Blobs:   blobStore,
		Queue:   messageQueue,
		Pose:    analysis.SamplePoses,
		Metrics: analysis.ComputeMetrics,
		Hub:     hub,
		Logger:  logger,
		Config:  config.Worker,
	})

	exportGate := export.NewGate(store)

	a := &App{
		Config:      config,
		Logger:      logger,
		Store:       store,
		Blobs:       blobStore,
		Queue:       messageQueue,
		Auth:        verifier,
		Hub:         hub,
		Upload:      uploadCoordinator,
		Workers:     workerPool,
		Export:      exportGate,
		StartupTime: startupStart,
		dbManager:   dbManager,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// blobStoreConfigFrom adapts the flat common.BlobConfig (spec §6 env-var
// shape) into storage.BlobStoreConfig's nested per-backend shape.
func blobStoreConfigFrom(c common.BlobConfig) *storage.BlobStoreConfig {
	return &storage.BlobStoreConfig{
		Backend: c.Backend,
		File: storage.FileBlobConfig{
			BasePath:       c.FileBasePath,
			PresignBaseURL: c.FilePresignBaseURL,
		},
		S3: storage.S3BlobConfig{
			Bucket:    c.Bucket,
			Region:    c.Region,
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
		},
	}
}

// newMessageQueue dispatches on QueueConfig.Backend: "sqs" for production
// durable dispatch, "mem" (default) for local dev/test (spec §4.1, §6).
func newMessageQueue(ctx context.Context, config *common.Config, logger *common.Logger) (interfaces.MessageQueue, error) {
	switch config.Queue.Backend {
	case "sqs":
		return queue.NewSQSQueue(ctx, logger, config.Queue.URL, config.Queue.Region)
	default:
		return queue.NewMemQueue(config.Worker.VisibilityTimeout()), nil
	}
}

// Start launches the worker pool's orphan-recovery sweep and claim loops, and
// the WebSocket progress hub's event loop.
func (a *App) Start() {
	go a.Hub.Run()
	a.Workers.Start()
}

// Close stops the worker pool and hub and releases storage/blob resources.
// Shutdown order mirrors spec §4.3's drain-before-exit requirement: stop
// accepting new claims first, then close downstream connections.
func (a *App) Close() {
	if a.Workers != nil {
		a.Workers.Stop()
	}
	if a.Hub != nil {
		a.Hub.Stop()
	}
	if a.Blobs != nil {
		a.Blobs.Close()
	}
	if a.Store != nil {
		a.Store.Close()
	}
	if a.dbManager != nil {
		a.dbManager.Close()
	}
}
