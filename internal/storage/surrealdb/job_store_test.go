//go:build integration

package surrealdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cricksy/video-analysis/internal/common"
	"github.com/cricksy/video-analysis/internal/models"
	surreal "github.com/surrealdb/surrealdb.go"
	"github.com/stretchr/testify/require"
)

// testDB connects to a SurrealDB instance named by SURREALDB_TEST_ADDR,
// skipping the test entirely when it isn't set (no testcontainers dependency).
func testDB(t *testing.T) *surreal.DB {
	t.Helper()
	addr := os.Getenv("SURREALDB_TEST_ADDR")
	if addr == "" {
		t.Skip("SURREALDB_TEST_ADDR not set, skipping SurrealDB integration test")
	}

	ctx := context.Background()
	db, err := surreal.New(addr)
	require.NoError(t, err)

	_, err = db.SignIn(ctx, map[string]interface{}{"user": "root", "pass": "root"})
	require.NoError(t, err)

	dbName := "t_" + t.Name() + "_" + time.Now().Format("150405.000000")
	require.NoError(t, db.Use(ctx, "video_analysis_test", dbName))

	for _, table := range []string{"session", "analysis_job"} {
		_, err := surreal.Query[any](ctx, db, "DEFINE TABLE IF NOT EXISTS "+table+" SCHEMALESS", nil)
		require.NoError(t, err)
	}

	t.Cleanup(func() { db.Close(context.Background()) })
	return db
}

func testLogger() *common.Logger {
	return common.NewSilentLogger()
}

func TestJobStore_CreateAndClaimLifecycle(t *testing.T) {
	db := testDB(t)
	store := NewJobStore(db, testLogger())
	ctx := context.Background()

	session := &models.Session{OwnerID: "coach-1", Title: "Nets session", AnalysisContext: "bowling"}
	job := &models.AnalysisJob{SampleFPS: 5, S3Key: "videos/x.mp4"}
	require.NoError(t, store.CreateSessionAndJob(ctx, session, job))
	require.NotEmpty(t, session.ID)
	require.NotEmpty(t, job.ID)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusAwaitingUpload, got.Status)

	afterTransition, transitioned, err := store.TransitionPreflightOK(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, transitioned)
	require.Equal(t, models.JobStatusQueued, afterTransition.Status)

	sess, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, models.SessionStatusUploaded, sess.Status)

	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, models.JobStatusQuickRunning, claimed.Status)
	require.Equal(t, 1, claimed.Attempts)

	again, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.Nil(t, again)

	findings := &models.Findings{OverallLevel: models.SeverityLow}
	report := &models.Report{Text: "quick pass looks fine"}
	quickDone, err := store.PersistQuickArtifacts(ctx, job.ID, models.ModeBowling, map[string]any{"frames": 120}, findings, report, "")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusQuickDone, quickDone.Status)

	deepRunning, err := store.TransitionToDeepRunning(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusDeepRunning, deepRunning.Status)

	done, err := store.PersistDeepArtifacts(ctx, job.ID, map[string]any{"frames": 600}, findings, report, "")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusDone, done.Status)
	require.NotNil(t, done.CompletedAt)
}

func TestJobStore_PersistWithoutFindingsRejected(t *testing.T) {
	db := testDB(t)
	store := NewJobStore(db, testLogger())
	ctx := context.Background()

	session := &models.Session{OwnerID: "coach-2", Title: "Indoor session"}
	job := &models.AnalysisJob{SampleFPS: 5}
	require.NoError(t, store.CreateSessionAndJob(ctx, session, job))
	_, _, err := store.TransitionPreflightOK(ctx, job.ID)
	require.NoError(t, err)
	_, err = store.ClaimNext(ctx)
	require.NoError(t, err)

	_, err = store.PersistQuickArtifacts(ctx, job.ID, models.ModeBatting, map[string]any{}, nil, nil, "")
	require.Error(t, err)
}

func TestJobStore_ResetStaleRunningJobs(t *testing.T) {
	db := testDB(t)
	store := NewJobStore(db, testLogger())
	ctx := context.Background()

	session := &models.Session{OwnerID: "coach-3", Title: "Stale session"}
	job := &models.AnalysisJob{SampleFPS: 5}
	require.NoError(t, store.CreateSessionAndJob(ctx, session, job))
	_, _, err := store.TransitionPreflightOK(ctx, job.ID)
	require.NoError(t, err)
	claimed, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	n, err := store.ResetStaleRunningJobs(ctx, -time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	refetched, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusQueued, refetched.Status)
}
