// Package surrealdb implements the JobStore port against SurrealDB.
package surrealdb

import (
	"context"
	"fmt"

	"github.com/cricksy/video-analysis/internal/common"
	"github.com/surrealdb/surrealdb.go"
)

// Manager owns the SurrealDB connection and table bootstrap for the
// video-analysis schema (sessions, analysis jobs).
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewManager connects to SurrealDB, signs in, selects the namespace/database
// and ensures the schemaless tables exist.
func NewManager(logger *common.Logger, cfg *common.Config) (*Manager, error) {
	ctx := context.Background()

	db, err := surrealdb.New(cfg.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Storage.Username,
		"pass": cfg.Storage.Password,
	}); err != nil {
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, cfg.Storage.Namespace, cfg.Storage.Database); err != nil {
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	for _, table := range []string{"session", "analysis_job"} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return nil, fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	logger.Info().
		Str("address", cfg.Storage.Address).
		Str("namespace", cfg.Storage.Namespace).
		Str("database", cfg.Storage.Database).
		Msg("SurrealDB job store connected")

	return &Manager{db: db, logger: logger}, nil
}

// Store returns a JobStore backed by this connection.
func (m *Manager) Store() *JobStore {
	return NewJobStore(m.db, m.logger)
}

func (m *Manager) Close() error {
	return m.db.Close(context.Background())
}
