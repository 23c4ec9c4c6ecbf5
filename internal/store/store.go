// Package store persists projects in PostgreSQL with optimistic concurrency
// on the project revision.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
)

// ErrRevisionConflict reports a save whose expected revision no longer matches
// the stored one: somebody else saved in between.
var ErrRevisionConflict = errors.New("project revision conflict")

// ErrProjectNotFound reports a load or delete of an unknown project.
var ErrProjectNotFound = errors.New("project not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides the PostgreSQL implementation of schemas.ProjectStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.ProjectStore = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the projects table when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS projects (
            id         TEXT PRIMARY KEY,
            name       TEXT NOT NULL,
            revision   TEXT NOT NULL,
            payload    JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create projects table: %w", err)
	}
	return nil
}

// Save upserts the project payload as JSONB. The project's current revision
// must match the stored one; on success a fresh revision is assigned and
// returned. A project with no ID gets one.
func (s *Store) Save(ctx context.Context, project *schemas.Project) (string, error) {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	newRevision := uuid.NewString()

	payload, err := json.Marshal(project)
	if err != nil {
		return "", fmt.Errorf("failed to encode project %s: %w", project.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && rollbackErr != pgx.ErrTxClosed {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	var stored string
	err = tx.QueryRow(ctx, `SELECT revision FROM projects WHERE id = $1 FOR UPDATE;`, project.ID).Scan(&stored)
	switch {
	case err == nil:
		if stored != project.Revision {
			return "", fmt.Errorf("%w: project %s: expected %q, stored %q",
				ErrRevisionConflict, project.ID, project.Revision, stored)
		}
		_, err = tx.Exec(ctx, `
            UPDATE projects SET name = $2, revision = $3, payload = $4, updated_at = $5
            WHERE id = $1;
        `, project.ID, project.Name, newRevision, payload, time.Now())
		if err != nil {
			return "", fmt.Errorf("failed to update project %s: %w", project.ID, err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		now := time.Now()
		_, err = tx.Exec(ctx, `
            INSERT INTO projects (id, name, revision, payload, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6);
        `, project.ID, project.Name, newRevision, payload, now, now)
		if err != nil {
			return "", fmt.Errorf("failed to insert project %s: %w", project.ID, err)
		}
	default:
		return "", fmt.Errorf("failed to read stored revision for project %s: %w", project.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	project.Revision = newRevision
	s.log.Debug("Project saved",
		zap.String("project_id", project.ID),
		zap.String("revision", newRevision))
	return newRevision, nil
}

// Load fetches a project by ID.
func (s *Store) Load(ctx context.Context, id string) (*schemas.Project, error) {
	var payload []byte
	var revision string
	err := s.pool.QueryRow(ctx, `SELECT revision, payload FROM projects WHERE id = $1;`, id).
		Scan(&revision, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project %s: %w", id, err)
	}

	var project schemas.Project
	if err := json.Unmarshal(payload, &project); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}
	// The column is authoritative: the payload snapshot may predate the
	// revision assigned at save time.
	project.Revision = revision
	return &project, nil
}

// List returns the stored projects, most recently updated first.
func (s *Store) List(ctx context.Context) ([]schemas.ProjectSummary, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, name, revision FROM projects ORDER BY updated_at DESC;
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []schemas.ProjectSummary
	for rows.Next() {
		var s schemas.ProjectSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Revision); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

// Delete removes a project.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return nil
}
