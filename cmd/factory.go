// File: cmd/factory.go
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/config"
	"github.com/profenpoche/daav-sub000/internal/executor"
	"github.com/profenpoche/daav-sub000/internal/graph"
	"github.com/profenpoche/daav-sub000/internal/nodes"
	"github.com/profenpoche/daav-sub000/internal/observability"
	"github.com/profenpoche/daav-sub000/internal/store"
)

// Components holds the initialized services behind one editor session. The
// struct centralizes lifecycle management so commands build and tear down
// their dependencies the same way.
type Components struct {
	Editor   *graph.Editor
	Registry *nodes.Registry
	Runner   *executor.Runner
	Store    schemas.ProjectStore

	dbPool *pgxpool.Pool
	log    *zap.Logger
}

// NewComponents wires the full stack from configuration: node registry,
// editor, backend executor, and (when a database is configured) the project
// store.
func NewComponents(ctx context.Context, cfg *config.Config) (*Components, error) {
	logger := observability.GetLogger()

	registry, err := nodes.DefaultRegistry(nodes.Deps{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("building node registry: %w", err)
	}

	editor := graph.NewEditor(registry, nil, logger)
	backend := executor.NewBackend(cfg.Backend, nil, logger)
	runner := executor.NewRunner(editor, backend, logger)

	c := &Components{
		Editor:   editor,
		Registry: registry,
		Runner:   runner,
		log:      logger,
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		c.dbPool = pool

		st, err := store.New(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		c.Store = st
	}

	return c, nil
}

// RequireStore fails commands that need persistence when none is configured.
func (c *Components) RequireStore() (schemas.ProjectStore, error) {
	if c.Store == nil {
		return nil, fmt.Errorf("no project store configured, set postgres.url (or DAAV_POSTGRES_URL)")
	}
	return c.Store, nil
}

// Shutdown releases held resources.
func (c *Components) Shutdown() {
	if c.dbPool != nil {
		c.dbPool.Close()
		c.log.Debug("Database pool closed.")
	}
	observability.Sync()
}
