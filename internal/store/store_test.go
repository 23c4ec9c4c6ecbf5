package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return mockPool, s
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	selectRevision := regexp.QuoteMeta(`SELECT revision FROM projects WHERE id = $1 FOR UPDATE;`)

	t.Run("inserts a new project and assigns a revision", func(t *testing.T) {
		mockPool, s := newMockStore(t)

		project := &schemas.Project{Name: "demo"}

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(selectRevision).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectExec(regexp.QuoteMeta(`INSERT INTO projects`)).
			WithArgs(pgxmock.AnyArg(), "demo", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback()

		revision, err := s.Save(ctx, project)
		require.NoError(t, err)
		assert.NotEmpty(t, revision)
		assert.NotEmpty(t, project.ID, "a project without an ID gets one")
		assert.Equal(t, revision, project.Revision)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("updates an existing project when revisions match", func(t *testing.T) {
		mockPool, s := newMockStore(t)

		project := &schemas.Project{ID: "p1", Name: "demo", Revision: "rev-1"}

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(selectRevision).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"revision"}).AddRow("rev-1"))
		mockPool.ExpectExec(regexp.QuoteMeta(`UPDATE projects`)).
			WithArgs("p1", "demo", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback()

		revision, err := s.Save(ctx, project)
		require.NoError(t, err)
		assert.NotEqual(t, "rev-1", revision)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("stale revision is rejected", func(t *testing.T) {
		mockPool, s := newMockStore(t)

		project := &schemas.Project{ID: "p1", Name: "demo", Revision: "rev-1"}

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(selectRevision).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"revision"}).AddRow("rev-2"))
		mockPool.ExpectRollback()

		_, err := s.Save(ctx, project)
		assert.ErrorIs(t, err, ErrRevisionConflict)
		assert.Equal(t, "rev-1", project.Revision, "failed save must not touch the project")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	selectProject := regexp.QuoteMeta(`SELECT revision, payload FROM projects WHERE id = $1;`)

	t.Run("decodes the stored payload", func(t *testing.T) {
		mockPool, s := newMockStore(t)

		payload := []byte(`{"id":"p1","name":"demo","nodes":[{"id":"n1","type":"table-source"}]}`)
		mockPool.ExpectQuery(selectProject).
			WithArgs("p1").
			WillReturnRows(pgxmock.NewRows([]string{"revision", "payload"}).AddRow("rev-9", payload))

		project, err := s.Load(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "demo", project.Name)
		assert.Equal(t, "rev-9", project.Revision, "revision column wins over the payload snapshot")
		require.Len(t, project.Nodes, 1)
		assert.Equal(t, "table-source", project.Nodes[0].Type)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing project", func(t *testing.T) {
		mockPool, s := newMockStore(t)

		mockPool.ExpectQuery(selectProject).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.Load(ctx, "nope")
		assert.ErrorIs(t, err, ErrProjectNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestList(t *testing.T) {
	mockPool, s := newMockStore(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, revision FROM projects`)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "revision"}).
			AddRow("p2", "newer", "rev-3").
			AddRow("p1", "older", "rev-1"))

	out, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "p2", out[0].ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	deleteProject := regexp.QuoteMeta(`DELETE FROM projects WHERE id = $1;`)

	t.Run("removes the row", func(t *testing.T) {
		mockPool, s := newMockStore(t)
		mockPool.ExpectExec(deleteProject).
			WithArgs("p1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, s.Delete(ctx, "p1"))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing project", func(t *testing.T) {
		mockPool, s := newMockStore(t)
		mockPool.ExpectExec(deleteProject).
			WithArgs("nope").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, s.Delete(ctx, "nope"), ErrProjectNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
