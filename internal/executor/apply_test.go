package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/graph"
	"github.com/profenpoche/daav-sub000/internal/mocks"
	"github.com/profenpoche/daav-sub000/internal/nodes"
)

func newRunnerFixture(t *testing.T) (*graph.Editor, *mocks.MockExecutor, *Runner) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg, err := nodes.DefaultRegistry(nodes.Deps{Logger: logger})
	require.NoError(t, err)
	e := graph.NewEditor(reg, nil, logger)
	exec := new(mocks.MockExecutor)
	return e, exec, NewRunner(e, exec, logger)
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	t.Run("applies backend annotations onto the live node", func(t *testing.T) {
		t.Parallel()
		e, exec, runner := newRunnerFixture(t)
		src, err := e.SpawnNode(nodes.TypeTableSource)
		require.NoError(t, err)
		src.UpdateStatus(schemas.StatusValid, "", nil)

		data := &schemas.NodeData{
			SourceType: schemas.SourceDatabase,
			Database: &schemas.DatabaseSchema{
				Table:   "orders",
				Columns: []schemas.ColumnSchema{{Name: "total", Type: "float"}},
			},
		}
		annotated := schemas.Project{Nodes: []schemas.ProjectNode{{
			ID: src.ID(),
			Data: schemas.NodePayload{
				Status:     schemas.StatusComplete,
				DataOutput: map[string]*schemas.NodeData{nodes.KeyOut: data},
			},
		}}}
		exec.On("ExecuteNode", mock.Anything, mock.Anything, src.ID()).Return(annotated, nil).Once()

		require.NoError(t, runner.Run(context.Background(), src.ID()))
		assert.Equal(t, schemas.StatusComplete, src.Status())
		got, ok := src.DataOutput(nodes.KeyOut)
		require.True(t, ok)
		assert.Equal(t, []string{"total"}, got.Fields())
		exec.AssertExpectations(t)
	})

	t.Run("incomplete node never reaches the backend", func(t *testing.T) {
		t.Parallel()
		e, exec, runner := newRunnerFixture(t)
		src, err := e.SpawnNode(nodes.TypeTableSource)
		require.NoError(t, err)

		require.NoError(t, runner.Run(context.Background(), src.ID()))
		exec.AssertNotCalled(t, "ExecuteNode", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("backend failure lands on the node as an error status", func(t *testing.T) {
		t.Parallel()
		e, exec, runner := newRunnerFixture(t)
		src, err := e.SpawnNode(nodes.TypeTableSource)
		require.NoError(t, err)
		src.UpdateStatus(schemas.StatusValid, "", nil)

		exec.On("ExecuteNode", mock.Anything, mock.Anything, src.ID()).
			Return(schemas.Project{}, errors.New("backend down")).Once()

		require.Error(t, runner.Run(context.Background(), src.ID()))
		assert.Equal(t, schemas.StatusError, src.Status())
		assert.Contains(t, src.ErrorStacktrace(), "backend down")
	})

	t.Run("unknown node fails fast", func(t *testing.T) {
		t.Parallel()
		_, _, runner := newRunnerFixture(t)
		assert.ErrorIs(t, runner.Run(context.Background(), "missing"), graph.ErrNodeNotFound)
	})
}

func TestRunnerApply(t *testing.T) {
	t.Parallel()

	t.Run("drops annotations for removed nodes", func(t *testing.T) {
		t.Parallel()
		e, _, runner := newRunnerFixture(t)
		src, err := e.SpawnNode(nodes.TypeTableSource)
		require.NoError(t, err)
		gone := src.ID()
		require.NoError(t, e.RemoveNode(gone))

		runner.Apply(schemas.Project{Nodes: []schemas.ProjectNode{{
			ID:   gone,
			Data: schemas.NodePayload{Status: schemas.StatusComplete},
		}}})

		_, present := e.Node(gone)
		assert.False(t, present)
	})

	t.Run("data outputs propagate to connected consumers", func(t *testing.T) {
		t.Parallel()
		e, _, runner := newRunnerFixture(t)
		src, err := e.SpawnNode(nodes.TypeTableSource)
		require.NoError(t, err)
		filter, err := e.SpawnNode(nodes.TypeFilter)
		require.NoError(t, err)
		_, err = e.AddConnection(src.ID(), nodes.KeyOut, filter.ID(), nodes.KeyIn)
		require.NoError(t, err)

		runner.Apply(schemas.Project{Nodes: []schemas.ProjectNode{{
			ID: src.ID(),
			Data: schemas.NodePayload{
				Status: schemas.StatusComplete,
				DataOutput: map[string]*schemas.NodeData{nodes.KeyOut: {
					SourceType: schemas.SourceDataframe,
					Dataframe: &schemas.DataframeSchema{
						Columns: []schemas.ColumnSchema{{Name: "name", Type: "string"}},
					},
				}},
			},
		}}})

		c, ok := filter.Control("fields")
		require.True(t, ok)
		assert.Equal(t, []string{"name"}, c.Value)
	})
}
