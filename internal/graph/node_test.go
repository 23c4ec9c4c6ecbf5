package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/socket"
)

func TestNodeStatus(t *testing.T) {
	t.Parallel()

	t.Run("stacktrace is replaced on every update", func(t *testing.T) {
		t.Parallel()
		n := NewNode("x", "X", nil)

		n.UpdateStatus(schemas.StatusError, "first", []string{"trace a"})
		n.UpdateStatus(schemas.StatusError, "second", []string{"trace b"})
		assert.Equal(t, "second", n.StatusMessage())
		assert.Equal(t, []string{"trace b"}, n.ErrorStacktrace())
	})

	t.Run("leaving error clears the diagnostics", func(t *testing.T) {
		t.Parallel()
		n := NewNode("x", "X", nil)

		n.UpdateStatus(schemas.StatusError, "boom", []string{"trace"})
		n.UpdateStatus(schemas.StatusValid, "ignored", nil)
		assert.Empty(t, n.StatusMessage())
		assert.Empty(t, n.ErrorStacktrace())
	})

	t.Run("only incomplete blocks execution", func(t *testing.T) {
		t.Parallel()
		n := NewNode("x", "X", nil)
		assert.False(t, n.CanExecute())

		for _, s := range []schemas.NodeStatus{schemas.StatusValid, schemas.StatusComplete, schemas.StatusError} {
			n.UpdateStatus(s, "", nil)
			assert.True(t, n.CanExecute(), string(s))
		}
	})
}

func TestNodePorts(t *testing.T) {
	t.Parallel()

	t.Run("duplicate keys are rejected per side", func(t *testing.T) {
		t.Parallel()
		n := NewNode("x", "X", nil)

		_, err := n.AddInput("data", socket.Flat, "Data")
		require.NoError(t, err)
		_, err = n.AddInput("data", socket.Flat, "Data")
		assert.ErrorIs(t, err, ErrDuplicatePort)

		// The same key on the other side is fine.
		_, err = n.AddOutput("data", socket.Flat, "Data")
		assert.NoError(t, err)
	})

	t.Run("removing an output drops its cached data", func(t *testing.T) {
		t.Parallel()
		n := NewNode("x", "X", nil)
		_, err := n.AddOutput("out", socket.Flat, "Out")
		require.NoError(t, err)
		n.dataOutput["out"] = &schemas.NodeData{SourceType: schemas.SourceRaw}

		require.NoError(t, n.RemoveOutput("out"))
		_, has := n.DataOutput("out")
		assert.False(t, has)
	})

	t.Run("ports keep insertion order", func(t *testing.T) {
		t.Parallel()
		n := NewNode("x", "X", nil)
		for _, key := range []string{"c", "a", "b"} {
			_, err := n.AddInput(key, socket.Any, key)
			require.NoError(t, err)
		}
		var keys []string
		for _, p := range n.Inputs() {
			keys = append(keys, p.Key)
		}
		assert.Equal(t, []string{"c", "a", "b"}, keys)
	})
}

func TestTryBeginRefresh(t *testing.T) {
	t.Parallel()
	n := NewNode("x", "X", nil)

	assert.True(t, n.TryBeginRefresh())
	assert.False(t, n.TryBeginRefresh(), "slot is single-flight")
	n.EndRefresh()
	assert.True(t, n.TryBeginRefresh())
}
