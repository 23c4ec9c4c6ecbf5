package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profenpoche/daav-sub000/internal/socket"
)

// addVariadicNode inserts a node with a growable "datasource" family and a
// derived "out" output.
func addVariadicNode(t *testing.T, e *Editor) *Node {
	t.Helper()
	n := NewNode("merge", "Merge", e.Notifier())
	_, err := n.AddInput("datasource", socket.Any, "Data source 1")
	require.NoError(t, err)
	AttachVariadicInputs(e, n, VariadicConfig{
		CanonicalInput: "datasource",
		InputLabel:     "Data source",
		DerivedOutput:  "out",
		OutputLabel:    "Merged",
	})
	require.NoError(t, e.AddNode(n))
	return n
}

func inputKeys(n *Node) []string {
	var keys []string
	for _, p := range n.Inputs() {
		keys = append(keys, p.Key)
	}
	return keys
}

func TestVariadicGrowth(t *testing.T) {
	t.Parallel()
	e := newEditor(t)
	merge := addVariadicNode(t, e)

	a := addProducer(t, e, socket.Flat)
	b := addProducer(t, e, socket.Flat)

	t.Run("first connection allocates a slot and the derived output", func(t *testing.T) {
		_, err := e.AddConnection(a.ID(), "out", merge.ID(), "datasource")
		require.NoError(t, err)

		assert.Equal(t, []string{"datasource", "datasource_1"}, inputKeys(merge))
		out, ok := merge.Output("out")
		require.True(t, ok)
		assert.Equal(t, socket.Flat, out.Socket, "derived output mirrors the family socket")

		// The whole family takes the first producer's socket.
		canonical, _ := merge.Input("datasource")
		assert.Equal(t, socket.Flat, canonical.Socket)
	})

	t.Run("each filled slot opens the next", func(t *testing.T) {
		_, err := e.AddConnection(b.ID(), "out", merge.ID(), "datasource_1")
		require.NoError(t, err)
		assert.Equal(t, []string{"datasource", "datasource_1", "datasource_2"}, inputKeys(merge))
	})

	t.Run("retagged family rejects other shapes", func(t *testing.T) {
		nested := addProducer(t, e, socket.Nested)
		_, err := e.AddConnection(nested.ID(), "out", merge.ID(), "datasource_2")
		assert.ErrorIs(t, err, ErrIncompatibleSockets)
	})
}

func TestVariadicCompaction(t *testing.T) {
	t.Parallel()
	e := newEditor(t)
	merge := addVariadicNode(t, e)

	a := addProducer(t, e, socket.Flat)
	b := addProducer(t, e, socket.Flat)
	c := addProducer(t, e, socket.Flat)

	_, err := e.AddConnection(a.ID(), "out", merge.ID(), "datasource")
	require.NoError(t, err)
	c1, err := e.AddConnection(b.ID(), "out", merge.ID(), "datasource_1")
	require.NoError(t, err)
	c2, err := e.AddConnection(c.ID(), "out", merge.ID(), "datasource_2")
	require.NoError(t, err)
	require.Equal(t, []string{"datasource", "datasource_1", "datasource_2", "datasource_3"}, inputKeys(merge))

	t.Run("disconnecting below a connected slot defers compaction", func(t *testing.T) {
		require.NoError(t, e.RemoveConnection(c1.ID))
		// datasource_1 is free but stays: datasource_2 above it is connected.
		assert.Equal(t, []string{"datasource", "datasource_1", "datasource_2", "datasource_3"}, inputKeys(merge))
	})

	t.Run("disconnecting the trailing slot trims surplus free slots", func(t *testing.T) {
		require.NoError(t, e.RemoveConnection(c2.ID))
		// Exactly one free numbered slot survives, at the lowest index.
		assert.Equal(t, []string{"datasource", "datasource_1"}, inputKeys(merge))
	})
}

func TestVariadicCascadeTeardown(t *testing.T) {
	t.Parallel()
	e := newEditor(t)
	merge := addVariadicNode(t, e)

	a := addProducer(t, e, socket.Flat)
	b := addProducer(t, e, socket.Flat)
	sink := addConsumer(t, e, socket.Any)

	canonical, err := e.AddConnection(a.ID(), "out", merge.ID(), "datasource")
	require.NoError(t, err)
	_, err = e.AddConnection(b.ID(), "out", merge.ID(), "datasource_1")
	require.NoError(t, err)
	_, err = e.AddConnection(merge.ID(), "out", sink.ID(), "in")
	require.NoError(t, err)

	require.NoError(t, e.RemoveConnection(canonical.ID))

	// Everything derived goes: numbered slots, their connections, the derived
	// output and its connections. The canonical input resets to Any.
	assert.Equal(t, []string{"datasource"}, inputKeys(merge))
	_, hasOut := merge.Output("out")
	assert.False(t, hasOut)
	assert.Empty(t, e.ConnectionsOf(merge.ID()))

	p, _ := merge.Input("datasource")
	assert.Equal(t, socket.Any, p.Socket)
}

func TestVariadicNodeRemoval(t *testing.T) {
	t.Parallel()
	e := newEditor(t)
	merge := addVariadicNode(t, e)

	a := addProducer(t, e, socket.Flat)
	b := addProducer(t, e, socket.Flat)
	_, err := e.AddConnection(a.ID(), "out", merge.ID(), "datasource")
	require.NoError(t, err)
	_, err = e.AddConnection(b.ID(), "out", merge.ID(), "datasource_1")
	require.NoError(t, err)

	require.NoError(t, e.RemoveNode(merge.ID()))
	assert.Empty(t, e.Connections())
	_, present := e.Node(merge.ID())
	assert.False(t, present)
}

func TestVariadicBulkSuppression(t *testing.T) {
	t.Parallel()
	e := newEditor(t)
	merge := addVariadicNode(t, e)
	a := addProducer(t, e, socket.Flat)

	e.BeginBulkLoad()
	_, err := e.AddConnection(a.ID(), "out", merge.ID(), "datasource")
	require.NoError(t, err)
	e.EndBulkLoad()

	// During bulk load the persisted records own the port set; the manager
	// must not invent slots of its own.
	assert.Equal(t, []string{"datasource"}, inputKeys(merge))
}
