package nodes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/graph"
)

// RefreshSource fetches the selectable sub-structure (databases, tables...)
// for a source node and stores it under the node's extra payload once the
// fetch lands. Only one refresh per node runs at a time; a second call while
// one is in flight is a no-op. The continuation re-enters the editor through
// WithNode, so a node removed mid-fetch simply drops the result.
func RefreshSource(ctx context.Context, e *graph.Editor, fetcher schemas.SchemaFetcher, nodeID string, log *zap.Logger) error {
	if fetcher == nil {
		return fmt.Errorf("refresh source %s: no schema fetcher configured", nodeID)
	}

	var ref schemas.DatasetRef
	started := false
	found := e.WithNode(nodeID, func(n *graph.Node) {
		if !n.TryBeginRefresh() {
			return
		}
		started = true
		if c, ok := n.Control("source"); ok {
			ref.Source, _ = c.Value.(string)
		}
		if c, ok := n.Control("database"); ok {
			ref.Database, _ = c.Value.(string)
		}
		if c, ok := n.Control("table"); ok {
			ref.Table, _ = c.Value.(string)
		}
		if c, ok := n.Control("file"); ok {
			ref.Path, _ = c.Value.(string)
		}
	})
	if !found {
		return fmt.Errorf("refresh source %s: %w", nodeID, graph.ErrNodeNotFound)
	}
	if !started {
		log.Debug("refresh already in flight, skipping", zap.String("node_id", nodeID))
		return nil
	}

	go func() {
		resp, err := fetcher.FetchSchema(ctx, ref, nil)

		applied := e.WithNode(nodeID, func(n *graph.Node) {
			defer n.EndRefresh()
			if err != nil {
				n.UpdateStatus(schemas.StatusError, "schema fetch failed", []string{err.Error()})
				return
			}
			n.SetExtra("structure", resp.Items)
			if n.Status() == schemas.StatusError {
				n.UpdateStatus(schemas.StatusIncomplete, "", nil)
			}
		})
		if !applied {
			log.Debug("node removed before schema fetch completed, dropping result",
				zap.String("node_id", nodeID))
		}
	}()
	return nil
}
