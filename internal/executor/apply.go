// File: internal/executor/apply.go
package executor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/graph"
)

// Runner ties an executor to a live editor: it exports the graph, submits it,
// and folds the annotated response back in.
type Runner struct {
	editor *graph.Editor
	exec   schemas.Executor
	log    *zap.Logger
}

// NewRunner creates a runner. The executor is consumed through its interface
// so tests can substitute a mock.
func NewRunner(editor *graph.Editor, exec schemas.Executor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{editor: editor, exec: exec, log: logger.Named("runner")}
}

// Run executes one node (or the whole project when nodeID is empty) and
// applies the backend's annotations. The graph may have changed while the
// request was in flight: annotations for nodes that no longer exist are
// dropped, everything else lands normally.
func (r *Runner) Run(ctx context.Context, nodeID string) error {
	if nodeID != "" {
		n, ok := r.editor.Node(nodeID)
		if !ok {
			return graph.ErrNodeNotFound
		}
		if !n.CanExecute() {
			r.log.Debug("Node not executable, skipping run", zap.String("node_id", nodeID))
			return nil
		}
	}

	annotated, err := r.exec.ExecuteNode(ctx, r.editor.Export(), nodeID)
	if err != nil {
		// Surface the failure on the node that asked for it.
		if nodeID != "" {
			r.editor.WithNode(nodeID, func(n *graph.Node) {
				n.UpdateStatus(schemas.StatusError, "execution failed", []string{err.Error()})
			})
		}
		return err
	}

	r.Apply(annotated)
	return nil
}

// Apply folds an annotated project onto the live graph: per-node status,
// diagnostics and data outputs. Data outputs go through the editor so
// downstream rebuild hooks and nodedataupdated events fire as usual.
func (r *Runner) Apply(annotated schemas.Project) {
	for _, pn := range annotated.Nodes {
		pn := pn
		applied := r.editor.WithNode(pn.ID, func(n *graph.Node) {
			if pn.Data.Status != "" {
				n.UpdateStatus(pn.Data.Status, pn.Data.StatusMessage, pn.Data.ErrorStacktrace)
			}
		})
		if !applied {
			r.log.Debug("Dropping annotation for removed node", zap.String("node_id", pn.ID))
			continue
		}

		for key, data := range pn.Data.DataOutput {
			if err := r.editor.SetDataOutput(pn.ID, key, data); err != nil {
				if errors.Is(err, graph.ErrPortNotFound) || errors.Is(err, graph.ErrNodeNotFound) {
					r.log.Debug("Dropping data output for missing port",
						zap.String("node_id", pn.ID), zap.String("output", key))
					continue
				}
				r.log.Warn("Failed to apply data output",
					zap.String("node_id", pn.ID), zap.String("output", key), zap.Error(err))
			}
		}
	}
}
