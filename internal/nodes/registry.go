// Package nodes provides the registry of node types and the built-in
// source/transform/sink implementations that plug into the graph editor.
package nodes

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/graph"
)

// Factory builds one node of a type: canonical ports, controls and reactive
// hooks. The node is returned uninserted; the editor decides when it joins
// the graph.
type Factory func(e *graph.Editor) (*graph.Node, error)

// Registry maps persisted type names to constructors. It is built once during
// initialization and handed to the editor by constructor injection, so
// registration order is deterministic and there is no global mutable state.
type Registry struct {
	order     []string
	factories map[string]Factory
	log       *zap.Logger
}

// The editor consumes the registry through the graph.Builder interface.
var _ graph.Builder = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		log:       logger.Named("node_registry"),
	}
}

// Register adds a node type. Registering the same name twice is a programming
// error and fails loudly.
func (r *Registry) Register(name string, f Factory) error {
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("node type %q already registered", name)
	}
	r.factories[name] = f
	r.order = append(r.order, name)
	r.log.Debug("Node type registered", zap.String("type", name))
	return nil
}

// Types returns the registered type names in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Build constructs a node of the named type. An unknown name is a hard
// failure: during import it aborts the whole operation rather than silently
// skipping the node.
func (r *Registry) Build(e *graph.Editor, typeName string) (*graph.Node, error) {
	f, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graph.ErrUnknownNodeType, typeName)
	}
	return f(e)
}

// Deps carries the collaborators the built-in node types need.
type Deps struct {
	Fetcher schemas.SchemaFetcher
	Logger  *zap.Logger
}

// DefaultRegistry registers the built-in node types in their canonical order.
func DefaultRegistry(deps Deps) (*Registry, error) {
	r := NewRegistry(deps.Logger)
	for _, reg := range []struct {
		name    string
		factory Factory
	}{
		{TypeTableSource, tableSourceFactory()},
		{TypeFileSource, fileSourceFactory()},
		{TypeMerge, mergeFactory()},
		{TypeFilter, filterFactory()},
		{TypeOutput, outputFactory()},
	} {
		if err := r.Register(reg.name, reg.factory); err != nil {
			return nil, err
		}
	}
	return r, nil
}
