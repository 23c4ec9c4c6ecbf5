package nodes

import (
	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/graph"
	"github.com/profenpoche/daav-sub000/internal/socket"
)

// Persisted type names. Changing one breaks every saved project that uses it.
const (
	TypeTableSource = "table-source"
	TypeFileSource  = "file-source"
	TypeMerge       = "merge"
	TypeFilter      = "filter"
	TypeOutput      = "output"
)

// Well-known port keys.
const (
	KeyOut        = "out"
	KeyIn         = "in"
	KeyDatasource = "datasource"
)

// ControlMapping is the custom control kind holding a derived field-mapping
// table. It never serializes on its own; nodes that care persist it through
// their extra payload.
const ControlMapping schemas.ControlKind = "mapping"

// tableSourceFactory builds the SQL table source: one flat-record output and
// the source/database/table selection controls. The selectable sub-structure
// is filled in asynchronously by RefreshSource.
func tableSourceFactory() Factory {
	return func(e *graph.Editor) (*graph.Node, error) {
		n := graph.NewNode(TypeTableSource, "Table source", e.Notifier())
		if _, err := n.AddOutput(KeyOut, socket.Flat, "Rows"); err != nil {
			return nil, err
		}
		n.SetControl("source", schemas.ControlInput, "")
		n.SetControl("database", schemas.ControlInput, "")
		n.SetControl("table", schemas.ControlInput, "")
		return n, nil
	}
}

// fileSourceFactory builds the file source: nested-record output, file path
// control.
func fileSourceFactory() Factory {
	return func(e *graph.Editor) (*graph.Node, error) {
		n := graph.NewNode(TypeFileSource, "File source", e.Notifier())
		if _, err := n.AddOutput(KeyOut, socket.Nested, "Content"); err != nil {
			return nil, err
		}
		n.SetControl("file", schemas.ControlInput, "")
		return n, nil
	}
}

// mergeFactory builds the variadic merge node: a canonical datasource input
// that grows numbered siblings as connections land, and a derived output that
// exists only while something is connected.
func mergeFactory() Factory {
	return func(e *graph.Editor) (*graph.Node, error) {
		n := graph.NewNode(TypeMerge, "Merge", e.Notifier())
		if _, err := n.AddInput(KeyDatasource, socket.Any, "Data source 1"); err != nil {
			return nil, err
		}
		n.SetRequiredInputs(KeyDatasource)
		graph.AttachVariadicInputs(e, n, graph.VariadicConfig{
			CanonicalInput: KeyDatasource,
			InputLabel:     "Data source",
			DerivedOutput:  KeyOut,
			OutputLabel:    "Merged",
		})
		return n, nil
	}
}

// filterFactory builds the filter transform. Its field-mapping control is
// derived state: it is rebuilt from the upstream schema every time the
// connected producer's data output changes.
func filterFactory() Factory {
	return func(e *graph.Editor) (*graph.Node, error) {
		n := graph.NewNode(TypeFilter, "Filter", e.Notifier())
		if _, err := n.AddInput(KeyIn, socket.Flat, "Rows"); err != nil {
			return nil, err
		}
		if _, err := n.AddOutput(KeyOut, socket.Flat, "Filtered"); err != nil {
			return nil, err
		}
		n.SetRequiredInputs(KeyIn)
		n.SetControl("conditions", ControlMapping, nil)
		n.SetRebuildHook(func(inputKey string, upstream *schemas.NodeData) {
			if inputKey != KeyIn {
				return
			}
			if upstream == nil {
				n.SetControl("fields", ControlMapping, nil)
				return
			}
			n.SetControl("fields", ControlMapping, upstream.Fields())
			if n.Status() == schemas.StatusIncomplete {
				n.UpdateStatus(schemas.StatusValid, "", nil)
			}
		})
		return n, nil
	}
}

// outputFactory builds the sink node.
func outputFactory() Factory {
	return func(e *graph.Editor) (*graph.Node, error) {
		n := graph.NewNode(TypeOutput, "Output", e.Notifier())
		if _, err := n.AddInput(KeyIn, socket.Any, "Rows"); err != nil {
			return nil, err
		}
		n.SetRequiredInputs(KeyIn)
		n.SetControl("name", schemas.ControlInput, "")
		n.SetRebuildHook(func(inputKey string, upstream *schemas.NodeData) {
			if upstream != nil && n.Status() == schemas.StatusIncomplete {
				n.UpdateStatus(schemas.StatusValid, "", nil)
			}
		})
		return n, nil
	}
}
