package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/socket"
)

// Port is a named attachment point on a node, bound to one socket category.
// Ports are owned by exactly one node; Key is unique within the owning node's
// input set and output set independently.
type Port struct {
	ID     string
	Key    string
	Label  string
	Socket socket.Name
}

// Control is one configurable parameter of a node. Only the generic
// schemas.ControlInput kind survives serialization by itself; other kinds are
// each node type's own responsibility to persist.
type Control struct {
	Key   string
	Kind  schemas.ControlKind
	Value any
}

// RebuildFunc is a node's derived-state rebuild hook. The editor invokes it
// once per upstream data change, with the input key the change arrived on and
// the new upstream payload (nil when the upstream output was cleared).
type RebuildFunc func(inputKey string, upstream *schemas.NodeData)

// Node is one unit of the pipeline: identity, configuration, ordered ports,
// cached output data and the execution status machine. Structural mutations
// notify the rendering collaborator through the view notifier.
type Node struct {
	id       string
	nodeType string
	label    string
	position schemas.Position

	status          schemas.NodeStatus
	statusMessage   string
	errorStacktrace []string

	inputs   []*Port
	outputs  []*Port
	controls []*Control

	dataOutput map[string]*schemas.NodeData
	extra      map[string]any

	required map[string]bool
	rebuild  RebuildFunc

	// refreshing guards the async rebuild-controls continuation: at most one
	// outstanding per node.
	refreshing atomic.Bool

	notifier schemas.ViewNotifier
}

// NewNode creates a node of the given type with a fresh ID and status
// Incomplete. A nil notifier is replaced by a no-op.
func NewNode(nodeType, label string, notifier schemas.ViewNotifier) *Node {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Node{
		id:         uuid.NewString(),
		nodeType:   nodeType,
		label:      label,
		status:     schemas.StatusIncomplete,
		dataOutput: make(map[string]*schemas.NodeData),
		extra:      make(map[string]any),
		required:   make(map[string]bool),
		notifier:   notifier,
	}
}

type nopNotifier struct{}

func (nopNotifier) NodeChanged(string) {}

func (n *Node) ID() string                 { return n.id }
func (n *Node) Type() string               { return n.nodeType }
func (n *Node) Label() string              { return n.label }
func (n *Node) Position() schemas.Position { return n.position }

// SetLabel renames the node.
func (n *Node) SetLabel(label string) {
	n.label = label
	n.notifier.NodeChanged(n.id)
}

// SetPosition moves the node. Positions are opaque to the core.
func (n *Node) SetPosition(p schemas.Position) {
	n.position = p
}

// setID is used by the serializer to restore a persisted identity.
func (n *Node) setID(id string) { n.id = id }

// -- Port registry --

// AddInput appends a new input port. The key must not already exist on the
// input side.
func (n *Node) AddInput(key string, sock socket.Name, label string) (*Port, error) {
	if _, ok := n.Input(key); ok {
		return nil, fmt.Errorf("%w: input %q on node %s", ErrDuplicatePort, key, n.id)
	}
	p := &Port{ID: uuid.NewString(), Key: key, Label: label, Socket: sock}
	n.inputs = append(n.inputs, p)
	n.notifier.NodeChanged(n.id)
	return p, nil
}

// AddOutput appends a new output port. The key must not already exist on the
// output side.
func (n *Node) AddOutput(key string, sock socket.Name, label string) (*Port, error) {
	if _, ok := n.Output(key); ok {
		return nil, fmt.Errorf("%w: output %q on node %s", ErrDuplicatePort, key, n.id)
	}
	p := &Port{ID: uuid.NewString(), Key: key, Label: label, Socket: sock}
	n.outputs = append(n.outputs, p)
	n.notifier.NodeChanged(n.id)
	return p, nil
}

// RemoveInput detaches an input port. Any connection into it must already be
// gone; the editor enforces that through its cascading delete.
func (n *Node) RemoveInput(key string) error {
	for i, p := range n.inputs {
		if p.Key == key {
			n.inputs = append(n.inputs[:i], n.inputs[i+1:]...)
			n.notifier.NodeChanged(n.id)
			return nil
		}
	}
	return fmt.Errorf("%w: input %q on node %s", ErrPortNotFound, key, n.id)
}

// RemoveOutput detaches an output port and drops its cached data.
func (n *Node) RemoveOutput(key string) error {
	for i, p := range n.outputs {
		if p.Key == key {
			n.outputs = append(n.outputs[:i], n.outputs[i+1:]...)
			delete(n.dataOutput, key)
			n.notifier.NodeChanged(n.id)
			return nil
		}
	}
	return fmt.Errorf("%w: output %q on node %s", ErrPortNotFound, key, n.id)
}

// Input looks up an input port by key.
func (n *Node) Input(key string) (*Port, bool) {
	for _, p := range n.inputs {
		if p.Key == key {
			return p, true
		}
	}
	return nil, false
}

// Output looks up an output port by key.
func (n *Node) Output(key string) (*Port, bool) {
	for _, p := range n.outputs {
		if p.Key == key {
			return p, true
		}
	}
	return nil, false
}

// Inputs returns the input ports in creation order.
func (n *Node) Inputs() []*Port {
	out := make([]*Port, len(n.inputs))
	copy(out, n.inputs)
	return out
}

// Outputs returns the output ports in creation order.
func (n *Node) Outputs() []*Port {
	out := make([]*Port, len(n.outputs))
	copy(out, n.outputs)
	return out
}

// -- Controls --

// SetControl creates or replaces a control value.
func (n *Node) SetControl(key string, kind schemas.ControlKind, value any) {
	for _, c := range n.controls {
		if c.Key == key {
			c.Kind = kind
			c.Value = value
			n.notifier.NodeChanged(n.id)
			return
		}
	}
	n.controls = append(n.controls, &Control{Key: key, Kind: kind, Value: value})
	n.notifier.NodeChanged(n.id)
}

// Control looks up a control by key.
func (n *Node) Control(key string) (*Control, bool) {
	for _, c := range n.controls {
		if c.Key == key {
			return c, true
		}
	}
	return nil, false
}

// Controls returns the controls in creation order.
func (n *Node) Controls() []*Control {
	out := make([]*Control, len(n.controls))
	copy(out, n.controls)
	return out
}

// -- Extra persisted payload --

// SetExtra records a node-type specific value persisted through the node's
// data contribution on export.
func (n *Node) SetExtra(key string, value any) {
	n.extra[key] = value
}

// Extra returns a copy of the node's extra payload.
func (n *Node) Extra() map[string]any {
	if len(n.extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(n.extra))
	for k, v := range n.extra {
		out[k] = v
	}
	return out
}

// -- Status state machine --

// UpdateStatus records a status transition. The stacktrace is replaced on
// every update; non-error statuses always clear the message and stacktrace so
// stale diagnostics never outlive the error they belong to.
func (n *Node) UpdateStatus(status schemas.NodeStatus, message string, stacktrace []string) {
	n.status = status
	if status == schemas.StatusError {
		n.statusMessage = message
		n.errorStacktrace = append([]string(nil), stacktrace...)
	} else {
		n.statusMessage = ""
		n.errorStacktrace = nil
	}
	n.notifier.NodeChanged(n.id)
}

func (n *Node) Status() schemas.NodeStatus { return n.status }
func (n *Node) StatusMessage() string      { return n.statusMessage }

// ErrorStacktrace returns a copy of the recorded stacktrace lines.
func (n *Node) ErrorStacktrace() []string {
	return append([]string(nil), n.errorStacktrace...)
}

// CanExecute reports whether the run control should be enabled. This is a
// guard, not a queue: the core never schedules executions itself.
func (n *Node) CanExecute() bool {
	return n.status != schemas.StatusIncomplete
}

// -- Required inputs --

// SetRequiredInputs declares which input keys must stay connected for the node
// to remain executable. When a connection into one of them is removed, the
// editor drops the node back to Incomplete.
func (n *Node) SetRequiredInputs(keys ...string) {
	n.required = make(map[string]bool, len(keys))
	for _, k := range keys {
		n.required[k] = true
	}
}

func (n *Node) requiredInput(key string) bool { return n.required[key] }

// -- Cached output data --

// DataOutput returns the cached payload of one output port.
func (n *Node) DataOutput(key string) (*schemas.NodeData, bool) {
	d, ok := n.dataOutput[key]
	return d, ok
}

// DataOutputs returns a copy of the cached payload map.
func (n *Node) DataOutputs() map[string]*schemas.NodeData {
	if len(n.dataOutput) == 0 {
		return nil
	}
	out := make(map[string]*schemas.NodeData, len(n.dataOutput))
	for k, v := range n.dataOutput {
		out[k] = v
	}
	return out
}

// SetRebuildHook registers the derived-state rebuild callback invoked when a
// connected upstream output changes.
func (n *Node) SetRebuildHook(fn RebuildFunc) { n.rebuild = fn }

// TryBeginRefresh claims the node's single async-refresh slot. It returns
// false when a rebuild-controls continuation is already outstanding.
func (n *Node) TryBeginRefresh() bool {
	return n.refreshing.CompareAndSwap(false, true)
}

// EndRefresh releases the refresh slot.
func (n *Node) EndRefresh() {
	n.refreshing.Store(false)
}
