// Package graph implements the editor core of the pipeline composer: the live
// node/connection registries, the socket compatibility checks, the node status
// machine, dynamic ports for variadic nodes, reactive downstream propagation
// and project (de)serialization.
//
// The graph runs on a single logical thread of control: every structural
// mutation goes through the editor lock, so two mutations never interleave.
// Event handlers run synchronously inside the mutating operation and must not
// re-enter the public API.
package graph

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/jsoncompare"
	"github.com/profenpoche/daav-sub000/internal/socket"
)

// Connection is a directed edge from one node's output port to another node's
// input port.
type Connection struct {
	ID         string
	SourceNode string
	SourcePort string
	TargetNode string
	TargetPort string
}

// Builder constructs registered node types by name. The editor consumes it
// during import and clone; an unregistered type is a hard failure
// (ErrUnknownNodeType), never a silent skip.
type Builder interface {
	Build(e *Editor, typeName string) (*Node, error)
}

// Editor owns the live graph. All public methods are safe for concurrent use,
// serialized under one lock.
type Editor struct {
	mu sync.Mutex

	projectID   string
	projectName string
	revision    string

	nodes     map[string]*Node
	nodeOrder []string

	conns     map[string]*Connection
	connOrder []string
	// byTarget indexes the at-most-one incoming connection per input port.
	byTarget map[string]map[string]string
	// bySource indexes outgoing connections per output port.
	bySource map[string]map[string][]string

	bus      *Bus
	builder  Builder
	notifier schemas.ViewNotifier
	compare  jsoncompare.JSONComparison

	subMu    sync.Mutex
	nodeSubs map[string][]*Subscription

	bulkDepth int

	log *zap.Logger
}

// NewEditor creates an empty editor. builder may be nil for graphs that are
// only built programmatically (imports then fail with ErrUnknownNodeType);
// notifier may be nil when no rendering layer is attached.
func NewEditor(builder Builder, notifier schemas.ViewNotifier, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Editor{
		nodes:    make(map[string]*Node),
		conns:    make(map[string]*Connection),
		byTarget: make(map[string]map[string]string),
		bySource: make(map[string]map[string][]string),
		bus:      NewBus(logger),
		builder:  builder,
		notifier: notifier,
		compare:  jsoncompare.NewService(),
		nodeSubs: make(map[string][]*Subscription),
		log:      logger.Named("editor"),
	}
}

// Bus exposes the editor's event bus for observers.
func (e *Editor) Bus() *Bus { return e.bus }

// Notifier returns the view notifier nodes should report changes to.
func (e *Editor) Notifier() schemas.ViewNotifier { return e.notifier }

// SetProjectMeta records the project identity carried through serialization.
func (e *Editor) SetProjectMeta(id, name, revision string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.projectID, e.projectName, e.revision = id, name, revision
}

// ProjectMeta returns the project identity.
func (e *Editor) ProjectMeta() (id, name, revision string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.projectID, e.projectName, e.revision
}

// -- Node registry --

// AddNode inserts a programmatically built node.
func (e *Editor) AddNode(n *Node) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.insertNodeLocked(n)
}

// SpawnNode builds a node of a registered type through the injected builder
// and inserts it.
func (e *Editor) SpawnNode(typeName string) (*Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spawnNodeLocked(typeName)
}

func (e *Editor) spawnNodeLocked(typeName string) (*Node, error) {
	if e.builder == nil {
		return nil, fmt.Errorf("%w: %q (no builder configured)", ErrUnknownNodeType, typeName)
	}
	n, err := e.builder.Build(e, typeName)
	if err != nil {
		return nil, err
	}
	if err := e.insertNodeLocked(n); err != nil {
		return nil, err
	}
	return n, nil
}

func (e *Editor) insertNodeLocked(n *Node) error {
	if _, exists := e.nodes[n.id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.id)
	}
	e.nodes[n.id] = n
	e.nodeOrder = append(e.nodeOrder, n.id)
	e.notifier.NodeChanged(n.id)
	return nil
}

// Node looks up a node by ID.
func (e *Editor) Node(id string) (*Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (e *Editor) Nodes() []*Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Node, 0, len(e.nodeOrder))
	for _, id := range e.nodeOrder {
		out = append(out, e.nodes[id])
	}
	return out
}

// RemoveNode removes a node after removing every connection incident to it,
// in either direction. Observably, k connectionremoved events fire first, then
// exactly one noderemoved; no connection ever references a removed node.
func (e *Editor) RemoveNode(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeNodeLocked(id)
}

func (e *Editor) removeNodeLocked(id string) error {
	if _, ok := e.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	for _, c := range e.connectionsOfLocked(id) {
		// Incident set is re-checked each step: a variadic cascade triggered
		// by one removal may already have taken a sibling connection with it.
		if _, still := e.conns[c.ID]; !still {
			continue
		}
		if err := e.removeConnectionLocked(c.ID); err != nil {
			return err
		}
	}

	e.bus.Publish(Event{Kind: EventNodeRemoved, NodeID: id})
	e.dropNodeSubscriptions(id)

	delete(e.nodes, id)
	for i, v := range e.nodeOrder {
		if v == id {
			e.nodeOrder = append(e.nodeOrder[:i], e.nodeOrder[i+1:]...)
			break
		}
	}
	delete(e.byTarget, id)
	delete(e.bySource, id)
	e.notifier.NodeChanged(id)
	e.log.Debug("Node removed", zap.String("node_id", id))
	return nil
}

// CloneNode duplicates a node: fresh ID, fresh ports, same configuration, no
// connections. Registered types are rebuilt through the builder so their
// reactive hooks come along; unregistered ones are copied structurally.
func (e *Editor) CloneNode(id string) (*Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, ok := e.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	var clone *Node
	if e.builder != nil {
		built, err := e.builder.Build(e, src.nodeType)
		if err == nil {
			clone = built
		}
	}
	if clone == nil {
		clone = NewNode(src.nodeType, src.label, e.notifier)
		for _, p := range src.inputs {
			if _, err := clone.AddInput(p.Key, p.Socket, p.Label); err != nil {
				return nil, err
			}
		}
		for _, p := range src.outputs {
			if _, err := clone.AddOutput(p.Key, p.Socket, p.Label); err != nil {
				return nil, err
			}
		}
	}

	clone.label = src.label
	clone.position = schemas.Position{X: src.position.X + 40, Y: src.position.Y + 40}
	for _, c := range src.controls {
		clone.SetControl(c.Key, c.Kind, c.Value)
	}
	for k, v := range src.extra {
		clone.SetExtra(k, v)
	}

	if err := e.insertNodeLocked(clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// -- Connection registry --

// AddConnection validates and inserts an edge from a source output port to a
// target input port, then emits connectioncreated.
func (e *Editor) AddConnection(sourceNode, sourcePort, targetNode, targetPort string) (*Connection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addConnectionLocked(uuid.NewString(), sourceNode, sourcePort, targetNode, targetPort)
}

func (e *Editor) addConnectionLocked(id, sourceNode, sourcePort, targetNode, targetPort string) (*Connection, error) {
	if _, exists := e.conns[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateConnection, id)
	}
	src, ok := e.nodes[sourceNode]
	if !ok {
		return nil, fmt.Errorf("%w: source %s", ErrNodeNotFound, sourceNode)
	}
	dst, ok := e.nodes[targetNode]
	if !ok {
		return nil, fmt.Errorf("%w: target %s", ErrNodeNotFound, targetNode)
	}
	out, ok := src.Output(sourcePort)
	if !ok {
		return nil, fmt.Errorf("%w: output %q on node %s", ErrPortNotFound, sourcePort, sourceNode)
	}
	in, ok := dst.Input(targetPort)
	if !ok {
		return nil, fmt.Errorf("%w: input %q on node %s", ErrPortNotFound, targetPort, targetNode)
	}
	if !socket.Compatible(out.Socket, in.Socket) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIncompatibleSockets, out.Socket, in.Socket)
	}
	if _, taken := e.byTarget[targetNode][targetPort]; taken {
		return nil, fmt.Errorf("%w: input %q on node %s", ErrPortAlreadyConnected, targetPort, targetNode)
	}

	conn := &Connection{
		ID:         id,
		SourceNode: sourceNode,
		SourcePort: sourcePort,
		TargetNode: targetNode,
		TargetPort: targetPort,
	}
	e.conns[conn.ID] = conn
	e.connOrder = append(e.connOrder, conn.ID)
	if e.byTarget[targetNode] == nil {
		e.byTarget[targetNode] = make(map[string]string)
	}
	e.byTarget[targetNode][targetPort] = conn.ID
	if e.bySource[sourceNode] == nil {
		e.bySource[sourceNode] = make(map[string][]string)
	}
	e.bySource[sourceNode][sourcePort] = append(e.bySource[sourceNode][sourcePort], conn.ID)

	e.bus.Publish(Event{Kind: EventConnectionCreated, Connection: conn})

	// A freshly connected consumer sees whatever the producer already cached,
	// so its derived state is current without waiting for the next execution.
	if !e.bulkActiveLocked() {
		if data, has := src.DataOutput(sourcePort); has && dst.rebuild != nil {
			dst.rebuild(targetPort, data)
		}
	}

	e.notifier.NodeChanged(sourceNode)
	e.notifier.NodeChanged(targetNode)
	return conn, nil
}

// RemoveConnection removes an edge and emits connectionremoved. If the target
// node declared the input as required and is still present, its status drops
// back to Incomplete.
func (e *Editor) RemoveConnection(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeConnectionLocked(id)
}

func (e *Editor) removeConnectionLocked(id string) error {
	conn, ok := e.conns[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
	}

	delete(e.conns, id)
	for i, v := range e.connOrder {
		if v == id {
			e.connOrder = append(e.connOrder[:i], e.connOrder[i+1:]...)
			break
		}
	}
	if ports := e.byTarget[conn.TargetNode]; ports != nil {
		delete(ports, conn.TargetPort)
	}
	if ports := e.bySource[conn.SourceNode]; ports != nil {
		ids := ports[conn.SourcePort]
		for i, v := range ids {
			if v == id {
				ports[conn.SourcePort] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}

	e.bus.Publish(Event{Kind: EventConnectionRemoved, Connection: conn})

	if target, present := e.nodes[conn.TargetNode]; present && target.requiredInput(conn.TargetPort) {
		switch target.status {
		case schemas.StatusValid, schemas.StatusComplete:
			target.UpdateStatus(schemas.StatusIncomplete, "", nil)
		}
	}

	e.notifier.NodeChanged(conn.SourceNode)
	e.notifier.NodeChanged(conn.TargetNode)
	return nil
}

// Connection looks up an edge by ID.
func (e *Editor) Connection(id string) (*Connection, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.conns[id]
	return c, ok
}

// Connections returns the edges in insertion order.
func (e *Editor) Connections() []*Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Connection, 0, len(e.connOrder))
	for _, id := range e.connOrder {
		out = append(out, e.conns[id])
	}
	return out
}

// ConnectionsOf returns the edges incident to a node, in either direction.
func (e *Editor) ConnectionsOf(nodeID string) []*Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectionsOfLocked(nodeID)
}

func (e *Editor) connectionsOfLocked(nodeID string) []*Connection {
	var out []*Connection
	for _, id := range e.connOrder {
		c := e.conns[id]
		if c.SourceNode == nodeID || c.TargetNode == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// incomingLocked resolves the connection into one input port, if any.
func (e *Editor) incomingLocked(nodeID, inputKey string) (*Connection, bool) {
	if id, ok := e.byTarget[nodeID][inputKey]; ok {
		return e.conns[id], true
	}
	return nil, false
}

// -- Reactive propagation --

// SetDataOutput replaces the cached payload of one output port. When the new
// value is content-different from the previous one, nodedataupdated fires
// exactly once and every consumer connected to that (node, output) pair has
// its rebuild hook invoked exactly once.
func (e *Editor) SetDataOutput(nodeID, outputKey string, data *schemas.NodeData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setDataOutputLocked(nodeID, outputKey, data)
}

func (e *Editor) setDataOutputLocked(nodeID, outputKey string, data *schemas.NodeData) error {
	n, ok := e.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if _, ok := n.Output(outputKey); !ok {
		return fmt.Errorf("%w: output %q on node %s", ErrPortNotFound, outputKey, nodeID)
	}

	prev := n.dataOutput[outputKey]
	if equivalentData(e.compare, prev, data) {
		return nil
	}

	if data == nil {
		delete(n.dataOutput, outputKey)
	} else {
		n.dataOutput[outputKey] = data
	}

	e.bus.Publish(Event{Kind: EventNodeDataUpdated, NodeID: nodeID, OutputKey: outputKey})

	if !e.bulkActiveLocked() {
		for _, connID := range e.bySource[nodeID][outputKey] {
			conn := e.conns[connID]
			if target, present := e.nodes[conn.TargetNode]; present && target.rebuild != nil {
				target.rebuild(conn.TargetPort, data)
			}
		}
	}

	e.notifier.NodeChanged(nodeID)
	return nil
}

// equivalentData reports whether two payloads carry the same content.
func equivalentData(cmp jsoncompare.JSONComparison, a, b *schemas.NodeData) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	res, err := cmp.Compare(rawA, rawB)
	if err != nil {
		return false
	}
	return res.AreEquivalent
}

// -- Port socket revalidation --

// setPortSocketLocked retags a port and re-validates every connection touching
// it, removing the ones the new socket no longer permits.
func (e *Editor) setPortSocketLocked(n *Node, p *Port, s socket.Name) {
	if p.Socket == s {
		return
	}
	p.Socket = s

	var stale []string
	for _, id := range e.connOrder {
		c := e.conns[id]
		var producer, consumer *Port
		if c.SourceNode == n.id && c.SourcePort == p.Key {
			producer = p
			if target, ok := e.nodes[c.TargetNode]; ok {
				consumer, _ = target.Input(c.TargetPort)
			}
		} else if c.TargetNode == n.id && c.TargetPort == p.Key {
			consumer = p
			if source, ok := e.nodes[c.SourceNode]; ok {
				producer, _ = source.Output(c.SourcePort)
			}
		} else {
			continue
		}
		if producer == nil || consumer == nil || !socket.Compatible(producer.Socket, consumer.Socket) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		if _, still := e.conns[id]; still {
			_ = e.removeConnectionLocked(id)
		}
	}
	e.notifier.NodeChanged(n.id)
}

// WithNode runs fn on the node under the editor lock and reports whether the
// node was still present. Asynchronous continuations (backend responses,
// schema fetches) re-enter the graph through it: a response arriving after
// its node was removed becomes a silent no-op instead of mutating a ghost.
func (e *Editor) WithNode(id string, fn func(*Node)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.nodes[id]
	if !ok {
		return false
	}
	fn(n)
	return true
}

// -- Subscription lifecycle --

// TrackSubscription ties a bus subscription to a node's lifetime: it is
// unsubscribed automatically when the node is removed, so a reused node ID
// can never double-fire stale handlers.
func (e *Editor) TrackSubscription(nodeID string, sub *Subscription) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.nodeSubs[nodeID] = append(e.nodeSubs[nodeID], sub)
}

func (e *Editor) rekeyNodeSubscriptions(oldID, newID string) {
	if oldID == newID {
		return
	}
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if subs, ok := e.nodeSubs[oldID]; ok {
		delete(e.nodeSubs, oldID)
		e.nodeSubs[newID] = append(e.nodeSubs[newID], subs...)
	}
}

func (e *Editor) dropNodeSubscriptions(nodeID string) {
	e.subMu.Lock()
	subs := e.nodeSubs[nodeID]
	delete(e.nodeSubs, nodeID)
	e.subMu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// -- Bulk operations --

// BeginBulkLoad opens a bulk scope: clear fires once and per-event side
// effects (dynamic port churn, rebuild hooks) stay suppressed until
// EndBulkLoad. Scopes nest.
func (e *Editor) BeginBulkLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginBulkLocked()
}

// EndBulkLoad closes the innermost bulk scope, firing cleared when the last
// one closes.
func (e *Editor) EndBulkLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endBulkLocked()
}

func (e *Editor) beginBulkLocked() {
	e.bulkDepth++
	if e.bulkDepth == 1 {
		e.bus.Publish(Event{Kind: EventClear})
	}
}

func (e *Editor) endBulkLocked() {
	if e.bulkDepth == 0 {
		return
	}
	e.bulkDepth--
	if e.bulkDepth == 0 {
		e.bus.Publish(Event{Kind: EventCleared})
	}
}

// BulkActive reports whether a bulk scope is open.
func (e *Editor) BulkActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bulkActiveLocked()
}

func (e *Editor) bulkActiveLocked() bool { return e.bulkDepth > 0 }

// Clear empties the whole graph inside a clear/cleared bracket.
func (e *Editor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginBulkLocked()
	e.clearLocked()
	e.endBulkLocked()
}

// clearLocked drops all nodes, connections and tracked subscriptions without
// per-entity events. Callers bracket it with a bulk scope.
func (e *Editor) clearLocked() {
	e.subMu.Lock()
	allSubs := make([]*Subscription, 0)
	for _, subs := range e.nodeSubs {
		allSubs = append(allSubs, subs...)
	}
	e.nodeSubs = make(map[string][]*Subscription)
	e.subMu.Unlock()
	for _, s := range allSubs {
		s.Unsubscribe()
	}

	e.nodes = make(map[string]*Node)
	e.nodeOrder = nil
	e.conns = make(map[string]*Connection)
	e.connOrder = nil
	e.byTarget = make(map[string]map[string]string)
	e.bySource = make(map[string]map[string][]string)
}
