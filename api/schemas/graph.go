package schemas

// -- Core Graph Wire Models --
// These types are the persisted form of the editor graph. They are plain data:
// the live entities (with ordered ports, event hooks, cached outputs) live in
// internal/graph and are flattened into these records on export.

// NodeStatus is the lifecycle state of a node, gating whether it can be executed.
type NodeStatus string

const (
	StatusIncomplete NodeStatus = "incomplete"
	StatusValid      NodeStatus = "valid"
	StatusComplete   NodeStatus = "complete"
	StatusError      NodeStatus = "error"
)

// Position is the visual placement of a node. The core does not interpret it,
// it only carries it through serialization for the rendering layer.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SocketRecord is the persisted form of a port's socket: just the category name.
type SocketRecord struct {
	Name string `json:"name"`
}

// PortRecord is the persisted form of a single input or output port.
type PortRecord struct {
	ID     string       `json:"id"`
	Label  string       `json:"label"`
	Socket SocketRecord `json:"socket"`
}

// ControlKind identifies how a control value is edited in the UI.
type ControlKind string

const (
	// ControlInput is the generic text/number input control. It is the only
	// kind the serializer persists directly; custom kinds round-trip through
	// each node type's own data contribution or are lost.
	ControlInput ControlKind = "input"
)

// ControlRecord is the persisted form of a generic control.
type ControlRecord struct {
	Kind  ControlKind `json:"kind"`
	Key   string      `json:"key"`
	Value any         `json:"value"`
}

// NodePayload carries a node's execution state and per-node extra data.
// The backend execution service fills Status/StatusMessage/ErrorStacktrace/
// DataOutput in its response; Extra holds whatever a node type chooses to
// persist beyond its generic controls.
type NodePayload struct {
	Status          NodeStatus           `json:"status,omitempty"`
	StatusMessage   string               `json:"statusMessage,omitempty"`
	ErrorStacktrace []string             `json:"errorStacktrace,omitempty"`
	DataOutput      map[string]*NodeData `json:"dataOutput,omitempty"`
	Extra           map[string]any       `json:"extra,omitempty"`
}

// ProjectNode is the persisted form of one node.
type ProjectNode struct {
	ID       string                    `json:"id"`
	Type     string                    `json:"type"`
	Label    string                    `json:"label"`
	Revision string                    `json:"revision,omitempty"`
	Data     NodePayload               `json:"data"`
	Position Position                  `json:"position"`
	Inputs   map[string]PortRecord     `json:"inputs"`
	Outputs  map[string]PortRecord     `json:"outputs"`
	Controls map[string]*ControlRecord `json:"controls"`
}

// ConnectionRecord is the persisted form of one edge between two ports.
type ConnectionRecord struct {
	ID         string `json:"id"`
	SourceNode string `json:"sourceNode"`
	SourcePort string `json:"sourcePort"`
	TargetNode string `json:"targetNode"`
	TargetPort string `json:"targetPort"`
}

// Project is the persisted representation of an entire graph.
// Revision is an opaque optimistic-concurrency token; the core never
// interprets it, only the project store does.
type Project struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Revision    string             `json:"revision"`
	Nodes       []ProjectNode      `json:"nodes"`
	Connections []ConnectionRecord `json:"connections"`
}

// ProjectSummary is the listing row returned by the project store.
type ProjectSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Revision string `json:"revision"`
}
