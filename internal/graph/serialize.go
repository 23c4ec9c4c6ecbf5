package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/socket"
)

// Export flattens the live graph into its persisted form. Nodes in Error
// status are normalized back to Complete with cleared diagnostics: export must
// not freeze a transient failure into the saved project.
func (e *Editor) Export() schemas.Project {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := schemas.Project{
		ID:       e.projectID,
		Name:     e.projectName,
		Revision: e.revision,
	}

	for _, id := range e.nodeOrder {
		n := e.nodes[id]

		if n.status == schemas.StatusError {
			n.UpdateStatus(schemas.StatusComplete, "", nil)
		}

		pn := schemas.ProjectNode{
			ID:       n.id,
			Type:     n.nodeType,
			Label:    n.label,
			Position: n.position,
			Inputs:   portRecords(n.inputs),
			Outputs:  portRecords(n.outputs),
			Controls: make(map[string]*schemas.ControlRecord, len(n.controls)),
			Data: schemas.NodePayload{
				Status:     n.status,
				DataOutput: n.DataOutputs(),
				Extra:      n.Extra(),
			},
		}

		for _, c := range n.controls {
			// Only the generic input kind serializes by itself. Custom kinds
			// persist through the node's extra payload or not at all.
			if c.Kind == schemas.ControlInput {
				pn.Controls[c.Key] = &schemas.ControlRecord{Kind: c.Kind, Key: c.Key, Value: c.Value}
			} else {
				pn.Controls[c.Key] = nil
			}
		}

		p.Nodes = append(p.Nodes, pn)
	}

	for _, id := range e.connOrder {
		c := e.conns[id]
		p.Connections = append(p.Connections, schemas.ConnectionRecord{
			ID:         c.ID,
			SourceNode: c.SourceNode,
			SourcePort: c.SourcePort,
			TargetNode: c.TargetNode,
			TargetPort: c.TargetPort,
		})
	}

	return p
}

func portRecords(ports []*Port) map[string]schemas.PortRecord {
	out := make(map[string]schemas.PortRecord, len(ports))
	for _, p := range ports {
		out[p.Key] = schemas.PortRecord{
			ID:     p.ID,
			Label:  p.Label,
			Socket: schemas.SocketRecord{Name: string(p.Socket)},
		}
	}
	return out
}

// Import replaces the editor contents with the persisted project. The whole
// operation runs inside a clear/cleared bracket so dynamic-port churn and
// rebuild hooks stay quiet. Any failure aborts the import and leaves the
// editor empty; a partially built graph is never observable.
func (e *Editor) Import(p schemas.Project) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.beginBulkLocked()
	defer e.endBulkLocked()

	e.clearLocked()
	e.projectID, e.projectName, e.revision = p.ID, p.Name, p.Revision

	abort := func(err error) error {
		e.clearLocked()
		e.projectID, e.projectName, e.revision = "", "", ""
		e.log.Warn("Project import aborted", zap.String("project_id", p.ID), zap.Error(err))
		return err
	}

	for _, pn := range p.Nodes {
		n, err := e.rebuildNodeLocked(pn)
		if err != nil {
			return abort(err)
		}
		if err := e.insertNodeLocked(n); err != nil {
			return abort(fmt.Errorf("importing node %s: %w", pn.ID, err))
		}
	}

	for _, rc := range p.Connections {
		if _, err := e.addConnectionLocked(rc.ID, rc.SourceNode, rc.SourcePort, rc.TargetNode, rc.TargetPort); err != nil {
			return abort(fmt.Errorf("importing connection %s: %w", rc.ID, err))
		}
	}

	e.log.Info("Project imported",
		zap.String("project_id", p.ID),
		zap.Int("nodes", len(p.Nodes)),
		zap.Int("connections", len(p.Connections)))
	return nil
}

// rebuildNodeLocked reconstructs one node through the type registry, then
// overlays the persisted identity, ports, controls and cached data on top of
// whatever the constructor built.
func (e *Editor) rebuildNodeLocked(pn schemas.ProjectNode) (*Node, error) {
	if e.builder == nil {
		return nil, fmt.Errorf("%w: %q (no builder configured)", ErrUnknownNodeType, pn.Type)
	}
	n, err := e.builder.Build(e, pn.Type)
	if err != nil {
		return nil, err
	}

	// The constructor registered its event subscriptions under the fresh
	// build-time ID; they must follow the node to its persisted identity or
	// removal would never release them.
	builtID := n.id
	n.setID(pn.ID)
	e.rekeyNodeSubscriptions(builtID, pn.ID)

	n.label = pn.Label
	n.position = pn.Position

	if pn.Data.Status != "" {
		n.status = pn.Data.Status
		n.statusMessage = pn.Data.StatusMessage
		n.errorStacktrace = append([]string(nil), pn.Data.ErrorStacktrace...)
	}
	for k, v := range pn.Data.DataOutput {
		n.dataOutput[k] = v
	}
	for k, v := range pn.Data.Extra {
		n.extra[k] = v
	}

	for key, rec := range pn.Controls {
		if rec == nil {
			continue
		}
		n.SetControl(key, rec.Kind, rec.Value)
	}

	// Constructors rebuild the canonical port set; anything beyond that
	// (variadic slots, derived outputs) comes verbatim from the records, and
	// canonical ports take back their persisted identity and socket.
	if err := overlayPorts(n, pn.Inputs, n.AddInput, n.Input); err != nil {
		return nil, err
	}
	if err := overlayPorts(n, pn.Outputs, n.AddOutput, n.Output); err != nil {
		return nil, err
	}

	return n, nil
}

func overlayPorts(
	n *Node,
	records map[string]schemas.PortRecord,
	add func(string, socket.Name, string) (*Port, error),
	lookup func(string) (*Port, bool),
) error {
	for _, rec := range sortedPortRecords(records) {
		p, exists := lookup(rec.key)
		if !exists {
			var err error
			p, err = add(rec.key, socket.Name(rec.rec.Socket.Name), rec.rec.Label)
			if err != nil {
				return fmt.Errorf("rebuilding port %q on node %s: %w", rec.key, n.id, err)
			}
		}
		p.ID = rec.rec.ID
		p.Label = rec.rec.Label
		p.Socket = socket.Name(rec.rec.Socket.Name)
	}
	return nil
}

type keyedPortRecord struct {
	key string
	rec schemas.PortRecord
}

// sortedPortRecords iterates the persisted port map deterministically, numbered
// variadic slots in index order after their base key.
func sortedPortRecords(records map[string]schemas.PortRecord) []keyedPortRecord {
	out := make([]keyedPortRecord, 0, len(records))
	for k, r := range records {
		out = append(out, keyedPortRecord{key: k, rec: r})
	}
	sort.Slice(out, func(i, j int) bool {
		bi, ni := splitNumberedKey(out[i].key)
		bj, nj := splitNumberedKey(out[j].key)
		if bi != bj {
			return bi < bj
		}
		return ni < nj
	})
	return out
}

// splitNumberedKey splits "datasource_2" into ("datasource", 2); keys without
// a numeric suffix sort first within their base.
func splitNumberedKey(key string) (string, int) {
	if i := strings.LastIndex(key, "_"); i > 0 {
		if n, err := strconv.Atoi(key[i+1:]); err == nil && n > 0 {
			return key[:i], n
		}
	}
	return key, 0
}
