package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/internal/socket"
)

// VariadicConfig describes the growable input family of a variadic node.
type VariadicConfig struct {
	// CanonicalInput is the key of the first, always-present input. Numbered
	// siblings follow the "<canonical>_<n>" convention.
	CanonicalInput string
	// InputLabel is the display label prefix for allocated slots.
	InputLabel string
	// DerivedOutput, when set, is an output port that exists only while the
	// family has connections; it is created on the first connection and
	// removed by the cascade when the canonical input disconnects.
	DerivedOutput string
	// OutputLabel is the derived output's display label.
	OutputLabel string
	// OutputSocket overrides the derived output's socket. Zero value mirrors
	// the family socket.
	OutputSocket socket.Name
}

// variadicManager reacts to connection events on one node, growing and
// compacting its numbered input slots. Handlers run inside the editor lock,
// so all graph access goes through the locked internals.
type variadicManager struct {
	e   *Editor
	n   *Node
	cfg VariadicConfig
	// cascading suppresses the nested events fired while the manager itself
	// tears the family down.
	cascading bool
	log       *zap.Logger
}

// AttachVariadicInputs wires the dynamic-port policy onto a node. The
// subscriptions are tied to the node's lifetime and die with it.
func AttachVariadicInputs(e *Editor, n *Node, cfg VariadicConfig) {
	if cfg.InputLabel == "" {
		cfg.InputLabel = cfg.CanonicalInput
	}
	m := &variadicManager{e: e, n: n, cfg: cfg, log: e.log.Named("variadic")}

	e.TrackSubscription(n.ID(), e.bus.Subscribe(EventConnectionCreated, m.onCreated))
	e.TrackSubscription(n.ID(), e.bus.Subscribe(EventConnectionRemoved, m.onRemoved))
}

func (m *variadicManager) onCreated(ev Event) {
	conn := ev.Connection
	if conn == nil || conn.TargetNode != m.n.id {
		return
	}
	if m.e.bulkActiveLocked() || m.cascading {
		return
	}
	if _, family := m.familyIndex(conn.TargetPort); !family {
		return
	}

	fam := m.familySocket()
	if fam != "" {
		m.retagFamily(fam)
	}

	if m.cfg.DerivedOutput != "" {
		if _, has := m.n.Output(m.cfg.DerivedOutput); !has {
			outSock := m.cfg.OutputSocket
			if outSock == "" {
				outSock = fam
			}
			if outSock == "" {
				outSock = socket.Any
			}
			if _, err := m.n.AddOutput(m.cfg.DerivedOutput, outSock, m.cfg.OutputLabel); err != nil {
				m.log.Warn("Failed to create derived output", zap.Error(err))
			}
		}
	}

	m.ensureFreeSlot(fam)
}

func (m *variadicManager) onRemoved(ev Event) {
	conn := ev.Connection
	if conn == nil || conn.TargetNode != m.n.id {
		return
	}
	if m.e.bulkActiveLocked() || m.cascading {
		return
	}
	if _, present := m.e.nodes[m.n.id]; !present {
		// Cascading delete of the node itself; the ports go with it.
		return
	}

	idx, family := m.familyIndex(conn.TargetPort)
	if !family {
		return
	}
	if idx == 0 {
		m.cascadeTeardown()
		return
	}
	m.compact(idx)
}

// cascadeTeardown runs when the canonical input disconnects: every numbered
// sibling (and the derived output) loses its connections first, then the
// ports themselves, restoring the node to its initial shape.
func (m *variadicManager) cascadeTeardown() {
	m.cascading = true
	defer func() { m.cascading = false }()

	for _, key := range m.numberedKeys() {
		if c, ok := m.e.incomingLocked(m.n.id, key); ok {
			_ = m.e.removeConnectionLocked(c.ID)
		}
		_ = m.n.RemoveInput(key)
	}

	if m.cfg.DerivedOutput != "" {
		if _, has := m.n.Output(m.cfg.DerivedOutput); has {
			for _, id := range append([]string(nil), m.e.bySource[m.n.id][m.cfg.DerivedOutput]...) {
				if _, still := m.e.conns[id]; still {
					_ = m.e.removeConnectionLocked(id)
				}
			}
			_ = m.n.RemoveOutput(m.cfg.DerivedOutput)
		}
	}

	if p, ok := m.n.Input(m.cfg.CanonicalInput); ok {
		m.e.setPortSocketLocked(m.n, p, socket.Any)
	}
}

// compact runs after a numbered slot disconnects. While a higher-indexed
// sibling is still connected nothing moves; once the disconnected slot is the
// trailing one, surplus free slots are trimmed so exactly one remains, at the
// lowest free index.
func (m *variadicManager) compact(removed int) {
	highest := 0
	for _, key := range m.numberedKeys() {
		idx, _ := m.familyIndex(key)
		if _, connected := m.e.incomingLocked(m.n.id, key); connected && idx > highest {
			highest = idx
		}
	}
	if removed < highest {
		// Deferred: the trailing free slot already satisfies the invariant.
		return
	}

	for _, key := range m.numberedKeys() {
		idx, _ := m.familyIndex(key)
		if idx <= highest || idx == highest+1 {
			continue
		}
		if _, connected := m.e.incomingLocked(m.n.id, key); connected {
			continue
		}
		_ = m.n.RemoveInput(key)
	}

	// The single offered slot, in case trimming ate it.
	next := fmt.Sprintf("%s_%d", m.cfg.CanonicalInput, highest+1)
	if _, has := m.n.Input(next); !has {
		fam := m.familySocket()
		if fam == "" {
			fam = socket.Any
		}
		if _, err := m.n.AddInput(next, fam, m.slotLabel(highest+1)); err != nil {
			m.log.Warn("Failed to restore free slot", zap.Error(err))
		}
	}
}

// ensureFreeSlot allocates the smallest missing numbered slot when every
// family input is connected.
func (m *variadicManager) ensureFreeSlot(fam socket.Name) {
	for _, key := range m.familyKeys() {
		if _, connected := m.e.incomingLocked(m.n.id, key); !connected {
			return
		}
	}

	taken := map[int]bool{}
	for _, key := range m.numberedKeys() {
		idx, _ := m.familyIndex(key)
		taken[idx] = true
	}
	next := 1
	for taken[next] {
		next++
	}

	if fam == "" {
		fam = socket.Any
	}
	key := fmt.Sprintf("%s_%d", m.cfg.CanonicalInput, next)
	if _, err := m.n.AddInput(key, fam, m.slotLabel(next)); err != nil {
		m.log.Warn("Failed to allocate variadic slot", zap.Error(err))
	}
}

// familySocket derives the socket shared by the family: the socket of the
// producer feeding whichever family input is connected first, canonical
// before numbered. Empty until the first connection fixes it.
func (m *variadicManager) familySocket() socket.Name {
	for _, key := range m.familyKeys() {
		conn, ok := m.e.incomingLocked(m.n.id, key)
		if !ok {
			continue
		}
		if src, present := m.e.nodes[conn.SourceNode]; present {
			if out, has := src.Output(conn.SourcePort); has {
				return out.Socket
			}
		}
	}
	return ""
}

func (m *variadicManager) retagFamily(fam socket.Name) {
	for _, key := range m.familyKeys() {
		if p, ok := m.n.Input(key); ok && p.Socket != fam {
			m.e.setPortSocketLocked(m.n, p, fam)
		}
	}
}

// familyIndex parses a port key: the canonical key is index 0, numbered
// siblings their suffix. Non-family keys report false.
func (m *variadicManager) familyIndex(key string) (int, bool) {
	if key == m.cfg.CanonicalInput {
		return 0, true
	}
	rest, found := strings.CutPrefix(key, m.cfg.CanonicalInput+"_")
	if !found {
		return 0, false
	}
	idx, err := strconv.Atoi(rest)
	if err != nil || idx < 1 {
		return 0, false
	}
	return idx, true
}

// familyKeys returns canonical plus numbered keys in index order.
func (m *variadicManager) familyKeys() []string {
	return append([]string{m.cfg.CanonicalInput}, m.numberedKeys()...)
}

func (m *variadicManager) numberedKeys() []string {
	type slot struct {
		key string
		idx int
	}
	var slots []slot
	for _, p := range m.n.Inputs() {
		if idx, ok := m.familyIndex(p.Key); ok && idx > 0 {
			slots = append(slots, slot{key: p.Key, idx: idx})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].idx < slots[j].idx })
	keys := make([]string, 0, len(slots))
	for _, s := range slots {
		keys = append(keys, s.key)
	}
	return keys
}

func (m *variadicManager) slotLabel(idx int) string {
	return fmt.Sprintf("%s %d", m.cfg.InputLabel, idx+1)
}
