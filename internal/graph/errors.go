package graph

import "errors"

// Structural errors are returned synchronously by the operation that would
// violate an invariant; the graph is never left in a violated state.
var (
	// ErrIncompatibleSockets rejects a connection whose producer socket is not
	// accepted by the consumer socket. Surfaced to the user as a rejected drag.
	ErrIncompatibleSockets = errors.New("incompatible sockets")
	// ErrPortAlreadyConnected rejects a second incoming connection on an input.
	ErrPortAlreadyConnected = errors.New("target port already connected")
	// ErrUnknownNodeType aborts a project import when a persisted node type has
	// no registered constructor.
	ErrUnknownNodeType = errors.New("unknown node type")

	ErrNodeNotFound        = errors.New("node not found")
	ErrPortNotFound        = errors.New("port not found")
	ErrDuplicatePort       = errors.New("port key already exists")
	ErrDuplicateNode       = errors.New("node already exists")
	ErrDuplicateConnection = errors.New("connection already exists")
	ErrConnectionNotFound  = errors.New("connection not found")
)
