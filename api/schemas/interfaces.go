package schemas

import "context"

// -- Collaborator Interfaces --
// The graph core consumes its external collaborators (backend execution,
// dataset introspection, rendering, persistence) through these narrow
// interfaces so each can be swapped or mocked independently.

// Executor submits a project to the backend job-execution service and returns
// the project as the backend annotated it: per-node status, message,
// stacktrace and data outputs. nodeID selects a single node to run; an empty
// nodeID runs the whole project. The core never schedules or retries, it only
// applies the response back onto the live graph.
type Executor interface {
	ExecuteNode(ctx context.Context, project Project, nodeID string) (Project, error)
}

// DatasetRef identifies the external dataset a source/sink node points at.
type DatasetRef struct {
	Source   string `json:"source"`
	Database string `json:"database,omitempty"`
	Table    string `json:"table,omitempty"`
	Path     string `json:"path,omitempty"`
}

// ContentItem is one selectable sub-structure of a dataset (a database, a
// table, a collection...). Children allow one level of nesting per fetch.
type ContentItem struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind,omitempty"`
	Children []ContentItem `json:"children,omitempty"`
}

// ContentResponse is the result of a schema/sub-structure fetch.
type ContentResponse struct {
	Items []ContentItem `json:"items"`
}

// SchemaFetcher lets data-source and sink nodes populate their selectable
// sub-structure (databases, tables, collections) from a connector backend.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context, ref DatasetRef, params map[string]string) (*ContentResponse, error)
}

// ViewNotifier is the rendering collaborator. Every structural change to a
// node (port added/removed, control changed, status transition) must be
// signalled so the view can redraw that node.
type ViewNotifier interface {
	NodeChanged(nodeID string)
}

// ProjectStore persists projects. Save enforces optimistic concurrency on the
// project revision and returns the newly assigned revision.
type ProjectStore interface {
	Save(ctx context.Context, project *Project) (revision string, err error)
	Load(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]ProjectSummary, error)
	Delete(ctx context.Context, id string) error
}
