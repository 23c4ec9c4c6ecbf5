// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/profenpoche/daav-sub000/api/schemas"
)

// -- Executor Mock --

// MockExecutor mocks the schemas.Executor interface.
type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) ExecuteNode(ctx context.Context, project schemas.Project, nodeID string) (schemas.Project, error) {
	select {
	case <-ctx.Done():
		return schemas.Project{}, ctx.Err()
	default:
	}
	args := m.Called(ctx, project, nodeID)
	if args.Get(0) == nil {
		return schemas.Project{}, args.Error(1)
	}
	return args.Get(0).(schemas.Project), args.Error(1)
}

// -- Schema Fetcher Mock --

// MockSchemaFetcher mocks the schemas.SchemaFetcher interface.
type MockSchemaFetcher struct {
	mock.Mock
}

func (m *MockSchemaFetcher) FetchSchema(ctx context.Context, ref schemas.DatasetRef, params map[string]string) (*schemas.ContentResponse, error) {
	args := m.Called(ctx, ref, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ContentResponse), args.Error(1)
}

// -- Project Store Mock --

// MockProjectStore mocks the schemas.ProjectStore interface.
type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) Save(ctx context.Context, project *schemas.Project) (string, error) {
	args := m.Called(ctx, project)
	return args.String(0), args.Error(1)
}

func (m *MockProjectStore) Load(ctx context.Context, id string) (*schemas.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Project), args.Error(1)
}

func (m *MockProjectStore) List(ctx context.Context) ([]schemas.ProjectSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.ProjectSummary), args.Error(1)
}

func (m *MockProjectStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// -- View Notifier Recorder --

// RecordingNotifier is a thread-safe schemas.ViewNotifier that remembers every
// node it was told to redraw. Tests assert on the recorded IDs instead of
// mocking call expectations, since notification volume is an implementation
// detail.
type RecordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (r *RecordingNotifier) NodeChanged(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, nodeID)
}

// Changed returns the recorded node IDs in call order.
func (r *RecordingNotifier) Changed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Reset clears the recording.
func (r *RecordingNotifier) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = nil
}
