// Package executor submits projects to the job-execution backend over HTTP
// and applies the annotated response back onto the live graph.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/profenpoche/daav-sub000/api/schemas"
	"github.com/profenpoche/daav-sub000/internal/config"
)

// ErrBackendRejected wraps non-2xx backend responses.
var ErrBackendRejected = errors.New("backend rejected execution request")

// executeRequest is the wire form of one execution submission.
type executeRequest struct {
	Project schemas.Project `json:"project"`
	NodeID  string          `json:"nodeId,omitempty"`
}

// executeResponse is the backend's annotated result.
type executeResponse struct {
	Project schemas.Project `json:"project"`
	Error   string          `json:"error,omitempty"`
}

// Backend is the HTTP implementation of schemas.Executor.
type Backend struct {
	baseURL string
	headers map[string]string
	client  *http.Client
	log     *zap.Logger
}

var _ schemas.Executor = (*Backend)(nil)

// NewBackend creates a backend executor from configuration. A nil client gets
// the tuned default.
func NewBackend(cfg config.BackendConfig, client *http.Client, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		clientCfg := NewDefaultClientConfig()
		clientCfg.ForceHTTP2 = cfg.ForceHTTP2
		clientCfg.IgnoreTLSErrors = cfg.IgnoreTLSErrors
		if cfg.Timeout > 0 {
			clientCfg.RequestTimeout = cfg.Timeout
		}
		clientCfg.Logger = logger
		client = NewHTTPClient(clientCfg)
	}
	return &Backend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		client:  client,
		log:     logger.Named("executor"),
	}
}

// ExecuteNode submits the project for execution. nodeID selects a single node
// to run; empty runs the whole project. The returned project carries the
// backend's per-node status, diagnostics and data outputs.
func (b *Backend) ExecuteNode(ctx context.Context, project schemas.Project, nodeID string) (schemas.Project, error) {
	body, err := json.Marshal(executeRequest{Project: project, NodeID: nodeID})
	if err != nil {
		return schemas.Project{}, fmt.Errorf("encoding execution request: %w", err)
	}

	url := b.baseURL + "/api/projects/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return schemas.Project{}, fmt.Errorf("building execution request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		return schemas.Project{}, fmt.Errorf("submitting project %s: %w", project.ID, err)
	}
	defer resp.Body.Close()

	b.log.Debug("Execution request finished",
		zap.String("project_id", project.ID),
		zap.String("node_id", nodeID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return schemas.Project{}, fmt.Errorf("reading execution response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return schemas.Project{}, fmt.Errorf("%w: status %d: %s",
			ErrBackendRejected, resp.StatusCode, truncate(string(raw), 512))
	}

	var decoded executeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return schemas.Project{}, fmt.Errorf("decoding execution response: %w", err)
	}
	if decoded.Error != "" {
		return schemas.Project{}, fmt.Errorf("%w: %s", ErrBackendRejected, decoded.Error)
	}
	return decoded.Project, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
