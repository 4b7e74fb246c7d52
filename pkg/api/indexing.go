package api

import (
	"context"
	"net/http"
)

// IndexingStatus is the backend's view of the indexing job.
type IndexingStatus struct {
	IsRunning     bool                   `json:"is_running"`
	Progress      map[string]interface{} `json:"progress,omitempty"`
	CurrentBucket string                 `json:"current_bucket,omitempty"`
}

// ControlResponse is returned by the indexing start and stop endpoints.
type ControlResponse struct {
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// StartIndexing starts indexing the currently selected workspace.
func (c *Client) StartIndexing(ctx context.Context) (ControlResponse, error) {
	var resp ControlResponse
	err := c.do(ctx, http.MethodPost, "/api/indexing/start", nil, &resp)
	return resp, err
}

// StopIndexing asks the running job to stop.
func (c *Client) StopIndexing(ctx context.Context) (ControlResponse, error) {
	var resp ControlResponse
	err := c.do(ctx, http.MethodPost, "/api/indexing/stop", nil, &resp)
	return resp, err
}

// IndexingStatus returns whether a job is running along with the payload of
// the last progress event.
func (c *Client) IndexingStatus(ctx context.Context) (IndexingStatus, error) {
	var status IndexingStatus
	err := c.do(ctx, http.MethodGet, "/api/indexing/status", nil, &status)
	return status, err
}
