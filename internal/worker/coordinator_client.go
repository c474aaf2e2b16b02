package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lexara-six/ingestion/internal/domain"
)

// ClaimedJob is the subset of the coordinator's claim response this worker
// needs to run the job; the rest (checkpoint, timestamps) lives in the job
// row the worker owns directly once claimed.
type ClaimedJob struct {
	JobID   string         `json:"job_id"`
	JobType string         `json:"job_type"`
	Config  map[string]any `json:"config"`
	Status  string         `json:"status"`
}

// CoordinatorClient is the HTTP side of the worker's dual-channel design:
// it claims jobs and pings heartbeats through the coordinator, while every
// other write (status transitions, checkpoints, data-quality issues,
// propose-fact calls) goes straight to this process's own database
// connection via the domain repositories.
type CoordinatorClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewCoordinatorClient builds a client against baseURL with the given
// per-call timeout.
func NewCoordinatorClient(baseURL string, timeout time.Duration) *CoordinatorClient {
	return &CoordinatorClient{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

// ClaimJob asks the coordinator for the oldest pending job this worker can
// handle. A nil job with ok=false means none is available right now.
func (c *CoordinatorClient) ClaimJob(ctx domain.Context, workerID string, capabilities []string) (*ClaimedJob, bool, error) {
	body, err := json.Marshal(map[string]any{"worker_id": workerID, "capabilities": capabilities})
	if err != nil {
		return nil, false, fmt.Errorf("op=worker.coordinator_client.claim_job.marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/jobs/claim", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("op=worker.coordinator_client.claim_job.request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("op=worker.coordinator_client.claim_job: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, false, nil
	case http.StatusOK:
		var job ClaimedJob
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return nil, false, fmt.Errorf("op=worker.coordinator_client.claim_job.decode: %w", err)
		}
		return &job, true, nil
	default:
		return nil, false, fmt.Errorf("op=worker.coordinator_client.claim_job: unexpected status %d", resp.StatusCode)
	}
}

// NotifyHeartbeat pings the coordinator's monitoring endpoint for the given
// job. Failure here is never fatal: the worker's own heartbeat row,
// written directly by the caller through domain.WorkerRepository, is the
// source of truth for liveness.
func (c *CoordinatorClient) NotifyHeartbeat(ctx domain.Context, jobID, workerID string, metadata map[string]any) error {
	body, err := json.Marshal(map[string]any{"worker_id": workerID, "metadata": metadata})
	if err != nil {
		return fmt.Errorf("op=worker.coordinator_client.notify_heartbeat.marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/jobs/"+jobID+"/heartbeat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("op=worker.coordinator_client.notify_heartbeat.request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("op=worker.coordinator_client.notify_heartbeat: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("op=worker.coordinator_client.notify_heartbeat: unexpected status %d", resp.StatusCode)
	}
	return nil
}
