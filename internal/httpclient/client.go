// Package httpclient talks to a running overseer server. The CLI and the MCP server use it.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/overseer/internal/handlers"
	"github.com/ternarybob/overseer/internal/models"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsConflict reports whether err is the server refusing an overlapping job
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}

// Client is a thin JSON client for the overseer HTTP API
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64
}

// New creates a client for baseURL, e.g. http://localhost:8085
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
	}
}

// TriggerJob asks the server to run jobType now
func (c *Client) TriggerJob(ctx context.Context, jobType string, params map[string]interface{}) (*handlers.TriggerResponse, error) {
	var resp handlers.TriggerResponse
	body := handlers.TriggerRequest{JobType: jobType, Parameters: params}
	if err := c.do(ctx, http.MethodPost, "/api/jobs/trigger", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	path := "/api/jobs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var jobs []*models.Job
	if err := c.do(ctx, http.MethodGet, path, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) LatestHealth(ctx context.Context) ([]*models.HealthCheck, error) {
	var checks []*models.HealthCheck
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &checks); err != nil {
		return nil, err
	}
	return checks, nil
}

func (c *Client) HealthReport(ctx context.Context) (*models.HealthReport, error) {
	var report models.HealthReport
	if err := c.do(ctx, http.MethodGet, "/api/health/report", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Statistics returns one entry per period; an empty period asks for all of them
func (c *Client) Statistics(ctx context.Context, period models.StatsPeriod) ([]models.Statistics, error) {
	path := "/api/stats"
	if period != "" {
		path += "?period=" + url.QueryEscape(string(period))
	}
	var stats []models.Statistics
	if err := c.do(ctx, http.MethodGet, path, nil, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) Workflows(ctx context.Context) ([]models.WorkflowStatus, error) {
	var statuses []models.WorkflowStatus
	if err := c.do(ctx, http.MethodGet, "/api/workflows", nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (c *Client) WorkflowPerformance(ctx context.Context) (*models.PerformanceReport, error) {
	var report models.PerformanceReport
	if err := c.do(ctx, http.MethodGet, "/api/workflows/performance", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) Triggers(ctx context.Context) ([]models.TriggerStatus, error) {
	var triggers []models.TriggerStatus
	if err := c.do(ctx, http.MethodGet, "/api/triggers", nil, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}

func (c *Client) Version(ctx context.Context) (map[string]string, error) {
	var version map[string]string
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return nil, err
	}
	return version, nil
}

// do sends one request. GETs are retried on connection errors and 5xx; POSTs are sent once.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 300 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
			if resp.StatusCode >= 500 {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out == nil || len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	retries := c.maxRetries
	if method != http.MethodGet {
		retries = 0
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, retries), ctx))
}

func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}
