package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/doceo/internal/models"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// Client is a typed client for the doceo REST API. Out-of-process tools
// (the MCP bridge, scripts) go through it instead of opening the badger
// directory the server already owns.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an API client for the given base URL. The token is sent
// as a bearer credential when non-empty.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    NewDefaultHTTPClient(timeout),
	}
}

// JobList is the response of GET /api/jobs
type JobList struct {
	Jobs   []*models.TrainingJob `json:"jobs"`
	Count  int                   `json:"count"`
	Totals map[string]int        `json:"totals"`
}

// DatasetList is the response of GET /api/datasets
type DatasetList struct {
	Datasets []*models.DatasetRecord `json:"datasets"`
	Count    int                     `json:"count"`
}

// CancelResult is the response of POST /api/jobs/{id}/cancel
type CancelResult struct {
	Cancelled    bool   `json:"cancelled"`
	CurrentState string `json:"current_state"`
}

// SearchResponse is the response of GET /api/corpus/search
type SearchResponse struct {
	Query   string                `json:"query"`
	Results []models.SearchResult `json:"results"`
	Count   int                   `json:"count"`
	Backend string                `json:"backend"`
}

// apiError mirrors the error body the API writes
type apiError struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// SubmitJob submits a training job and returns its queued snapshot
func (c *Client) SubmitJob(ctx context.Context, submission *models.JobSubmission) (*models.TrainingJob, error) {
	var job models.TrainingJob
	if err := c.do(ctx, http.MethodPost, "/api/jobs", nil, submission, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches one job by ID
func (c *Client) GetJob(ctx context.Context, id string) (*models.TrainingJob, error) {
	var job models.TrainingJob
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs lists jobs, optionally filtered by state
func (c *Client) ListJobs(ctx context.Context, state string, limit int) (*JobList, error) {
	query := url.Values{}
	if state != "" {
		query.Set("state", state)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var list JobList
	if err := c.do(ctx, http.MethodGet, "/api/jobs", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CancelJob requests cancellation of a job
func (c *Client) CancelJob(ctx context.Context, id string) (*CancelResult, error) {
	var result CancelResult
	path := "/api/jobs/" + url.PathEscape(id) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateDataset starts a dataset build and returns its pending record
func (c *Client) CreateDataset(ctx context.Context, req *models.DatasetRequest) (*models.DatasetRecord, error) {
	var record models.DatasetRecord
	if err := c.do(ctx, http.MethodPost, "/api/datasets", nil, req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListDatasets lists dataset records, optionally filtered by state
func (c *Client) ListDatasets(ctx context.Context, state string, limit int) (*DatasetList, error) {
	query := url.Values{}
	if state != "" {
		query.Set("state", state)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var list DatasetList
	if err := c.do(ctx, http.MethodGet, "/api/datasets", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// SearchCorpus runs a corpus search on the server
func (c *Client) SearchCorpus(ctx context.Context, searchQuery string, limit int) (*SearchResponse, error) {
	query := url.Values{}
	query.Set("q", searchQuery)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var response SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/corpus/search", query, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// do executes one API request and decodes the JSON response into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
