package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/models"
)

// HTTPBackend pages results out of a remote search service.
// Transient failures (network errors, 429, 5xx) are retried with
// exponential backoff; client errors are permanent and fail the stream.
type HTTPBackend struct {
	logger     arbor.ILogger
	client     *http.Client
	baseURL    string
	maxRetries int
	maxElapsed time.Duration
}

// searchRequest is the wire request for one result page. The search
// specification is forwarded whole; the remote service owns the
// interpretation of filters, kinds, and weights.
type searchRequest struct {
	Query  *models.DatasetQuery `json:"query"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// searchResponse is the wire response for one result page
type searchResponse struct {
	Results []models.SearchResult `json:"results"`
	HasMore bool                  `json:"has_more"`
}

// NewHTTPBackend creates a search backend against a remote service
func NewHTTPBackend(logger arbor.ILogger, config *common.SearchConfig) *HTTPBackend {
	return &HTTPBackend{
		logger:     logger,
		client:     &http.Client{Timeout: config.RequestTimeoutDuration()},
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		maxRetries: config.MaxRetries,
		maxElapsed: config.MaxElapsedTimeDuration(),
	}
}

// Name identifies the backend implementation
func (b *HTTPBackend) Name() string {
	return "http"
}

// Stream pages the remote service until it reports no more results
func (b *HTTPBackend) Stream(ctx context.Context, query *models.DatasetQuery, batchSize int) (<-chan []models.SearchResult, <-chan error) {
	results := make(chan []models.SearchResult)
	errs := make(chan error, 1)

	if query == nil {
		query = &models.DatasetQuery{}
	}
	if batchSize <= 0 {
		batchSize = scanPageSize
	}

	go func() {
		defer close(results)

		offset := 0
		for {
			page, err := b.fetchPage(ctx, query, batchSize, offset)
			if err != nil {
				errs <- err
				return
			}

			if len(page.Results) > 0 {
				select {
				case results <- page.Results:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if !page.HasMore || len(page.Results) == 0 {
				break
			}
			offset += len(page.Results)
		}

		b.logger.Debug().
			Str("query", query.QueryText).
			Int("pages_to", offset).
			Msg("Remote search stream completed")
		errs <- nil
	}()

	return results, errs
}

// fetchPage requests one result page, retrying transient failures
func (b *HTTPBackend) fetchPage(ctx context.Context, query *models.DatasetQuery, limit, offset int) (*searchResponse, error) {
	body, err := json.Marshal(searchRequest{
		Query:  query,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	var page searchResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			// Retryable: let backoff handle it
			b.logger.Warn().
				Int("status", resp.StatusCode).
				Int("offset", offset).
				Msg("Search service rate limited")
			return fmt.Errorf("search status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client error: non-retryable
			return backoff.Permanent(fmt.Errorf("search status %d: %s", resp.StatusCode, bodySnippet(respBody)))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// 5xx and others: retryable
			return fmt.Errorf("search status %d", resp.StatusCode)
		}

		page = searchResponse{}
		if err := json.Unmarshal(respBody, &page); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode search response: %w", err))
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 100 * time.Millisecond
	expo.MaxElapsedTime = b.maxElapsed

	var policy backoff.BackOff = expo
	if b.maxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(b.maxRetries))
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	return &page, nil
}

func bodySnippet(body []byte) string {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}
	return snippet
}
