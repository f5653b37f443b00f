package interfaces

import (
	"context"

	"github.com/ternarybob/doceo/internal/models"
)

// SearchBackend streams scored documents matching a search specification.
// This interface abstracts the search implementation, allowing different
// backends (local corpus index, remote search service) to be swapped
// without affecting the dataset pipeline.
type SearchBackend interface {
	// Stream runs the query and delivers results in batches of up to
	// batchSize on the returned channel. The query's filters, search kinds,
	// and weights are interpreted by the backend; top_k is enforced by the
	// caller. The batch channel is closed when the stream ends; the error
	// channel then yields the terminal error, or nil on clean completion.
	// Cancelling the context stops the stream.
	Stream(ctx context.Context, query *models.DatasetQuery, batchSize int) (<-chan []models.SearchResult, <-chan error)

	// Name identifies the backend implementation for logs and stats
	Name() string
}
