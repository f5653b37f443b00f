package search

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/interfaces"
)

// NewSearchBackend creates a search backend based on configuration
// Supported backends:
//   - "local": Scored scan over the corpus document store (default)
//   - "http": Remote search service client
func NewSearchBackend(
	documents interfaces.DocumentStore,
	logger arbor.ILogger,
	config *common.Config,
) (interfaces.SearchBackend, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Search.Backend))

	switch backend {
	case "local", "": // Default to local if empty
		logger.Info().
			Str("backend", "local").
			Msg("Initializing local search backend")
		return NewLocalBackend(documents, logger), nil

	case "http":
		if strings.TrimSpace(config.Search.BaseURL) == "" {
			return nil, fmt.Errorf("search backend 'http' requires search.base_url to be set")
		}
		logger.Info().
			Str("backend", "http").
			Str("base_url", config.Search.BaseURL).
			Msg("Initializing remote search backend")
		return NewHTTPBackend(logger, &config.Search), nil

	default:
		logger.Warn().
			Str("backend", backend).
			Str("fallback", "local").
			Msg("Unknown search backend, falling back to local")
		return NewLocalBackend(documents, logger), nil
	}
}
