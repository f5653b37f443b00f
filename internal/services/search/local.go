package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/doceo/internal/interfaces"
	"github.com/ternarybob/doceo/internal/models"
)

// scanPageSize bounds how many documents one storage read pulls in.
// Decoupled from the caller's batch size so a large batch request does
// not turn into one giant store read.
const scanPageSize = 200

// LocalBackend scores corpus documents straight out of document storage.
// There is no inverted index; the corpus for a single adapter is small
// enough that a scored scan per dataset build is the simpler trade.
type LocalBackend struct {
	documents interfaces.DocumentStore
	logger    arbor.ILogger
}

// NewLocalBackend creates a search backend over the local corpus
func NewLocalBackend(documents interfaces.DocumentStore, logger arbor.ILogger) *LocalBackend {
	return &LocalBackend{
		documents: documents,
		logger:    logger,
	}
}

// Name identifies the backend implementation
func (b *LocalBackend) Name() string {
	return "local"
}

// Stream scores every corpus document against the query and delivers
// matches in batches. An empty query text matches the whole corpus.
func (b *LocalBackend) Stream(ctx context.Context, query *models.DatasetQuery, batchSize int) (<-chan []models.SearchResult, <-chan error) {
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

		terms := queryTerms(query.QueryText)
		kinds := kindSet(query.SearchKinds)
		matched := 0
		batch := make([]models.SearchResult, 0, batchSize)

		for offset := 0; ; offset += scanPageSize {
			docs, err := b.documents.ListDocuments(ctx, &interfaces.ListOptions{
				Limit:  scanPageSize,
				Offset: offset,
			})
			if err != nil {
				errs <- err
				return
			}
			if len(docs) == 0 {
				break
			}

			for _, doc := range docs {
				if kinds != nil {
					if _, ok := kinds[doc.SourceType]; !ok {
						continue
					}
				}
				if !matchesFilters(doc, query.Filters) {
					continue
				}

				score := scoreDocument(doc, terms)
				if weight, ok := query.Weights[doc.SourceType]; ok {
					score *= weight
					if score > 1.0 {
						score = 1.0
					}
				}
				if score <= 0 {
					continue
				}
				matched++
				batch = append(batch, toSearchResult(doc, score))

				if len(batch) >= batchSize {
					select {
					case results <- batch:
					case <-ctx.Done():
						errs <- ctx.Err()
						return
					}
					batch = make([]models.SearchResult, 0, batchSize)
				}
			}

			if len(docs) < scanPageSize {
				break
			}
		}

		if len(batch) > 0 {
			select {
			case results <- batch:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}

		b.logger.Debug().
			Str("query", query.QueryText).
			Int("matched", matched).
			Msg("Local search stream completed")
		errs <- nil
	}()

	return results, errs
}

// kindSet builds a lookup set from the query's search kinds.
// Returns nil when no kind restriction applies.
func kindSet(kinds []string) map[string]struct{} {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(kinds))
	for _, kind := range kinds {
		set[strings.ToLower(strings.TrimSpace(kind))] = struct{}{}
	}
	return set
}

// matchesFilters checks the query's metadata filters against the fields a
// corpus document exposes to search results. A filter on a field the
// document does not carry excludes it.
func matchesFilters(doc *models.Document, filters map[string]interface{}) bool {
	for key, want := range filters {
		var have string
		switch key {
		case "source":
			have = doc.Source
		case "source_type":
			have = doc.SourceType
		case "title":
			have = doc.Title
		default:
			return false
		}
		if fmt.Sprint(want) != have {
			return false
		}
	}
	return true
}

// queryTerms lowercases and de-duplicates the query's terms
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		terms = append(terms, field)
	}
	sort.Strings(terms)
	return terms
}

// scoreDocument computes term-overlap relevance in 0-1.
// Title hits nudge the score above plain content hits.
func scoreDocument(doc *models.Document, terms []string) float64 {
	if len(terms) == 0 {
		return 1.0
	}

	title := strings.ToLower(doc.Title)
	content := strings.ToLower(doc.ContentMarkdown)

	matched := 0
	titleHits := 0
	for _, term := range terms {
		inTitle := strings.Contains(title, term)
		if inTitle {
			titleHits++
		}
		if inTitle || strings.Contains(content, term) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}

	score := float64(matched) / float64(len(terms))
	score += 0.1 * float64(titleHits) / float64(len(terms))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func toSearchResult(doc *models.Document, score float64) models.SearchResult {
	return models.SearchResult{
		DocumentID: doc.ID,
		Content:    doc.ContentMarkdown,
		Metadata: map[string]interface{}{
			"source":      doc.Source,
			"source_type": doc.SourceType,
			"title":       doc.Title,
		},
		Score:        score,
		QualityScore: models.ScoreQuality(doc.ContentMarkdown),
		TokenCount:   doc.TokenCount,
	}
}
