package models

import (
	"fmt"
	"strings"
	"testing"
)

func TestScoreQuality(t *testing.T) {
	if score := ScoreQuality(""); score != 0 {
		t.Errorf("Empty content should score 0, got %f", score)
	}
	if score := ScoreQuality("   \n\t  "); score != 0 {
		t.Errorf("Whitespace content should score 0, got %f", score)
	}

	short := ScoreQuality("a quick note")
	if short <= 0 || short >= 0.5 {
		t.Errorf("Short fragment should score low, got %f", short)
	}

	var diverse strings.Builder
	for i := 0; i < 400; i++ {
		fmt.Fprintf(&diverse, "word%d ", i)
	}
	diverseScore := ScoreQuality(diverse.String())
	if diverseScore < 0.9 {
		t.Errorf("Long diverse content should score high, got %f", diverseScore)
	}

	repetitiveScore := ScoreQuality(strings.Repeat("data ", 400))
	if repetitiveScore >= diverseScore {
		t.Errorf("Repetitive content %f should score below diverse content %f", repetitiveScore, diverseScore)
	}

	for _, score := range []float64{short, diverseScore, repetitiveScore} {
		if score < 0 || score > 1.0 {
			t.Errorf("Score out of range: %f", score)
		}
	}
}

func TestDocumentClone(t *testing.T) {
	doc := &Document{
		ID:              "doc-1",
		Source:          "notes/go.md",
		Title:           "Go notes",
		ContentMarkdown: "# Go\ncontent",
		Metadata:        map[string]interface{}{"bytes": 1824},
	}

	clone := doc.Clone()
	clone.Title = "Changed"
	clone.Metadata["bytes"] = 9999

	if doc.Title != "Go notes" {
		t.Error("Clone mutation leaked into original title")
	}
	if doc.Metadata["bytes"] != 1824 {
		t.Error("Clone mutation leaked into original metadata")
	}
}

func TestSearchResultSource(t *testing.T) {
	withSource := &SearchResult{Metadata: map[string]interface{}{"source": "notes/go.md"}}
	if got := withSource.Source(); got != "notes/go.md" {
		t.Errorf("Expected source from metadata, got %q", got)
	}

	if got := (&SearchResult{}).Source(); got != "" {
		t.Errorf("Expected empty source without metadata, got %q", got)
	}
	badType := &SearchResult{Metadata: map[string]interface{}{"source": 42}}
	if got := badType.Source(); got != "" {
		t.Errorf("Expected empty source for non-string metadata, got %q", got)
	}
}
