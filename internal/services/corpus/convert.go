package corpus

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"

	"github.com/ternarybob/doceo/internal/models"
)

// Source types recorded on ingested documents
const (
	SourceTypeMarkdown = "markdown"
	SourceTypeText     = "text"
	SourceTypeHTML     = "html"
	SourceTypeJSON     = "json"
	SourceTypePDF      = "pdf"
)

// detectSourceType classifies content by sniffing bytes, falling back to
// the file extension for formats the sniffer cannot separate (markdown
// detects as plain text).
func detectSourceType(filename string, data []byte) (string, error) {
	mime := mimetype.Detect(data)

	switch {
	case mime.Is("application/pdf"):
		return SourceTypePDF, nil
	case mime.Is("text/html"):
		return SourceTypeHTML, nil
	case mime.Is("application/json"):
		return SourceTypeJSON, nil
	}

	if strings.HasPrefix(mime.String(), "text/") {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".md", ".markdown":
			return SourceTypeMarkdown, nil
		case ".html", ".htm":
			return SourceTypeHTML, nil
		case ".json":
			return SourceTypeJSON, nil
		}
		return SourceTypeText, nil
	}

	return "", fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, mime.String())
}

// htmlTitle pulls the document title out of HTML, preferring the title
// element over the first h1
func htmlTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// markdownTitle returns the first H1 heading, or the source filename
// without its extension when the content has no heading
func markdownTitle(content, source string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// stripHTMLTags removes markup for cases where conversion fails
func stripHTMLTags(html string) string {
	stripped := tagPattern.ReplaceAllString(html, " ")
	stripped = spacePattern.ReplaceAllString(stripped, " ")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(stripped))
}
