package common

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// TokenCounter provides thread-safe token counting for training documents.
// Uses the cl100k_base encoding, which approximates the tokenizers of the
// model families the adapter pipeline targets.
type TokenCounter struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
	initErr  error
}

// NewTokenCounter creates a token counter. The encoding is loaded lazily on
// first use so construction never fails.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// DefaultTokenCounter is a global counter shared by the dataset pipeline.
var DefaultTokenCounter = NewTokenCounter()

// CountTokens returns the token count for text. Falls back to a rough
// estimate (~4 chars per token) when the encoding cannot be loaded.
func (c *TokenCounter) CountTokens(text string) int {
	c.once.Do(func() {
		c.encoding, c.initErr = tiktoken.GetEncoding("cl100k_base")
	})
	if c.initErr != nil || c.encoding == nil {
		return len(text) / 4
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// CountTokensDefault uses the shared counter to count tokens.
func CountTokensDefault(text string) int {
	return DefaultTokenCounter.CountTokens(text)
}
