// Package tokens estimates token usage for providers that do not report it.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with a tiktoken encoding.
type Counter struct {
	encoding tokenizer.Encoding

	once  sync.Once
	codec tokenizer.Codec
	err   error
}

// NewCounter creates a counter for the given encoding.
func NewCounter(encoding tokenizer.Encoding) *Counter {
	return &Counter{encoding: encoding}
}

// ForModel picks the encoding used by a model family. Non-OpenAI models get
// cl100k_base as an approximation.
func ForModel(model string) *Counter {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return o200k
	default:
		return cl100k
	}
}

var (
	cl100k = NewCounter(tokenizer.Cl100kBase)
	o200k  = NewCounter(tokenizer.O200kBase)
)

// Count returns the number of tokens in text. When the encoding cannot be
// loaded it falls back to one token per four bytes.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		c.codec, c.err = tokenizer.Get(c.encoding)
	})
	if c.err != nil {
		return approximate(text)
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return approximate(text)
	}
	return len(ids)
}

// Count estimates tokens in text with cl100k_base.
func Count(text string) int {
	return cl100k.Count(text)
}

func approximate(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
