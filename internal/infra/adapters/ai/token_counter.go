package ai

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

const defaultEncoding = "cl100k_base"

// TokenCounter estimates prompt size before a remote call.
type TokenCounter struct {
	once   sync.Once
	enc    *tiktoken.Tiktoken
	logger *zerolog.Logger
}

func NewTokenCounter(logger *zerolog.Logger) *TokenCounter {
	return &TokenCounter{logger: logger}
}

// Count returns the cl100k_base token count of text. Without the encoding it
// falls back to a conservative byte/rune estimate.
func (c *TokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			c.logger.Warn().Err(err).Str("encoding", defaultEncoding).Msg("tiktoken unavailable; using byte estimate")
			return
		}
		c.enc = enc
	})
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	est := (len(text) + 3) / 4
	if r := utf8.RuneCountInString(text) / 2; r > est {
		est = r
	}
	return est
}
