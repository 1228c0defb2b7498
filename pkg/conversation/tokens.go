package conversation

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a string costs.
type TokenCounter func(content string) int

// EstimateTokens is the default counter: a rune-count heuristic close
// enough for budget truncation without loading an encoding.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	n := utf8.RuneCountInString(content)/4 + 1
	return n
}

// TiktokenCounter returns a counter backed by the named BPE encoding
// (e.g. "cl100k_base") for callers that need budgets aligned with a
// real tokenizer.
func TiktokenCounter(encoding string) (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", encoding, err)
	}
	return func(content string) int {
		if content == "" {
			return 0
		}
		return len(enc.Encode(content, nil, nil))
	}, nil
}
