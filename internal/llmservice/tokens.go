package llmservice

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

// TiktokenCounter counts tokens with the cl100k_base encoding. Llama models
// use a different vocabulary, so the count is an estimate.
func TiktokenCounter() (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", tokenEncoding, err)
	}
	return func(text string) (int, error) {
		return len(enc.Encode(text, nil, nil)), nil
	}, nil
}
