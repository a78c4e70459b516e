package retriever

import (
	"sync"

	"github.com/boxabirds/docqa/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateTokens counts tokens for legacy rows whose stored n_tokens is
// zero. Uses cl100k_base; if the encoding cannot be loaded (offline BPE
// fetch), falls back to the chars/4 heuristic.
func estimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Warn("Failed to load token encoding, using char heuristic", "err", err)
			return
		}
		encoding = enc
	})

	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}
