package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boxabirds/docqa/internal/util"
	"github.com/boxabirds/docqa/pkg/ai"
	"github.com/boxabirds/docqa/pkg/logger"

	"github.com/openai/openai-go/v3"
)

// Embedding backends cap input length; anything longer is truncated before
// the request goes out.
const maxEmbedChars = 8000

// GenerateEmbedding creates a vector embedding for the given input text.
//
// Endpoints are tried in the configured order with one attempt each. A
// connection error or 5xx moves on to the next endpoint; a 4xx is fatal
// and not retried anywhere. When every endpoint fails transiently the
// returned error wraps ai.ErrEmbeddingUnavailable.
//
// The result always has exactly the configured dimension; any other
// response size wraps ai.ErrDimensionMismatch.
func (c *ChatOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	text := strings.TrimSpace(string(input))
	if text == "" {
		return make([]float32, c.embedDim), nil
	}
	text = util.TruncateRunes(text, maxEmbedChars)

	if err := c.embeddingLock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.embeddingLock.Release(1)

	var lastErr error
	for i, client := range c.embeddingClients {
		vec, err := c.embedOnce(ctx, client, text)
		if err == nil {
			if len(vec) != c.embedDim {
				return nil, fmt.Errorf("%w: got %d want %d", ai.ErrDimensionMismatch, len(vec), c.embedDim)
			}
			return vec, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isFatal(err) {
			return nil, err
		}

		logger.Warn("Embedding endpoint failed, trying next", "endpoint", i, "err", err)
		lastErr = err
	}

	if lastErr == nil {
		return nil, ai.ErrEmbeddingUnavailable
	}
	return nil, fmt.Errorf("%w: %v", ai.ErrEmbeddingUnavailable, lastErr)
}

func (c *ChatOpenAIClient) embedOnce(
	ctx context.Context,
	client *openai.Client,
	text string,
) ([]float32, error) {
	rCtx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: c.embeddingModel,
	}

	response, err := client.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, err
	}

	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}

	vec := make([]float32, 0, len(response.Data[0].Embedding))
	for _, v := range response.Data[0].Embedding {
		vec = append(vec, float32(v))
	}
	return vec, nil
}

// isFatal reports whether err is a client-side API error (4xx) that must
// not be retried on another endpoint.
func isFatal(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode >= 400 && apierr.StatusCode < 500
	}
	return false
}
