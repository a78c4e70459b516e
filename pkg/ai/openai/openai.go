package openai

import (
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultEmbedTimeout = 15 * time.Second

// ChatOpenAIClient talks to OpenAI-compatible services for embeddings and
// chat completions. Embedding endpoints form an ordered fallback chain:
// each call tries them in order and the first success wins.
//
// A ChatOpenAIClient should be created using NewChatOpenAIClient.
type ChatOpenAIClient struct {
	embeddingModel string
	chatModel      string

	embedDim     int
	embedTimeout time.Duration

	embeddingClients []*openai.Client
	chatClient       *openai.Client

	embeddingLock *semaphore.Weighted
}

// NewChatOpenAIClientParams defines the configuration parameters for
// creating a new ChatOpenAIClient.
//
// EmbeddingURLs is the ordered endpoint list (primary first). EmbedDim is
// the deployment-fixed vector dimension; responses of any other size are
// rejected. EmbedTimeout bounds each single endpoint attempt and defaults
// to 15 seconds. MaxConcurrentEmbeds bounds in-flight embedding requests
// and defaults to 4.
type NewChatOpenAIClientParams struct {
	EmbeddingModel string
	ChatModel      string

	EmbeddingURLs []string
	EmbeddingKey  string
	ChatURL       string
	ChatKey       string

	EmbedDim            int
	EmbedTimeout        time.Duration
	MaxConcurrentEmbeds int
}

// NewChatOpenAIClient creates and returns a new ChatOpenAIClient configured
// with the provided parameters. It initializes one OpenAI client per
// embedding endpoint plus one for chat completions.
func NewChatOpenAIClient(params NewChatOpenAIClientParams) *ChatOpenAIClient {
	embedClients := make([]*openai.Client, 0, len(params.EmbeddingURLs))
	for _, url := range params.EmbeddingURLs {
		embedClients = append(embedClients, newOpenaiClient(url, params.EmbeddingKey))
	}

	timeout := params.EmbedTimeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}

	maxEmbeds := int64(params.MaxConcurrentEmbeds)
	if maxEmbeds <= 0 {
		maxEmbeds = 4
	}

	return &ChatOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		chatModel:      params.ChatModel,

		embedDim:     params.EmbedDim,
		embedTimeout: timeout,

		embeddingClients: embedClients,
		chatClient:       newOpenaiClient(params.ChatURL, params.ChatKey),

		embeddingLock: semaphore.NewWeighted(maxEmbeds),
	}
}

func newOpenaiClient(
	baseURL string,
	apiKey string,
) *openai.Client {
	// Self-hosted OpenAI-compatible servers (vLLM, llama.cpp) ignore the
	// key but the SDK requires one.
	if apiKey == "" {
		apiKey = "not-needed"
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}
