package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/boxabirds/docqa/internal/util"
	"github.com/boxabirds/docqa/pkg/ai"
	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/retriever"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/google/uuid"
)

const (
	// Unacked delta bytes a slow consumer may accumulate before the
	// request is aborted with kind client_slow.
	maxPendingBytes = 64 * 1024

	// Conversation turns carried into the model context.
	historyLimit = 10

	maxAnswerTokens = 1000

	persistTimeout = 10 * time.Second
)

// Client drives one chat answer end to end: retrieve, stream the model
// response, persist the exchange. It is safe for concurrent use; all
// per-request state lives in AnswerStream.
type Client struct {
	store            store.Storage
	aiClient         ai.ChatAIClient
	retriever        *retriever.Retriever
	promptCharBudget int
}

// NewClient wires an orchestrator over the storage gateway, the AI client
// and a configured retriever.
func NewClient(storage store.Storage, aiClient ai.ChatAIClient, r *retriever.Retriever, promptCharBudget int) *Client {
	return &Client{
		store:            storage,
		aiClient:         aiClient,
		retriever:        r,
		promptCharBudget: promptCharBudget,
	}
}

// AnswerStream answers one request as an ordered event stream. The caller
// ranges over the returned channel and must call Ack on chat events after
// writing them out; the channel closes after the terminal event, or
// without one when ctx is cancelled. Cancellation never persists messages.
func (c *Client) AnswerStream(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, 64)

	go func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		defer close(out)

		history := c.loadHistory(ctx, req)

		rc, err := c.retriever.Retrieve(ctx, req.CollectionID, req.Message)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			kind := KindEmbeddingUnavailable
			if errors.Is(err, retriever.ErrRetrievalUnavailable) {
				kind = KindRetrievalUnavailable
			}
			logger.Error("Retrieval failed", "collection_id", req.CollectionID, "kind", kind, "err", err)
			c.send(ctx, out, Event{Type: "error", Kind: kind, Message: kind.UserMessage()})
			return
		}

		sources := retriever.BuildSources(rc)
		if !c.send(ctx, out, Event{Type: "info", Sources: sources}) {
			return
		}

		messageID := uuid.New()
		messages := append(history, ai.ChatMessage{
			Role:    "user",
			Message: buildUserTurn(rc, req.Message, c.promptCharBudget),
		})

		stream, err := c.aiClient.GenerateChatStream(ctx, messages,
			ai.WithSystemPrompts(ai.AnswerPrompt),
			ai.WithMaxTokens(maxAnswerTokens),
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to open chat stream", "err", err)
			c.send(ctx, out, Event{Type: "error", Kind: KindGenerationUnavailable, Message: KindGenerationUnavailable.UserMessage()})
			return
		}

		var answer strings.Builder
		var pending atomic.Int64
		contentSeen := false
		finished := false
		tokensUsed := 0

		for ev := range stream {
			switch ev.Type {
			case "content":
				if pending.Load() > maxPendingBytes {
					// Local backpressure: silent close, no event.
					logger.Warn("Client too slow, aborting stream", "kind", KindClientSlow, "pending_bytes", pending.Load())
					return
				}

				answer.WriteString(ev.Content)
				n := int64(len(ev.Content))
				pending.Add(n)
				sent := c.send(ctx, out, Event{
					Type:      "chat",
					Content:   ev.Content,
					MessageID: messageID.String(),
					Ack:       func() { pending.Add(-n) },
				})
				if !sent {
					return
				}
				contentSeen = true

			case "error":
				kind := KindGenerationUnavailable
				if contentSeen {
					kind = KindGenerationInterrupted
				}
				logger.Error("Chat stream failed", "kind", kind, "err", ev.Err)
				c.send(ctx, out, Event{Type: "error", Kind: kind, Message: kind.UserMessage()})
				return

			case "done":
				finished = true
				tokensUsed = ev.TokensUsed
			}
		}

		if !finished || ctx.Err() != nil {
			// Stream ended without a terminal event: the scope was
			// cancelled. Nothing is persisted.
			return
		}

		c.persist(ctx, req, messageID, answer.String(), sources)

		c.send(ctx, out, Event{Type: "done", MessageID: messageID.String(), TokensUsed: tokensUsed})
	}()

	return out
}

func (c *Client) send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// loadHistory returns the conversation's recent turns as chat messages.
// History failures degrade to an empty history rather than failing the
// request.
func (c *Client) loadHistory(ctx context.Context, req Request) []ai.ChatMessage {
	if req.ConversationID == nil {
		return nil
	}

	msgs, err := c.store.MessagesFor(ctx, *req.ConversationID, historyLimit)
	if err != nil {
		logger.Error("Failed to load conversation history", "conversation_id", *req.ConversationID, "err", err)
		return nil
	}

	history := make([]ai.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		history = append(history, ai.ChatMessage{Role: m.Role, Message: m.Content})
	}
	return history
}

// buildUserTurn fuses the formatted context with the question. An empty
// collection still produces a well-formed turn so the model can say it
// lacks context instead of the request failing.
func buildUserTurn(rc *common.RetrievedContext, question string, charBudget int) string {
	promptContext := retriever.BuildPromptContext(rc, charBudget)
	if strings.TrimSpace(promptContext) == "" {
		promptContext = "(no relevant context found)"
	}
	return fmt.Sprintf("CONTEXT:\n%s\n\n---\nQUESTION: %s", promptContext, question)
}

// persist saves the user turn and the assistant answer (with citation
// JSON) after streaming completes. A cancelled scope never persists;
// persistence failures are logged, the delivered answer stands.
func (c *Client) persist(
	ctx context.Context,
	req Request,
	messageID uuid.UUID,
	answer string,
	sources []common.Source,
) {
	if req.ConversationID == nil || answer == "" {
		return
	}
	if ctx.Err() != nil {
		return
	}

	pCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		logger.Error("Failed to encode sources", "err", err)
		sourcesJSON = nil
	}

	err = util.RetryErrWithContext(pCtx, 2, func(ctx context.Context) error {
		_, err := c.store.SaveMessage(ctx, store.SaveMessageParams{
			ID:             uuid.New(),
			ConversationID: *req.ConversationID,
			Role:           "user",
			Content:        util.SanitizePostgresText(req.Message),
		})
		return err
	})
	if err != nil {
		logger.Error("Failed to save user message", "conversation_id", *req.ConversationID, "err", err)
		return
	}

	err = util.RetryErrWithContext(pCtx, 2, func(ctx context.Context) error {
		_, err := c.store.SaveMessage(ctx, store.SaveMessageParams{
			ID:             messageID,
			ConversationID: *req.ConversationID,
			Role:           "assistant",
			Content:        util.SanitizePostgresText(answer),
			Sources:        sourcesJSON,
		})
		return err
	})
	if err != nil {
		logger.Error("Failed to save assistant message", "conversation_id", *req.ConversationID, "err", err)
	}
}
