package routes

import (
	"context"
	"errors"
	"net/http"

	"github.com/boxabirds/docqa/internal/server/middleware"
	serverutil "github.com/boxabirds/docqa/internal/server/util"
	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/query"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ChatHandler answers POST /api/chat as a server-sent event stream:
// exactly one "info" with the ranked sources, zero or more "chat" deltas
// sharing one message_id, then "done" or "error". Request problems are
// plain HTTP errors; once the stream has started, failures become in-band
// error events.
func ChatHandler(c echo.Context) error {
	type chatParams struct {
		Message        string `json:"message" validate:"required"`
		CollectionID   int64  `json:"collection_id" validate:"required"`
		ConversationID string `json:"conversation_id"`
	}

	type infoPayload struct {
		Sources []common.Source `json:"sources"`
	}
	type chatPayload struct {
		Content   string `json:"content"`
		MessageID string `json:"message_id"`
	}
	type donePayload struct {
		MessageID  string `json:"message_id"`
		TokensUsed int    `json:"tokens_used,omitempty"`
	}
	type errorPayload struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}

	params := new(chatParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params", "kind": string(query.KindInvalidRequest)})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params", "kind": string(query.KindInvalidRequest)})
	}

	app := c.(*middleware.AppContext).App

	if _, err := app.Store.GetCollection(c.Request().Context(), params.CollectionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Collection not found", "kind": string(query.KindNotFound)})
		}
		logger.Error("Failed to get collection", "collection_id", params.CollectionID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	var conversationID *uuid.UUID
	if params.ConversationID != "" {
		id, err := uuid.Parse(params.ConversationID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid conversation id", "kind": string(query.KindInvalidRequest)})
		}
		if _, err := app.Store.GetConversation(c.Request().Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.JSON(http.StatusNotFound, map[string]string{"message": "Conversation not found", "kind": string(query.KindNotFound)})
			}
			logger.Error("Failed to get conversation", "conversation_id", id, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}
		conversationID = &id
	}

	// The request scope: client disconnect, the abort endpoint and the
	// deadline all cancel it, and every downstream call binds to it.
	ctx, cancel := context.WithTimeout(c.Request().Context(), app.RequestDeadline)
	defer cancel()

	release := app.Aborts.Register(serverutil.AbortKey(c), cancel)
	defer release()

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	resp.Flush()

	events := app.Query.AnswerStream(ctx, query.Request{
		CollectionID:   params.CollectionID,
		ConversationID: conversationID,
		Message:        params.Message,
	})

	for ev := range events {
		var err error
		switch ev.Type {
		case "info":
			err = serverutil.WriteSSEEvent(c, "info", infoPayload{Sources: ev.Sources})
		case "chat":
			err = serverutil.WriteSSEEvent(c, "chat", chatPayload{Content: ev.Content, MessageID: ev.MessageID})
			if err == nil && ev.Ack != nil {
				ev.Ack()
			}
		case "done":
			err = serverutil.WriteSSEEvent(c, "done", donePayload{MessageID: ev.MessageID, TokensUsed: ev.TokensUsed})
		case "error":
			err = serverutil.WriteSSEEvent(c, "error", errorPayload{Error: ev.Message, Kind: string(ev.Kind)})
		}

		if err != nil {
			// Client is gone; cancel the scope so retrieval and the
			// backend stream stop promptly.
			cancel()
			break
		}
	}

	return nil
}
