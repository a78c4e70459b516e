package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/boxabirds/docqa/internal/server/middleware"
	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type conversationResponse struct {
	ID           uuid.UUID         `json:"id"`
	CollectionID int64             `json:"collection_id"`
	Title        string            `json:"title"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Messages     []messageResponse `json:"messages,omitempty"`
}

type messageResponse struct {
	ID        uuid.UUID       `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   json.RawMessage `json:"sources,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func toConversationResponse(conversation common.Conversation) conversationResponse {
	resp := conversationResponse{
		ID:           conversation.ID,
		CollectionID: conversation.CollectionID,
		Title:        conversation.Title,
		CreatedAt:    conversation.CreatedAt,
		UpdatedAt:    conversation.UpdatedAt,
	}
	for _, m := range conversation.Messages {
		resp.Messages = append(resp.Messages, messageResponse{
			ID:        m.ID,
			Role:      m.Role,
			Content:   m.Content,
			Sources:   json.RawMessage(m.Sources),
			CreatedAt: m.CreatedAt,
		})
	}
	return resp
}

func GetConversationsHandler(c echo.Context) error {
	type getConversationsParams struct {
		CollectionID *int64 `query:"collection_id"`
	}

	params := new(getConversationsParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	conversations, err := app.Store.ListConversations(ctx, params.CollectionID)
	if err != nil {
		logger.Error("Failed to list conversations", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	resp := make([]conversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		resp = append(resp, toConversationResponse(conversation))
	}

	return c.JSON(http.StatusOK, resp)
}

func GetConversationHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid conversation id"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	conversation, err := app.Store.GetConversation(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Conversation not found"})
		}
		logger.Error("Failed to get conversation", "conversation_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	conversation.Messages, err = app.Store.MessagesFor(ctx, id, 0)
	if err != nil {
		logger.Error("Failed to load conversation messages", "conversation_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, toConversationResponse(conversation))
}
