package routes

import (
	"errors"
	"net/http"

	"github.com/boxabirds/docqa/internal/server/middleware"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func EditConversationHandler(c echo.Context) error {
	type editConversationParams struct {
		Title string `json:"title" validate:"required"`
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid conversation id"})
	}

	params := new(editConversationParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	conversation, err := app.Store.RenameConversation(ctx, id, params.Title)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Conversation not found"})
		}
		logger.Error("Failed to rename conversation", "conversation_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, toConversationResponse(conversation))
}
