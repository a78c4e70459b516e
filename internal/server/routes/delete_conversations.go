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

func DeleteConversationHandler(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid conversation id"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if err := app.Store.DeleteConversation(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Conversation not found"})
		}
		logger.Error("Failed to delete conversation", "conversation_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "deleted", "id": id.String()})
}
