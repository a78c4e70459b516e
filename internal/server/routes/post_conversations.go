package routes

import (
	"errors"
	"net/http"

	"github.com/boxabirds/docqa/internal/server/middleware"
	serverutil "github.com/boxabirds/docqa/internal/server/util"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/labstack/echo/v4"
)

func CreateConversationHandler(c echo.Context) error {
	type createConversationParams struct {
		CollectionID int64  `json:"collection_id" validate:"required"`
		Title        string `json:"title"`
	}

	params := new(createConversationParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}
	if err := c.Validate(params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid request params"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	if _, err := app.Store.GetCollection(ctx, params.CollectionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Collection not found"})
		}
		logger.Error("Failed to get collection", "collection_id", params.CollectionID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	title := serverutil.BuildConversationTitle(params.Title)
	conversation, err := app.Store.CreateConversation(ctx, params.CollectionID, title)
	if err != nil {
		logger.Error("Failed to create conversation", "collection_id", params.CollectionID, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	return c.JSON(http.StatusOK, toConversationResponse(conversation))
}
