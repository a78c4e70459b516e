package routes

import (
	"net/http"

	"github.com/boxabirds/docqa/internal/server/middleware"
	"github.com/boxabirds/docqa/pkg/logger"

	"github.com/labstack/echo/v4"
)

func GetCollectionsHandler(c echo.Context) error {
	type responseData struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Type      string `json:"type"`
		FileCount int64  `json:"file_count"`
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	collections, err := app.Store.ListCollections(ctx)
	if err != nil {
		logger.Error("Failed to list collections", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}

	resp := make([]responseData, 0, len(collections))
	for _, collection := range collections {
		resp = append(resp, responseData{
			ID:        collection.ID,
			Name:      collection.Name,
			Type:      "graphrag",
			FileCount: collection.FileCount,
		})
	}

	return c.JSON(http.StatusOK, resp)
}
