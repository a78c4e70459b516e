package routes

import (
	"net/http"

	"github.com/boxabirds/docqa/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

func GetHealthHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	if err := app.DBConn.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
