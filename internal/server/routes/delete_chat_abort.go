package routes

import (
	"net/http"

	"github.com/boxabirds/docqa/internal/server/middleware"
	serverutil "github.com/boxabirds/docqa/internal/server/util"
	"github.com/boxabirds/docqa/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AbortChatHandler cancels the caller's current chat stream. The caller
// is identified the same way the chat endpoint identified it, so one
// client can never abort another client's stream.
func AbortChatHandler(c echo.Context) error {
	app := c.(*middleware.AppContext).App

	key := serverutil.AbortKey(c)
	if app.Aborts.Abort(key) {
		logger.Debug("Aborted chat stream", "key", key)
	}

	return c.NoContent(http.StatusNoContent)
}
