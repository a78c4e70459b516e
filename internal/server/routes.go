package server

import (
	"github.com/boxabirds/docqa/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	apiRoutes := e.Group("/api")

	apiRoutes.GET("/health", routes.GetHealthHandler)
	apiRoutes.GET("/collections", routes.GetCollectionsHandler)

	// Conversation routes
	apiRoutes.GET("/conversations", routes.GetConversationsHandler)
	apiRoutes.POST("/conversations", routes.CreateConversationHandler)
	apiRoutes.GET("/conversations/:id", routes.GetConversationHandler)
	apiRoutes.PATCH("/conversations/:id", routes.EditConversationHandler)
	apiRoutes.DELETE("/conversations/:id", routes.DeleteConversationHandler)

	// Chat routes
	apiRoutes.POST("/chat", routes.ChatHandler)
	apiRoutes.DELETE("/chat/abort", routes.AbortChatHandler)

	// Document routes
	apiRoutes.GET("/documents/:id/pdf", routes.GetDocumentPDFHandler)
}
