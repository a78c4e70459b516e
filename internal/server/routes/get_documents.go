package routes

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/boxabirds/docqa/internal/server/middleware"
	"github.com/boxabirds/docqa/internal/storage"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/labstack/echo/v4"
)

// GetDocumentPDFHandler streams the stored PDF of a document for inline
// viewing. Local paths are read from disk; s3:// paths stream through the
// object store.
func GetDocumentPDFHandler(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid document id"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	document, err := app.Store.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "PDF not found"})
		}
		logger.Error("Failed to get document", "document_id", id, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
	}
	if document.PDFPath == "" {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "PDF not found"})
	}

	filename := document.OriginalFilename
	if filename == "" {
		filename = filepath.Base(document.PDFPath)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`inline; filename=%q`, filename))

	if strings.HasPrefix(document.PDFPath, "s3://") {
		if app.S3 == nil {
			logger.Error("Document stored in S3 but no S3 client configured", "document_id", id)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Internal server error"})
		}

		body, err := storage.OpenS3Path(ctx, app.S3, document.PDFPath)
		if err != nil {
			logger.Error("Failed to open PDF from S3", "document_id", id, "path", document.PDFPath, "err", err)
			return c.JSON(http.StatusNotFound, map[string]string{"message": "PDF file missing from storage"})
		}
		defer body.Close()

		return c.Stream(http.StatusOK, "application/pdf", body)
	}

	file, err := os.Open(document.PDFPath)
	if err != nil {
		logger.Error("Failed to open PDF file", "document_id", id, "path", document.PDFPath, "err", err)
		return c.JSON(http.StatusNotFound, map[string]string{"message": "PDF file missing from storage"})
	}
	defer file.Close()

	return c.Stream(http.StatusOK, "application/pdf", file)
}
