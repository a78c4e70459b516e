package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boxabirds/docqa/internal/db"
	mid "github.com/boxabirds/docqa/internal/server/middleware"
	serverutil "github.com/boxabirds/docqa/internal/server/util"
	"github.com/boxabirds/docqa/internal/storage"
	"github.com/boxabirds/docqa/internal/util"
	aiopenai "github.com/boxabirds/docqa/pkg/ai/openai"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/query"
	"github.com/boxabirds/docqa/pkg/retriever"
	storepgx "github.com/boxabirds/docqa/pkg/store/pgx"

	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	conn, err := db.Connect(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	if path := util.GetEnvString("MIGRATIONS_PATH", "migrations"); path != "" {
		if err := db.Migrate(databaseURL, path); err != nil {
			logger.Fatal("Failed to run migrations", "err", err)
		}
	}

	embedEndpoints := util.GetEnvList("EMBED_ENDPOINTS")
	if len(embedEndpoints) == 0 {
		embedEndpoints = []string{"http://localhost:8001/v1"}
	}

	aiClient := aiopenai.NewChatOpenAIClient(aiopenai.NewChatOpenAIClientParams{
		EmbeddingModel: util.GetEnvString("EMBED_MODEL", "BAAI/bge-m3"),
		ChatModel:      util.GetEnvString("CHAT_MODEL", "Qwen/Qwen2.5-7B-Instruct"),
		EmbeddingURLs:  embedEndpoints,
		EmbeddingKey:   util.GetEnv("EMBED_API_KEY"),
		ChatURL:        util.GetEnvString("CHAT_ENDPOINT", "http://localhost:8000/v1"),
		ChatKey:        util.GetEnv("CHAT_API_KEY"),
		EmbedDim:       int(util.GetEnvNumeric("EMBED_DIM", 1024)),
	})

	store := storepgx.NewDocStorage(conn)
	cfg := retriever.ConfigFromEnv()
	retr := retriever.NewRetriever(store, aiClient, cfg)

	app := &mid.App{
		DBConn:          conn,
		Store:           store,
		Query:           query.NewClient(store, aiClient, retr, cfg.PromptCharBudget),
		Aborts:          serverutil.NewAbortRegistry(),
		S3:              storage.NewS3Client(ctx),
		RequestDeadline: time.Duration(util.GetEnvNumeric("REQUEST_DEADLINE_SECS", 120)) * time.Second,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
