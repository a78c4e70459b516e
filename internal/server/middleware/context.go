package middleware

import (
	"time"

	serverutil "github.com/boxabirds/docqa/internal/server/util"
	"github.com/boxabirds/docqa/pkg/query"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// App holds the process-wide dependencies handlers reach through the
// request context. Everything here is constructed once at startup.
type App struct {
	DBConn *pgxpool.Pool
	Store  store.Storage
	Query  *query.Client
	Aborts *serverutil.AbortRegistry
	S3     *s3.Client

	RequestDeadline time.Duration
}

// AppContext wraps the echo context with the application state.
type AppContext struct {
	echo.Context
	App *App
}

// AppContextMiddleware attaches the application state to every request.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
