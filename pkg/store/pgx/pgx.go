package pgx

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocStorage implements store.Storage over PostgreSQL with pgvector.
type DocStorage struct {
	conn *pgxpool.Pool
}

// NewDocStorage wraps an existing pool. The pool must have pgvector types
// registered (see internal/db.Connect).
func NewDocStorage(conn *pgxpool.Pool) *DocStorage {
	return &DocStorage{conn: conn}
}
