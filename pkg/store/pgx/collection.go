package pgx

import (
	"context"
	"errors"

	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/jackc/pgx/v5"
)

func (s *DocStorage) ListCollections(ctx context.Context) ([]common.Collection, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT c.id, c.name, count(d.id), c.created_at, c.updated_at
		FROM collections c
		LEFT JOIN documents d ON d.collection_id = c.id
		GROUP BY c.id, c.name, c.created_at, c.updated_at
		ORDER BY c.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := make([]common.Collection, 0)
	for rows.Next() {
		var c common.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.FileCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func (s *DocStorage) GetCollection(ctx context.Context, id int64) (common.Collection, error) {
	var c common.Collection
	err := s.conn.QueryRow(ctx, `
		SELECT c.id, c.name, count(d.id), c.created_at, c.updated_at
		FROM collections c
		LEFT JOIN documents d ON d.collection_id = c.id
		WHERE c.id = $1
		GROUP BY c.id, c.name, c.created_at, c.updated_at
	`, id).Scan(&c.ID, &c.Name, &c.FileCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Collection{}, store.ErrNotFound
	}
	if err != nil {
		return common.Collection{}, err
	}
	return c, nil
}
