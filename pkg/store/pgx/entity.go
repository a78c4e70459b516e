package pgx

import (
	"context"

	"github.com/boxabirds/docqa/pkg/common"

	"github.com/pgvector/pgvector-go"
)

// NearestEntities runs a cosine-distance nearest-neighbour query over
// entity description embeddings. Similarity is 1 - cosine distance; rows
// with null embeddings never match.
func (s *DocStorage) NearestEntities(
	ctx context.Context,
	collectionID int64,
	qv []float32,
	k int,
) ([]common.ScoredEntity, error) {
	embed := pgvector.NewVector(qv)

	rows, err := s.conn.Query(ctx, `
		SELECT id, name, type, description, text_unit_ids,
		       1 - (embedding <=> $2) AS similarity
		FROM entities
		WHERE collection_id = $1
		  AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, collectionID, embed, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]common.ScoredEntity, 0, k)
	for rows.Next() {
		var e common.ScoredEntity
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &e.Description, &e.TextUnitIDs, &e.Similarity); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}
