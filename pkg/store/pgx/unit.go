package pgx

import (
	"context"

	"github.com/boxabirds/docqa/pkg/common"

	"github.com/pgvector/pgvector-go"
)

// NearestTextUnits is the direct chunk recall channel: a cosine-distance
// nearest-neighbour query straight over text unit embeddings, independent
// of entity links.
func (s *DocStorage) NearestTextUnits(
	ctx context.Context,
	collectionID int64,
	qv []float32,
	k int,
) ([]common.ScoredTextUnit, error) {
	embed := pgvector.NewVector(qv)

	rows, err := s.conn.Query(ctx, `
		SELECT id, document_ids, text, n_tokens, page_start, page_end,
		       COALESCE(source_file, ''),
		       1 - (embedding <=> $2) AS similarity
		FROM text_units
		WHERE collection_id = $1
		  AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`, collectionID, embed, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := make([]common.ScoredTextUnit, 0, k)
	for rows.Next() {
		var u common.ScoredTextUnit
		if err := rows.Scan(&u.ID, &u.DocumentIDs, &u.Text, &u.NTokens, &u.PageStart, &u.PageEnd, &u.SourceFile, &u.Similarity); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// TextUnitsByIDs loads text units by id in the caller's order, including
// stored embeddings so the retriever can re-rank without re-embedding.
func (s *DocStorage) TextUnitsByIDs(
	ctx context.Context,
	collectionID int64,
	ids []string,
) ([]common.TextUnit, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT tu.id, tu.document_ids, tu.text, tu.n_tokens, tu.page_start, tu.page_end,
		       COALESCE(tu.source_file, ''), tu.embedding
		FROM text_units tu
		JOIN unnest($2::text[]) WITH ORDINALITY AS req(id, ord) ON req.id = tu.id
		WHERE tu.collection_id = $1
		ORDER BY req.ord
	`, collectionID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := make([]common.TextUnit, 0, len(ids))
	for rows.Next() {
		var u common.TextUnit
		var embedding *pgvector.Vector
		if err := rows.Scan(&u.ID, &u.DocumentIDs, &u.Text, &u.NTokens, &u.PageStart, &u.PageEnd, &u.SourceFile, &embedding); err != nil {
			return nil, err
		}
		if embedding != nil {
			u.Embedding = embedding.Slice()
		}
		units = append(units, u)
	}
	return units, rows.Err()
}
