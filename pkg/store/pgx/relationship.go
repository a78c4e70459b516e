package pgx

import (
	"context"

	"github.com/boxabirds/docqa/pkg/common"
)

// RelationshipsFor returns relationships touching any of the given entity
// names as source or target. Endpoints are names, not ids; matching is
// case-sensitive against the indexer's entity name set.
func (s *DocStorage) RelationshipsFor(
	ctx context.Context,
	collectionID int64,
	names []string,
	limit int,
) ([]common.Relationship, error) {
	if len(names) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, source, target, description, weight
		FROM relationships
		WHERE collection_id = $1
		  AND (source = ANY($2) OR target = ANY($2))
		ORDER BY weight DESC, id
		LIMIT $3
	`, collectionID, names, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	relationships := make([]common.Relationship, 0, limit)
	for rows.Next() {
		var r common.Relationship
		if err := rows.Scan(&r.ID, &r.Source, &r.Target, &r.Description, &r.Weight); err != nil {
			return nil, err
		}
		relationships = append(relationships, r)
	}
	return relationships, rows.Err()
}
