package pgx

import (
	"context"

	"github.com/boxabirds/docqa/pkg/common"

	"github.com/jackc/pgx/v5"
)

func scanReports(rows pgx.Rows, k int) ([]common.CommunityReport, error) {
	reports := make([]common.CommunityReport, 0, k)
	for rows.Next() {
		var r common.CommunityReport
		if err := rows.Scan(&r.ID, &r.Community, &r.Level, &r.Title, &r.Summary, &r.FullContent, &r.Rank); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// CommunitiesFor resolves community membership for entities through the
// nodes table. Entities without a community assignment are absent from
// the returned map.
func (s *DocStorage) CommunitiesFor(
	ctx context.Context,
	collectionID int64,
	entityIDs []string,
) (map[string]int32, error) {
	if len(entityIDs) == 0 {
		return map[string]int32{}, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, community
		FROM nodes
		WHERE collection_id = $1
		  AND id = ANY($2)
		  AND community IS NOT NULL
	`, collectionID, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	communities := make(map[string]int32, len(entityIDs))
	for rows.Next() {
		var id string
		var community int32
		if err := rows.Scan(&id, &community); err != nil {
			return nil, err
		}
		communities[id] = community
	}
	return communities, rows.Err()
}

// ReportsFor returns the reports of the given communities, most important
// first.
func (s *DocStorage) ReportsFor(
	ctx context.Context,
	collectionID int64,
	communities []int32,
	k int,
) ([]common.CommunityReport, error) {
	if len(communities) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, community, level, title, summary, COALESCE(full_content, ''), rank
		FROM community_reports
		WHERE collection_id = $1
		  AND community = ANY($2)
		ORDER BY rank DESC, community
		LIMIT $3
	`, collectionID, communities, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows, k)
}

// TopReports returns the collection's globally top-ranked reports. Used as
// a fallback when none of the retrieved entities belongs to a community.
func (s *DocStorage) TopReports(
	ctx context.Context,
	collectionID int64,
	k int,
) ([]common.CommunityReport, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, community, level, title, summary, COALESCE(full_content, ''), rank
		FROM community_reports
		WHERE collection_id = $1
		ORDER BY rank DESC, community
		LIMIT $2
	`, collectionID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReports(rows, k)
}
