package pgx

import (
	"context"
	"errors"

	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/jackc/pgx/v5"
)

func (s *DocStorage) GetDocument(ctx context.Context, id string) (common.Document, error) {
	var d common.Document
	err := s.conn.QueryRow(ctx, `
		SELECT id, collection_id, COALESCE(title, ''), COALESCE(source_path, ''),
		       COALESCE(original_filename, ''), COALESCE(pdf_path, ''), COALESCE(raw_content, '')
		FROM documents
		WHERE id = $1
	`, id).Scan(&d.ID, &d.CollectionID, &d.Title, &d.SourcePath, &d.OriginalFilename, &d.PDFPath, &d.RawContent)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Document{}, store.ErrNotFound
	}
	if err != nil {
		return common.Document{}, err
	}
	return d, nil
}
