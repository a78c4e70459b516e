package pgx

import (
	"context"
	"errors"

	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, collection_id, COALESCE(user_id, ''), COALESCE(title, ''), created_at, updated_at`

func scanConversation(row pgx.Row) (common.Conversation, error) {
	var c common.Conversation
	err := row.Scan(&c.ID, &c.CollectionID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.Conversation{}, store.ErrNotFound
	}
	if err != nil {
		return common.Conversation{}, err
	}
	return c, nil
}

func (s *DocStorage) CreateConversation(
	ctx context.Context,
	collectionID int64,
	title string,
) (common.Conversation, error) {
	row := s.conn.QueryRow(ctx, `
		INSERT INTO conversations (collection_id, title)
		VALUES ($1, NULLIF($2, ''))
		RETURNING `+conversationColumns+`
	`, collectionID, title)
	return scanConversation(row)
}

func (s *DocStorage) ListConversations(
	ctx context.Context,
	collectionID *int64,
) ([]common.Conversation, error) {
	var rows pgx.Rows
	var err error
	if collectionID != nil {
		rows, err = s.conn.Query(ctx, `
			SELECT `+conversationColumns+`
			FROM conversations
			WHERE collection_id = $1
			ORDER BY updated_at DESC
		`, *collectionID)
	} else {
		rows, err = s.conn.Query(ctx, `
			SELECT `+conversationColumns+`
			FROM conversations
			ORDER BY updated_at DESC
		`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]common.Conversation, 0)
	for rows.Next() {
		var c common.Conversation
		if err := rows.Scan(&c.ID, &c.CollectionID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (s *DocStorage) GetConversation(ctx context.Context, id uuid.UUID) (common.Conversation, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE id = $1
	`, id)
	return scanConversation(row)
}

func (s *DocStorage) RenameConversation(
	ctx context.Context,
	id uuid.UUID,
	title string,
) (common.Conversation, error) {
	row := s.conn.QueryRow(ctx, `
		UPDATE conversations
		SET title = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING `+conversationColumns+`
	`, id, title)
	return scanConversation(row)
}

func (s *DocStorage) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
