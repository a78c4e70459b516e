package pgx

import (
	"context"

	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/google/uuid"
)

func (s *DocStorage) MessagesFor(
	ctx context.Context,
	conversationID uuid.UUID,
	limit int,
) ([]common.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, sources, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		// Keep the most recent rows but return them oldest-first.
		query = `
			SELECT id, conversation_id, role, content, sources, created_at
			FROM (
				SELECT id, conversation_id, role, content, sources, created_at
				FROM messages
				WHERE conversation_id = $1
				ORDER BY created_at DESC
				LIMIT $2
			) recent
			ORDER BY created_at ASC
		`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]common.Message, 0)
	for rows.Next() {
		var m common.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SaveMessage persists one message and touches the parent conversation's
// updated_at. Both writes happen in one transaction; the conversation
// UPDATE also serializes concurrent writers on the same conversation row.
func (s *DocStorage) SaveMessage(
	ctx context.Context,
	params store.SaveMessageParams,
) (common.Message, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return common.Message{}, err
	}
	defer tx.Rollback(ctx)

	var m common.Message
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, sources)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, conversation_id, role, content, sources, created_at
	`, params.ID, params.ConversationID, params.Role, params.Content, params.Sources).
		Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Sources, &m.CreatedAt)
	if err != nil {
		return common.Message{}, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1
	`, params.ConversationID)
	if err != nil {
		return common.Message{}, err
	}
	if tag.RowsAffected() == 0 {
		return common.Message{}, store.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return common.Message{}, err
	}
	return m, nil
}
