package store

import (
	"context"
	"errors"

	"github.com/boxabirds/docqa/pkg/common"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")

// SaveMessageParams are the fields for persisting one chat message. ID is
// assigned by the caller so the streamed message_id and the stored row
// match. Sources is citation JSON, nil for user messages.
type SaveMessageParams struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Role           string
	Content        string
	Sources        []byte
}

// Storage is the typed read/write gateway over the relational + vector
// store. Graph rows (entities, text units, relationships, communities,
// reports) are written by the offline indexer and read-only here;
// conversations and messages are the only mutable state.
//
// Every operation takes a context and aborts in-flight database work when
// that context is cancelled.
type Storage interface {
	ListCollections(ctx context.Context) ([]common.Collection, error)
	GetCollection(ctx context.Context, id int64) (common.Collection, error)

	// NearestEntities returns the k entities whose description embeddings
	// are closest to qv by cosine distance, most similar first. Rows with
	// null embeddings are skipped.
	NearestEntities(ctx context.Context, collectionID int64, qv []float32, k int) ([]common.ScoredEntity, error)

	// NearestTextUnits is the direct chunk recall channel: the k text
	// units closest to qv, most similar first.
	NearestTextUnits(ctx context.Context, collectionID int64, qv []float32, k int) ([]common.ScoredTextUnit, error)

	// TextUnitsByIDs loads text units by id, preserving input order.
	// Unknown ids are silently dropped.
	TextUnitsByIDs(ctx context.Context, collectionID int64, ids []string) ([]common.TextUnit, error)

	// RelationshipsFor returns relationships whose source or target name
	// is in names, by weight descending then id.
	RelationshipsFor(ctx context.Context, collectionID int64, names []string, limit int) ([]common.Relationship, error)

	// CommunitiesFor maps entity ids to their community via the nodes
	// table. Entities without a community are absent from the result.
	CommunitiesFor(ctx context.Context, collectionID int64, entityIDs []string) (map[string]int32, error)

	// ReportsFor returns reports for the given communities by rank
	// descending then community.
	ReportsFor(ctx context.Context, collectionID int64, communities []int32, k int) ([]common.CommunityReport, error)

	// TopReports returns the collection's top-ranked reports regardless
	// of community, used when no retrieved entity belongs to one.
	TopReports(ctx context.Context, collectionID int64, k int) ([]common.CommunityReport, error)

	GetDocument(ctx context.Context, id string) (common.Document, error)

	CreateConversation(ctx context.Context, collectionID int64, title string) (common.Conversation, error)
	ListConversations(ctx context.Context, collectionID *int64) ([]common.Conversation, error)
	GetConversation(ctx context.Context, id uuid.UUID) (common.Conversation, error)
	RenameConversation(ctx context.Context, id uuid.UUID, title string) (common.Conversation, error)
	DeleteConversation(ctx context.Context, id uuid.UUID) error

	// MessagesFor returns a conversation's messages ordered by created_at
	// ascending. limit <= 0 means no limit; a positive limit keeps the
	// most recent rows.
	MessagesFor(ctx context.Context, conversationID uuid.UUID, limit int) ([]common.Message, error)

	// SaveMessage persists one message and touches the conversation's
	// updated_at in the same transaction.
	SaveMessage(ctx context.Context, params SaveMessageParams) (common.Message, error)
}
