package common

import (
	"time"

	"github.com/google/uuid"
)

// Collection is an indexed document set and the scope boundary for every
// retrieval. All graph rows below carry its id.
type Collection struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	FileCount int64     `json:"file_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document points at a stored source PDF. RawContent holds the extracted
// text the indexer worked from.
type Document struct {
	ID               string `json:"id"`
	CollectionID     int64  `json:"collection_id"`
	Title            string `json:"title"`
	SourcePath       string `json:"source_path"`
	OriginalFilename string `json:"original_filename"`
	PDFPath          string `json:"pdf_path"`
	RawContent       string `json:"raw_content"`
}

// TextUnit is a token-bounded span extracted from one or more documents,
// with an optional page range pointing back into the source PDF.
//
// Embedding may be nil for rows imported before vectors were backfilled;
// such rows are unreachable through vector search but still reachable
// through entity links.
type TextUnit struct {
	ID          string    `json:"id"`
	DocumentIDs []string  `json:"document_ids"`
	Text        string    `json:"text"`
	NTokens     int       `json:"n_tokens"`
	PageStart   *int      `json:"page_start"`
	PageEnd     *int      `json:"page_end"`
	SourceFile  string    `json:"source_file"`
	Embedding   []float32 `json:"-"`
}

// Entity is a named concept extracted from the corpus. The embedding is of
// the description, not the name.
type Entity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	TextUnitIDs []string  `json:"text_unit_ids"`
	Embedding   []float32 `json:"-"`
}

// Relationship is a weighted, described edge between two entity names.
// Endpoints are names, not ids; names are best-effort unique.
type Relationship struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// CommunityReport is an indexer-authored summary of an entity community at
// one hierarchy level, ranked by importance.
type CommunityReport struct {
	ID          string  `json:"id"`
	Community   int32   `json:"community"`
	Level       int32   `json:"level"`
	Title       string  `json:"title"`
	Summary     string  `json:"summary"`
	FullContent string  `json:"full_content"`
	Rank        float64 `json:"rank"`
}

// ScoredEntity pairs an entity with its cosine similarity to the query.
type ScoredEntity struct {
	Entity
	Similarity float64 `json:"similarity"`
}

// ScoredTextUnit pairs a text unit with its cosine similarity to the query.
type ScoredTextUnit struct {
	TextUnit
	Similarity float64 `json:"similarity"`
}

// RetrievedContext is the bundle the hybrid retriever produces for one
// query: every list is in ranked order.
type RetrievedContext struct {
	Entities         []ScoredEntity
	TextUnits        []ScoredTextUnit
	Relationships    []Relationship
	CommunityReports []CommunityReport
}

// Source is one ranked citation attached to an answer, pointing at an
// exact page location in an original PDF.
type Source struct {
	FileID         *string `json:"file_id"`
	FileName       string  `json:"file_name"`
	PageNumber     *int    `json:"page_number"`
	PageEnd        *int    `json:"page_end"`
	TextSnippet    string  `json:"text_snippet"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Conversation groups the messages of one chat thread within a collection.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	CollectionID int64     `json:"collection_id"`
	UserID       string    `json:"user_id,omitempty"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Messages     []Message `json:"messages,omitempty"`
}

// Message is a single user or assistant turn. Sources holds the citation
// JSON attached to assistant messages.
type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Sources        []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
