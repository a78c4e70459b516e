package retriever

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/boxabirds/docqa/pkg/ai"
	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/store"

	"github.com/google/uuid"
)

type fakeStorage struct {
	nearestEntities  func(qv []float32, k int) ([]common.ScoredEntity, error)
	nearestTextUnits func(qv []float32, k int) ([]common.ScoredTextUnit, error)
	textUnitsByIDs   func(ids []string) ([]common.TextUnit, error)
	relationshipsFor func(names []string, limit int) ([]common.Relationship, error)
	communitiesFor   func(entityIDs []string) (map[string]int32, error)
	reportsFor       func(communities []int32, k int) ([]common.CommunityReport, error)
	topReports       func(k int) ([]common.CommunityReport, error)
}

func (f *fakeStorage) ListCollections(ctx context.Context) ([]common.Collection, error) {
	return nil, nil
}

func (f *fakeStorage) GetCollection(ctx context.Context, id int64) (common.Collection, error) {
	return common.Collection{}, store.ErrNotFound
}

func (f *fakeStorage) NearestEntities(ctx context.Context, collectionID int64, qv []float32, k int) ([]common.ScoredEntity, error) {
	if f.nearestEntities == nil {
		return nil, nil
	}
	return f.nearestEntities(qv, k)
}

func (f *fakeStorage) NearestTextUnits(ctx context.Context, collectionID int64, qv []float32, k int) ([]common.ScoredTextUnit, error) {
	if f.nearestTextUnits == nil {
		return nil, nil
	}
	return f.nearestTextUnits(qv, k)
}

func (f *fakeStorage) TextUnitsByIDs(ctx context.Context, collectionID int64, ids []string) ([]common.TextUnit, error) {
	if f.textUnitsByIDs == nil {
		return nil, nil
	}
	return f.textUnitsByIDs(ids)
}

func (f *fakeStorage) RelationshipsFor(ctx context.Context, collectionID int64, names []string, limit int) ([]common.Relationship, error) {
	if f.relationshipsFor == nil {
		return nil, nil
	}
	return f.relationshipsFor(names, limit)
}

func (f *fakeStorage) CommunitiesFor(ctx context.Context, collectionID int64, entityIDs []string) (map[string]int32, error) {
	if f.communitiesFor == nil {
		return map[string]int32{}, nil
	}
	return f.communitiesFor(entityIDs)
}

func (f *fakeStorage) ReportsFor(ctx context.Context, collectionID int64, communities []int32, k int) ([]common.CommunityReport, error) {
	if f.reportsFor == nil {
		return nil, nil
	}
	return f.reportsFor(communities, k)
}

func (f *fakeStorage) TopReports(ctx context.Context, collectionID int64, k int) ([]common.CommunityReport, error) {
	if f.topReports == nil {
		return nil, nil
	}
	return f.topReports(k)
}

func (f *fakeStorage) GetDocument(ctx context.Context, id string) (common.Document, error) {
	return common.Document{}, store.ErrNotFound
}

func (f *fakeStorage) CreateConversation(ctx context.Context, collectionID int64, title string) (common.Conversation, error) {
	return common.Conversation{}, nil
}

func (f *fakeStorage) ListConversations(ctx context.Context, collectionID *int64) ([]common.Conversation, error) {
	return nil, nil
}

func (f *fakeStorage) GetConversation(ctx context.Context, id uuid.UUID) (common.Conversation, error) {
	return common.Conversation{}, store.ErrNotFound
}

func (f *fakeStorage) RenameConversation(ctx context.Context, id uuid.UUID, title string) (common.Conversation, error) {
	return common.Conversation{}, store.ErrNotFound
}

func (f *fakeStorage) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	return store.ErrNotFound
}

func (f *fakeStorage) MessagesFor(ctx context.Context, conversationID uuid.UUID, limit int) ([]common.Message, error) {
	return nil, nil
}

func (f *fakeStorage) SaveMessage(ctx context.Context, params store.SaveMessageParams) (common.Message, error) {
	return common.Message{}, nil
}

type fakeAI struct {
	embed func(text string) ([]float32, error)
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if f.embed == nil {
		return []float32{1, 0}, nil
	}
	return f.embed(string(input))
}

func (f *fakeAI) GenerateChat(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeAI) GenerateChatStream(ctx context.Context, messages []ai.ChatMessage, opts ...ai.GenerateOption) (<-chan ai.StreamEvent, error) {
	return nil, errors.New("not implemented")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TopKTextUnits = 3
	cfg.TextUnitTokenBudget = 100
	return cfg
}

func unit(id string, tokens int, embedding []float32) common.TextUnit {
	return common.TextUnit{
		ID:        id,
		Text:      "text of " + id,
		NTokens:   tokens,
		Embedding: embedding,
	}
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	r := NewRetriever(&fakeStorage{}, &fakeAI{
		embed: func(string) ([]float32, error) {
			return nil, errors.New("connection refused")
		},
	}, testConfig())

	_, err := r.Retrieve(context.Background(), 1, "question")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestRetrieve_BothChannelsFail(t *testing.T) {
	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return nil, errors.New("entity index down")
		},
		nearestTextUnits: func([]float32, int) ([]common.ScoredTextUnit, error) {
			return nil, errors.New("unit index down")
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())
	_, err := r.Retrieve(context.Background(), 1, "question")
	if !errors.Is(err, ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestRetrieve_EntityChannelFails_DirectSurvives(t *testing.T) {
	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return nil, errors.New("entity index down")
		},
		nearestTextUnits: func([]float32, int) ([]common.ScoredTextUnit, error) {
			return []common.ScoredTextUnit{
				{TextUnit: unit("u1", 10, []float32{1, 0}), Similarity: 0.9},
			}, nil
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())
	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rc.TextUnits) != 1 || rc.TextUnits[0].ID != "u1" {
		t.Fatalf("expected direct channel result, got %+v", rc.TextUnits)
	}
	if len(rc.Entities) != 0 {
		t.Fatalf("expected no entities, got %d", len(rc.Entities))
	}
}

func TestRetrieve_HybridMerge(t *testing.T) {
	// u-linked only reachable via entity links, u-direct only via the
	// direct channel. Both must be in the result, ranked by similarity.
	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return []common.ScoredEntity{
				{Entity: common.Entity{ID: "e1", Name: "E1", TextUnitIDs: []string{"u-linked"}}, Similarity: 0.8},
			}, nil
		},
		nearestTextUnits: func([]float32, int) ([]common.ScoredTextUnit, error) {
			return []common.ScoredTextUnit{
				{TextUnit: unit("u-direct", 10, []float32{1, 0}), Similarity: 0.95},
			}, nil
		},
		textUnitsByIDs: func(ids []string) ([]common.TextUnit, error) {
			if len(ids) != 1 || ids[0] != "u-linked" {
				t.Fatalf("unexpected ids requested: %v", ids)
			}
			return []common.TextUnit{unit("u-linked", 10, []float32{0.6, 0.8})}, nil
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())
	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rc.TextUnits) != 2 {
		t.Fatalf("expected 2 text units, got %d", len(rc.TextUnits))
	}
	if rc.TextUnits[0].ID != "u-direct" || rc.TextUnits[1].ID != "u-linked" {
		t.Fatalf("unexpected order: %s, %s", rc.TextUnits[0].ID, rc.TextUnits[1].ID)
	}
}

func TestRetrieve_DuplicateKeepsDirectScore(t *testing.T) {
	// The same unit reachable through both channels appears once, with
	// the direct channel's similarity.
	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return []common.ScoredEntity{
				{Entity: common.Entity{ID: "e1", Name: "E1", TextUnitIDs: []string{"u1"}}, Similarity: 0.8},
			}, nil
		},
		nearestTextUnits: func([]float32, int) ([]common.ScoredTextUnit, error) {
			return []common.ScoredTextUnit{
				{TextUnit: unit("u1", 10, []float32{1, 0}), Similarity: 0.93},
			}, nil
		},
		textUnitsByIDs: func(ids []string) ([]common.TextUnit, error) {
			if len(ids) != 0 {
				t.Fatalf("duplicate unit should not be reloaded, requested %v", ids)
			}
			return nil, nil
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())
	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rc.TextUnits) != 1 {
		t.Fatalf("expected 1 text unit, got %d", len(rc.TextUnits))
	}
	if rc.TextUnits[0].Similarity != 0.93 {
		t.Fatalf("expected direct similarity 0.93, got %f", rc.TextUnits[0].Similarity)
	}
}

func TestRetrieve_TokenBudget(t *testing.T) {
	storage := &fakeStorage{
		nearestTextUnits: func([]float32, int) ([]common.ScoredTextUnit, error) {
			return []common.ScoredTextUnit{
				{TextUnit: unit("u1", 60, nil), Similarity: 0.9},
				{TextUnit: unit("u2", 30, nil), Similarity: 0.8},
				{TextUnit: unit("u3", 50, nil), Similarity: 0.7},
			}, nil
		},
	}

	cfg := testConfig()
	cfg.TextUnitTokenBudget = 100
	r := NewRetriever(storage, &fakeAI{}, cfg)

	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// u1 (60) + u2 (30) fit; adding u3 (50) would exceed 100.
	if len(rc.TextUnits) != 2 {
		t.Fatalf("expected 2 text units within budget, got %d", len(rc.TextUnits))
	}
	total := 0
	for _, u := range rc.TextUnits {
		total += u.NTokens
	}
	if total > cfg.TextUnitTokenBudget {
		t.Fatalf("token budget exceeded: %d > %d", total, cfg.TextUnitTokenBudget)
	}
}

func TestRetrieve_TopKCap(t *testing.T) {
	units := make([]common.ScoredTextUnit, 0, 10)
	for i := 0; i < 10; i++ {
		units = append(units, common.ScoredTextUnit{
			TextUnit:   unit(fmt.Sprintf("u%02d", i), 1, nil),
			Similarity: 1 - float64(i)*0.01,
		})
	}

	storage := &fakeStorage{
		nearestTextUnits: func([]float32, int) ([]common.ScoredTextUnit, error) {
			return units, nil
		},
	}

	cfg := testConfig()
	cfg.TopKTextUnits = 3
	r := NewRetriever(storage, &fakeAI{}, cfg)

	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rc.TextUnits) != 3 {
		t.Fatalf("expected top_k cap of 3, got %d", len(rc.TextUnits))
	}
}

func TestRetrieve_DeterministicTieBreak(t *testing.T) {
	storage := &fakeStorage{
		nearestTextUnits: func([]float32, int) ([]common.ScoredTextUnit, error) {
			// Deliberately out of id order with identical similarities.
			return []common.ScoredTextUnit{
				{TextUnit: unit("ub", 10, nil), Similarity: 0.5},
				{TextUnit: unit("ua", 10, nil), Similarity: 0.5},
				{TextUnit: unit("uc", 10, nil), Similarity: 0.5},
			}, nil
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())

	var previous []string
	for run := 0; run < 2; run++ {
		rc, err := r.Retrieve(context.Background(), 1, "question")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids := make([]string, 0, len(rc.TextUnits))
		for _, u := range rc.TextUnits {
			ids = append(ids, u.ID)
		}
		if ids[0] != "ua" || ids[1] != "ub" || ids[2] != "uc" {
			t.Fatalf("expected id-ordered tie-break, got %v", ids)
		}
		if previous != nil {
			for i := range ids {
				if ids[i] != previous[i] {
					t.Fatalf("ordering not deterministic across runs: %v vs %v", ids, previous)
				}
			}
		}
		previous = ids
	}
}

func TestRetrieve_ReembedsChunksWithoutStoredEmbedding(t *testing.T) {
	embedCalls := 0
	aiClient := &fakeAI{
		embed: func(text string) ([]float32, error) {
			if text == "question" {
				return []float32{1, 0}, nil
			}
			embedCalls++
			if text == "text of u-broken" {
				return nil, errors.New("embed failed")
			}
			return []float32{1, 0}, nil
		},
	}

	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return []common.ScoredEntity{
				{Entity: common.Entity{ID: "e1", Name: "E1", TextUnitIDs: []string{"u-plain", "u-broken"}}, Similarity: 0.8},
			}, nil
		},
		textUnitsByIDs: func(ids []string) ([]common.TextUnit, error) {
			return []common.TextUnit{
				unit("u-plain", 10, nil),
				unit("u-broken", 10, nil),
			}, nil
		},
	}

	r := NewRetriever(storage, aiClient, testConfig())
	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedCalls != 2 {
		t.Fatalf("expected 2 chunk embeddings, got %d", embedCalls)
	}
	if len(rc.TextUnits) != 1 || rc.TextUnits[0].ID != "u-plain" {
		t.Fatalf("expected only the embeddable chunk, got %+v", rc.TextUnits)
	}
}

func TestRetrieve_GraphFailuresDegrade(t *testing.T) {
	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return []common.ScoredEntity{
				{Entity: common.Entity{ID: "e1", Name: "E1"}, Similarity: 0.8},
			}, nil
		},
		relationshipsFor: func([]string, int) ([]common.Relationship, error) {
			return nil, errors.New("relationships down")
		},
		communitiesFor: func([]string) (map[string]int32, error) {
			return nil, errors.New("nodes down")
		},
		topReports: func(int) ([]common.CommunityReport, error) {
			return nil, errors.New("reports down")
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())
	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("graph failures must not fail retrieval: %v", err)
	}
	if len(rc.Relationships) != 0 || len(rc.CommunityReports) != 0 {
		t.Fatalf("expected empty graph context, got %d relationships, %d reports",
			len(rc.Relationships), len(rc.CommunityReports))
	}
	if len(rc.Entities) != 1 {
		t.Fatalf("entities should survive graph failure, got %d", len(rc.Entities))
	}
}

func TestRetrieve_CommunityFallbackToTopReports(t *testing.T) {
	topCalled := false
	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return []common.ScoredEntity{
				{Entity: common.Entity{ID: "e1", Name: "E1"}, Similarity: 0.8},
			}, nil
		},
		communitiesFor: func([]string) (map[string]int32, error) {
			return map[string]int32{}, nil
		},
		reportsFor: func([]int32, int) ([]common.CommunityReport, error) {
			t.Fatal("ReportsFor must not be called without communities")
			return nil, nil
		},
		topReports: func(k int) ([]common.CommunityReport, error) {
			topCalled = true
			return []common.CommunityReport{{ID: "r1", Title: "Top", Rank: 9}}, nil
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())
	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !topCalled {
		t.Fatal("expected fallback to TopReports")
	}
	if len(rc.CommunityReports) != 1 || rc.CommunityReports[0].ID != "r1" {
		t.Fatalf("unexpected reports: %+v", rc.CommunityReports)
	}
}

func TestRetrieve_DedupesRelationships(t *testing.T) {
	storage := &fakeStorage{
		nearestEntities: func([]float32, int) ([]common.ScoredEntity, error) {
			return []common.ScoredEntity{
				{Entity: common.Entity{ID: "e1", Name: "E1"}, Similarity: 0.8},
			}, nil
		},
		relationshipsFor: func([]string, int) ([]common.Relationship, error) {
			return []common.Relationship{
				{ID: "r1", Source: "E1", Target: "E2", Description: "supplies", Weight: 2},
				{ID: "r2", Source: "E1", Target: "E2", Description: "supplies", Weight: 1},
				{ID: "r3", Source: "E1", Target: "E2", Description: "owns", Weight: 1},
			}, nil
		},
	}

	r := NewRetriever(storage, &fakeAI{}, testConfig())
	rc, err := r.Retrieve(context.Background(), 1, "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rc.Relationships) != 2 {
		t.Fatalf("expected 2 relationships after dedupe, got %d", len(rc.Relationships))
	}
	if rc.Relationships[0].ID != "r1" || rc.Relationships[1].ID != "r3" {
		t.Fatalf("unexpected relationships: %+v", rc.Relationships)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 0}, b: []float32{1, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("cosineSimilarity(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
