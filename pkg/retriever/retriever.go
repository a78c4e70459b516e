package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/boxabirds/docqa/pkg/ai"
	"github.com/boxabirds/docqa/pkg/common"
	"github.com/boxabirds/docqa/pkg/logger"
	"github.com/boxabirds/docqa/pkg/store"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrEmbeddingUnavailable means the query could not be embedded; no
	// retrieval is attempted without a query vector.
	ErrEmbeddingUnavailable = errors.New("query embedding unavailable")

	// ErrRetrievalUnavailable means both vector channels (entities and
	// direct text units) failed.
	ErrRetrievalUnavailable = errors.New("vector retrieval unavailable")
)

// Retriever produces a RetrievedContext for one query against one
// collection by fusing an entity-centred graph search with a direct
// chunk search.
type Retriever struct {
	store    store.Storage
	aiClient ai.ChatAIClient
	cfg      Config
}

// NewRetriever wires a retriever over a storage gateway and an AI client.
func NewRetriever(storage store.Storage, aiClient ai.ChatAIClient, cfg Config) *Retriever {
	return &Retriever{
		store:    storage,
		aiClient: aiClient,
		cfg:      cfg,
	}
}

// Retrieve runs the six-step hybrid retrieval:
//
//  1. Embed the query.
//  2. Vector search over entity descriptions.
//  3. Load chunks linked from the found entities.
//  4. Direct vector search over chunks (in parallel with 2); this
//     channel recovers chunks whose entity linkage is sparse or wrong.
//  5. Re-rank all candidates by query similarity under the token budget.
//  6. Graph context: relationships and community reports for the found
//     entities (in parallel with 5).
//
// Graph and community failures degrade to empty lists; a failure of both
// vector channels fails the retrieval.
func (r *Retriever) Retrieve(
	ctx context.Context,
	collectionID int64,
	query string,
) (*common.RetrievedContext, error) {
	qv, err := r.aiClient.GenerateEmbedding(ctx, []byte(query))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	var (
		entities  []common.ScoredEntity
		direct    []common.ScoredTextUnit
		entityErr error
		directErr error
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		entities, entityErr = r.store.NearestEntities(gctx, collectionID, qv, r.cfg.TopKEntities)
		return nil
	})
	eg.Go(func() error {
		direct, directErr = r.store.NearestTextUnits(gctx, collectionID, qv, r.cfg.DirectTextUnitK)
		return nil
	})
	_ = eg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if entityErr != nil {
		logger.Error("Entity vector search failed", "collection_id", collectionID, "err", entityErr)
	}
	if directErr != nil {
		logger.Error("Text unit vector search failed", "collection_id", collectionID, "err", directErr)
	}
	if entityErr != nil && directErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, entityErr)
	}

	candidates := r.loadLinkedTextUnits(ctx, collectionID, entities, direct)

	rc := &common.RetrievedContext{Entities: entities}

	eg2, g2ctx := errgroup.WithContext(ctx)
	eg2.Go(func() error {
		rc.Relationships, rc.CommunityReports = r.graphContext(g2ctx, collectionID, entities)
		return nil
	})
	eg2.Go(func() error {
		rc.TextUnits = r.rankTextUnits(g2ctx, qv, candidates, direct)
		return nil
	})
	_ = eg2.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return rc, nil
}

// loadLinkedTextUnits collects the union of text_unit_ids across the found
// entities and loads them, skipping chunks the direct channel already
// scored.
func (r *Retriever) loadLinkedTextUnits(
	ctx context.Context,
	collectionID int64,
	entities []common.ScoredEntity,
	direct []common.ScoredTextUnit,
) []common.TextUnit {
	seen := make(map[string]bool, len(direct))
	for _, u := range direct {
		seen[u.ID] = true
	}

	ids := make([]string, 0)
	for _, e := range entities {
		for _, id := range e.TextUnitIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	units, err := r.store.TextUnitsByIDs(ctx, collectionID, ids)
	if err != nil {
		logger.Error("Failed to load entity-linked text units", "collection_id", collectionID, "err", err)
		return nil
	}
	return units
}

// rankTextUnits scores every candidate against the query vector and
// selects greedily under the token budget, capped at TopKTextUnits.
// Candidates without a stored embedding are embedded on the fly; a chunk
// whose embedding fails is skipped rather than failing the request.
func (r *Retriever) rankTextUnits(
	ctx context.Context,
	qv []float32,
	candidates []common.TextUnit,
	direct []common.ScoredTextUnit,
) []common.ScoredTextUnit {
	scored := make([]common.ScoredTextUnit, 0, len(candidates)+len(direct))
	scored = append(scored, direct...)

	for _, u := range candidates {
		if u.Text == "" {
			continue
		}

		embedding := u.Embedding
		if len(embedding) == 0 {
			var err error
			embedding, err = r.aiClient.GenerateEmbedding(ctx, []byte(u.Text))
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("Failed to embed candidate text unit, skipping", "unit_id", u.ID, "err", err)
				continue
			}
		}

		scored = append(scored, common.ScoredTextUnit{
			TextUnit:   u,
			Similarity: cosineSimilarity(qv, embedding),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ID < scored[j].ID
	})

	selected := make([]common.ScoredTextUnit, 0, r.cfg.TopKTextUnits)
	totalTokens := 0
	for _, u := range scored {
		if len(selected) >= r.cfg.TopKTextUnits {
			break
		}
		tokens := u.NTokens
		if tokens <= 0 {
			tokens = estimateTokens(u.Text)
		}
		if totalTokens+tokens > r.cfg.TextUnitTokenBudget {
			break
		}
		selected = append(selected, u)
		totalTokens += tokens
	}
	return selected
}

// graphContext resolves relationships and community reports for the found
// entities. Failures here degrade to empty lists; the answer is still
// usable from text units alone.
func (r *Retriever) graphContext(
	ctx context.Context,
	collectionID int64,
	entities []common.ScoredEntity,
) ([]common.Relationship, []common.CommunityReport) {
	if len(entities) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(entities))
	ids := make([]string, 0, len(entities))
	seenNames := make(map[string]bool, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
		if !seenNames[e.Name] {
			seenNames[e.Name] = true
			names = append(names, e.Name)
		}
	}

	relationships, err := r.store.RelationshipsFor(ctx, collectionID, names, r.cfg.TopKRelationships)
	if err != nil {
		logger.Error("Failed to load relationships", "collection_id", collectionID, "err", err)
		relationships = nil
	}
	relationships = dedupeRelationships(relationships)

	communities, err := r.store.CommunitiesFor(ctx, collectionID, ids)
	if err != nil {
		logger.Error("Failed to resolve entity communities", "collection_id", collectionID, "err", err)
		communities = nil
	}

	communityIDs := make([]int32, 0, len(communities))
	seenCommunities := make(map[int32]bool, len(communities))
	for _, c := range communities {
		if !seenCommunities[c] {
			seenCommunities[c] = true
			communityIDs = append(communityIDs, c)
		}
	}
	sort.Slice(communityIDs, func(i, j int) bool { return communityIDs[i] < communityIDs[j] })

	var reports []common.CommunityReport
	if len(communityIDs) > 0 {
		reports, err = r.store.ReportsFor(ctx, collectionID, communityIDs, r.cfg.TopKCommunityReports)
	} else {
		// No community links for any found entity; fall back to the
		// collection's top-ranked reports.
		reports, err = r.store.TopReports(ctx, collectionID, r.cfg.TopKCommunityReports)
	}
	if err != nil {
		logger.Error("Failed to load community reports", "collection_id", collectionID, "err", err)
		reports = nil
	}

	return relationships, reports
}

// dedupeRelationships drops duplicate edges. Endpoints are entity names,
// which are only best-effort unique, so identity is the
// (source, target, description) triple.
func dedupeRelationships(relationships []common.Relationship) []common.Relationship {
	type key struct {
		source, target, description string
	}
	seen := make(map[key]bool, len(relationships))
	out := relationships[:0]
	for _, r := range relationships {
		k := key{r.Source, r.Target, r.Description}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
