package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/devlog-mcp/internal/embedder"
	"github.com/dshills/devlog-mcp/internal/storage"
)

var (
	// ErrZeroVector is returned when cosine similarity meets a
	// zero-magnitude vector. A degenerate vector is a computation error,
	// not a similarity of zero.
	ErrZeroVector = errors.New("zero-magnitude vector")
)

// EmbedConcurrency bounds parallel embedding calls in EmbedAllPending.
const EmbedConcurrency = 4

// Match pairs a commit with its similarity score against a query.
type Match struct {
	Commit storage.CommitMeta
	Score  float64
}

// Index persists and searches commit embeddings. Vector comparison is a
// brute-force linear scan, which is fine at personal-history scale.
type Index struct {
	store storage.Storage
	emb   embedder.Embedder
}

// New creates an Index over the given store and embedder.
func New(store storage.Storage, emb embedder.Embedder) *Index {
	return &Index{store: store, emb: emb}
}

// EmbedText builds the embedding input for a commit: its message followed by
// the comma-joined touched file paths.
func EmbedText(message, files string) string {
	if files == "" {
		return message
	}
	return message + " " + files
}

// EmbedAllPending generates and stores an embedding for every commit that
// lacks one, returning the number processed. Already-embedded commits are
// skipped, so re-running is a no-op.
func (ix *Index) EmbedAllPending(ctx context.Context) (int, error) {
	pending, err := ix.store.ListCommitsWithoutEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing pending commits: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(EmbedConcurrency)

	for _, p := range pending {
		g.Go(func() error {
			emb, err := ix.emb.Embed(gctx, EmbedText(p.Message, p.Files))
			if err != nil {
				return fmt.Errorf("embedding commit %d: %w", p.CommitID, err)
			}
			err = ix.store.UpsertEmbedding(gctx, &storage.Embedding{
				CommitID:  p.CommitID,
				Vector:    storage.SerializeVector(emb.Vector),
				Dimension: emb.Dimension,
				Provider:  emb.Provider,
				Model:     emb.Model,
			})
			if err != nil {
				return fmt.Errorf("storing embedding for commit %d: %w", p.CommitID, err)
			}
			processed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(processed.Load()), err
	}
	return int(processed.Load()), nil
}

// Search embeds the query and scans every stored vector belonging to an
// active repository, returning the most similar commits, best first.
func (ix *Index) Search(ctx context.Context, queryText string, limit int) ([]Match, error) {
	queryEmb, err := ix.emb.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	vectors, err := ix.store.ListCommitVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading commit vectors: %w", err)
	}

	matches := make([]Match, 0, len(vectors))
	for _, cv := range vectors {
		vector, err := storage.DeserializeVector(cv.Vector)
		if err != nil {
			continue // corrupt row, skip
		}
		if len(vector) != len(queryEmb.Vector) {
			continue // different model/dimension, not comparable
		}
		score, err := CosineSimilarity(queryEmb.Vector, vector)
		if err != nil {
			return nil, fmt.Errorf("commit %d: %w", cv.Commit.ID, err)
		}
		matches = append(matches, Match{Commit: cv.Commit, Score: score})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Commit.CommittedAt.After(matches[b].Commit.CommittedAt)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CosineSimilarity computes dot(a,b) / (|a| * |b|) in [-1, 1].
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
