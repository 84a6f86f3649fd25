package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/vector/milvus"
	"github.com/book-tutor/backend/pkg/logger"
)

// Passage is one retrieved chunk, ordered by embedding distance.
type Passage struct {
	ChunkID  string
	Text     string
	Distance float32
}

type QueryEmbedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, docID string, queryEmbedding []float32, topK int) ([]milvus.SearchResult, error)
}

// Retriever runs nearest-neighbor search over one document's chunk index.
type Retriever struct {
	embedder QueryEmbedder
	searcher Searcher
	topK     int
}

func NewRetriever(embedder QueryEmbedder, searcher Searcher, topK int) *Retriever {
	if topK <= 0 {
		topK = 20
	}
	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		topK:     topK,
	}
}

// Search returns up to topK passages closest to the question, closest
// first. An empty result is a normal outcome, not an error.
func (r *Retriever) Search(ctx context.Context, docID, question string) ([]Passage, error) {
	embedding, err := r.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := r.searcher.Search(ctx, docID, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, res := range results {
		passages = append(passages, Passage{
			ChunkID:  res.ChunkID,
			Text:     res.Text,
			Distance: res.Distance,
		})
	}

	logger.Debug("Passages retrieved",
		zap.String("doc_id", docID),
		zap.Int("count", len(passages)),
	)

	return passages, nil
}
