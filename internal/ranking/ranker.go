package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/llm"
	"github.com/book-tutor/backend/internal/retrieval"
	"github.com/book-tutor/backend/pkg/logger"
)

const (
	StrategyGenerative = "generative"
	StrategySimilarity = "similarity"
)

// Candidate pairs a retrieved passage with its relevance score in [0, 1].
type Candidate struct {
	Passage retrieval.Passage
	Score   float64
}

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Ranker orders passages by relevance to a question using one configured
// strategy for the whole process lifetime. Upstream failures never block
// the pipeline: every passage falls back to the neutral score 1.0.
type Ranker struct {
	strategy  string
	completer Completer
	embedder  Embedder
}

func NewRanker(strategy string, completer Completer, embedder Embedder) *Ranker {
	return &Ranker{
		strategy:  strategy,
		completer: completer,
		embedder:  embedder,
	}
}

// EvidenceGated reports whether scores carry an absolute evidence meaning,
// in which case the orchestrator refuses below its threshold. Generative
// scores are relative, so no gate applies.
func (r *Ranker) EvidenceGated() bool {
	return r.strategy == StrategySimilarity
}

// Rank scores all passages and returns them sorted by descending score,
// ties keeping the original retrieval (distance) order.
func (r *Ranker) Rank(ctx context.Context, question string, passages []retrieval.Passage) []Candidate {
	if len(passages) == 0 {
		return nil
	}

	var scores []float64
	if r.strategy == StrategySimilarity {
		scores = r.similarityScores(ctx, question, passages)
	} else {
		scores = r.generativeScores(ctx, question, passages)
	}

	candidates := make([]Candidate, len(passages))
	for i, p := range passages {
		candidates[i] = Candidate{Passage: p, Score: clamp01(scores[i])}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates
}

const rankSystemPrompt = `You rank passages from a children's reading tutor for relevance to a student question.
Respond ONLY with a JSON array of floats between 0 and 1.0, one per passage, in the given order.
No explanation, no markdown, nothing but the array.`

func (r *Ranker) generativeScores(ctx context.Context, question string, passages []retrieval.Passage) []float64 {
	var sb strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&sb, "--- Passage %d ---\n%s\n\n", i, p.Text)
	}

	userPrompt := fmt.Sprintf("Question:\n%s\n\nPassages:\n%s", question, sb.String())

	resp, err := r.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: rankSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    512,
	})
	if err != nil {
		logger.Warn("Ranking call failed, assigning neutral scores", zap.Error(err))
		return neutralScores(len(passages))
	}

	scores, err := parseScoreArray(resp.Content, len(passages))
	if err != nil {
		logger.Warn("Unparseable ranking response, assigning neutral scores",
			zap.Error(err),
			zap.String("content", resp.Content),
		)
		return neutralScores(len(passages))
	}

	return scores
}

func (r *Ranker) similarityScores(ctx context.Context, question string, passages []retrieval.Passage) []float64 {
	questionVec, err := r.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		logger.Warn("Question embedding failed, assigning neutral scores", zap.Error(err))
		return neutralScores(len(passages))
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	passageVecs, err := r.embedder.GenerateBatchEmbeddings(ctx, texts)
	if err != nil || len(passageVecs) != len(passages) {
		logger.Warn("Passage embeddings failed, assigning neutral scores", zap.Error(err))
		return neutralScores(len(passages))
	}

	scores := make([]float64, len(passages))
	for i, vec := range passageVecs {
		// cosine similarity rescaled from [-1, 1] to [0, 1]
		scores[i] = (cosine(questionVec, vec) + 1.0) / 2.0
	}

	return scores
}

// parseScoreArray extracts a JSON array of exactly want floats, tolerating
// markdown fences and prose around the array.
func parseScoreArray(content string, want int) ([]float64, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in ranking response")
	}

	var scores []float64
	if err := json.Unmarshal([]byte(content[start:end+1]), &scores); err != nil {
		return nil, fmt.Errorf("failed to parse score array: %w", err)
	}

	if len(scores) != want {
		return nil, fmt.Errorf("score count mismatch: got %d, expected %d", len(scores), want)
	}

	return scores, nil
}

func neutralScores(n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0
	}
	return scores
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
