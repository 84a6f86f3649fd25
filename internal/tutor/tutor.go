package tutor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/index"
	"github.com/book-tutor/backend/internal/library"
	"github.com/book-tutor/backend/internal/metrics"
	"github.com/book-tutor/backend/internal/ranking"
	"github.com/book-tutor/backend/internal/retrieval"
	"github.com/book-tutor/backend/internal/storage/models"
	"github.com/book-tutor/backend/pkg/logger"
	"github.com/book-tutor/backend/pkg/utils"
)

// Turn modes. Log events add no_docs for empty retrieval.
const (
	ModeDirect               = "direct"
	ModeSummary              = "summary"
	ModeRefusedUnsafe        = "refused_unsafe"
	ModeRefusedNoEvidence    = "refused_no_evidence"
	ModeRefusedMissingSource = "refused_missing_source"
	ModeNoDocs               = "no_docs"
)

// Turn is one finished question-to-answer cycle.
type Turn struct {
	ID         string  `json:"id"`
	Answer     string  `json:"answer"`
	Score      float64 `json:"score"`
	Mode       string  `json:"mode"`
	LatencySec float64 `json:"latency_sec"`
}

type IndexBuilder interface {
	BuildOrLoad(ctx context.Context, documentName string) (*index.Index, error)
}

type Retriever interface {
	Search(ctx context.Context, docID, question string) ([]retrieval.Passage, error)
}

type Ranker interface {
	Rank(ctx context.Context, question string, passages []retrieval.Passage) []ranking.Candidate
	EvidenceGated() bool
}

type PassageFilter interface {
	IsPassageSafe(text string) bool
}

type ResponseFilter interface {
	IsResponseSafe(ctx context.Context, text string) bool
}

type AnswerSynthesizer interface {
	Answer(ctx context.Context, question, passage string) string
	Summarize(ctx context.Context, text string) string
}

type Store interface {
	AppendLog(entry *models.LogEntry) error
	GetChunks(docID string, limit int) ([]models.Chunk, error)
}

// TurnCache is optional; nil disables answer caching.
type TurnCache interface {
	GetTurn(ctx context.Context, turnHash string, turn interface{}) (bool, error)
	SetTurn(ctx context.Context, turnHash string, turn interface{}, ttl time.Duration) error
}

type Config struct {
	TopN              int
	EvidenceThreshold float64
	SummaryMaxChunks  int
	PassageCharLimit  int
}

// Tutor drives one synchronous state-machine pass per student question.
// All remote failures resolve inside the components; every call returns a
// defined Turn and writes exactly one log row.
type Tutor struct {
	builder        IndexBuilder
	retriever      Retriever
	ranker         Ranker
	passageFilter  PassageFilter
	responseFilter ResponseFilter
	synth          AnswerSynthesizer
	store          Store
	cache          TurnCache
	cfg            Config
}

func New(builder IndexBuilder, retriever Retriever, ranker Ranker, passageFilter PassageFilter, responseFilter ResponseFilter, synth AnswerSynthesizer, store Store, cache TurnCache, cfg Config) *Tutor {
	if cfg.TopN <= 0 {
		cfg.TopN = 3
	}
	if cfg.SummaryMaxChunks <= 0 {
		cfg.SummaryMaxChunks = 100
	}
	if cfg.PassageCharLimit <= 0 {
		cfg.PassageCharLimit = 800
	}

	return &Tutor{
		builder:        builder,
		retriever:      retriever,
		ranker:         ranker,
		passageFilter:  passageFilter,
		responseFilter: responseFilter,
		synth:          synth,
		store:          store,
		cache:          cache,
		cfg:            cfg,
	}
}

const turnCacheTTL = time.Hour

// Ask answers one student question about one book.
func (t *Tutor) Ask(ctx context.Context, documentName, question string) *Turn {
	start := time.Now()

	cacheKey := utils.HashString(documentName + "|" + strings.ToLower(strings.TrimSpace(question)))
	if t.cache != nil {
		var cached Turn
		if ok, err := t.cache.GetTurn(ctx, cacheKey, &cached); err == nil && ok {
			metrics.CacheHits.WithLabelValues("turn").Inc()
			return t.replay(start, question, &cached)
		}
		metrics.CacheMisses.WithLabelValues("turn").Inc()
	}

	turn := t.run(ctx, start, documentName, question)

	if t.cache != nil && (turn.Mode == ModeDirect || turn.Mode == ModeSummary) {
		if err := t.cache.SetTurn(ctx, cacheKey, turn, turnCacheTTL); err != nil {
			logger.Warn("Failed to cache turn", zap.Error(err))
		}
	}

	return turn
}

// replay serves a cached answer as a turn in its own right: it still logs
// one row and counts in the turn metrics. Only direct and summary outcomes
// are ever cached, so the event follows from the mode.
func (t *Tutor) replay(start time.Time, question string, cached *Turn) *Turn {
	event := models.EventSuccess
	if cached.Mode == ModeSummary {
		event = models.EventFullSummary
	}
	return t.finish(start, event, cached.Mode, cached.Answer, cached.Score, "", question)
}

func (t *Tutor) run(ctx context.Context, start time.Time, documentName, question string) *Turn {
	idx, err := t.builder.BuildOrLoad(ctx, documentName)
	if err != nil {
		if !errors.Is(err, library.ErrSourceNotFound) {
			logger.Error("Index unavailable", zap.String("document", documentName), zap.Error(err))
		}
		// any indexing failure is surfaced as the missing-source outcome
		return t.finish(start, models.EventMissingSource, ModeRefusedMissingSource, MsgMissingSource, 0.0, "", question)
	}

	if isSummaryRequest(question) {
		return t.summaryTurn(ctx, start, idx, question)
	}

	return t.qaTurn(ctx, start, idx, question)
}

func (t *Tutor) summaryTurn(ctx context.Context, start time.Time, idx *index.Index, question string) *Turn {
	chunks, err := t.store.GetChunks(idx.DocID, t.cfg.SummaryMaxChunks)
	if err != nil || len(chunks) == 0 {
		logger.Warn("No stored chunks for summary", zap.String("doc_id", idx.DocID), zap.Error(err))
		return t.finish(start, models.EventNoDocs, ModeNoDocs, MsgEmptyBook, 0.0, "", question)
	}

	parts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		parts = append(parts, truncate(ch.Text, t.cfg.PassageCharLimit))
	}
	combined := strings.Join(parts, "\n\n")

	summary := t.synth.Summarize(ctx, combined)

	if !t.responseFilter.IsResponseSafe(ctx, summary) {
		metrics.SafetyBlocks.WithLabelValues("response").Inc()
		summary = MsgUnsafeSummary
	}

	return t.finish(start, models.EventFullSummary, ModeSummary, summary, 1.0, "", question)
}

func (t *Tutor) qaTurn(ctx context.Context, start time.Time, idx *index.Index, question string) *Turn {
	passages, err := t.retriever.Search(ctx, idx.DocID, question)
	if err != nil {
		logger.Warn("Retrieval failed, treating as empty", zap.Error(err))
		passages = nil
	}
	metrics.PassagesRetrieved.Observe(float64(len(passages)))

	if len(passages) == 0 {
		return t.finish(start, models.EventNoDocs, ModeNoDocs, MsgNoDocs, 0.0, "", question)
	}

	safe := passages[:0:0]
	for _, p := range passages {
		if t.passageFilter.IsPassageSafe(p.Text) {
			safe = append(safe, p)
		} else {
			metrics.SafetyBlocks.WithLabelValues("passage").Inc()
		}
	}
	if len(safe) == 0 {
		return t.finish(start, models.EventUnsafe, ModeRefusedUnsafe, MsgUnsafePassages, 0.0, "", question)
	}

	candidates := t.ranker.Rank(ctx, question, safe)

	top := candidates
	if len(top) > t.cfg.TopN {
		top = top[:t.cfg.TopN]
	}

	var sum float64
	for _, c := range top {
		sum += c.Score
	}
	support := 0.0
	if len(top) > 0 {
		support = sum / float64(len(top))
	}

	if len(top) == 0 || (t.ranker.EvidenceGated() && top[0].Score < t.cfg.EvidenceThreshold) {
		return t.finish(start, models.EventNoEvidence, ModeRefusedNoEvidence, MsgNoEvidence, support, "", question)
	}

	merged := mergePassages(top, t.cfg.PassageCharLimit)

	answer := t.synth.Answer(ctx, question, merged)

	if !t.responseFilter.IsResponseSafe(ctx, answer) {
		metrics.SafetyBlocks.WithLabelValues("response").Inc()
		return t.finish(start, models.EventUnsafe, ModeRefusedUnsafe, MsgUnsafeResponse, support, merged, question)
	}

	metrics.SupportScore.Observe(support)
	return t.finish(start, models.EventSuccess, ModeDirect, answer, support, merged, question)
}

func (t *Tutor) finish(start time.Time, event, mode, answer string, score float64, passage, question string) *Turn {
	latency := time.Since(start).Seconds()

	entry := &models.LogEntry{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Event:     event,
		Passage:   passage,
		Question:  question,
		Score:     score,
		Latency:   latency,
	}
	if err := t.store.AppendLog(entry); err != nil {
		logger.Error("Failed to append interaction log", zap.Error(err))
	}

	metrics.TurnsTotal.WithLabelValues(event).Inc()
	metrics.TurnDuration.WithLabelValues(mode).Observe(latency)

	return &Turn{
		ID:         uuid.New().String(),
		Answer:     answer,
		Score:      score,
		Mode:       mode,
		LatencySec: latency,
	}
}

func isSummaryRequest(question string) bool {
	q := strings.ToLower(question)
	for _, k := range summaryKeywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

func mergePassages(candidates []ranking.Candidate, charLimit int) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, truncate(c.Passage.Text, charLimit))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
