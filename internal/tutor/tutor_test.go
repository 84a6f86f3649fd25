package tutor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-tutor/backend/internal/index"
	"github.com/book-tutor/backend/internal/library"
	"github.com/book-tutor/backend/internal/ranking"
	"github.com/book-tutor/backend/internal/retrieval"
	"github.com/book-tutor/backend/internal/storage/models"
)

type stubBuilder struct {
	idx *index.Index
	err error
}

func (s *stubBuilder) BuildOrLoad(ctx context.Context, documentName string) (*index.Index, error) {
	return s.idx, s.err
}

type stubRetriever struct {
	passages []retrieval.Passage
	err      error
	calls    int
}

func (s *stubRetriever) Search(ctx context.Context, docID, question string) ([]retrieval.Passage, error) {
	s.calls++
	return s.passages, s.err
}

type stubRanker struct {
	scores []float64
	gated  bool
	calls  int
}

func (s *stubRanker) Rank(ctx context.Context, question string, passages []retrieval.Passage) []ranking.Candidate {
	s.calls++
	out := make([]ranking.Candidate, len(passages))
	for i, p := range passages {
		score := 1.0
		if i < len(s.scores) {
			score = s.scores[i]
		}
		out[i] = ranking.Candidate{Passage: p, Score: score}
	}
	return out
}

func (s *stubRanker) EvidenceGated() bool { return s.gated }

type stubPassageFilter struct {
	unsafe map[string]bool
}

func (s *stubPassageFilter) IsPassageSafe(text string) bool {
	return !s.unsafe[text]
}

type stubResponseFilter struct {
	safe bool
}

func (s *stubResponseFilter) IsResponseSafe(ctx context.Context, text string) bool {
	return s.safe
}

type stubSynth struct {
	answer        string
	summary       string
	answerCalls   int
	summaryCalls  int
	lastPassage   string
	lastSummaryIn string
}

func (s *stubSynth) Answer(ctx context.Context, question, passage string) string {
	s.answerCalls++
	s.lastPassage = passage
	return s.answer
}

func (s *stubSynth) Summarize(ctx context.Context, text string) string {
	s.summaryCalls++
	s.lastSummaryIn = text
	return s.summary
}

type stubStore struct {
	chunks  []models.Chunk
	entries []*models.LogEntry
}

func (s *stubStore) AppendLog(entry *models.LogEntry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubStore) GetChunks(docID string, limit int) ([]models.Chunk, error) {
	if limit < len(s.chunks) {
		return s.chunks[:limit], nil
	}
	return s.chunks, nil
}

type stubTurnCache struct {
	stored map[string]*Turn
	sets   int
}

func newStubTurnCache() *stubTurnCache {
	return &stubTurnCache{stored: map[string]*Turn{}}
}

func (s *stubTurnCache) GetTurn(ctx context.Context, turnHash string, turn interface{}) (bool, error) {
	cached, ok := s.stored[turnHash]
	if !ok {
		return false, nil
	}
	*(turn.(*Turn)) = *cached
	return true, nil
}

func (s *stubTurnCache) SetTurn(ctx context.Context, turnHash string, turn interface{}, ttl time.Duration) error {
	s.sets++
	v := *(turn.(*Turn))
	s.stored[turnHash] = &v
	return nil
}

type fixture struct {
	builder   *stubBuilder
	retriever *stubRetriever
	ranker    *stubRanker
	pf        *stubPassageFilter
	rf        *stubResponseFilter
	synth     *stubSynth
	store     *stubStore
	tutor     *Tutor
}

func newFixture() *fixture {
	f := &fixture{
		builder:   &stubBuilder{idx: &index.Index{DocID: "wonder", Name: "wonder.pdf", ChunkCount: 4}},
		retriever: &stubRetriever{},
		ranker:    &stubRanker{},
		pf:        &stubPassageFilter{unsafe: map[string]bool{}},
		rf:        &stubResponseFilter{safe: true},
		synth:     &stubSynth{answer: "August is the main character.", summary: "A kind story about friendship."},
		store:     &stubStore{},
	}
	f.tutor = New(f.builder, f.retriever, f.ranker, f.pf, f.rf, f.synth, f.store, nil, Config{
		TopN:              3,
		EvidenceThreshold: 0.72,
		SummaryMaxChunks:  100,
		PassageCharLimit:  800,
	})
	return f
}

func passages(texts ...string) []retrieval.Passage {
	out := make([]retrieval.Passage, len(texts))
	for i, t := range texts {
		out[i] = retrieval.Passage{ChunkID: t, Text: t}
	}
	return out
}

func TestAskMissingSource(t *testing.T) {
	f := newFixture()
	f.builder.idx = nil
	f.builder.err = library.ErrSourceNotFound

	turn := f.tutor.Ask(context.Background(), "ghost.pdf", "Who is the hero?")

	assert.Equal(t, MsgMissingSource, turn.Answer)
	assert.Equal(t, 0.0, turn.Score)
	assert.Equal(t, ModeRefusedMissingSource, turn.Mode)
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, models.EventMissingSource, f.store.entries[0].Event)
	assert.Zero(t, f.retriever.calls)
}

func TestAskIndexFailureAlsoMissingSource(t *testing.T) {
	f := newFixture()
	f.builder.idx = nil
	f.builder.err = errors.New("embedding service down")

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, MsgMissingSource, turn.Answer)
	assert.Equal(t, ModeRefusedMissingSource, turn.Mode)
}

func TestAskSuccess(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("p1", "p2", "p3", "p4")
	f.ranker.scores = []float64{0.9, 0.85, 0.3, 0.1}

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, "August is the main character.", turn.Answer)
	assert.Equal(t, ModeDirect, turn.Mode)
	assert.InDelta(t, (0.9+0.85+0.3)/3, turn.Score, 1e-9)
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, models.EventSuccess, f.store.entries[0].Event)
	assert.Equal(t, "Who is August?", f.store.entries[0].Question)
	assert.NotEmpty(t, f.store.entries[0].Passage)
	assert.GreaterOrEqual(t, f.store.entries[0].Latency, 0.0)
}

func TestAskMergesTopPassagesWithSeparator(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("alpha", "beta", "gamma", "delta")
	f.ranker.scores = []float64{1.0, 1.0, 1.0, 1.0}

	f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, "alpha\n\n---\n\nbeta\n\n---\n\ngamma", f.synth.lastPassage)
}

func TestAskNoDocs(t *testing.T) {
	f := newFixture()
	f.retriever.passages = nil

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "What about dragons?")

	assert.Equal(t, MsgNoDocs, turn.Answer)
	assert.Equal(t, 0.0, turn.Score)
	assert.Equal(t, ModeNoDocs, turn.Mode)
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, models.EventNoDocs, f.store.entries[0].Event)
	assert.Zero(t, f.ranker.calls)
	assert.Zero(t, f.synth.answerCalls)
}

func TestAskRetrievalErrorTreatedAsEmpty(t *testing.T) {
	f := newFixture()
	f.retriever.err = errors.New("vector store unreachable")

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, MsgNoDocs, turn.Answer)
	assert.Equal(t, ModeNoDocs, turn.Mode)
}

func TestAskAllPassagesUnsafe(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("bad1", "bad2")
	f.pf.unsafe = map[string]bool{"bad1": true, "bad2": true}

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "What happened?")

	assert.Equal(t, MsgUnsafePassages, turn.Answer)
	assert.Equal(t, 0.0, turn.Score)
	assert.Equal(t, ModeRefusedUnsafe, turn.Mode)
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, models.EventUnsafe, f.store.entries[0].Event)
	assert.Zero(t, f.synth.answerCalls)
}

func TestAskUnsafePassagesDropped(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("good", "bad")
	f.pf.unsafe = map[string]bool{"bad": true}
	f.ranker.scores = []float64{0.8}

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "What happened?")

	assert.Equal(t, ModeDirect, turn.Mode)
	assert.NotContains(t, f.synth.lastPassage, "bad")
}

func TestAskNoEvidenceWhenGated(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("p1", "p2")
	f.ranker.scores = []float64{0.6, 0.4}
	f.ranker.gated = true

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, MsgNoEvidence, turn.Answer)
	assert.Equal(t, ModeRefusedNoEvidence, turn.Mode)
	assert.InDelta(t, 0.5, turn.Score, 1e-9)
	assert.Equal(t, models.EventNoEvidence, f.store.entries[0].Event)
	assert.Zero(t, f.synth.answerCalls)
}

func TestAskLowScoresNotGatedStillAnswers(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("p1", "p2")
	f.ranker.scores = []float64{0.6, 0.4}
	f.ranker.gated = false

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, ModeDirect, turn.Mode)
	assert.Equal(t, 1, f.synth.answerCalls)
}

func TestAskUnsafeResponse(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("p1")
	f.ranker.scores = []float64{0.9}
	f.rf.safe = false

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, MsgUnsafeResponse, turn.Answer)
	assert.Equal(t, ModeRefusedUnsafe, turn.Mode)
	assert.InDelta(t, 0.9, turn.Score, 1e-9)
	assert.Equal(t, models.EventUnsafe, f.store.entries[0].Event)
}

func TestAskSummaryKeyword(t *testing.T) {
	f := newFixture()
	f.store.chunks = []models.Chunk{
		{ID: "c0", Text: "Once upon a time."},
		{ID: "c1", Text: "They became friends."},
	}

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Give me a SUMMARY of the book")

	assert.Equal(t, "A kind story about friendship.", turn.Answer)
	assert.Equal(t, ModeSummary, turn.Mode)
	assert.Equal(t, 1.0, turn.Score)
	assert.Equal(t, 1, f.synth.summaryCalls)
	assert.Zero(t, f.retriever.calls)
	require.Len(t, f.store.entries, 1)
	assert.Equal(t, models.EventFullSummary, f.store.entries[0].Event)
	assert.Contains(t, f.synth.lastSummaryIn, "Once upon a time.")
	assert.Contains(t, f.synth.lastSummaryIn, "They became friends.")
}

func TestAskSummaryEmptyBook(t *testing.T) {
	f := newFixture()
	f.store.chunks = nil

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "What is the plot?")

	assert.Equal(t, MsgEmptyBook, turn.Answer)
	assert.Equal(t, ModeNoDocs, turn.Mode)
	assert.Zero(t, f.synth.summaryCalls)
}

func TestAskSummaryUnsafe(t *testing.T) {
	f := newFixture()
	f.store.chunks = []models.Chunk{{ID: "c0", Text: "Some text."}}
	f.rf.safe = false

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "summarize this book")

	assert.Equal(t, MsgUnsafeSummary, turn.Answer)
	assert.Equal(t, ModeSummary, turn.Mode)
	assert.Equal(t, 1.0, turn.Score)
}

func TestAskSupportScoreFewerThanTopN(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("p1", "p2")
	f.ranker.scores = []float64{0.9, 0.5}

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, ModeDirect, turn.Mode)
	assert.InDelta(t, 0.7, turn.Score, 1e-9)
}

func TestAskScoreAtEvidenceThresholdAnswers(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("p1", "p2")
	f.ranker.scores = []float64{0.72, 0.4}
	f.ranker.gated = true

	turn := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, ModeDirect, turn.Mode)
	assert.Equal(t, 1, f.synth.answerCalls)
}

func TestAskCachedTurnStillLogs(t *testing.T) {
	f := newFixture()
	f.retriever.passages = passages("p1")
	f.ranker.scores = []float64{0.9}
	cache := newStubTurnCache()
	f.tutor = New(f.builder, f.retriever, f.ranker, f.pf, f.rf, f.synth, f.store, cache, Config{
		TopN:              3,
		EvidenceThreshold: 0.72,
	})

	first := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")
	require.Equal(t, 1, cache.sets)

	second := f.tutor.Ask(context.Background(), "wonder.pdf", "Who is August?")

	assert.Equal(t, first.Answer, second.Answer)
	assert.InDelta(t, first.Score, second.Score, 1e-9)
	assert.NotEqual(t, first.ID, second.ID)

	// the replay skipped the pipeline but still logged its own row
	assert.Equal(t, 1, f.retriever.calls)
	assert.Equal(t, 1, f.synth.answerCalls)
	require.Len(t, f.store.entries, 2)
	assert.Equal(t, models.EventSuccess, f.store.entries[1].Event)
	assert.Equal(t, "Who is August?", f.store.entries[1].Question)
}

func TestAskRefusalsAreNotCached(t *testing.T) {
	f := newFixture()
	f.retriever.passages = nil
	cache := newStubTurnCache()
	f.tutor = New(f.builder, f.retriever, f.ranker, f.pf, f.rf, f.synth, f.store, cache, Config{})

	f.tutor.Ask(context.Background(), "wonder.pdf", "What about dragons?")
	assert.Zero(t, cache.sets)
}

func TestIsSummaryRequest(t *testing.T) {
	assert.True(t, isSummaryRequest("What is the MAIN IDEA here?"))
	assert.True(t, isSummaryRequest("tell me about the whole book"))
	assert.True(t, isSummaryRequest("what is the story about?"))
	assert.False(t, isSummaryRequest("Who is the main character?"))
	assert.False(t, isSummaryRequest("Why was August sad?"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "hél", truncate("héllo", 3))
}
