package sqlite

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-tutor/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "tutor.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())
	t.Cleanup(func() { client.Close() })

	return client
}

func TestDocumentRoundTrip(t *testing.T) {
	client := newTestClient(t)

	doc := &models.Document{
		ID:         "abc123",
		Name:       "the_lost_symbol",
		Path:       "/novels/the_lost_symbol.pdf",
		ChunkCount: 42,
		IndexedAt:  time.Now(),
	}
	require.NoError(t, client.InsertDocument(doc))

	got, err := client.GetDocument("abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "the_lost_symbol", got.Name)
	assert.Equal(t, 42, got.ChunkCount)
}

func TestGetDocument_MissingReturnsNil(t *testing.T) {
	client := newTestClient(t)

	got, err := client.GetDocument("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChunksOrderedAndCapped(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.InsertDocument(&models.Document{
		ID: "doc1", Name: "book", Path: "/novels/book.txt", ChunkCount: 3, IndexedAt: time.Now(),
	}))

	chunks := []models.Chunk{
		{ID: "doc1_chunk_2", DocID: "doc1", ChunkIndex: 2, Text: "third", CreatedAt: time.Now()},
		{ID: "doc1_chunk_0", DocID: "doc1", ChunkIndex: 0, Text: "first", CreatedAt: time.Now()},
		{ID: "doc1_chunk_1", DocID: "doc1", ChunkIndex: 1, Text: "second", CreatedAt: time.Now()},
	}
	require.NoError(t, client.InsertChunks(chunks))

	got, err := client.GetChunks("doc1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func TestAppendLogConcurrentWriters(t *testing.T) {
	client := newTestClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := client.AppendLog(&models.LogEntry{
				Timestamp: float64(time.Now().UnixNano()) / 1e9,
				Event:     models.EventSuccess,
				Question:  "what happens?",
				Score:     0.9,
				Latency:   0.5,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := client.GetLogStats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, models.EventSuccess, stats[0].Event)
	assert.Equal(t, 10, stats[0].Count)
}

func TestLogStatsGroupsByEvent(t *testing.T) {
	client := newTestClient(t)

	entries := []models.LogEntry{
		{Event: models.EventSuccess, Score: 0.8, Latency: 1.0},
		{Event: models.EventSuccess, Score: 0.6, Latency: 3.0},
		{Event: models.EventNoDocs, Score: 0.0, Latency: 0.2},
	}
	for i := range entries {
		require.NoError(t, client.AppendLog(&entries[i]))
	}

	stats, err := client.GetLogStats()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byEvent := map[string]models.EventStats{}
	for _, s := range stats {
		byEvent[s.Event] = s
	}
	assert.Equal(t, 2, byEvent[models.EventSuccess].Count)
	assert.InDelta(t, 0.7, byEvent[models.EventSuccess].AvgScore, 1e-9)
	assert.InDelta(t, 2.0, byEvent[models.EventSuccess].AvgLatency, 1e-9)
}

func TestStoreFeedback(t *testing.T) {
	client := newTestClient(t)

	err := client.StoreFeedback(&models.Feedback{TurnID: "turn-1", Helpful: true, Comment: "great"})
	assert.NoError(t, err)
}
