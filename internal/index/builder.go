package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/library"
	"github.com/book-tutor/backend/internal/metrics"
	"github.com/book-tutor/backend/internal/storage/models"
	"github.com/book-tutor/backend/internal/vector/milvus"
	"github.com/book-tutor/backend/pkg/logger"
)

// Index is the process-lifetime handle for one indexed document. Read-only
// after creation.
type Index struct {
	DocID      string
	Name       string
	ChunkCount int
}

type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	Insert(ctx context.Context, records []milvus.ChunkRecord) error
}

type Store interface {
	GetDocument(id string) (*models.Document, error)
	InsertDocument(doc *models.Document) error
	InsertChunks(chunks []models.Chunk) error
}

// Builder turns book files into queryable chunk indexes. A document is
// embedded at most once per identity; later calls load the stored result.
type Builder struct {
	source       *library.Source
	store        Store
	vectors      VectorStore
	embedder     Embedder
	chunkSize    int
	chunkOverlap int

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	indexes map[string]*Index
}

func NewBuilder(source *library.Source, store Store, vectors VectorStore, embedder Embedder, chunkSize, chunkOverlap int) *Builder {
	return &Builder{
		source:       source,
		store:        store,
		vectors:      vectors,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		locks:        make(map[string]*sync.Mutex),
		indexes:      make(map[string]*Index),
	}
}

// BuildOrLoad returns the index for documentName, building it on first use.
// Concurrent first calls for the same document are serialized: one caller
// embeds, the rest reuse. A missing book file fails with
// library.ErrSourceNotFound.
func (b *Builder) BuildOrLoad(ctx context.Context, documentName string) (*Index, error) {
	docID := library.DocumentID(documentName)

	lock := b.keyLock(docID)
	lock.Lock()
	defer lock.Unlock()

	b.mu.Lock()
	cached, ok := b.indexes[docID]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}

	path, err := b.source.Resolve(documentName)
	if err != nil {
		return nil, err
	}

	// A document row marks a completed earlier build; chunk boundaries are
	// deterministic, so the stored index is equivalent to rebuilding.
	doc, err := b.store.GetDocument(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up document: %w", err)
	}
	if doc != nil {
		idx := &Index{DocID: docID, Name: doc.Name, ChunkCount: doc.ChunkCount}
		b.remember(idx)
		logger.Info("Index loaded",
			zap.String("doc_id", docID),
			zap.Int("chunks", doc.ChunkCount),
		)
		return idx, nil
	}

	idx, err := b.build(ctx, docID, documentName, path)
	if err != nil {
		return nil, err
	}

	b.remember(idx)
	return idx, nil
}

func (b *Builder) build(ctx context.Context, docID, documentName, path string) (*Index, error) {
	logger.Info("Building index", zap.String("doc_id", docID), zap.String("path", path))

	text, err := b.source.ExtractText(path)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	chunks := SplitText(text, b.chunkSize, b.chunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text extracted from %s", documentName)
	}

	embeddings, err := b.embedder.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	now := time.Now()
	records := make([]milvus.ChunkRecord, 0, len(chunks))
	rows := make([]models.Chunk, 0, len(chunks))
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", docID, i)
		records = append(records, milvus.ChunkRecord{
			ID:         chunkID,
			DocID:      docID,
			ChunkIndex: int64(i),
			Text:       chunkText,
			Embedding:  embeddings[i],
		})
		rows = append(rows, models.Chunk{
			ID:         chunkID,
			DocID:      docID,
			ChunkIndex: i,
			Text:       chunkText,
			CreatedAt:  now,
		})
	}

	if err := b.vectors.Insert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to insert into vector index: %w", err)
	}

	if err := b.store.InsertChunks(rows); err != nil {
		return nil, fmt.Errorf("failed to mirror chunks: %w", err)
	}

	// Written last: its presence certifies a fully stored index.
	err = b.store.InsertDocument(&models.Document{
		ID:         docID,
		Name:       documentName,
		Path:       path,
		ChunkCount: len(chunks),
		IndexedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	metrics.DocumentsIndexed.Inc()
	logger.Info("Index built",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)),
	)

	return &Index{DocID: docID, Name: documentName, ChunkCount: len(chunks)}, nil
}

func (b *Builder) keyLock(docID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	lock, ok := b.locks[docID]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[docID] = lock
	}
	return lock
}

func (b *Builder) remember(idx *Index) {
	b.mu.Lock()
	b.indexes[idx.DocID] = idx
	b.mu.Unlock()
}
