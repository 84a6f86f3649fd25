package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/book-tutor/backend/internal/storage/models"
	"github.com/book-tutor/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		path TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		indexed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_name ON documents(name);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (doc_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON document_chunks(doc_id, chunk_index);

	CREATE TABLE IF NOT EXISTS logs (
		timestamp REAL NOT NULL,
		event TEXT NOT NULL,
		passage TEXT,
		question TEXT,
		score REAL,
		latency REAL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_event ON logs(event);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_turn ON feedback(turn_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertDocument(doc *models.Document) error {
	query := `
		INSERT INTO documents (id, name, path, chunk_count, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chunk_count = excluded.chunk_count,
			indexed_at = excluded.indexed_at
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.Name,
		doc.Path,
		doc.ChunkCount,
		doc.IndexedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("name", doc.Name))
	return nil
}

// GetDocument returns nil without error when the document was never indexed.
func (c *Client) GetDocument(id string) (*models.Document, error) {
	query := `SELECT id, name, path, chunk_count, indexed_at FROM documents WHERE id = ?`

	var doc models.Document
	var indexedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&doc.ID,
		&doc.Name,
		&doc.Path,
		&doc.ChunkCount,
		&indexedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc.IndexedAt = time.Unix(indexedAt, 0)
	return &doc, nil
}

// InsertChunks writes all chunk rows of one document in a single transaction
// so a partially indexed document is never visible.
func (c *Client) InsertChunks(chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO document_chunks (id, doc_id, chunk_index, text, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		_, err := stmt.Exec(chunk.ID, chunk.DocID, chunk.ChunkIndex, chunk.Text, chunk.CreatedAt.Unix())
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	return nil
}

// GetChunks returns stored chunks in original document order, capped at limit
// (0 means no cap).
func (c *Client) GetChunks(docID string, limit int) ([]models.Chunk, error) {
	query := `
		SELECT id, doc_id, chunk_index, text, created_at
		FROM document_chunks
		WHERE doc_id = ?
		ORDER BY chunk_index
	`
	args := []interface{}{docID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var ch models.Chunk
		var createdAt int64

		err := rows.Scan(&ch.ID, &ch.DocID, &ch.ChunkIndex, &ch.Text, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		ch.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, ch)
	}

	return chunks, rows.Err()
}

// AppendLog writes one interaction row in its own transaction. Concurrent
// turns each get a whole row or none.
func (c *Client) AppendLog(entry *models.LogEntry) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO logs (timestamp, event, passage, question, score, latency) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Timestamp,
		entry.Event,
		entry.Passage,
		entry.Question,
		entry.Score,
		entry.Latency,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to append log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit log: %w", err)
	}

	logger.Info("Turn recorded",
		zap.String("event", entry.Event),
		zap.Float64("score", entry.Score),
		zap.Float64("latency_sec", entry.Latency),
	)

	return nil
}

func (c *Client) GetLogStats() ([]models.EventStats, error) {
	query := `
		SELECT event, COUNT(*), AVG(score), AVG(latency)
		FROM logs
		GROUP BY event
		ORDER BY COUNT(*) DESC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get log stats: %w", err)
	}
	defer rows.Close()

	var stats []models.EventStats
	for rows.Next() {
		var s models.EventStats
		err := rows.Scan(&s.Event, &s.Count, &s.AvgScore, &s.AvgLatency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (c *Client) StoreFeedback(feedback *models.Feedback) error {
	query := `INSERT INTO feedback (turn_id, helpful, comment, created_at) VALUES (?, ?, ?, ?)`

	helpful := 0
	if feedback.Helpful {
		helpful = 1
	}

	_, err := c.db.Exec(query, feedback.TurnID, helpful, feedback.Comment, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("turn_id", feedback.TurnID),
		zap.Bool("helpful", feedback.Helpful),
	)

	return nil
}
