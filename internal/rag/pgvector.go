package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PGVectorStore keeps chunks in a PostgreSQL table with a pgvector column.
type PGVectorStore struct {
	db         *sql.DB
	table      string
	dimensions int
	ownsDB     bool
}

// OpenPGVectorStore connects to dsn and prepares the chunk table.
func OpenPGVectorStore(ctx context.Context, dsn, table string, dimensions int) (*PGVectorStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("rag: failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rag: failed to ping database: %w", err)
	}
	s, err := NewPGVectorStore(ctx, db, table, dimensions)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewPGVectorStore prepares the chunk table on an existing connection. The
// pgvector extension must be installable by the connected role.
func NewPGVectorStore(ctx context.Context, db *sql.DB, table string, dimensions int) (*PGVectorStore, error) {
	if table == "" {
		table = "rag_chunks"
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("rag: invalid table name %q", table)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("rag: dimensions must be positive, got %d", dimensions)
	}
	s := &PGVectorStore{db: db, table: table, dimensions: dimensions}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGVectorStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				content TEXT NOT NULL,
				metadata JSONB NOT NULL DEFAULT '{}',
				embedding vector(%d) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, s.table, s.dimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rag: failed to migrate %s: %w", s.table, err)
		}
	}
	return nil
}

// Add inserts chunks in one transaction. Chunks without an ID get a new one.
func (s *PGVectorStore) Add(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rag: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`, s.table)
	for _, c := range chunks {
		if len(c.Embedding) != s.dimensions {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(c.Embedding), s.dimensions)
		}
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta, err := json.Marshal(metadataOrEmpty(c.Metadata))
		if err != nil {
			return fmt.Errorf("rag: failed to encode metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, id, c.Content, meta, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("rag: failed to store chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rag: failed to commit chunks: %w", err)
	}
	return nil
}

// Search orders chunks by cosine distance with the pgvector <=> operator.
func (s *PGVectorStore) Search(ctx context.Context, vec []float32, k int) ([]types.RAGDocument, error) {
	if len(vec) != s.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.dimensions)
	}
	query := fmt.Sprintf(`SELECT content, metadata FROM %s ORDER BY embedding <=> $1 LIMIT $2`, s.table)
	rows, err := s.db.QueryContext(ctx, query, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("rag: failed to search chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []types.RAGDocument
	for rows.Next() {
		var (
			doc  types.RAGDocument
			meta []byte
		)
		if err := rows.Scan(&doc.Content, &meta); err != nil {
			return nil, fmt.Errorf("rag: failed to scan chunk: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("rag: failed to decode metadata: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of stored chunks.
func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("rag: failed to count chunks: %w", err)
	}
	return n, nil
}

// Close closes the connection when the store opened it.
func (s *PGVectorStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func metadataOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

var _ VectorStore = (*PGVectorStore)(nil)
