package rag

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// ErrDimensionMismatch is returned when a vector does not have the store
// dimension.
var ErrDimensionMismatch = errors.New("rag: embedding dimension mismatch")

// Chunk is a piece of a document with its embedding.
type Chunk struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// VectorStore keeps chunks and finds the nearest ones to a query vector.
type VectorStore interface {
	Add(ctx context.Context, chunks []Chunk) error
	// Search returns the k chunks closest to vec by cosine distance.
	Search(ctx context.Context, vec []float32, k int) ([]types.RAGDocument, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// MemoryStore is an in-process VectorStore.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Add appends chunks.
func (s *MemoryStore) Add(_ context.Context, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Search ranks every chunk by cosine similarity.
func (s *MemoryStore) Search(_ context.Context, vec []float32, k int) ([]types.RAGDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := toFloat64(vec)
	type scored struct {
		chunk *Chunk
		score float64
	}
	ranked := make([]scored, 0, len(s.chunks))
	for i := range s.chunks {
		c := &s.chunks[i]
		if len(c.Embedding) != len(vec) {
			return nil, ErrDimensionMismatch
		}
		ranked = append(ranked, scored{c, cosine(query, toFloat64(c.Embedding))})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	docs := make([]types.RAGDocument, 0, k)
	for _, r := range ranked[:k] {
		docs = append(docs, types.RAGDocument{Content: r.chunk.Content, Metadata: r.chunk.Metadata})
	}
	return docs, nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return math.Inf(-1)
	}
	return floats.Dot(a, b) / (na * nb)
}

var _ VectorStore = (*MemoryStore)(nil)
