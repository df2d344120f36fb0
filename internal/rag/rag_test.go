package rag_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/rag"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/testutil"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// keywordEmbedder counts a fixed set of keywords.
type keywordEmbedder struct{ words []string }

func (e keywordEmbedder) Model() string { return "keywords" }

func (e keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	text = strings.ToLower(text)
	vec := make([]float32, len(e.words))
	for i, w := range e.words {
		vec[i] = float32(strings.Count(text, w))
	}
	return vec, nil
}

type recordingLLM struct {
	answer string
	reqs   []llm.Request
}

func (m *recordingLLM) Name() string  { return "recorder" }
func (m *recordingLLM) Model() string { return "recorder-1" }
func (m *recordingLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.Chat(ctx, llm.Request{Turns: []llm.Turn{{Role: llm.RoleUser, Content: prompt}}})
}
func (m *recordingLLM) Chat(_ context.Context, req llm.Request) (string, error) {
	m.reqs = append(m.reqs, req)
	return m.answer, nil
}

var animals = keywordEmbedder{words: []string{"cat", "dog", "fish"}}

func TestSplitter_SentencesWithOverlap(t *testing.T) {
	s := rag.Splitter{ChunkSize: 40, Overlap: 20}
	chunks := s.Split("The cat sleeps. The dog barks. The bird sings. The fish swims.")
	assert.Equal(t, []string{
		"The cat sleeps. The dog barks.",
		"The dog barks. The bird sings.",
		"The bird sings. The fish swims.",
	}, chunks)

	assert.Equal(t, []string{"short text"}, s.Split("  short text "))
	assert.Empty(t, s.Split("   "))
}

func TestSplitter_LongSentenceIsCut(t *testing.T) {
	s := rag.Splitter{ChunkSize: 10}
	for _, c := range s.Split("aaaa bbbb cccc dddd eeee ffff") {
		assert.LessOrEqual(t, len(c), 10)
	}
}

func TestMemoryStore_RanksByCosine(t *testing.T) {
	ctx := context.Background()
	store := rag.NewMemoryStore()
	require.NoError(t, store.Add(ctx, []rag.Chunk{
		{Content: "dogs", Embedding: []float32{0, 1, 0}},
		{Content: "cats", Embedding: []float32{1, 0, 0}},
		{Content: "cats and fish", Embedding: []float32{1, 0, 1}},
	}))

	docs, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "cats", docs[0].Content)
	assert.Equal(t, "cats and fish", docs[1].Content)

	_, err = store.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}

func TestRAG_Run(t *testing.T) {
	ctx := context.Background()
	model := &recordingLLM{answer: "Cats sleep a lot."}
	r := rag.New(rag.NewMemoryStore(), animals, model, rag.Config{K: 1, NumContext: 2})

	n, err := r.AddDocuments(ctx, []types.RAGDocument{
		{Content: "The cat sleeps all day.", Metadata: map[string]any{"source": "cats.txt"}},
		{Content: "The dog guards the house.", Metadata: map[string]any{"source": "dogs.txt"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	history := []types.Message{
		types.NewMessage(types.MessageStr, "hello", true),
		types.NewMessage(types.MessageStr, "hi, ask me about pets", false),
		types.NewMessage(types.MessageStr, "what does the cat do?", true),
	}
	answer, err := r.Run(ctx, "what does the cat do?", history, rag.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "recorder", answer.LLMName)
	assert.Equal(t, "Cats sleep a lot.", answer.Answer)
	require.Len(t, answer.Docs, 1)
	assert.Equal(t, "The cat sleeps all day.", answer.Docs[0].Content)
	assert.Equal(t, "cats.txt", answer.Docs[0].Metadata["source"])

	require.Len(t, model.reqs, 1)
	req := model.reqs[0]
	assert.Equal(t, rag.DefaultPrompt, req.System)
	require.Len(t, req.Turns, 3)
	assert.Equal(t, llm.RoleAssistant, req.Turns[0].Role)
	assert.Equal(t, llm.RoleUser, req.Turns[1].Role)
	assert.Equal(t, "Context: The cat sleeps all day.\nQuestion: what does the cat do?\nAnswer:", req.Turns[2].Content)

	_, err = r.Run(ctx, "  ", nil, rag.RunOptions{})
	assert.ErrorIs(t, err, rag.ErrEmptyQuestion)
}

func TestRAG_LoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fish.md"), []byte("A fish swims."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.pdf"), []byte("%PDF"), 0o644))

	store := rag.NewMemoryStore()
	r := rag.New(store, animals, &recordingLLM{}, rag.Config{})
	n, err := r.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := r.Retrieve(context.Background(), "fish", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fish.md", docs[0].Metadata["source"])
}

func TestPGVectorStore(t *testing.T) {
	dsn := testutil.StartPostgres(t)
	ctx := context.Background()

	store, err := rag.OpenPGVectorStore(ctx, dsn, "", 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Add(ctx, []rag.Chunk{
		{Content: "dogs", Embedding: []float32{0, 1, 0}},
		{Content: "cats", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"source": "cats.txt"}},
	}))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := store.Search(ctx, []float32{1, 0.1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "cats", docs[0].Content)
	assert.Equal(t, "cats.txt", docs[0].Metadata["source"])

	err = store.Add(ctx, []rag.Chunk{{Content: "bad", Embedding: []float32{1}}})
	assert.ErrorIs(t, err, rag.ErrDimensionMismatch)
}
