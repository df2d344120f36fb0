// Package rag answers questions with a language model grounded on chunks
// retrieved from a vector store.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"

	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/config"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/internal/llm"
	"github.com/BESSER-PEARL/BESSER-Bot-Framework-sub000/pkg/types"
)

// DefaultPrompt is the instruction sent before the retrieved context.
var DefaultPrompt = heredoc.Doc(`
	You are an assistant for question-answering tasks. Based on the previous messages in the
	conversation (if provided), and additional context retrieved from a database (if provided),
	answer the user question. If you don't know the answer, just say that you don't know. If the
	question refers to a previous message, you may have to ignore the context since it is retrieved
	from the question alone. Use three sentences maximum and keep the answer concise.`)

// ErrEmptyQuestion is returned by Run when there is nothing to ask.
var ErrEmptyQuestion = errors.New("rag: empty question")

// Config tunes retrieval and prompting.
type Config struct {
	Prompt     string // default: DefaultPrompt
	K          int    // chunks retrieved per question, default 4
	NumContext int    // previous chat messages sent to the model
	Splitter   Splitter
	Logger     *slog.Logger
}

// ConfigFromProperties reads the nlp.rag.* properties.
func ConfigFromProperties(props *config.Properties) Config {
	return Config{
		K:          props.Int(config.RAGK),
		NumContext: props.Int(config.RAGNumContext),
		Splitter: Splitter{
			ChunkSize: props.Int(config.RAGChunkSize),
			Overlap:   props.Int(config.RAGChunkOverlap),
		},
	}
}

// RAG ties a vector store, an embedder and a language model together.
type RAG struct {
	store    VectorStore
	embedder llm.Embedder
	model    llm.LLM
	cfg      Config
	logger   *slog.Logger
}

// New creates a RAG.
func New(store VectorStore, embedder llm.Embedder, model llm.LLM, cfg Config) *RAG {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.K <= 0 {
		cfg.K = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RAG{store: store, embedder: embedder, model: model, cfg: cfg, logger: cfg.Logger}
}

// LLMName returns the name of the answering model.
func (r *RAG) LLMName() string { return r.model.Name() }

// AddDocuments splits, embeds and stores docs. It returns the number of
// chunks stored.
func (r *RAG) AddDocuments(ctx context.Context, docs []types.RAGDocument) (int, error) {
	var chunks []Chunk
	for _, doc := range docs {
		for _, piece := range r.cfg.Splitter.Split(doc.Content) {
			vec, err := r.embedder.Embed(ctx, piece)
			if err != nil {
				return 0, fmt.Errorf("rag: failed to embed chunk: %w", err)
			}
			chunks = append(chunks, Chunk{Content: piece, Metadata: doc.Metadata, Embedding: vec})
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := r.store.Add(ctx, chunks); err != nil {
		return 0, err
	}
	total, _ := r.store.Count(ctx)
	r.logger.Info("added chunks to the vector store", slog.Int("chunks", len(chunks)), slog.Int("total", total))
	return len(chunks), nil
}

// LoadDir adds every .txt and .md file of dir, with the file name as the
// "source" metadata.
func (r *RAG) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("rag: failed to read %s: %w", dir, err)
	}
	var docs []types.RAGDocument
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".txt" && ext != ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return 0, fmt.Errorf("rag: failed to read %s: %w", e.Name(), err)
		}
		docs = append(docs, types.RAGDocument{
			Content:  string(data),
			Metadata: map[string]any{"source": e.Name()},
		})
	}
	return r.AddDocuments(ctx, docs)
}

// Retrieve returns the k chunks closest to question (Config.K when k <= 0).
func (r *RAG) Retrieve(ctx context.Context, question string, k int) ([]types.RAGDocument, error) {
	if k <= 0 {
		k = r.cfg.K
	}
	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: failed to embed question: %w", err)
	}
	return r.store.Search(ctx, vec, k)
}

// RunOptions override the Config for one Run.
type RunOptions struct {
	Prompt     string
	K          int
	NumContext int
}

// Run retrieves the context of question and asks the model, sending the
// last NumContext messages of history too.
func (r *RAG) Run(ctx context.Context, question string, history []types.Message, opts RunOptions) (*types.RAGMessage, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = r.cfg.Prompt
	}
	numContext := opts.NumContext
	if numContext <= 0 {
		numContext = r.cfg.NumContext
	}

	docs, err := r.Retrieve(ctx, question, opts.K)
	if err != nil {
		return nil, err
	}

	req := llm.Request{System: prompt}
	if numContext > 0 && len(history) > 0 {
		start := max(len(history)-numContext, 0)
		for _, m := range history[start:] {
			role := llm.RoleAssistant
			if m.IsUser {
				role = llm.RoleUser
			}
			req.Turns = append(req.Turns, llm.Turn{Role: role, Content: m.Text()})
		}
	}
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	req.Turns = append(req.Turns, llm.Turn{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context: %s\nQuestion: %s\nAnswer:", strings.Join(contents, "\n\n"), question),
	})

	answer, err := r.model.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}
	return &types.RAGMessage{
		LLMName:  r.model.Name(),
		Question: question,
		Answer:   answer,
		Docs:     docs,
	}, nil
}

// Close closes the vector store.
func (r *RAG) Close() error {
	return r.store.Close()
}
