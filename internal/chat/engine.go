// Package chat orchestrates the answer pipeline: sanitize, retrieve,
// assemble the prompt, generate and filter.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/filter"
	"github.com/ragchat/ragchat/internal/llm"
	"github.com/ragchat/ragchat/internal/logger"
	"github.com/ragchat/ragchat/internal/rag"
	"github.com/ragchat/ragchat/internal/sanitize"
	"github.com/ragchat/ragchat/internal/stream"
)

// Pipeline outcomes that are user conditions, not faults. The provider is
// never contacted when one of these occurs.
var (
	ErrEmptyKnowledgeBase = errors.New("no knowledge base loaded")
	ErrNoRelevantContext  = errors.New("no relevant information found in the knowledge base")
)

// User-visible messages for the sentinel conditions.
const (
	EmptyKnowledgeBaseMessage = "No knowledge base loaded. Please add PDFs or websites first using /add_pdf or /add_website commands."
	NoRelevantContextMessage  = "No relevant information found in the knowledge base."
)

// ProviderError reports a generation backend failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UserMessage maps a pipeline error to the text shown to the person
// asking.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyKnowledgeBase):
		return EmptyKnowledgeBaseMessage
	case errors.Is(err, ErrNoRelevantContext):
		return NoRelevantContextMessage
	default:
		return err.Error()
	}
}

// Config holds the retrieval tuning for an Engine.
type Config struct {
	TopK                int
	SimilarityThreshold float32
	// DebugSimilarity logs raw candidate scores per query.
	DebugSimilarity bool
}

// Engine answers questions over the knowledge store through a single
// generation provider chosen at construction.
type Engine struct {
	store     core.VectorStore
	retriever *rag.Retriever
	provider  llm.Provider
	topK      int
	threshold float32
	opts      llm.Options
}

// NewEngine wires a store, an embedder and a provider into an Engine.
func NewEngine(store core.VectorStore, embedder core.EmbedService, provider llm.Provider, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = rag.DefaultTopK
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = rag.DefaultSimilarityThreshold
	}

	retriever := rag.NewRetriever(store, embedder)
	retriever.Debug = cfg.DebugSimilarity

	return &Engine{
		store:     store,
		retriever: retriever,
		provider:  provider,
		topK:      cfg.TopK,
		threshold: cfg.SimilarityThreshold,
		opts:      llm.DefaultOptions,
	}
}

// Provider exposes the configured generation backend.
func (e *Engine) Provider() llm.Provider { return e.provider }

// prepare sanitizes the query and assembles the prompt, or reports the
// sentinel condition that stops the pipeline before generation.
func (e *Engine) prepare(ctx context.Context, query string) (string, error) {
	sanitized := sanitize.Clean(query)

	count, err := e.store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to inspect knowledge base: %w", err)
	}
	if count == 0 {
		return "", ErrEmptyKnowledgeBase
	}

	results, err := e.retriever.Retrieve(ctx, sanitized, e.topK, e.threshold)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", ErrNoRelevantContext
	}

	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Formatted()
	}
	return llm.BuildPrompt(sanitized, contexts), nil
}

// Answer runs the full pipeline and returns the filtered response.
func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	prompt, err := e.prepare(ctx, query)
	if err != nil {
		return "", err
	}

	raw, err := e.provider.Generate(ctx, prompt, e.opts)
	if err != nil {
		perr := &ProviderError{Provider: e.provider.Name(), Err: err}
		logger.LLMError("%v", perr)
		return "", perr
	}
	return filter.Filter(raw), nil
}

// AnswerStream runs the pipeline and emits the answer incrementally.
// Every stream ends with exactly one terminal event: a failure frame on
// any pipeline or provider error, otherwise a done frame, preceded by a
// corrective replacement when end-of-stream filtering changed the text.
// When emit itself fails the client is gone and its error is returned
// without a terminal frame.
func (e *Engine) AnswerStream(ctx context.Context, query string, emit func(stream.Event) error) error {
	prompt, err := e.prepare(ctx, query)
	if err != nil {
		return emit(stream.Failure(UserMessage(err)))
	}

	var sf filter.StreamFilter
	var emitErr error
	genErr := e.provider.GenerateStream(ctx, prompt, e.opts, func(delta string) error {
		out := sf.Feed(delta)
		if out == "" {
			return nil
		}
		if err := emit(stream.Content(out)); err != nil {
			emitErr = err
			return err
		}
		return nil
	})

	if genErr != nil {
		if emitErr != nil {
			return emitErr
		}
		perr := &ProviderError{Provider: e.provider.Name(), Err: genErr}
		logger.LLMError("%v", perr)
		return emit(stream.Failure(perr.Error()))
	}

	if final, replace := sf.Finalize(); replace {
		if err := emit(stream.Replacement(final)); err != nil {
			return err
		}
	}
	return emit(stream.Done())
}

// Stats summarizes the knowledge base by chunk count per source type.
func (e *Engine) Stats(ctx context.Context) (core.Stats, error) {
	chunks, err := e.store.List(ctx)
	if err != nil {
		return core.Stats{}, fmt.Errorf("failed to list chunks: %w", err)
	}

	stats := core.Stats{
		TotalChunks: int64(len(chunks)),
		PerType:     make(map[string]int64),
	}
	for _, c := range chunks {
		stats.PerType[string(c.Type)]++
	}
	return stats, nil
}
