// Package ingest drives PDF and website content through chunking,
// embedding and the knowledge store.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ragchat/ragchat/internal/chunk"
	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/logger"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Pipeline ingests documents into the knowledge store. Ingestion is
// idempotent per source identity: chunk ids are derived from the source
// and chunk position, so re-ingesting overwrites instead of duplicating.
type Pipeline struct {
	store     core.VectorStore
	embedder  core.EmbedService
	chunkSize int
	overlap   int
}

// NewPipeline creates a Pipeline with the given chunking parameters.
func NewPipeline(store core.VectorStore, embedder core.EmbedService, chunkSize, overlap int) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunk.DefaultOverlap
	}
	return &Pipeline{
		store:     store,
		embedder:  embedder,
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

// collapseWhitespace normalizes all whitespace runs to single spaces.
func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// urlHash returns the 8-hex-char prefix of the md5 of url, used to key a
// page's chunk group.
func urlHash(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])[:8]
}

// storeChunks chunks text, embeds the pieces and upserts them with ids
// <idPrefix>_<index>. An empty chunk list performs no store operation.
// Returns the number of chunks stored.
func (p *Pipeline) storeChunks(ctx context.Context, text, idPrefix string, meta core.Chunk) (int, error) {
	pieces, err := chunk.Split(text, p.chunkSize, p.overlap)
	if err != nil {
		return 0, err
	}
	if len(pieces) == 0 {
		logger.RAGDebug("No chunks produced for %s, skipping store", idPrefix)
		return 0, nil
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, pieces)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	chunks := make([]core.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = core.Chunk{
			ID:         fmt.Sprintf("%s_%d", idPrefix, i),
			Text:       piece,
			Source:     meta.Source,
			Type:       meta.Type,
			ChunkIndex: i,
			URL:        meta.URL,
		}
	}

	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return len(chunks), nil
}
