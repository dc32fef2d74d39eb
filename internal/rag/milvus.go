package rag

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/logger"
)

// Field names for the knowledge base collection
const (
	FieldID         = "id"
	FieldText       = "text"
	FieldSource     = "source"
	FieldType       = "type"
	FieldURL        = "url"
	FieldChunkIndex = "chunk_index"
	FieldVector     = "vector"
)

// CollectionName is the single collection holding all knowledge chunks.
const CollectionName = "knowledge_base"

// DefaultEmbeddingDim is used when no dimension is configured.
const DefaultEmbeddingDim = 384

var outputFields = []string{FieldID, FieldText, FieldSource, FieldType, FieldURL, FieldChunkIndex}

// MilvusStore implements core.VectorStore on a Milvus collection. The
// collection index uses the COSINE metric; Milvus reports similarity in
// [-1,1], which the adapter converts to cosine distance d = 1 - s so all
// stores speak the same [0,2] distance contract.
type MilvusStore struct {
	client       *milvusclient.Client
	embeddingDim int
}

// NewMilvusStore connects to Milvus and ensures the knowledge base
// collection exists, is indexed and is loaded.
func NewMilvusStore(ctx context.Context, addr string, embeddingDim int) (*MilvusStore, error) {
	logger.RAGInfo("Connecting to Milvus at %s with dimension %d", addr, embeddingDim)

	if embeddingDim <= 0 {
		embeddingDim = DefaultEmbeddingDim
	}

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}

	s := &MilvusStore{client: c, embeddingDim: embeddingDim}
	if err := s.ensureCollection(ctx); err != nil {
		c.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(CollectionName))
	if err != nil {
		return fmt.Errorf("failed to check if collection exists: %w", err)
	}

	if !exists {
		schema := &entity.Schema{
			CollectionName: CollectionName,
			Description:    "Knowledge base chunks with embeddings",
			Fields: []*entity.Field{
				{
					Name:       FieldID,
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "255"},
				},
				{
					Name:       FieldText,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "65535"},
				},
				{
					Name:       FieldSource,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "1024"},
				},
				{
					Name:       FieldType,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "32"},
				},
				{
					Name:       FieldURL,
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "2048"},
				},
				{
					Name:     FieldChunkIndex,
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       FieldVector,
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", s.embeddingDim)},
				},
			},
		}

		if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(CollectionName, schema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx := index.NewHNSWIndex(entity.COSINE, 16, 200)
		if _, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(CollectionName, FieldVector, idx)); err != nil {
			return fmt.Errorf("failed to create index on vector field: %w", err)
		}

		logger.RAGInfo("Created collection: %s", CollectionName)
	}

	if _, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(CollectionName)); err != nil {
		return fmt.Errorf("failed to load collection %s into memory: %w", CollectionName, err)
	}
	return nil
}

// Upsert implements core.VectorStore. Chunks are keyed by id, so
// re-ingesting a document overwrites its previous chunks.
func (s *MilvusStore) Upsert(ctx context.Context, chunks []core.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	types := make([]string, len(chunks))
	urls := make([]string, len(chunks))
	indexes := make([]int64, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		texts[i] = c.Text
		sources[i] = c.Source
		types[i] = string(c.Type)
		urls[i] = c.URL
		indexes[i] = int64(c.ChunkIndex)
	}

	opt := milvusclient.NewColumnBasedInsertOption(CollectionName,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnVarChar(FieldSource, sources),
		column.NewColumnVarChar(FieldType, types),
		column.NewColumnVarChar(FieldURL, urls),
		column.NewColumnInt64(FieldChunkIndex, indexes),
		column.NewColumnFloatVector(FieldVector, s.embeddingDim, vectors),
	)

	if _, err := s.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	logger.RAGDebug("Upserted %d chunks", len(chunks))
	return nil
}

// Query implements core.VectorStore.
func (s *MilvusStore) Query(ctx context.Context, vector []float32, k int) ([]core.Match, error) {
	if k <= 0 {
		k = 5
	}

	opt := milvusclient.NewSearchOption(CollectionName, k, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldVector).
		WithOutputFields(outputFields...)

	results, err := s.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	matches := make([]core.Match, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		c, err := chunkFromColumns(rs.GetColumn, i)
		if err != nil {
			logger.RAGError("Skipping malformed search hit %d: %v", i, err)
			continue
		}

		// COSINE similarity score -> cosine distance.
		var score float32
		if i < len(rs.Scores) {
			score = rs.Scores[i]
		}
		matches = append(matches, core.Match{Chunk: c, Distance: 1 - score})
	}
	return matches, nil
}

// Get implements core.VectorStore.
func (s *MilvusStore) Get(ctx context.Context, id string) (core.Chunk, bool, error) {
	opt := milvusclient.NewQueryOption(CollectionName).
		WithFilter(fmt.Sprintf(`%s == "%s"`, FieldID, id)).
		WithOutputFields(outputFields...).
		WithLimit(1)

	rs, err := s.client.Query(ctx, opt)
	if err != nil {
		return core.Chunk{}, false, fmt.Errorf("failed to query chunk %s: %w", id, err)
	}
	if rs.ResultCount == 0 {
		return core.Chunk{}, false, nil
	}

	c, err := chunkFromColumns(rs.GetColumn, 0)
	if err != nil {
		return core.Chunk{}, false, err
	}
	return c, true, nil
}

// List implements core.VectorStore.
func (s *MilvusStore) List(ctx context.Context) ([]core.Chunk, error) {
	opt := milvusclient.NewQueryOption(CollectionName).
		WithFilter(fmt.Sprintf(`%s != ""`, FieldID)).
		WithOutputFields(outputFields...)

	rs, err := s.client.Query(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}

	chunks := make([]core.Chunk, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		c, err := chunkFromColumns(rs.GetColumn, i)
		if err != nil {
			logger.RAGError("Skipping malformed chunk %d: %v", i, err)
			continue
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// Delete implements core.VectorStore.
func (s *MilvusStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	opt := milvusclient.NewDeleteOption(CollectionName).WithStringIDs("", ids)
	if _, err := s.client.Delete(ctx, opt); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// DeleteByType implements core.VectorStore.
func (s *MilvusStore) DeleteByType(ctx context.Context, t core.SourceType) (int, error) {
	opt := milvusclient.NewDeleteOption(CollectionName).
		WithExpr(fmt.Sprintf(`%s == "%s"`, FieldType, string(t)))
	result, err := s.client.Delete(ctx, opt)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks of type %s: %w", t, err)
	}
	return int(result.DeleteCount), nil
}

// Clear implements core.VectorStore.
func (s *MilvusStore) Clear(ctx context.Context) error {
	opt := milvusclient.NewDeleteOption(CollectionName).
		WithExpr(fmt.Sprintf(`%s != ""`, FieldID))
	if _, err := s.client.Delete(ctx, opt); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}

// Count implements core.VectorStore.
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	opt := milvusclient.NewQueryOption(CollectionName).WithOutputFields("count(*)")
	rs, err := s.client.Query(ctx, opt)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}

	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	count, err := col.GetAsInt64(0)
	if err != nil {
		return 0, fmt.Errorf("failed to read count column: %w", err)
	}
	return count, nil
}

// Close implements core.VectorStore.
func (s *MilvusStore) Close() error {
	return s.client.Close(context.Background())
}

// chunkFromColumns reassembles a Chunk from the output columns of a query
// or search result at row i.
func chunkFromColumns(getColumn func(string) column.Column, i int) (core.Chunk, error) {
	var c core.Chunk

	str := func(field string) (string, error) {
		col := getColumn(field)
		if col == nil {
			return "", fmt.Errorf("missing column %s", field)
		}
		return col.GetAsString(i)
	}

	var err error
	if c.ID, err = str(FieldID); err != nil {
		return c, err
	}
	if c.Text, err = str(FieldText); err != nil {
		return c, err
	}
	if c.Source, err = str(FieldSource); err != nil {
		return c, err
	}
	typeStr, err := str(FieldType)
	if err != nil {
		return c, err
	}
	c.Type = core.SourceType(typeStr)
	if c.URL, err = str(FieldURL); err != nil {
		return c, err
	}

	idxCol := getColumn(FieldChunkIndex)
	if idxCol == nil {
		return c, fmt.Errorf("missing column %s", FieldChunkIndex)
	}
	idx, err := idxCol.GetAsInt64(i)
	if err != nil {
		return c, err
	}
	c.ChunkIndex = int(idx)

	return c, nil
}
