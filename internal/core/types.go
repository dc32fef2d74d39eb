package core

// SourceType identifies where a chunk came from.
type SourceType string

const (
	SourcePDF     SourceType = "pdf"
	SourceWebsite SourceType = "website"
)

// Chunk is one retrievable unit of source text. The ID is derived from the
// source identity and chunk position (pdf_<filename>_<index>,
// web_<urlhash>_<index>), so re-ingesting a document overwrites its chunks
// instead of duplicating them.
type Chunk struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Source     string     `json:"source"`
	Type       SourceType `json:"type"`
	ChunkIndex int        `json:"chunk_index"`
	// URL is set for website chunks only.
	URL string `json:"url,omitempty"`
}

// Match is a nearest-neighbor hit returned by a vector store. Distance is
// cosine distance in [0,2]: 0 identical, 2 opposite. Adapters over stores
// that report a different metric must convert before returning.
type Match struct {
	Chunk    Chunk
	Distance float32
}

// RetrievalResult is a thresholded retrieval hit, ready for prompt
// inclusion. Constructed per query, never persisted.
type RetrievalResult struct {
	Text       string  `json:"text"`
	Source     string  `json:"source"`
	Similarity float32 `json:"similarity"`
}

// Formatted returns the result as it appears inside the prompt context
// block.
func (r RetrievalResult) Formatted() string {
	return "[" + r.Source + "]\n" + r.Text
}

// Stats summarizes the knowledge base contents.
type Stats struct {
	TotalChunks int64            `json:"total_chunks"`
	PerType     map[string]int64 `json:"sources"`
}
