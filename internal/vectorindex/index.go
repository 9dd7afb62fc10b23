package vectorindex

import (
	"context"
	"time"

	"github.com/issuelens/issuelens/internal/dataset"
	"github.com/issuelens/issuelens/internal/embedding"
	"github.com/issuelens/issuelens/internal/oputil"
)

// Descriptor is the persisted index configuration sidecar. A loaded index is
// only usable when the model and dimension match the engine querying it.
type Descriptor struct {
	ModelName        string `json:"model_name"`
	ChunkCount       int    `json:"chunk_count"`
	VectorDimension  int    `json:"vector_dimension"`
	MetadataEncoding string `json:"metadata_encoding"`
	CreatedAt        string `json:"created_at"`
}

// Index is an in-memory snapshot of the flat index: one normalized vector
// per chunk, rows aligned with Chunks.
type Index struct {
	Desc    Descriptor
	Vectors [][]float32
	Chunks  []Chunk
}

// BuildOptions tunes index construction.
type BuildOptions struct {
	// ChunkSize is the records-per-chunk grouping factor (default 10).
	ChunkSize int
}

// Build chunks the dataset, embeds all chunk texts in one batched call, and
// returns the normalized in-memory index. An empty dataset is an error: an
// index with zero rows is never written.
func Build(ctx context.Context, engine embedding.Engine, ds *dataset.Dataset, opts BuildOptions) (*Index, error) {
	if ds.Total() == 0 {
		return nil, oputil.New(oputil.KindInputMissing, "dataset has no records to index").
			WithSuggestion("ingest tracker data first")
	}
	chunks := BuildChunks(ds, opts.ChunkSize)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := engine.Encode(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, oputil.New(oputil.KindInputMalformed,
			"engine returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	embedding.NormalizeAll(vectors)

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	return &Index{
		Desc: Descriptor{
			ModelName:        engine.Name(),
			ChunkCount:       len(chunks),
			VectorDimension:  dim,
			MetadataEncoding: metadataEncoding,
			CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		},
		Vectors: vectors,
		Chunks:  chunks,
	}, nil
}

// Stats summarizes a loaded index.
type Stats struct {
	ChunkCount   int `json:"chunk_count"`
	VectorDim    int `json:"vector_dim"`
	TotalRecords int `json:"total_records"`
	StoryChunks  int `json:"story_chunks"`
	BugChunks    int `json:"bug_chunks"`
}

// Stats computes summary counts over the index.
func (idx *Index) Stats() Stats {
	s := Stats{ChunkCount: len(idx.Chunks), VectorDim: idx.Desc.VectorDimension}
	for _, c := range idx.Chunks {
		s.TotalRecords += c.ItemCount
		switch dataset.Kind(c.ItemType) {
		case dataset.KindStory:
			s.StoryChunks++
		case dataset.KindBug:
			s.BugChunks++
		}
	}
	return s
}
