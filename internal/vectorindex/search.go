package vectorindex

import (
	"context"
	"sort"

	"github.com/issuelens/issuelens/internal/embedding"
	"github.com/issuelens/issuelens/internal/oputil"
)

// Match is one search hit. Score is the cosine similarity of the normalized
// query and chunk vectors.
type Match struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

// Search embeds the query and returns the topK most similar chunks in
// descending score order. The engine must match the model and dimension the
// index was built with.
func (idx *Index) Search(ctx context.Context, engine embedding.Engine, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 5
	}
	if engine.Name() != idx.Desc.ModelName {
		return nil, oputil.New(oputil.KindIndexIncompatible,
			"index was built with model %q but engine uses %q", idx.Desc.ModelName, engine.Name()).
			WithSuggestion("rebuild the index or switch the embedding model")
	}

	vecs, err := engine.Encode(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, oputil.New(oputil.KindInputMalformed, "engine returned %d vectors for one query", len(vecs))
	}
	q := embedding.Normalize(vecs[0])
	if len(q) != idx.Desc.VectorDimension {
		return nil, oputil.New(oputil.KindIndexIncompatible,
			"query vector width %d does not match index dimension %d", len(q), idx.Desc.VectorDimension).
			WithSuggestion("rebuild the index or switch the embedding model")
	}

	matches := make([]Match, 0, len(idx.Vectors))
	for i, row := range idx.Vectors {
		matches = append(matches, Match{Chunk: idx.Chunks[i], Score: embedding.Dot(q, row)})
	}
	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
