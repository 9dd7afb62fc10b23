// Package vectorindex builds, persists, and queries the flat inner-product
// index over chunked issue text. The on-disk form is three sidecar files
// sharing one base path: a raw vector matrix, line-delimited chunk metadata,
// and a JSON descriptor.
package vectorindex

import (
	"fmt"
	"hash/fnv"

	"github.com/issuelens/issuelens/internal/dataset"
)

// DefaultChunkSize is how many records share one chunk.
const DefaultChunkSize = 10

// Chunk groups up to chunk-size consecutive records of one kind into a
// single embeddable text.
type Chunk struct {
	ChunkID       string          `json:"chunk_id"`
	ItemType      string          `json:"item_type"`
	ItemIDs       []string        `json:"item_ids"`
	ItemCount     int             `json:"item_count"`
	ChunkIndex    int             `json:"chunk_index"`
	OriginalItems []dataset.Issue `json:"original_items"`
	Text          string          `json:"text"`
}

// BuildChunks partitions the dataset into per-kind consecutive chunks.
// Stories come first, then bugs; the chunk index counts within each kind,
// restarting at zero when the kind changes.
func BuildChunks(ds *dataset.Dataset, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var chunks []Chunk
	for _, kind := range []dataset.Kind{dataset.KindStory, dataset.KindBug} {
		items := ds.Of(kind)
		index := 0
		for lo := 0; lo < len(items); lo += chunkSize {
			hi := lo + chunkSize
			if hi > len(items) {
				hi = len(items)
			}
			chunks = append(chunks, newChunk(kind, items[lo:hi], index))
			index++
		}
	}
	return chunks
}

func newChunk(kind dataset.Kind, items []dataset.Issue, index int) Chunk {
	text := ""
	ids := make([]string, 0, len(items))
	for i, it := range items {
		if i > 0 {
			text += " | "
		}
		text += dataset.Text(kind, it)
		ids = append(ids, it.ID())
	}
	return Chunk{
		ChunkID:       chunkID(kind, index, text),
		ItemType:      string(kind),
		ItemIDs:       ids,
		ItemCount:     len(items),
		ChunkIndex:    index,
		OriginalItems: items,
		Text:          text,
	}
}

// chunkID derives the stable chunk identifier <kind>_<index>_<hash>, where
// hash is fnv32a(text) mod 10000. Identical inputs always yield identical ids.
func chunkID(kind dataset.Kind, index int, text string) string {
	h := fnv.New32a()
	h.Write([]byte(text))
	return fmt.Sprintf("%s_%d_%d", kind, index, h.Sum32()%10000)
}
