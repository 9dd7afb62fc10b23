package vectorindex

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/issuelens/issuelens/internal/oputil"
	"github.com/issuelens/issuelens/internal/storage"
)

const (
	indexExt    = ".index"
	metadataExt = ".metadata.jsonl"
	configExt   = ".config.json"

	metadataEncoding = "jsonl"

	// vectorMagic and vectorVersion head the .index file. The matrix that
	// follows is rows*dim float32 values, little endian, row major.
	vectorMagic   = "ILVX"
	vectorVersion = uint32(1)
)

// ErrNotBuilt reports that no index exists at the requested base path.
var ErrNotBuilt = errors.New("vector index not built")

// Save writes the three sidecars for base: base.index, base.metadata.jsonl,
// base.config.json. Each file lands via a temp-write-then-rename so a loader
// never sees a partial sidecar; the descriptor is renamed last, so a complete
// descriptor implies complete data files.
func (idx *Index) Save(base string) error {
	matrix, err := encodeMatrix(idx.Vectors, idx.Desc.VectorDimension)
	if err != nil {
		return err
	}
	if err := storage.WriteAtomic(base+indexExt, matrix); err != nil {
		return err
	}

	var meta bytes.Buffer
	enc := json.NewEncoder(&meta)
	enc.SetEscapeHTML(false)
	for _, c := range idx.Chunks {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := storage.WriteAtomic(base+metadataExt, meta.Bytes()); err != nil {
		return err
	}

	desc, err := json.MarshalIndent(idx.Desc, "", "  ")
	if err != nil {
		return err
	}
	return storage.WriteAtomic(base+configExt, desc)
}

// Load reads the sidecars at base into memory, verifying that the three
// files agree with each other.
func Load(base string) (*Index, error) {
	descData, err := os.ReadFile(base + configExt)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, oputil.Wrap(ErrNotBuilt, oputil.KindInputMissing, "no index at %s", base).
				WithSuggestion("run the index operation first")
		}
		return nil, err
	}
	var desc Descriptor
	if err := json.Unmarshal(descData, &desc); err != nil {
		return nil, corrupt(base, "descriptor is not valid JSON: %v", err)
	}

	vectors, err := loadMatrix(base+indexExt, desc)
	if err != nil {
		return nil, err
	}
	chunks, err := loadMetadata(base+metadataExt, desc)
	if err != nil {
		return nil, err
	}
	return &Index{Desc: desc, Vectors: vectors, Chunks: chunks}, nil
}

func encodeMatrix(rows [][]float32, dim int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(vectorMagic)
	binary.Write(&buf, binary.LittleEndian, vectorVersion)
	binary.Write(&buf, binary.LittleEndian, uint32(len(rows)))
	binary.Write(&buf, binary.LittleEndian, uint32(dim))
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("row %d has width %d, want %d", i, len(row), dim)
		}
		for _, v := range row {
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
		}
	}
	return buf.Bytes(), nil
}

func loadMatrix(path string, desc Descriptor) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, corrupt(path, "missing vector file: %v", err)
	}
	if len(data) < 16 || string(data[:4]) != vectorMagic {
		return nil, corrupt(path, "bad vector file header")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	rows := int(binary.LittleEndian.Uint32(data[8:12]))
	dim := int(binary.LittleEndian.Uint32(data[12:16]))
	if version != vectorVersion {
		return nil, corrupt(path, "unsupported vector file version %d", version)
	}
	if rows != desc.ChunkCount || dim != desc.VectorDimension {
		return nil, corrupt(path, "vector file is %dx%d but descriptor says %dx%d",
			rows, dim, desc.ChunkCount, desc.VectorDimension)
	}
	if len(data) != 16+rows*dim*4 {
		return nil, corrupt(path, "vector file truncated: %d bytes for %dx%d matrix", len(data), rows, dim)
	}

	vectors := make([][]float32, rows)
	off := 16
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vectors[i] = row
	}
	return vectors, nil
}

func loadMetadata(path string, desc Descriptor) ([]Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, corrupt(path, "missing metadata file: %v", err)
	}
	defer f.Close()

	var chunks []Chunk
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var c Chunk
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, corrupt(path, "metadata line %d: %v", len(chunks)+1, err)
		}
		chunks = append(chunks, c)
	}
	if err := sc.Err(); err != nil {
		return nil, corrupt(path, "read metadata: %v", err)
	}
	if len(chunks) != desc.ChunkCount {
		return nil, corrupt(path, "metadata has %d chunks but descriptor says %d", len(chunks), desc.ChunkCount)
	}
	return chunks, nil
}

func corrupt(path, format string, args ...any) error {
	return oputil.New(oputil.KindIndexCorrupt, "%s: "+format, append([]any{path}, args...)...).
		WithSuggestion("rebuild the index with the index operation")
}
