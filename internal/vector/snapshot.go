package vector

import (
	"sort"

	"github.com/maane-ai/maane/internal/apperr"
	"github.com/maane-ai/maane/internal/models"
	"github.com/maane-ai/maane/pkg/utils"
)

// Entry pairs a chunk with its normalized embedding.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Result is a single search hit.
type Result struct {
	Chunk models.Chunk
	Score float32
}

// Snapshot is an immutable in-memory index over one document's chunks.
// Vectors are L2-normalized at build time so dot product equals cosine.
type Snapshot struct {
	DocumentID string
	Dimensions int
	Entries    []Entry
}

// BuildSnapshot assembles an index from chunks and their embeddings. Vectors
// are normalized in place.
func BuildSnapshot(documentID string, dimensions int, chunks []models.Chunk, vectors [][]float32) (*Snapshot, error) {
	if len(chunks) != len(vectors) {
		return nil, apperr.Newf(apperr.CategoryInternal, "index build failed",
			"%d chunks but %d vectors", len(chunks), len(vectors))
	}
	entries := make([]Entry, 0, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dimensions {
			return nil, apperr.Newf(apperr.CategoryInternal, "index build failed",
				"vector %d has %d dimensions, want %d", i, len(vectors[i]), dimensions)
		}
		utils.NormalizeL2(vectors[i])
		entries = append(entries, Entry{Chunk: chunk, Vector: vectors[i]})
	}
	return &Snapshot{DocumentID: documentID, Dimensions: dimensions, Entries: entries}, nil
}

// Search returns up to k entries ranked by cosine similarity, highest first.
// Ties break toward the lower chunk index. The query is normalized in place.
func (s *Snapshot) Search(query []float32, k int) ([]Result, error) {
	if len(query) != s.Dimensions {
		return nil, apperr.Newf(apperr.CategoryInternal, "query dimension mismatch",
			"query has %d dimensions, index has %d", len(query), s.Dimensions)
	}
	if k <= 0 || len(s.Entries) == 0 {
		return []Result{}, nil
	}
	utils.NormalizeL2(query)

	results := make([]Result, 0, len(s.Entries))
	for _, e := range s.Entries {
		var dot float32
		for i, v := range e.Vector {
			dot += v * query[i]
		}
		if dot > 1 {
			dot = 1
		} else if dot < -1 {
			dot = -1
		}
		results = append(results, Result{Chunk: e.Chunk, Score: dot})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}
