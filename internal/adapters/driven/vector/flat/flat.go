// Package flat provides an exact nearest-neighbour vector index: a
// brute-force inner-product scan over the full corpus. Upgrade corpora
// are tens of thousands of chunks at most, where an exact scan is both
// fast enough and free of recall loss.
package flat

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index is an immutable flat vector index. Once built it is never
// mutated, so concurrent Search calls need no locking. Rebuilds
// construct a fresh Index and swap it in via a Handle.
type Index struct {
	dim     int
	ids     []string
	vectors []float32 // row-major, len = dim * len(ids)
}

// Build constructs an index from equal-length vectors and their chunk
// IDs. Vectors are expected to be L2-normalised by the embedding
// layer; Build validates shape, not norms.
func Build(vectors [][]float32, ids []string) (*Index, error) {
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("build index: %d vectors for %d ids: %w",
			len(vectors), len(ids), domain.ErrInvalidInput)
	}
	if len(vectors) == 0 {
		return &Index{}, nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("build index: zero-dimension vectors: %w", domain.ErrInvalidInput)
	}

	flat := make([]float32, 0, dim*len(vectors))
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("build index: vector %d has dimension %d, want %d: %w",
				i, len(vec), dim, domain.ErrInvalidInput)
		}
		flat = append(flat, vec...)
	}

	idsCopy := make([]string, len(ids))
	copy(idsCopy, ids)

	return &Index{dim: dim, ids: idsCopy, vectors: flat}, nil
}

// Search returns the k nearest neighbours by inner product, ordered by
// score descending with ties broken by chunk ID ascending.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("search: k must be >= 1: %w", domain.ErrInvalidInput)
	}
	if len(idx.ids) == 0 {
		return nil, fmt.Errorf("search: %w", domain.ErrIndexNotReady)
	}
	if len(query) != idx.dim {
		return nil, fmt.Errorf("search: query dimension %d, index dimension %d: %w",
			len(query), idx.dim, domain.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := &hitHeap{}
	heap.Init(h)

	for i, id := range idx.ids {
		row := idx.vectors[i*idx.dim : (i+1)*idx.dim]

		var score float64
		for j, q := range query {
			score += float64(q) * float64(row[j])
		}

		hit := driven.VectorHit{ChunkID: id, Score: score}
		if h.Len() < k {
			heap.Push(h, hit)
		} else if worseThan((*h)[0], hit) {
			(*h)[0] = hit
			heap.Fix(h, 0)
		}
	}

	// Pop ascending-by-badness, fill the result back to front.
	out := make([]driven.VectorHit, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(driven.VectorHit)
	}
	return out, nil
}

// Size returns the number of vectors in the index.
func (idx *Index) Size() int {
	return len(idx.ids)
}

// Dimensions returns the vector dimension, or 0 for an empty index.
func (idx *Index) Dimensions() int {
	return idx.dim
}

// worseThan reports whether a ranks below b: lower score, or equal
// score with the greater chunk ID.
func worseThan(a, b driven.VectorHit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ChunkID > b.ChunkID
}

// hitHeap is a min-heap keeping the current worst hit on top.
type hitHeap []driven.VectorHit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worseThan(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(driven.VectorHit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
