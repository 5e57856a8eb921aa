package flat

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
	"github.com/railsup-labs/railsup-cli/internal/core/ports/driven"
)

// Ensure Handle implements the interface.
var _ driven.VectorIndex = (*Handle)(nil)

// Handle is an atomically-swappable reference to an Index. Readers
// always see either the previous complete index or the new complete
// index, never a partial build. An empty Handle reports
// ErrIndexNotReady on search.
type Handle struct {
	ptr atomic.Pointer[Index]
}

// NewHandle creates a handle, optionally seeded with an index.
func NewHandle(idx *Index) *Handle {
	h := &Handle{}
	if idx != nil {
		h.ptr.Store(idx)
	}
	return h
}

// Swap publishes a new index wholesale.
func (h *Handle) Swap(idx *Index) {
	h.ptr.Store(idx)
}

// Search delegates to the current index.
func (h *Handle) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx := h.ptr.Load()
	if idx == nil {
		return nil, fmt.Errorf("search: no index loaded: %w", domain.ErrIndexNotReady)
	}
	return idx.Search(ctx, query, k)
}

// Size returns the current index size, or 0 when none is loaded.
func (h *Handle) Size() int {
	idx := h.ptr.Load()
	if idx == nil {
		return 0
	}
	return idx.Size()
}
