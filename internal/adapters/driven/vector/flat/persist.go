package flat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/railsup-labs/railsup-cli/internal/core/domain"
)

// vectors.bin layout: magic, format version, dimension and row count,
// then row-major float32 little-endian vectors. Chunk IDs live in the
// metadata store, keyed by ordinal; row N here is ordinal N there.
const (
	fileMagic   = uint32(0x52555056) // "RUPV"
	fileVersion = uint32(1)
)

type fileHeader struct {
	Magic   uint32
	Version uint32
	Dim     uint32
	Count   uint32
}

// Save writes the index vectors to path atomically (write to a temp
// file, then rename).
func Save(path string, idx *Index) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vectors-*.bin")
	if err != nil {
		return fmt.Errorf("create temp vector file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	header := fileHeader{
		Magic:   fileMagic,
		Version: fileVersion,
		Dim:     uint32(idx.dim),
		Count:   uint32(len(idx.ids)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		tmp.Close()
		return fmt.Errorf("write vector header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, idx.vectors); err != nil {
		tmp.Close()
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush vector file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close vector file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish vector file: %w", err)
	}
	return nil
}

// Load reads vectors from path and builds an index over the given
// chunk IDs, in ordinal order. A row count that disagrees with the
// metadata IDs means the vector file and the chunk store drifted
// apart; that fails with ErrIndexNotReady so callers re-ingest instead
// of serving misattributed results.
func Load(path string, ids []string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("vector file %s: %w", path, domain.ErrIndexNotReady)
		}
		return nil, fmt.Errorf("open vector file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var header fileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read vector header: %w", err)
	}
	if header.Magic != fileMagic {
		return nil, fmt.Errorf("vector file %s: bad magic: %w", path, domain.ErrIndexNotReady)
	}
	if header.Version != fileVersion {
		return nil, fmt.Errorf("vector file %s: unsupported version %d: %w",
			path, header.Version, domain.ErrIndexNotReady)
	}
	if int(header.Count) != len(ids) {
		return nil, fmt.Errorf(
			"vector file %s holds %d rows but the chunk store holds %d: %w",
			path, header.Count, len(ids), domain.ErrIndexNotReady)
	}
	if header.Count > 0 && header.Dim == 0 {
		return nil, fmt.Errorf("vector file %s: zero dimension: %w", path, domain.ErrIndexNotReady)
	}
	if header.Count > math.MaxInt32 || header.Dim > math.MaxInt32 {
		return nil, fmt.Errorf("vector file %s: implausible header: %w", path, domain.ErrIndexNotReady)
	}

	flat := make([]float32, int(header.Dim)*int(header.Count))
	if err := binary.Read(r, binary.LittleEndian, flat); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}

	idsCopy := make([]string, len(ids))
	copy(idsCopy, ids)

	return &Index{dim: int(header.Dim), ids: idsCopy, vectors: flat}, nil
}
