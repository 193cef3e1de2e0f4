package postgres

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/face-finder/internal/store"
)

// EnableHNSW builds (or loads from indexPath) the in-memory HNSW index used
// as the similarity search fast path. An empty indexPath keeps the index
// in-memory only.
func (r *ImageRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	idx := store.NewHNSWIndex()

	if indexPath != "" {
		err := idx.Load(indexPath)
		if err == nil {
			r.setHNSW(idx)
			return nil
		}
		if !os.IsNotExist(err) {
			fmt.Printf("Warning: failed to load HNSW index from %s, rebuilding: %v\n", indexPath, err)
		}
		idx.SetPath(indexPath)
	}

	if err := r.RebuildHNSW(ctx, idx); err != nil {
		return err
	}

	r.setHNSW(idx)
	return nil
}

// RebuildHNSW repopulates the index from a full store scan.
func (r *ImageRepository) RebuildHNSW(ctx context.Context, idx *store.HNSWIndex) error {
	it, err := r.AllFaces(ctx)
	if err != nil {
		return fmt.Errorf("scanning faces for HNSW build: %w", err)
	}
	defer it.Close()

	var faces []store.IndexedFace
	for it.Next() {
		faces = append(faces, it.Face())
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("scanning faces for HNSW build: %w", err)
	}

	if err := idx.Build(faces); err != nil {
		return fmt.Errorf("building HNSW index: %w", err)
	}
	return nil
}

// SaveHNSW persists the index to its configured path, if any.
func (r *ImageRepository) SaveHNSW() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if !r.hnswEnabled {
		return nil
	}
	return r.hnswIndex.Save()
}

// HNSWCount returns the number of faces in the index.
func (r *ImageRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if !r.hnswEnabled {
		return 0
	}
	return r.hnswIndex.Count()
}

// ANNReady reports whether the HNSW fast path is usable.
func (r *ImageRepository) ANNReady() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex.Count() > 0
}

func (r *ImageRepository) setHNSW(idx *store.HNSWIndex) {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswIndex = idx
	r.hnswEnabled = true
}

func (r *ImageRepository) isHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled
}
