// Package mock provides an in-memory store.Store for tests.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-finder/internal/store"
)

// MockStore is an in-memory implementation of store.Store with error
// injection for exercising failure paths.
type MockStore struct {
	mu     sync.RWMutex
	dim    int
	nextID int64
	images map[string]*store.StoredImage // keyed by path
	faces  map[int64][]store.StoredFace  // keyed by image id

	// Error injection
	UpsertError   error
	ReplaceError  error
	DeleteError   error
	RenameError   error
	AllFacesError error
	StatsError    error
}

var _ store.Store = (*MockStore)(nil)

// NewMockStore creates an empty mock store with the given embedding dimension.
func NewMockStore(dim int) *MockStore {
	return &MockStore{
		dim:    dim,
		nextID: 1,
		images: make(map[string]*store.StoredImage),
		faces:  make(map[int64][]store.StoredFace),
	}
}

// Dim returns the configured embedding dimension.
func (m *MockStore) Dim() int {
	return m.dim
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// UpsertImage creates or updates the image row keyed by path.
func (m *MockStore) UpsertImage(ctx context.Context, path string, sizeBytes int64, modified time.Time) (int64, error) {
	if m.UpsertError != nil {
		return 0, m.UpsertError
	}
	// TIMESTAMPTZ resolution, matching the Postgres backend.
	modified = modified.Truncate(time.Microsecond)
	m.mu.Lock()
	defer m.mu.Unlock()

	if img, ok := m.images[path]; ok {
		img.SizeBytes = sizeBytes
		img.ModifiedAt = modified
		img.IndexedAt = time.Now()
		return img.ID, nil
	}

	id := m.nextID
	m.nextID++
	m.images[path] = &store.StoredImage{
		ID:         id,
		Path:       path,
		SizeBytes:  sizeBytes,
		ModifiedAt: modified,
		IndexedAt:  time.Now(),
	}
	return id, nil
}

// GetImage retrieves an image by path, returns nil if not indexed.
func (m *MockStore) GetImage(ctx context.Context, path string) (*store.StoredImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.images[path]
	if !ok {
		return nil, nil
	}
	copied := *img
	return &copied, nil
}

// ListImages returns all indexed images ordered by path.
func (m *MockStore) ListImages(ctx context.Context) ([]store.StoredImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	images := make([]store.StoredImage, 0, len(m.images))
	for _, img := range m.images {
		images = append(images, *img)
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Path < images[j].Path })
	return images, nil
}

// ReplaceFaces atomically replaces all faces for an image.
func (m *MockStore) ReplaceFaces(ctx context.Context, imageID int64, faces []store.FaceRecord) error {
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	for i := range faces {
		if len(faces[i].Embedding) != m.dim {
			return &store.DimensionMismatchError{Want: m.dim, Got: len(faces[i].Embedding)}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]store.StoredFace, 0, len(faces))
	for i := range faces {
		id := m.nextID
		m.nextID++
		stored = append(stored, store.StoredFace{
			ID:        id,
			ImageID:   imageID,
			FaceIndex: i,
			Embedding: faces[i].Embedding,
			BBox:      faces[i].BBox,
			Thumbnail: faces[i].Thumbnail,
			CreatedAt: time.Now(),
		})
	}
	m.faces[imageID] = stored
	return nil
}

// DeleteImage removes the image and its faces. No-op if not indexed.
func (m *MockStore) DeleteImage(ctx context.Context, path string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[path]
	if !ok {
		return nil
	}
	delete(m.faces, img.ID)
	delete(m.images, path)
	return nil
}

// RenameImage re-registers an image under a new path, keeping its faces.
func (m *MockStore) RenameImage(ctx context.Context, oldPath, newPath string) error {
	if m.RenameError != nil {
		return m.RenameError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[oldPath]
	if !ok {
		return nil
	}
	delete(m.images, oldPath)
	img.Path = newPath
	m.images[newPath] = img
	return nil
}

// sliceIterator yields a copied snapshot of faces.
type sliceIterator struct {
	faces []store.IndexedFace
	pos   int
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.faces) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Face() store.IndexedFace { return it.faces[it.pos-1] }
func (it *sliceIterator) Err() error              { return nil }
func (it *sliceIterator) Close() error            { return nil }

// AllFaces returns an iterator over a point-in-time copy of all faces.
func (m *MockStore) AllFaces(ctx context.Context) (store.FaceIterator, error) {
	if m.AllFacesError != nil {
		return nil, m.AllFacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	byID := make(map[int64]string, len(m.images))
	for path, img := range m.images {
		byID[img.ID] = path
	}

	var all []store.IndexedFace
	for imageID, faces := range m.faces {
		for _, face := range faces {
			all = append(all, store.IndexedFace{
				ImageID:   imageID,
				ImagePath: byID[imageID],
				Face:      face,
			})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Face.ID < all[j].Face.ID })
	return &sliceIterator{faces: all}, nil
}

// Stats returns counts and an approximate storage size.
func (m *MockStore) Stats(ctx context.Context) (store.Stats, error) {
	if m.StatsError != nil {
		return store.Stats{}, m.StatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var faceCount int
	var bytes int64
	for _, faces := range m.faces {
		faceCount += len(faces)
		for _, f := range faces {
			bytes += int64(len(f.Embedding)*4 + len(f.Thumbnail))
		}
	}
	return store.Stats{
		ImageCount:   len(m.images),
		FaceCount:    faceCount,
		StorageBytes: bytes,
	}, nil
}

// AddIndexedImage seeds an image with faces directly, for tests.
func (m *MockStore) AddIndexedImage(path string, embeddings ...[]float32) int64 {
	id, _ := m.UpsertImage(context.Background(), path, 1, time.Now())
	faces := make([]store.FaceRecord, 0, len(embeddings))
	for _, e := range embeddings {
		faces = append(faces, store.FaceRecord{Embedding: e})
	}
	_ = m.ReplaceFaces(context.Background(), id, faces)
	return id
}
