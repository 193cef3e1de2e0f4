package store

import (
	"context"
	"time"
)

// Store is the durable mapping from image identity to face records.
// The indexing pipeline is the only writer; search and file operations are
// read-mostly consumers.
type Store interface {
	// UpsertImage creates or updates the image row keyed by path and returns
	// its id. Safe to call repeatedly for an unchanged file.
	UpsertImage(ctx context.Context, path string, sizeBytes int64, modified time.Time) (int64, error)

	// GetImage retrieves an image by path, returns nil if not indexed.
	GetImage(ctx context.Context, path string) (*StoredImage, error)

	// ListImages returns all indexed images.
	ListImages(ctx context.Context) ([]StoredImage, error)

	// ReplaceFaces atomically replaces all faces for an image with the given
	// set. Readers never observe a mixed old/new face set.
	ReplaceFaces(ctx context.Context, imageID int64, faces []FaceRecord) error

	// DeleteImage removes the image and its faces. No-op if the path is not
	// indexed.
	DeleteImage(ctx context.Context, path string) error

	// RenameImage re-registers an image under a new path, carrying its face
	// set over. Used by move operations: the face data is a function of the
	// file contents, which a move does not change.
	RenameImage(ctx context.Context, oldPath, newPath string) error

	// AllFaces returns an iterator over every stored face. The iteration
	// reflects a consistent snapshot as of the call; later writes do not
	// appear in an in-flight scan.
	AllFaces(ctx context.Context) (FaceIterator, error)

	// Stats returns image/face counts and on-disk size.
	Stats(ctx context.Context) (Stats, error)

	// Dim returns the embedding dimension this store was created with.
	Dim() int

	Close() error
}

// FaceIterator yields faces from a snapshot of the store.
// Callers must Close it to release the underlying snapshot.
type FaceIterator interface {
	Next() bool
	Face() IndexedFace
	Err() error
	Close() error
}

// SimilaritySearcher is an optional fast path a Store may expose when it
// maintains an approximate-nearest-neighbor index. The search engine
// re-scores candidates with the exact metric, so implementations only need
// good recall, not exact distances.
type SimilaritySearcher interface {
	// FindSimilar returns up to limit candidate faces ordered by increasing
	// distance to the query embedding under the given metric.
	FindSimilar(ctx context.Context, embedding []float32, limit int, metric Metric) ([]IndexedFace, []float64, error)

	// ANNReady reports whether the fast path is usable.
	ANNReady() bool
}
