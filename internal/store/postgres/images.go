package postgres

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/kozaktomas/face-finder/internal/store"
)

// ImageRepository implements store.Store on PostgreSQL with pgvector columns
// and an optional in-memory HNSW index for fast similarity search.
type ImageRepository struct {
	pool        *Pool
	hnswIndex   *store.HNSWIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

var _ store.Store = (*ImageRepository)(nil)
var _ store.SimilaritySearcher = (*ImageRepository)(nil)

// NewImageRepository creates a new PostgreSQL image repository.
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// Dim returns the embedding dimension the schema is pinned to.
func (r *ImageRepository) Dim() int {
	return store.FaceEmbeddingDim
}

// Close closes the underlying connection pool.
func (r *ImageRepository) Close() error {
	return r.pool.Close()
}

// UpsertImage creates or updates the image row keyed by path.
func (r *ImageRepository) UpsertImage(ctx context.Context, path string, sizeBytes int64, modified time.Time) (int64, error) {
	query := `
		INSERT INTO images (path, size_bytes, modified_at, indexed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (path) DO UPDATE SET
			size_bytes = EXCLUDED.size_bytes,
			modified_at = EXCLUDED.modified_at,
			indexed_at = NOW()
		RETURNING id
	`

	var id int64
	if err := r.pool.QueryRow(ctx, query, path, sizeBytes, modified).Scan(&id); err != nil {
		return 0, store.NewStoreError("upsert image", err)
	}
	return id, nil
}

// GetImage retrieves an image by path, returns nil if not indexed.
func (r *ImageRepository) GetImage(ctx context.Context, path string) (*store.StoredImage, error) {
	query := `
		SELECT id, path, size_bytes, modified_at, indexed_at
		FROM images
		WHERE path = $1
	`

	var img store.StoredImage
	err := r.pool.QueryRow(ctx, query, path).Scan(
		&img.ID,
		&img.Path,
		&img.SizeBytes,
		&img.ModifiedAt,
		&img.IndexedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewStoreError("get image", err)
	}
	return &img, nil
}

// ListImages returns all indexed images ordered by path.
func (r *ImageRepository) ListImages(ctx context.Context) ([]store.StoredImage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, path, size_bytes, modified_at, indexed_at
		FROM images
		ORDER BY path
	`)
	if err != nil {
		return nil, store.NewStoreError("list images", err)
	}
	defer rows.Close()

	var images []store.StoredImage
	for rows.Next() {
		var img store.StoredImage
		if err := rows.Scan(&img.ID, &img.Path, &img.SizeBytes, &img.ModifiedAt, &img.IndexedAt); err != nil {
			return nil, store.NewStoreError("scan image", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("iterate images", err)
	}
	return images, nil
}

// DeleteImage removes the image and its faces. No-op if the path is not indexed.
func (r *ImageRepository) DeleteImage(ctx context.Context, path string) error {
	hnswEnabled := r.isHNSWEnabled()

	var oldFaceIDs []int64
	if hnswEnabled {
		rows, err := r.pool.Query(ctx, `
			SELECT f.id FROM faces f
			JOIN images i ON i.id = f.image_id
			WHERE i.path = $1
		`, path)
		if err != nil {
			return store.NewStoreError("query face ids", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return store.NewStoreError("scan face id", err)
			}
			oldFaceIDs = append(oldFaceIDs, id)
		}
		if err := rows.Err(); err != nil {
			return store.NewStoreError("iterate face ids", err)
		}
	}

	// Cascade removes the faces.
	if _, err := r.pool.Exec(ctx, "DELETE FROM images WHERE path = $1", path); err != nil {
		return store.NewStoreError("delete image", err)
	}

	if hnswEnabled {
		for _, id := range oldFaceIDs {
			r.hnswIndex.Delete(id)
		}
	}
	return nil
}

// RenameImage re-registers an image under a new path, carrying its face set
// over. The faces reference the image by id, so a single UPDATE suffices.
func (r *ImageRepository) RenameImage(ctx context.Context, oldPath, newPath string) error {
	result, err := r.pool.Exec(ctx, "UPDATE images SET path = $2 WHERE path = $1", oldPath, newPath)
	if err != nil {
		return store.NewStoreError("rename image", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		// Not indexed; nothing to carry over.
		return nil
	}

	if r.isHNSWEnabled() {
		r.hnswIndex.RenamePath(oldPath, newPath)
	}
	return nil
}

// Stats returns image/face counts and the on-disk size of both tables.
func (r *ImageRepository) Stats(ctx context.Context) (store.Stats, error) {
	var stats store.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM images),
			(SELECT COUNT(*) FROM faces),
			pg_total_relation_size('images') + pg_total_relation_size('faces')
	`).Scan(&stats.ImageCount, &stats.FaceCount, &stats.StorageBytes)
	if err != nil {
		return store.Stats{}, store.NewStoreError("query stats", err)
	}
	return stats, nil
}
