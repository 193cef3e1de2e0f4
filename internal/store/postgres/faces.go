package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/face-finder/internal/store"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// ReplaceFaces atomically replaces all faces for an image. The delete and
// insert run in a single transaction, so readers never observe a mixed set.
// The HNSW index is updated only after a successful commit.
func (r *ImageRepository) ReplaceFaces(ctx context.Context, imageID int64, faces []store.FaceRecord) error {
	for i := range faces {
		if len(faces[i].Embedding) != store.FaceEmbeddingDim {
			return &store.DimensionMismatchError{Want: store.FaceEmbeddingDim, Got: len(faces[i].Embedding)}
		}
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return store.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	hnswEnabled := r.isHNSWEnabled()

	var imagePath string
	if err := tx.QueryRowContext(ctx, "SELECT path FROM images WHERE id = $1", imageID).Scan(&imagePath); err != nil {
		return store.NewStoreError("lookup image", err)
	}

	var oldFaceIDs []int64
	if hnswEnabled {
		oldFaceIDs, err = scanFaceIDs(ctx, tx, imageID)
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM faces WHERE image_id = $1", imageID); err != nil {
		return store.NewStoreError("delete existing faces", err)
	}

	inserted := make([]store.StoredFace, 0, len(faces))
	for i := range faces {
		face := &faces[i]
		vec := pgvector.NewVector(face.Embedding)
		bbox := pq.Array([]int64{
			int64(face.BBox.Top),
			int64(face.BBox.Right),
			int64(face.BBox.Bottom),
			int64(face.BBox.Left),
		})

		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO faces (image_id, face_index, embedding, bbox, thumbnail, dim)
			VALUES ($1, $2, $3::vector, $4, $5, $6)
			RETURNING id
		`, imageID, i, vec, bbox, face.Thumbnail, len(face.Embedding)).Scan(&id)
		if err != nil {
			return store.NewStoreError(fmt.Sprintf("insert face %d", i), err)
		}

		inserted = append(inserted, store.StoredFace{
			ID:        id,
			ImageID:   imageID,
			FaceIndex: i,
			Embedding: face.Embedding,
			BBox:      face.BBox,
			Thumbnail: face.Thumbnail,
		})
	}

	if err := tx.Commit(); err != nil {
		return store.NewStoreError("commit transaction", err)
	}

	if hnswEnabled {
		for _, id := range oldFaceIDs {
			r.hnswIndex.Delete(id)
		}
		for _, face := range inserted {
			r.hnswIndex.Add(store.IndexedFace{ImageID: imageID, ImagePath: imagePath, Face: face})
		}
	}
	return nil
}

// scanFaceIDs returns the face ids currently stored for an image.
func scanFaceIDs(ctx context.Context, tx *sql.Tx, imageID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM faces WHERE image_id = $1", imageID)
	if err != nil {
		return nil, store.NewStoreError("query face ids", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("scan face id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("iterate face ids", err)
	}
	return ids, nil
}

const faceColumns = `f.id, f.image_id, i.path, f.face_index, f.embedding, f.bbox, f.thumbnail, f.created_at`

// scanIndexedFace scans one joined faces/images row.
func scanIndexedFace(rows *sql.Rows) (store.IndexedFace, error) {
	var (
		face store.IndexedFace
		vec  pgvector.Vector
		bbox pq.Int64Array
	)

	err := rows.Scan(
		&face.Face.ID,
		&face.ImageID,
		&face.ImagePath,
		&face.Face.FaceIndex,
		&vec,
		&bbox,
		&face.Face.Thumbnail,
		&face.Face.CreatedAt,
	)
	if err != nil {
		return store.IndexedFace{}, err
	}

	face.Face.ImageID = face.ImageID
	face.Face.Embedding = vec.Slice()
	if len(bbox) == 4 {
		face.Face.BBox = store.BoundingBox{
			Top:    int(bbox[0]),
			Right:  int(bbox[1]),
			Bottom: int(bbox[2]),
			Left:   int(bbox[3]),
		}
	}
	return face, nil
}

// faceIterator streams faces inside a repeatable-read transaction, so an
// in-flight scan reflects a consistent snapshot even while indexing proceeds.
type faceIterator struct {
	tx      *sql.Tx
	rows    *sql.Rows
	current store.IndexedFace
	err     error
}

func (it *faceIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	face, err := scanIndexedFace(it.rows)
	if err != nil {
		it.err = store.NewStoreError("scan face", err)
		return false
	}
	it.current = face
	return true
}

func (it *faceIterator) Face() store.IndexedFace {
	return it.current
}

func (it *faceIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	if err := it.rows.Err(); err != nil {
		return store.NewStoreError("iterate faces", err)
	}
	return nil
}

func (it *faceIterator) Close() error {
	_ = it.rows.Close()
	// Read-only snapshot, nothing to commit.
	if err := it.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return store.NewStoreError("close face iterator", err)
	}
	return nil
}

// AllFaces returns a snapshot iterator over every stored face.
func (r *ImageRepository) AllFaces(ctx context.Context) (store.FaceIterator, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, store.NewStoreError("begin snapshot", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+faceColumns+`
		FROM faces f
		JOIN images i ON i.id = f.image_id
		ORDER BY f.id
	`)
	if err != nil {
		_ = tx.Rollback()
		return nil, store.NewStoreError("query faces", err)
	}

	return &faceIterator{tx: tx, rows: rows}, nil
}

// FindSimilar finds candidate faces ordered by increasing distance using the
// in-memory HNSW index when available, falling back to a pgvector query.
func (r *ImageRepository) FindSimilar(ctx context.Context, embedding []float32, limit int, metric store.Metric) ([]store.IndexedFace, []float64, error) {
	if len(embedding) != store.FaceEmbeddingDim {
		return nil, nil, &store.DimensionMismatchError{Want: store.FaceEmbeddingDim, Got: len(embedding)}
	}
	if limit <= 0 {
		return nil, nil, nil
	}

	// The HNSW graph is built with Euclidean distance; other metrics go to
	// PostgreSQL directly.
	if metric == store.MetricEuclidean && r.ANNReady() {
		return r.hnswIndex.Search(embedding, limit)
	}

	operator := "<->"
	if metric == store.MetricCosine {
		operator = "<=>"
	}

	query := fmt.Sprintf(`
		SELECT `+faceColumns+`, f.embedding %s $1 AS distance
		FROM faces f
		JOIN images i ON i.id = f.image_id
		ORDER BY distance
		LIMIT $2
	`, operator)

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, nil, store.NewStoreError("query similar faces", err)
	}
	defer rows.Close()

	var (
		faces     []store.IndexedFace
		distances []float64
	)
	for rows.Next() {
		var (
			face store.IndexedFace
			vec  pgvector.Vector
			bbox pq.Int64Array
			dist float64
		)
		err := rows.Scan(
			&face.Face.ID,
			&face.ImageID,
			&face.ImagePath,
			&face.Face.FaceIndex,
			&vec,
			&bbox,
			&face.Face.Thumbnail,
			&face.Face.CreatedAt,
			&dist,
		)
		if err != nil {
			return nil, nil, store.NewStoreError("scan similar face", err)
		}
		face.Face.ImageID = face.ImageID
		face.Face.Embedding = vec.Slice()
		if len(bbox) == 4 {
			face.Face.BBox = store.BoundingBox{
				Top:    int(bbox[0]),
				Right:  int(bbox[1]),
				Bottom: int(bbox[2]),
				Left:   int(bbox[3]),
			}
		}
		faces = append(faces, face)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, store.NewStoreError("iterate similar faces", err)
	}
	return faces, distances, nil
}
