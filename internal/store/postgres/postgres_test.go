//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/store"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	cfg := &config.DatabaseConfig{
		URL:          dbURL,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := NewPool(cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	// Run migrations
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}

	return pool, cleanup
}

func testEmbedding(seed float32) []float32 {
	embedding := make([]float32, store.FaceEmbeddingDim)
	for i := range embedding {
		embedding[i] = seed + float32(i)/float32(store.FaceEmbeddingDim)
	}
	return embedding
}

func TestImageRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewImageRepository(pool)

	modTime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("UpsertAndGet", func(t *testing.T) {
		id, err := repo.UpsertImage(ctx, "/photos/a.jpg", 1024, modTime)
		if err != nil {
			t.Fatalf("Failed to upsert image: %v", err)
		}
		if id == 0 {
			t.Fatal("Expected non-zero image id")
		}

		got, err := repo.GetImage(ctx, "/photos/a.jpg")
		if err != nil {
			t.Fatalf("Failed to get image: %v", err)
		}
		if got == nil {
			t.Fatal("Expected image, got nil")
		}
		if got.ID != id {
			t.Errorf("Expected id %d, got %d", id, got.ID)
		}
		if got.SizeBytes != 1024 {
			t.Errorf("Expected size 1024, got %d", got.SizeBytes)
		}
		if !got.ModifiedAt.Equal(modTime) {
			t.Errorf("Expected modified %v, got %v", modTime, got.ModifiedAt)
		}
	})

	t.Run("UpsertIdempotent", func(t *testing.T) {
		first, err := repo.UpsertImage(ctx, "/photos/dup.jpg", 100, modTime)
		if err != nil {
			t.Fatalf("Failed to upsert image: %v", err)
		}
		second, err := repo.UpsertImage(ctx, "/photos/dup.jpg", 200, modTime.Add(time.Hour))
		if err != nil {
			t.Fatalf("Failed to re-upsert image: %v", err)
		}
		if first != second {
			t.Errorf("Expected same id on re-upsert, got %d and %d", first, second)
		}

		got, err := repo.GetImage(ctx, "/photos/dup.jpg")
		if err != nil {
			t.Fatalf("Failed to get image: %v", err)
		}
		if got.SizeBytes != 200 {
			t.Errorf("Expected updated size 200, got %d", got.SizeBytes)
		}
	})

	t.Run("ModifiedAtKeepsMicroseconds", func(t *testing.T) {
		// TIMESTAMPTZ stores microseconds; a microsecond-truncated mtime must
		// round-trip exactly so the unchanged-file check can match.
		nanoTime := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
		truncated := nanoTime.Truncate(time.Microsecond)

		if _, err := repo.UpsertImage(ctx, "/photos/precision.jpg", 64, truncated); err != nil {
			t.Fatalf("Failed to upsert image: %v", err)
		}

		got, err := repo.GetImage(ctx, "/photos/precision.jpg")
		if err != nil {
			t.Fatalf("Failed to get image: %v", err)
		}
		if !got.ModifiedAt.Equal(truncated) {
			t.Errorf("Expected %v round-tripped, got %v", truncated, got.ModifiedAt)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		got, err := repo.GetImage(ctx, "/photos/nonexistent.jpg")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for missing image, got %+v", got)
		}
	})

	t.Run("ReplaceFaces", func(t *testing.T) {
		id, err := repo.UpsertImage(ctx, "/photos/faces.jpg", 2048, modTime)
		if err != nil {
			t.Fatalf("Failed to upsert image: %v", err)
		}

		faces := []store.FaceRecord{
			{Embedding: testEmbedding(0), BBox: store.BoundingBox{Top: 10, Right: 110, Bottom: 120, Left: 20}},
			{Embedding: testEmbedding(1), BBox: store.BoundingBox{Top: 30, Right: 210, Bottom: 140, Left: 130}},
		}
		if err := repo.ReplaceFaces(ctx, id, faces); err != nil {
			t.Fatalf("Failed to replace faces: %v", err)
		}

		// Replacing again overwrites the old set, never appends.
		if err := repo.ReplaceFaces(ctx, id, faces[:1]); err != nil {
			t.Fatalf("Failed to re-replace faces: %v", err)
		}

		count := 0
		it, err := repo.AllFaces(ctx)
		if err != nil {
			t.Fatalf("Failed to scan faces: %v", err)
		}
		defer it.Close()
		for it.Next() {
			face := it.Face()
			if face.ImageID == id {
				count++
				if face.Face.BBox.Top != 10 {
					t.Errorf("Expected bbox top 10, got %d", face.Face.BBox.Top)
				}
				if len(face.Face.Embedding) != store.FaceEmbeddingDim {
					t.Errorf("Expected %d dims, got %d", store.FaceEmbeddingDim, len(face.Face.Embedding))
				}
			}
		}
		if err := it.Err(); err != nil {
			t.Fatalf("Iterator error: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 face after replace, got %d", count)
		}
	})

	t.Run("ReplaceFacesDimensionMismatch", func(t *testing.T) {
		id, err := repo.UpsertImage(ctx, "/photos/baddim.jpg", 512, modTime)
		if err != nil {
			t.Fatalf("Failed to upsert image: %v", err)
		}

		err = repo.ReplaceFaces(ctx, id, []store.FaceRecord{
			{Embedding: []float32{1, 2, 3}},
		})
		if err == nil {
			t.Fatal("Expected dimension mismatch error")
		}
	})

	t.Run("DeleteImage", func(t *testing.T) {
		id, err := repo.UpsertImage(ctx, "/photos/todelete.jpg", 777, modTime)
		if err != nil {
			t.Fatalf("Failed to upsert image: %v", err)
		}
		if err := repo.ReplaceFaces(ctx, id, []store.FaceRecord{{Embedding: testEmbedding(2)}}); err != nil {
			t.Fatalf("Failed to replace faces: %v", err)
		}

		if err := repo.DeleteImage(ctx, "/photos/todelete.jpg"); err != nil {
			t.Fatalf("Failed to delete image: %v", err)
		}

		got, err := repo.GetImage(ctx, "/photos/todelete.jpg")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if got != nil {
			t.Error("Expected image gone after delete")
		}

		// Faces must cascade with the image row.
		var count int
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces WHERE image_id = $1", id).Scan(&count); err != nil {
			t.Fatalf("Failed to count faces: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected 0 faces after cascade delete, got %d", count)
		}

		// Deleting a missing image is a no-op.
		if err := repo.DeleteImage(ctx, "/photos/todelete.jpg"); err != nil {
			t.Errorf("Expected no error deleting missing image, got %v", err)
		}
	})

	t.Run("RenameImage", func(t *testing.T) {
		id, err := repo.UpsertImage(ctx, "/photos/old.jpg", 333, modTime)
		if err != nil {
			t.Fatalf("Failed to upsert image: %v", err)
		}
		if err := repo.ReplaceFaces(ctx, id, []store.FaceRecord{{Embedding: testEmbedding(3)}}); err != nil {
			t.Fatalf("Failed to replace faces: %v", err)
		}

		if err := repo.RenameImage(ctx, "/photos/old.jpg", "/archive/new.jpg"); err != nil {
			t.Fatalf("Failed to rename image: %v", err)
		}

		got, err := repo.GetImage(ctx, "/archive/new.jpg")
		if err != nil {
			t.Fatalf("Failed to get renamed image: %v", err)
		}
		if got == nil || got.ID != id {
			t.Fatal("Expected renamed image with same id")
		}

		// Faces stay attached to the image across the rename.
		var count int
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces WHERE image_id = $1", id).Scan(&count); err != nil {
			t.Fatalf("Failed to count faces: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 face after rename, got %d", count)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		stats, err := repo.Stats(ctx)
		if err != nil {
			t.Fatalf("Failed to get stats: %v", err)
		}
		if stats.ImageCount == 0 {
			t.Error("Expected non-zero image count")
		}
		if stats.StorageBytes == 0 {
			t.Error("Expected non-zero storage size")
		}
	})
}

func TestFindSimilar(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewImageRepository(pool)
	modTime := time.Now().UTC().Truncate(time.Second)

	base := make([]float32, store.FaceEmbeddingDim)
	base[0] = 1

	far := make([]float32, store.FaceEmbeddingDim)
	for i := range far {
		far[i] = 5
	}

	idA, err := repo.UpsertImage(ctx, "/photos/near.jpg", 100, modTime)
	if err != nil {
		t.Fatalf("Failed to upsert image: %v", err)
	}
	if err := repo.ReplaceFaces(ctx, idA, []store.FaceRecord{{Embedding: base}}); err != nil {
		t.Fatalf("Failed to replace faces: %v", err)
	}

	idB, err := repo.UpsertImage(ctx, "/photos/far.jpg", 100, modTime)
	if err != nil {
		t.Fatalf("Failed to upsert image: %v", err)
	}
	if err := repo.ReplaceFaces(ctx, idB, []store.FaceRecord{{Embedding: far}}); err != nil {
		t.Fatalf("Failed to replace faces: %v", err)
	}

	t.Run("Euclidean", func(t *testing.T) {
		faces, distances, err := repo.FindSimilar(ctx, base, 2, store.MetricEuclidean)
		if err != nil {
			t.Fatalf("FindSimilar failed: %v", err)
		}
		if len(faces) != 2 {
			t.Fatalf("Expected 2 results, got %d", len(faces))
		}
		if faces[0].ImagePath != "/photos/near.jpg" {
			t.Errorf("Expected nearest /photos/near.jpg, got %s", faces[0].ImagePath)
		}
		if distances[0] > 0.001 {
			t.Errorf("Expected near-zero distance for exact match, got %f", distances[0])
		}
		if distances[1] <= distances[0] {
			t.Error("Expected results ordered by ascending distance")
		}
	})

	t.Run("Cosine", func(t *testing.T) {
		faces, distances, err := repo.FindSimilar(ctx, base, 1, store.MetricCosine)
		if err != nil {
			t.Fatalf("FindSimilar failed: %v", err)
		}
		if len(faces) != 1 {
			t.Fatalf("Expected 1 result, got %d", len(faces))
		}
		if faces[0].ImagePath != "/photos/near.jpg" {
			t.Errorf("Expected /photos/near.jpg, got %s", faces[0].ImagePath)
		}
		if distances[0] > 0.001 {
			t.Errorf("Expected near-zero cosine distance, got %f", distances[0])
		}
	})

	t.Run("WithHNSW", func(t *testing.T) {
		if err := repo.EnableHNSW(ctx, ""); err != nil {
			t.Fatalf("Failed to enable HNSW: %v", err)
		}
		if repo.HNSWCount() != 2 {
			t.Fatalf("Expected 2 faces in HNSW index, got %d", repo.HNSWCount())
		}

		faces, _, err := repo.FindSimilar(ctx, base, 1, store.MetricEuclidean)
		if err != nil {
			t.Fatalf("FindSimilar failed: %v", err)
		}
		if len(faces) != 1 || faces[0].ImagePath != "/photos/near.jpg" {
			t.Fatalf("Unexpected ANN results: %+v", faces)
		}
	})
}
