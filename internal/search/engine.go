// Package search ranks stored faces against a query embedding.
package search

import (
	"context"
	"sort"

	"github.com/kozaktomas/face-finder/internal/store"
)

// DefaultThreshold is the minimum similarity for a face to surface in
// results when the caller does not set one.
const DefaultThreshold = 0.55

// Query describes one similarity search.
type Query struct {
	Embedding  []float32
	Metric     store.Metric // defaults to Euclidean
	Threshold  float64      // minimum similarity in [0, 1]
	MaxResults int          // <= 0 means unlimited
}

// Result is one matching image. An image with multiple matching faces is
// represented once, by its best-matching face.
type Result struct {
	ImageID    int64   `json:"image_id"`
	ImagePath  string  `json:"image_path"`
	FaceID     int64   `json:"face_id"`
	Similarity float64 `json:"similarity"`
}

// Engine scans the store for faces similar to a query embedding.
// The scan runs behind the store's AllFaces snapshot, so an approximate
// index can be swapped in via store.SimilaritySearcher without changing
// this contract.
type Engine struct {
	store store.Store
}

// New creates a search engine over the given store.
func New(st store.Store) *Engine {
	return &Engine{store: st}
}

// Search returns images containing a face within the similarity threshold,
// ordered by descending similarity, ties broken by ascending image id.
// An empty store yields an empty result, not an error.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	if want := e.store.Dim(); len(q.Embedding) != want {
		return nil, &store.DimensionMismatchError{Want: want, Got: len(q.Embedding)}
	}

	metric := q.Metric
	if metric == "" {
		metric = store.MetricEuclidean
	}

	best := make(map[int64]Result)

	consider := func(face store.IndexedFace, distance float64) {
		similarity := store.Similarity(distance)
		if similarity < q.Threshold {
			return
		}
		current, ok := best[face.ImageID]
		if !ok || similarity > current.Similarity {
			best[face.ImageID] = Result{
				ImageID:    face.ImageID,
				ImagePath:  face.ImagePath,
				FaceID:     face.Face.ID,
				Similarity: similarity,
			}
		}
	}

	if ss, ok := e.store.(store.SimilaritySearcher); ok && ss.ANNReady() && q.MaxResults > 0 {
		// Candidate fast path; distances are recomputed exactly so the
		// ranking contract is identical to the full scan.
		limit := q.MaxResults * store.HNSWSearchMultiplier
		faces, _, err := ss.FindSimilar(ctx, q.Embedding, limit, metric)
		if err != nil {
			return nil, err
		}
		for _, face := range faces {
			consider(face, metric.Distance(q.Embedding, face.Face.Embedding))
		}
	} else {
		it, err := e.store.AllFaces(ctx)
		if err != nil {
			return nil, err
		}
		defer it.Close()

		for it.Next() {
			face := it.Face()
			consider(face, metric.Distance(q.Embedding, face.Face.Embedding))
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
	}

	results := make([]Result, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ImageID < results[j].ImageID
	})

	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	return results, nil
}
