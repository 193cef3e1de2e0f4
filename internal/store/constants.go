package store

// FaceEmbeddingDim is the fixed dimension for face embeddings (128 for
// dlib-style face encodings). The dimension is constant for the lifetime of
// a store instance; the Postgres schema pins it in the vector column type.
const FaceEmbeddingDim = 128

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to ensure we have enough after distance filtering.
	HNSWSearchMultiplier = 3
)
