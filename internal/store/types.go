package store

import (
	"time"
)

// BoundingBox locates a face within its source image, in pixel coordinates.
// The order matches the detector output: top, right, bottom, left.
type BoundingBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// StoredImage represents an indexed image file.
type StoredImage struct {
	ID         int64
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
	IndexedAt  time.Time
}

// StoredFace represents a face embedding stored for an image.
type StoredFace struct {
	ID        int64
	ImageID   int64
	FaceIndex int
	Embedding []float32
	BBox      BoundingBox
	Thumbnail []byte // small JPEG crop, optional
	CreatedAt time.Time
}

// FaceRecord is the input shape for ReplaceFaces. IDs and timestamps are
// assigned by the store.
type FaceRecord struct {
	Embedding []float32
	BBox      BoundingBox
	Thumbnail []byte
}

// IndexedFace pairs a stored face with its owning image identity.
// This is the unit yielded by full scans.
type IndexedFace struct {
	ImageID   int64
	ImagePath string
	Face      StoredFace
}

// Stats summarizes the contents of a store.
type Stats struct {
	ImageCount   int   `json:"image_count"`
	FaceCount    int   `json:"face_count"`
	StorageBytes int64 `json:"storage_bytes"`
}
