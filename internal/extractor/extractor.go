// Package extractor talks to the external face-extraction server and derives
// face thumbnails locally.
package extractor

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-finder/internal/store"
)

// DetectedFace is one face found in an image.
type DetectedFace struct {
	BBox      store.BoundingBox
	Embedding []float32
	Thumbnail []byte // JPEG crop, may be nil when derivation fails
}

// Extractor is the embedding-extraction capability the indexing pipeline
// depends on. Implementations may return zero faces for a valid image.
type Extractor interface {
	ExtractFaces(ctx context.Context, imageData []byte) ([]DetectedFace, error)
}

// DecodeError indicates the input could not be read as an image.
// During indexing this is a single-file failure, not a fatal error.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unreadable image: %s", e.Reason)
}

// ExtractionError indicates the extraction server failed on a decodable
// image. Recovered per file during indexing.
type ExtractionError struct {
	StatusCode int
	Message    string
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extraction failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("extraction failed: %s", e.Message)
}
