package extractor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/kozaktomas/face-finder/internal/store"
)

// DefaultThumbnailSize is the bounding edge of derived face thumbnails.
const DefaultThumbnailSize = 150

// Thumbnail crops the bounding box out of the image and scales it to fit
// within maxSize while keeping aspect ratio, encoded as JPEG.
func Thumbnail(imageData []byte, bbox store.BoundingBox, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}

	crop := image.Rect(bbox.Left, bbox.Top, bbox.Right, bbox.Bottom)
	crop = crop.Intersect(img.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("bounding box %v outside image bounds %v", bbox, img.Bounds())
	}

	width := crop.Dx()
	height := crop.Dy()

	var newWidth, newHeight int
	if width <= maxSize && height <= maxSize {
		newWidth, newHeight = width, height
	} else if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}
	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, crop, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), nil
}
