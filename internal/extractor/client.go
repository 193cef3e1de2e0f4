package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/kozaktomas/face-finder/internal/store"
)

const defaultExtractorURL = "http://localhost:8000"

// Client calls the face-extraction server over HTTP.
type Client struct {
	baseURL       string
	client        *http.Client
	thumbnailSize int
}

var _ Extractor = (*Client)(nil)

// NewClient creates a new extraction client. thumbnailSize bounds the derived
// face crops; zero or negative falls back to DefaultThumbnailSize.
func NewClient(baseURL string, thumbnailSize int) *Client {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	if thumbnailSize <= 0 {
		thumbnailSize = DefaultThumbnailSize
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		client:        &http.Client{},
		thumbnailSize: thumbnailSize,
	}
}

// detectedFaceResponse is one face in the server response.
// bbox order is top, right, bottom, left in source-image pixels.
type detectedFaceResponse struct {
	BBox      [4]int    `json:"bbox"`
	Embedding []float32 `json:"embedding"`
}

// detectResponse represents the response from the extraction server.
type detectResponse struct {
	Dim   int                    `json:"dim"`
	Faces []detectedFaceResponse `json:"faces"`
}

// postMultipartImage constructs a multipart form with the image data and
// posts it to the given endpoint. The part carries an explicit Content-Type
// based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) (int, []byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return 0, nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return 0, nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// ExtractFaces sends the image to the extraction server and returns the
// detected faces with locally derived thumbnails. Unreadable input maps to
// DecodeError, other server failures to ExtractionError.
func (c *Client) ExtractFaces(ctx context.Context, imageData []byte) ([]DetectedFace, error) {
	status, body, err := c.postMultipartImage(ctx, "/detect", imageData)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		// Fall through to decode.
	case status == http.StatusUnsupportedMediaType || status == http.StatusUnprocessableEntity:
		return nil, &DecodeError{Reason: strings.TrimSpace(string(body))}
	default:
		return nil, &ExtractionError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}

	var detected detectResponse
	if err := json.Unmarshal(body, &detected); err != nil {
		return nil, &ExtractionError{Message: fmt.Sprintf("invalid response: %v", err)}
	}

	faces := make([]DetectedFace, 0, len(detected.Faces))
	for _, f := range detected.Faces {
		if detected.Dim > 0 && len(f.Embedding) != detected.Dim {
			return nil, &ExtractionError{
				Message: fmt.Sprintf("embedding length %d does not match reported dim %d", len(f.Embedding), detected.Dim),
			}
		}
		bbox := store.BoundingBox{
			Top:    f.BBox[0],
			Right:  f.BBox[1],
			Bottom: f.BBox[2],
			Left:   f.BBox[3],
		}
		// Thumbnail derivation is best effort; a face without one is still
		// searchable.
		thumb, _ := Thumbnail(imageData, bbox, c.thumbnailSize)
		faces = append(faces, DetectedFace{
			BBox:      bbox,
			Embedding: f.Embedding,
			Thumbnail: thumb,
		})
	}

	return faces, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	// TIFF: II*\0 or MM\0*
	if (data[0] == 0x49 && data[1] == 0x49 && data[2] == 0x2A) ||
		(data[0] == 0x4D && data[1] == 0x4D && data[2] == 0x00) {
		return "image/tiff"
	}
	return "application/octet-stream"
}
