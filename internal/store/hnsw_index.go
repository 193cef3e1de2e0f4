package store

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex wraps an in-memory HNSW graph over stored faces. It accelerates
// Euclidean similarity search; exact distances are recomputed by callers.
// HNSW does not support true deletion, so removed faces stay in the graph but
// are filtered out of results via the id lookup map.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToFace map[int64]*IndexedFace
	mu       sync.RWMutex
	path     string // optional persistence location
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*IndexedFace),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with the given faces.
func (h *HNSWIndex) Build(faces []IndexedFace) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(faces) == 0 {
		h.graph = nil
		h.idToFace = make(map[int64]*IndexedFace)
		return nil
	}

	g := newGraph()
	h.idToFace = make(map[int64]*IndexedFace, len(faces))

	for i := range faces {
		face := &faces[i]
		if len(face.Face.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(face.Face.ID, face.Face.Embedding))
		h.idToFace[face.Face.ID] = face
	}

	h.graph = g
	return nil
}

// Add inserts a single face into the index.
func (h *HNSWIndex) Add(face IndexedFace) {
	if len(face.Face.Embedding) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(face.Face.ID, face.Face.Embedding))
	h.idToFace[face.Face.ID] = &face
}

// Delete removes a face from lookup. The graph node remains but no longer
// surfaces in results.
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.idToFace, id)
}

// RenamePath updates the image path recorded for all faces of an image.
func (h *HNSWIndex) RenamePath(oldPath, newPath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, face := range h.idToFace {
		if face.ImagePath == oldPath {
			face.ImagePath = newPath
		}
	}
}

// Search finds the k nearest live faces to the query embedding.
// Distances are exact Euclidean distances, recomputed per candidate.
func (h *HNSWIndex) Search(query []float32, k int) ([]IndexedFace, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k)

	faces := make([]IndexedFace, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		face, ok := h.idToFace[n.Key]
		if !ok {
			// Deleted face still present in the graph.
			continue
		}
		faces = append(faces, *face)
		distances = append(distances, EuclideanDistance(query, n.Value))
	}

	return faces, distances, nil
}

// Count returns the number of live faces in the index.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}

// SetPath sets the path for saving/loading the index.
func (h *HNSWIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Save persists the graph and face lookup to disk. No-op without a path.
func (h *HNSWIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil
	}

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(h.path)
		_ = os.Remove(h.path + ".faces")
		return nil
	}

	f, err := os.Create(h.path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close HNSW index file: %w", err)
	}

	faces := make([]IndexedFace, 0, len(h.idToFace))
	for _, face := range h.idToFace {
		faces = append(faces, *face)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(faces); err != nil {
		return fmt.Errorf("failed to encode faces: %w", err)
	}
	if err := os.WriteFile(h.path+".faces", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write faces file: %w", err)
	}

	return nil
}

// Load restores a previously saved index. Returns os.ErrNotExist when no
// index file is present, so callers can fall back to a rebuild.
func (h *HNSWIndex) Load(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".faces")
	if err != nil {
		return fmt.Errorf("failed to read faces file: %w", err)
	}

	var faces []IndexedFace
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&faces); err != nil {
		return fmt.Errorf("failed to decode faces: %w", err)
	}

	h.graph = saved.Graph
	h.idToFace = make(map[int64]*IndexedFace, len(faces))
	for i := range faces {
		h.idToFace[faces[i].Face.ID] = &faces[i]
	}

	return nil
}
