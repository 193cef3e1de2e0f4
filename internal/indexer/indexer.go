// Package indexer converges the embedding store to the contents of a
// directory tree, reporting progress through pollable sessions.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kozaktomas/face-finder/internal/config"
	"github.com/kozaktomas/face-finder/internal/extractor"
	"github.com/kozaktomas/face-finder/internal/store"
)

// Pipeline walks a root directory, extracts face embeddings for new or
// changed images, and writes them to the store.
type Pipeline struct {
	store       store.Store
	extractor   extractor.Extractor
	sessions    *SessionManager
	extensions  map[string]bool
	fileTimeout time.Duration
}

// New creates an indexing pipeline.
func New(st store.Store, ex extractor.Extractor, cfg *config.IndexingConfig) *Pipeline {
	extensions := make(map[string]bool, len(cfg.Extensions))
	for _, ext := range cfg.Extensions {
		extensions[strings.ToLower(ext)] = true
	}

	timeout := time.Duration(cfg.FileTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Pipeline{
		store:       st,
		extractor:   ex,
		sessions:    NewSessionManager(),
		extensions:  extensions,
		fileTimeout: timeout,
	}
}

// Start begins indexing root in a background worker and returns the session
// id. A second start for the same root while one is running is rejected with
// AlreadyRunningError.
func (p *Pipeline) Start(root string) (string, error) {
	session, err := p.sessions.Begin(root)
	if err != nil {
		return "", err
	}

	go p.run(session)

	return session.ID(), nil
}

// Progress returns a snapshot of the session, false when unknown.
func (p *Pipeline) Progress(sessionID string) (Snapshot, bool) {
	s := p.sessions.Get(sessionID)
	if s == nil {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Cancel requests a cooperative stop of the session. Returns false when the
// session is unknown. Store writes already committed remain.
func (p *Pipeline) Cancel(sessionID string) bool {
	s := p.sessions.Get(sessionID)
	if s == nil {
		return false
	}
	s.Cancel()
	return true
}

// run executes one indexing session to completion.
func (p *Pipeline) run(session *Session) {
	defer p.sessions.release(session)

	ctx := context.Background()
	snap := session.Snapshot()

	info, err := os.Stat(snap.RootPath)
	if err != nil || !info.IsDir() {
		session.finish(StatusFailed, fmt.Sprintf("root is not a readable directory: %s", snap.RootPath))
		return
	}

	files, err := EnumerateImages(snap.RootPath, p.extensions)
	if err != nil {
		session.finish(StatusFailed, err.Error())
		return
	}
	session.setTotal(len(files))

	for _, path := range files {
		if session.isCancelled() {
			session.finish(StatusCancelled, "")
			return
		}

		faces, err := p.processFile(ctx, path)
		if err != nil {
			// Storage failures abort the run; per-file extraction and decode
			// failures are counted and skipped.
			if store.IsStoreError(err) {
				session.finish(StatusFailed, err.Error())
				return
			}
			log.Printf("indexing %s: %v", path, err)
			session.advance(0, true)
			continue
		}
		session.advance(faces, false)
	}

	session.finish(StatusCompleted, "")
}

// processFile indexes a single file and returns the number of faces found.
// Unchanged files are skipped without extraction.
func (p *Pipeline) processFile(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	// The store keeps timestamps at microsecond resolution, while ext4 mtimes
	// carry nanoseconds. Compare and store at the coarser precision or the
	// unchanged-file check never matches.
	modTime := info.ModTime().Truncate(time.Microsecond)

	existing, err := p.store.GetImage(ctx, path)
	if err != nil {
		return 0, err
	}
	if existing != nil && existing.SizeBytes == info.Size() && existing.ModifiedAt.Equal(modTime) {
		// Unchanged since the last pass; still counts as processed.
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.fileTimeout)
	defer cancel()

	detected, err := p.extractor.ExtractFaces(extractCtx, data)
	if err != nil {
		return 0, err
	}

	imageID, err := p.store.UpsertImage(ctx, path, info.Size(), modTime)
	if err != nil {
		return 0, err
	}

	records := make([]store.FaceRecord, 0, len(detected))
	for _, face := range detected {
		records = append(records, store.FaceRecord{
			Embedding: face.Embedding,
			BBox:      face.BBox,
			Thumbnail: face.Thumbnail,
		})
	}
	if err := p.store.ReplaceFaces(ctx, imageID, records); err != nil {
		return 0, err
	}

	return len(records), nil
}

// Cleanup removes store rows whose files no longer exist on disk.
// Returns the number of images removed.
func (p *Pipeline) Cleanup(ctx context.Context) (int, error) {
	images, err := p.store.ListImages(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, img := range images {
		if _, err := os.Stat(img.Path); errors.Is(err, os.ErrNotExist) {
			if err := p.store.DeleteImage(ctx, img.Path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
