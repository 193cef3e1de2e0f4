// Package fileops applies copy/move/delete batches to search results while
// keeping the embedding store consistent with the filesystem.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kozaktomas/face-finder/internal/store"
)

// Operation identifies a batch file operation.
type Operation string

const (
	OpCopy   Operation = "copy"
	OpMove   Operation = "move"
	OpDelete Operation = "delete"
)

// Valid reports whether op names a known operation.
func (op Operation) Valid() bool {
	return op == OpCopy || op == OpMove || op == OpDelete
}

// OpError records one failed path within a batch.
type OpError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Report tallies a batch. Every path is attempted; one failure never aborts
// the rest.
type Report struct {
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Errors     []OpError `json:"errors,omitempty"`
}

// Operator executes batch file operations.
type Operator struct {
	store store.Store
}

// New creates an operator backed by the given store.
func New(st store.Store) *Operator {
	return &Operator{store: st}
}

// Apply runs op over paths. copy and move require destination to be a
// writable directory; that precondition failing is a batch-level error,
// everything past it is tallied per path.
//
// Name collisions at the destination resolve by appending a numeric suffix
// (photo.jpg, photo_1.jpg, photo_2.jpg, ...), never by overwriting.
func (o *Operator) Apply(ctx context.Context, op Operation, paths []string, destination string) (Report, error) {
	if !op.Valid() {
		return Report{}, fmt.Errorf("unknown operation %q", op)
	}

	if op == OpCopy || op == OpMove {
		if err := checkDestination(destination); err != nil {
			return Report{}, err
		}
	}

	var report Report
	for _, path := range paths {
		var err error
		switch op {
		case OpCopy:
			err = o.copyOne(path, destination)
		case OpMove:
			err = o.moveOne(ctx, path, destination)
		case OpDelete:
			err = o.deleteOne(ctx, path)
		}

		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, OpError{Path: path, Reason: err.Error()})
			continue
		}
		report.Successful++
	}

	return report, nil
}

// checkDestination verifies the destination is an existing writable directory.
func checkDestination(destination string) error {
	if destination == "" {
		return errors.New("destination directory is required")
	}
	info, err := os.Stat(destination)
	if err != nil {
		return fmt.Errorf("destination not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", destination)
	}
	probe, err := os.CreateTemp(destination, ".face-finder-probe-*")
	if err != nil {
		return fmt.Errorf("destination not writable: %w", err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}

// resolveCollision picks a destination path that does not exist yet.
func resolveCollision(destination, name string) string {
	target := filepath.Join(destination, name)
	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		return target
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		target = filepath.Join(destination, fmt.Sprintf("%s_%d%s", base, counter, ext))
		if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
			return target
		}
	}
}

func (o *Operator) copyOne(path, destination string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	target := resolveCollision(destination, filepath.Base(path))
	return copyFile(path, target)
}

// moveOne moves the file, then re-registers it in the store under the new
// path so its face set carries over without re-extraction.
func (o *Operator) moveOne(ctx context.Context, path, destination string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("file not found: %s", path)
	}
	target := resolveCollision(destination, filepath.Base(path))

	if err := os.Rename(path, target); err != nil {
		// Only cross-device moves fall back to copy and remove; other rename
		// failures must not leave a duplicate at the destination.
		if !errors.Is(err, syscall.EXDEV) {
			return fmt.Errorf("moving file: %w", err)
		}
		if copyErr := copyFile(path, target); copyErr != nil {
			return fmt.Errorf("moving file: %w", copyErr)
		}
		if rmErr := os.Remove(path); rmErr != nil {
			_ = os.Remove(target)
			return fmt.Errorf("removing source after copy: %w", rmErr)
		}
	}

	if err := o.store.RenameImage(ctx, path, target); err != nil {
		return fmt.Errorf("file moved but index update failed: %w", err)
	}
	return nil
}

// deleteOne removes the store rows first, then the file, so a failed store
// update never leaves rows pointing at a missing file.
func (o *Operator) deleteOne(ctx context.Context, path string) error {
	if err := o.store.DeleteImage(ctx, path); err != nil {
		return fmt.Errorf("index update failed, file left untouched: %w", err)
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file not found: %s", path)
		}
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// copyFile copies src to dst, preserving the modification time best effort.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copying data: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("closing destination: %w", err)
	}

	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}
