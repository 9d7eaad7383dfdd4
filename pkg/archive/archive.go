// Package archive stores session audio recordings. A BlobStore abstracts
// the backing medium (local disk, S3-compatible object stores); Archive
// layers recording-oriented naming on top so callers deal in conversation
// and message identifiers rather than paths.
package archive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

// BlobStore is a minimal interface for blob-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Read opens the named blob for reading. If the blob does not exist,
	// an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named blob for writing, truncating any existing
	// content. The caller must close the returned WriteCloser to flush.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named blob. Deleting a missing blob is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named blob exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths of all blobs under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Archive names session recordings within a BlobStore. One recording is
// the rendered audio of one character response, stored as
// "recordings/<conversationID>/<messageID>.wav".
type Archive struct {
	store BlobStore
}

// New wraps a BlobStore in recording-oriented naming.
func New(store BlobStore) *Archive {
	return &Archive{store: store}
}

func recordingPath(conversationID, messageID string) (string, error) {
	if conversationID == "" || messageID == "" {
		return "", fmt.Errorf("archive: conversation and message ids are required")
	}
	if strings.ContainsAny(conversationID, "/\\") || strings.ContainsAny(messageID, "/\\") {
		return "", fmt.Errorf("archive: ids must not contain path separators")
	}
	return "recordings/" + conversationID + "/" + messageID + ".wav", nil
}

// Save streams a rendered recording into the archive and returns its path.
func (a *Archive) Save(ctx context.Context, conversationID, messageID string, r io.Reader) (string, error) {
	path, err := recordingPath(conversationID, messageID)
	if err != nil {
		return "", err
	}
	w, err := a.store.Write(ctx, path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens a stored recording for reading.
func (a *Archive) Open(ctx context.Context, conversationID, messageID string) (io.ReadCloser, error) {
	path, err := recordingPath(conversationID, messageID)
	if err != nil {
		return nil, err
	}
	return a.store.Read(ctx, path)
}

// Remove deletes one recording. Removing a missing recording is not an
// error.
func (a *Archive) Remove(ctx context.Context, conversationID, messageID string) error {
	path, err := recordingPath(conversationID, messageID)
	if err != nil {
		return err
	}
	return a.store.Delete(ctx, path)
}

// Recordings lists the message IDs with a stored recording for the given
// conversation, lexicographically ordered.
func (a *Archive) Recordings(ctx context.Context, conversationID string) ([]string, error) {
	prefix := "recordings/" + conversationID + "/"
	paths, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		name := strings.TrimPrefix(p, prefix)
		name = strings.TrimSuffix(name, ".wav")
		if name != "" && !strings.Contains(name, "/") {
			ids = append(ids, name)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
