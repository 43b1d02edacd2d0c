package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Document is the raw field map of a single stored document. Values are the
// types the backing store round-trips natively: string, bool, int64 and
// time.Time.
type Document map[string]interface{}

// Entry pairs a document with its ID inside a collection listing.
type Entry struct {
	ID   string
	Data Document
}

// UpdateFunc is invoked inside a single-document transaction with the
// current contents (nil when the document does not exist). The returned
// document replaces the stored one; returning nil skips the write.
type UpdateFunc func(current Document, exists bool) (Document, error)

var (
	// ErrNotFound means the addressed document does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrInvalidPath means the path does not address a document or
	// collection (wrong segment parity, empty segment).
	ErrInvalidPath = errors.New("docstore: invalid path")
)

// Store is the narrow contract the services are written against. The backing
// store linearizes writes per document and supports a read-modify-write
// transaction scoped to one document; it offers no atomicity across
// documents. Set overwrites the full document, Delete of a missing document
// is a no-op.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, doc Document) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, collection string) ([]Entry, error)
	RunTransaction(ctx context.Context, path string, fn UpdateFunc) error
}

// ValidateDocPath checks that path addresses a document:
// collection/id[/collection/id...], an even number of non-empty segments.
func ValidateDocPath(path string) error {
	segs := strings.Split(path, "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return nil
}

// ValidateCollectionPath checks that path addresses a collection, an odd
// number of non-empty segments.
func ValidateCollectionPath(path string) error {
	segs := strings.Split(path, "/")
	if len(segs)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return nil
}
