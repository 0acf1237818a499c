package repository

import (
	"context"
	"errors"

	"docqa/internal/model"
)

var (
	// ErrNotFound is returned when no document has the requested file id.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the file id is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

// DocumentRepository owns the file id to document mapping.
// No business logic here, only storage of records.
type DocumentRepository interface {
	// Create inserts doc only if its FileID is not taken yet; otherwise ErrAlreadyExists.
	Create(ctx context.Context, doc *model.Document) error

	// Put inserts doc or overwrites the record with the same FileID.
	// An overwritten record keeps its original position in List.
	Put(ctx context.Context, doc *model.Document) error

	// FindByID returns the document with the given file id or ErrNotFound.
	FindByID(ctx context.Context, fileID string) (*model.Document, error)

	// List returns summaries of all documents in insertion order.
	List(ctx context.Context) ([]model.DocumentSummary, error)

	// Delete removes the record and returns it, or ErrNotFound.
	Delete(ctx context.Context, fileID string) (*model.Document, error)
}
