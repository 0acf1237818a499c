package memory

import (
	"context"
	"sync"

	"docqa/internal/model"
	"docqa/internal/repository"
)

// DocumentMemory is an in-process implementation of repository.DocumentRepository.
// Records live for the lifetime of the process. It is safe for concurrent use.
type DocumentMemory struct {
	mu    sync.RWMutex
	docs  map[string]*model.Document
	order []string
}

// NewDocumentMemory creates an empty store.
func NewDocumentMemory() *DocumentMemory {
	return &DocumentMemory{docs: make(map[string]*model.Document)}
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

// Create inserts doc unless its file id is already present.
func (r *DocumentMemory) Create(_ context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.FileID]; ok {
		return repository.ErrAlreadyExists
	}
	r.insert(doc)
	return nil
}

// Put inserts or overwrites doc.
func (r *DocumentMemory) Put(_ context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.FileID]; ok {
		r.docs[doc.FileID] = clone(doc)
		return nil
	}
	r.insert(doc)
	return nil
}

// FindByID returns a copy of the stored document.
func (r *DocumentMemory) FindByID(_ context.Context, fileID string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(doc), nil
}

// List returns summaries in insertion order.
func (r *DocumentMemory) List(_ context.Context) ([]model.DocumentSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]model.DocumentSummary, 0, len(r.order))
	for _, id := range r.order {
		items = append(items, r.docs[id].Summary())
	}
	return items, nil
}

// Delete removes the record and returns what was stored.
func (r *DocumentMemory) Delete(_ context.Context, fileID string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.docs, fileID)
	for i, id := range r.order {
		if id == fileID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return doc, nil
}

// insert must be called with mu held.
func (r *DocumentMemory) insert(doc *model.Document) {
	r.docs[doc.FileID] = clone(doc)
	r.order = append(r.order, doc.FileID)
}

func clone(doc *model.Document) *model.Document {
	c := *doc
	return &c
}
