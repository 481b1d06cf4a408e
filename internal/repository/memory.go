package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/BerylCAtieno/legalease-api/internal/models"
)

// memoryRepository keeps records in process. Values are cloned on the way in
// and out so callers never alias stored state.
type memoryRepository struct {
	mu   sync.RWMutex
	seq  int64
	docs map[string]*memoryDoc
	qa   map[string][]models.QAEntry
}

type memoryDoc struct {
	seq int64
	doc *models.Document
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		docs: make(map[string]*memoryDoc),
		qa:   make(map[string][]models.QAEntry),
	}
}

func (r *memoryRepository) Create(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	r.docs[doc.ID] = &memoryDoc{seq: r.seq, doc: doc.Clone()}
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return stored.doc.Clone(), nil
}

func (r *memoryRepository) Update(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.docs[doc.ID]
	if !ok {
		return ErrNotFound
	}
	stored.doc = doc.Clone()
	return nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	delete(r.qa, id)
	return nil
}

func (r *memoryRepository) ListRecent(ctx context.Context, limit int) ([]*models.Document, error) {
	r.mu.RLock()
	stored := make([]*memoryDoc, 0, len(r.docs))
	for _, d := range r.docs {
		stored = append(stored, d)
	}
	r.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		a, b := stored[i], stored[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.After(b.doc.CreatedAt)
		}
		return a.seq > b.seq
	})

	if limit >= 0 && len(stored) > limit {
		stored = stored[:limit]
	}
	docs := make([]*models.Document, 0, len(stored))
	for _, d := range stored {
		docs = append(docs, d.doc.Clone())
	}
	return docs, nil
}

func (r *memoryRepository) AddQA(ctx context.Context, entry *models.QAEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[entry.DocumentID]; !ok {
		return ErrNotFound
	}
	r.qa[entry.DocumentID] = append(r.qa[entry.DocumentID], *entry)
	return nil
}

func (r *memoryRepository) ListQA(ctx context.Context, documentID string, limit int) ([]models.QAEntry, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Newest timestamp first; equal timestamps keep the latest insert first.
	all := r.qa[documentID]
	ordered := make([]models.QAEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		ordered = append(ordered, all[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})

	if limit < 0 {
		limit = 0
	}
	if limit < len(ordered) {
		ordered = ordered[:limit]
	}
	return ordered, len(all), nil
}

func (r *memoryRepository) Ping(ctx context.Context) error {
	return nil
}
