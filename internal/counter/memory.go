package counter

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

type memoryRecord struct {
	doc     Document
	version int64
}

// MemoryStore keeps documents in process memory. Versions behave like the
// persistent stores so the optimistic loop is exercised locally.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string]memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]memoryRecord{}}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Lookup, error) {
	if err := ctx.Err(); err != nil {
		return Lookup{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[id]
	if !ok {
		return Lookup{}, nil
	}
	return Lookup{Found: true, Doc: rec.doc, Version: rec.version}, nil
}

func (m *MemoryStore) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[doc.ID]; ok {
		return ErrAlreadyExists
	}
	m.docs[doc.ID] = memoryRecord{doc: doc, version: 1}
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.docs[doc.ID]
	m.docs[doc.ID] = memoryRecord{doc: doc, version: rec.version + 1}
	return nil
}

func (m *MemoryStore) Swap(ctx context.Context, prev Lookup, next Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.docs[next.ID]
	if !ok || rec.version != prev.Version {
		return ErrConflict
	}
	m.docs[next.ID] = memoryRecord{doc: next, version: rec.version + 1}
	return nil
}

func (m *MemoryStore) Check(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	return nil
}
