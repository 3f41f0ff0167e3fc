package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Transactions take an exclusive lock, so
// every transaction observes a consistent snapshot and concurrent guarded
// increments cannot lose updates. Writes inside a transaction are staged and
// discarded when the callback returns an error.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]Doc
}

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]Doc{}}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(collection, id)
}

func (m *Memory) GetBy(ctx context.Context, collection, field, value string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getBy(collection, field, value)
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(collection, id, fields)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if col, ok := m.data[collection]; ok {
		delete(col, id)
	}
	return nil
}

func (m *Memory) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{base: m, staged: map[string]map[string]Doc{}, deleted: map[string]map[string]bool{}}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) get(collection, id string) (Doc, error) {
	if doc, ok := m.data[collection][id]; ok {
		out := doc.Clone()
		out["id"] = id
		return out, nil
	}
	return nil, ErrNotFound
}

func (m *Memory) getBy(collection, field, value string) (Doc, error) {
	for id, doc := range m.data[collection] {
		if doc.GetString(field) == value {
			out := doc.Clone()
			out["id"] = id
			return out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) set(collection, id string, fields Doc) {
	col, ok := m.data[collection]
	if !ok {
		col = map[string]Doc{}
		m.data[collection] = col
	}
	doc, ok := col[id]
	if !ok {
		doc = Doc{}
		col[id] = doc
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
}

// memoryTx stages writes on top of the locked base store.
type memoryTx struct {
	base    *Memory
	staged  map[string]map[string]Doc
	deleted map[string]map[string]bool
}

func (t *memoryTx) Get(ctx context.Context, collection, id string) (Doc, error) {
	if t.deleted[collection][id] {
		return nil, ErrNotFound
	}
	doc, err := t.base.get(collection, id)
	if err != nil && t.staged[collection][id] == nil {
		return nil, err
	}
	if doc == nil {
		doc = Doc{"id": id}
	}
	for k, v := range t.staged[collection][id] {
		doc[k] = v
	}
	return doc, nil
}

func (t *memoryTx) GetBy(ctx context.Context, collection, field, value string) (Doc, error) {
	// Staged documents first, then the committed base.
	for id, doc := range t.staged[collection] {
		if doc.GetString(field) == value && !t.deleted[collection][id] {
			return t.Get(ctx, collection, id)
		}
	}
	doc, err := t.base.getBy(collection, field, value)
	if err != nil {
		return nil, err
	}
	return t.Get(ctx, collection, doc.GetString("id"))
}

func (t *memoryTx) Set(ctx context.Context, collection, id string, fields Doc) error {
	col, ok := t.staged[collection]
	if !ok {
		col = map[string]Doc{}
		t.staged[collection] = col
	}
	doc, ok := col[id]
	if !ok {
		doc = Doc{}
		col[id] = doc
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		doc[k] = v
	}
	if t.deleted[collection] != nil {
		delete(t.deleted[collection], id)
	}
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, collection, id string) error {
	if t.staged[collection] != nil {
		delete(t.staged[collection], id)
	}
	col, ok := t.deleted[collection]
	if !ok {
		col = map[string]bool{}
		t.deleted[collection] = col
	}
	col[id] = true
	return nil
}

func (t *memoryTx) RunInTransaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(t)
}

func (t *memoryTx) commit() {
	for collection, ids := range t.deleted {
		for id := range ids {
			if col, ok := t.base.data[collection]; ok {
				delete(col, id)
			}
		}
	}
	for collection, docs := range t.staged {
		for id, fields := range docs {
			t.base.set(collection, id, fields)
		}
	}
}
