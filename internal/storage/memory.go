package storage

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStorage keeps documents in process memory.
// Used by --storage=memory and by tests.
type MemoryStorage struct {
	mu   sync.RWMutex
	docs map[string]*Item
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{docs: make(map[string]*Item)}
}

func memoryKey(tenant, collection, id string) string {
	return path.Join(tenant, collection, id)
}

// CheckConnection always succeeds
func (s *MemoryStorage) CheckConnection(ctx context.Context) error {
	return nil
}

// Put stores a copy of content
func (s *MemoryStorage) Put(ctx context.Context, tenant, collection, id string, content []byte) (*Item, error) {
	if id == "" {
		return nil, fmt.Errorf("document id is required")
	}
	key := memoryKey(tenant, collection, id)

	s.mu.Lock()
	defer s.mu.Unlock()

	version := 1
	if prev, ok := s.docs[key]; ok {
		if v, err := strconv.Atoi(prev.VersionID); err == nil {
			version = v + 1
		}
	}

	data := append([]byte(nil), content...)
	item := &Item{
		Key:          key,
		Collection:   collection,
		ID:           id,
		Content:      data,
		ContentType:  "application/json",
		VersionID:    strconv.Itoa(version),
		LastModified: time.Now().UTC(),
		Size:         int64(len(data)),
	}
	s.docs[key] = item
	return copyItem(item), nil
}

// Get returns a copy of the stored document
func (s *MemoryStorage) Get(ctx context.Context, tenant, collection, id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.docs[memoryKey(tenant, collection, id)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(item), nil
}

// Delete removes a document; deleting a missing document is not an error
func (s *MemoryStorage) Delete(ctx context.Context, tenant, collection, id string) error {
	s.mu.Lock()
	delete(s.docs, memoryKey(tenant, collection, id))
	s.mu.Unlock()
	return nil
}

// List returns all documents of a collection ordered by id
func (s *MemoryStorage) List(ctx context.Context, tenant, collection string) ([]*Item, error) {
	prefix := memoryKey(tenant, collection, "") + "/"

	s.mu.RLock()
	var items []*Item
	for key, item := range s.docs {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			items = append(items, copyItem(item))
		}
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// Exists reports whether a document is stored
func (s *MemoryStorage) Exists(ctx context.Context, tenant, collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[memoryKey(tenant, collection, id)]
	return ok, nil
}

func copyItem(item *Item) *Item {
	c := *item
	c.Content = append([]byte(nil), item.Content...)
	return &c
}
