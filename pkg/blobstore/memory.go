package blobstore

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// MemoryStore keeps file contents in memory, for tests and local runs
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string

	// DeleteErr, when set, is returned by every Delete
	DeleteErr error
	// UploadErr, when set, is returned by every Upload
	UploadErr error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Upload reads localPath into memory
func (m *MemoryStore) Upload(ctx context.Context, localPath, folder, resourceType string) (Object, error) {
	if m.UploadErr != nil {
		return Object{}, m.UploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return Object{}, fmt.Errorf("unable to read upload: %w", err)
	}

	format := formatOf(localPath)
	id := newPublicID(folder, format)

	m.mu.Lock()
	m.objects[id] = data
	m.mu.Unlock()

	return Object{
		URL:          "memory://" + id,
		PublicID:     id,
		Format:       format,
		ResourceType: resourceType,
	}, nil
}

// Delete drops an object
func (m *MemoryStore) Delete(ctx context.Context, publicID, resourceType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.objects[publicID]; !ok {
		return ErrNotFound
	}
	delete(m.objects, publicID)
	m.deleted = append(m.deleted, publicID)
	return nil
}

// Has reports whether publicID is stored
func (m *MemoryStore) Has(publicID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[publicID]
	return ok
}

// Count returns the number of stored objects
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Deleted lists successfully deleted ids in order
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
