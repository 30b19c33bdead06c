package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hearthtable/marketplace/internal/domain/providers"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// MemoryStorage keeps objects in process memory. It backs local runs without
// an object store and the image pipeline tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
	// FailPut, when set, fails Put for the keys it matches
	FailPut func(key string) bool
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStorage creates an empty in-memory object store
func NewMemoryStorage(bucket string) *MemoryStorage {
	return &MemoryStorage{
		bucket:  bucket,
		objects: make(map[string]memoryObject),
	}
}

var _ providers.ObjectStorage = (*MemoryStorage)(nil)

// Put stores the object bytes
func (m *MemoryStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if m.FailPut != nil && m.FailPut(key) {
		return apperrors.NewExternalError(fmt.Sprintf("failed to upload object %s", key), nil)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return apperrors.NewExternalError(fmt.Sprintf("failed to read object %s", key), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	return nil
}

// Delete removes the object if present
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Bucket returns the bucket name
func (m *MemoryStorage) Bucket() string {
	return m.bucket
}

// Has reports whether key is stored
func (m *MemoryStorage) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
