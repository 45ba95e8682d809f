package blob

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

const memoryScheme = "mem://"

// MemoryStore keeps blobs in process memory. Locations are "mem://key".
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return memoryScheme + key, nil
}

func (m *MemoryStore) Get(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, ok := strings.CutPrefix(location, memoryScheme)
	if !ok {
		return nil, domain.NewValidationError("location", fmt.Sprintf("expected %s scheme in %q", memoryScheme, location))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", location, domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}
