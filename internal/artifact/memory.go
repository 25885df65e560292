package artifact

import (
	"context"
	"sort"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"

	apperr "laddergen/internal/errors"
)

type blob struct {
	data        []byte
	contentType string
}

// Memory keeps artifacts in process memory. The default backend for
// development and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]blob
}

func NewMemory() *Memory {
	return &Memory{data: map[string]blob{}}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return pkgerrors.Wrap(apperr.ErrInvalidInput, "artifact key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	if !ok {
		return nil, "", pkgerrors.Wrapf(apperr.ErrNotFound, "artifact %s", key)
	}
	return append([]byte(nil), b.data...), b.contentType, nil
}

func (m *Memory) GetURL(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
