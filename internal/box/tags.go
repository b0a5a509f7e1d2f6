package box

import (
	"context"
	"sync"
)

// AdminUserTag is the instance tag recording the account to log in as.
const AdminUserTag = "admin_user"

// TagStore is the key/value metadata attached to an instance. Values written
// with Set outlive the process.
type TagStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryTags is a TagStore kept in memory. Its values die with the process.
type MemoryTags struct {
	mu   sync.Mutex
	tags map[string]string
}

func NewMemoryTags(initial map[string]string) *MemoryTags {
	tags := make(map[string]string, len(initial))
	for k, v := range initial {
		tags[k] = v
	}
	return &MemoryTags{tags: tags}
}

func (m *MemoryTags) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tags[key]
	return v, ok, nil
}

func (m *MemoryTags) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[key] = value
	return nil
}
