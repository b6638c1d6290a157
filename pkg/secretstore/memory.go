package secretstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory reference adapter used by tests and local
// runs. It is backed by a concurrent map with per-key last-writer-wins
// semantics: a GetSecret that happens-after a successful UpdateSecret on the
// same key observes the new metadata.
type MemoryStore struct {
	id    string
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	info  SecretInfo
	value string
}

// NewMemoryStore creates an empty in-memory store. now defaults to
// time.Now when nil.
func NewMemoryStore(id string, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		id:    id,
		items: make(map[string]memoryItem),
		now:   now,
	}
}

func (m *MemoryStore) GetSecret(name string) (*SecretInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[name]
	if !ok {
		return nil, nil
	}
	info := item.info
	return &info, nil
}

func (m *MemoryStore) GetSecretValue(name string) (*string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[name]
	if !ok {
		return nil, nil
	}
	value := item.value
	return &value, nil
}

func (m *MemoryStore) UpdateSecret(name, value string, expiresOn *time.Time, contentType string) (*SecretInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, existed := m.items[name]

	info := SecretInfo{
		Id:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		Enabled:     true,
		UpdatedOn:   now,
		ExpiresOn:   expiresOn,
		StoreId:     m.id,
		Version:     uuid.NewString(),
	}
	if existed {
		info.CreatedOn = existing.info.CreatedOn
	} else {
		info.CreatedOn = now
	}

	m.items[name] = memoryItem{info: info, value: value}

	result := info
	return &result, nil
}
