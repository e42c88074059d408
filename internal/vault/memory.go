package vault

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps entries in process memory. Failures can be injected
// for testing error paths.
type MemoryBackend struct {
	mu       sync.Mutex
	entries  map[string]string
	getErr   error
	setErr   error
	setCalls int
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]string)}
}

// WithGetError makes every Get fail with err.
func (m *MemoryBackend) WithGetError(err error) *MemoryBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
	return m
}

// WithSetError makes every Set fail with err.
func (m *MemoryBackend) WithSetError(err error) *MemoryBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
	return m
}

func (m *MemoryBackend) Get(_ context.Context, service, account string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.entries[memoryKey(service, account)]
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, service, account, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[memoryKey(service, account)] = value
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey(service, account))
	return nil
}

// Accounts returns the stored account names for service, sorted.
func (m *MemoryBackend) Accounts(service string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := service + "/"
	var out []string
	for k := range m.entries {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k[len(prefix):])
		}
	}
	sort.Strings(out)
	return out
}

// SetCalls returns how many times Set was called.
func (m *MemoryBackend) SetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCalls
}

func memoryKey(service, account string) string {
	return service + "/" + account
}
