package maintenance

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// Persistence keys.
const (
	KeyCursor  = "h_idx"
	KeyCount   = "h_cnt"
	KeyHistory = "history"
)

// ErrNotFound is returned by Store.Get for a missing key.
var ErrNotFound = errors.New("key not found")

// Entry is one key/value pair of a batch write.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a non-volatile key-value store.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put writes the value durably before returning.
	Put(key string, value []byte) error

	// PutBatch writes every entry or none of them.
	PutBatch(entries ...Entry) error
}

// MemoryStore is an in-memory Store for tests and simulation.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte

	// PutError, if set, is returned by Put and PutBatch and nothing is written.
	PutError error
	// Puts counts successful Put calls.
	Puts int
	// Batches counts successful PutBatch calls.
	Batches int
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value.
func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutError != nil {
		return m.PutError
	}
	m.data[key] = append([]byte(nil), value...)
	m.Puts++
	return nil
}

// PutBatch stores copies of all entries under one lock.
func (m *MemoryStore) PutBatch(entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutError != nil {
		return m.PutError
	}
	for _, e := range entries {
		m.data[e.Key] = append([]byte(nil), e.Value...)
	}
	m.Batches++
	return nil
}

func encodeInt(v int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	return b
}

func decodeInt(b []byte) (int, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("int: want 4 bytes, got %d", len(b))
	}
	return int(int32(binary.LittleEndian.Uint32(b))), nil
}

func encodeSamples(samples []int64) []byte {
	b := make([]byte, 8*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint64(b[8*i:], uint64(s))
	}
	return b
}

func decodeSamples(b []byte, capacity int) ([]int64, error) {
	if len(b) != 8*capacity {
		return nil, fmt.Errorf("history: want %d bytes, got %d", 8*capacity, len(b))
	}
	out := make([]int64, capacity)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out, nil
}
