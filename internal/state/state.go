package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// SelectionKey is the logical name of the durable selection entry.
const SelectionKey = "selection-state"

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("state: selection not found")

// Backend abstracts durable storage for the selection map. The whole map is
// stored under SelectionKey as one flat key -> quantity object.
type Backend interface {
	Load() (map[string]int, error)
	Save(m map[string]int) error
	Clear() error
}

// Encode serializes a selection as a flat JSON object.
func Encode(m map[string]int) ([]byte, error) {
	if m == nil {
		m = map[string]int{}
	}
	return json.Marshal(m)
}

// Decode parses a flat JSON object of integer quantities.
func Decode(data []byte) (map[string]int, error) {
	var m map[string]int
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("decode selection: not an object")
	}
	return m, nil
}

// InMemoryBackend keeps the encoded selection in memory.
type InMemoryBackend struct {
	mu   sync.RWMutex
	data []byte
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{}
}

func (b *InMemoryBackend) Load() (map[string]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.data == nil {
		return nil, ErrNotFound
	}
	return Decode(b.data)
}

func (b *InMemoryBackend) Save(m map[string]int) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = data
	return nil
}

func (b *InMemoryBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
	return nil
}

// SetRaw stores bytes as-is. Used to seed corrupt or legacy state.
func (b *InMemoryBackend) SetRaw(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append([]byte(nil), data...)
}
