package state

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

// PebbleBackend implements Backend using PebbleDB.
type PebbleBackend struct {
	db *pebble.DB
}

func NewPebbleBackend(dir string) (*PebbleBackend, error) {
	opts := &pebble.Options{
		// One small key; keep the memtable modest.
		MemTableSize: 4 << 20,
	}
	d, err := pebble.Open(filepath.Clean(dir), opts)
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleBackend{db: d}, nil
}

func (p *PebbleBackend) Close() error { return p.db.Close() }

func (p *PebbleBackend) Load() (map[string]int, error) {
	v, closer, err := p.db.Get([]byte(SelectionKey))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()
	return Decode(v)
}

func (p *PebbleBackend) Save(m map[string]int) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := p.db.Set([]byte(SelectionKey), data, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set: %w", err)
	}
	return nil
}

func (p *PebbleBackend) Clear() error {
	if err := p.db.Delete([]byte(SelectionKey), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete: %w", err)
	}
	return nil
}

// setRaw writes bytes under the selection key without encoding.
func (p *PebbleBackend) setRaw(data []byte) error {
	return p.db.Set([]byte(SelectionKey), data, pebble.Sync)
}
