package statstable

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4"
)

const storeFormatVersion = 1

// storeFile is the serialized shape of a store. Bundles are stored by
// value; the live pointer graph is rebuilt on load.
type storeFile struct {
	Version  int
	Outcomes []string
	Columns  map[string]map[string]Bundle
}

// Save writes the full store to path: gob-encoded, lz4-compressed,
// written to a temporary file next to the destination and renamed into
// place. A reader never observes a partial file, and a failed save
// leaves any previous file untouched. The store is frozen afterwards.
func (s *Store) Save(path string) error {
	payload := storeFile{
		Version:  storeFormatVersion,
		Outcomes: s.outcomes,
		Columns:  map[string]map[string]Bundle{},
	}
	for column, values := range s.columns {
		payload.Columns[column] = map[string]Bundle{}
		for value, bundle := range values {
			payload.Columns[column][value] = bundle.clone()
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".statstable-*")
	if err != nil {
		return fmt.Errorf("create temp stats table file: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw := lz4.NewWriter(tmp)
	if err := gob.NewEncoder(zw).Encode(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("encode stats table: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("compress stats table: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write stats table: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace stats table file %s: %w", path, err)
	}
	s.frozen = true
	return nil
}

// Load reads a store previously written by Save. Loaded stores are
// frozen; call Reopen to accumulate further.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stats table file %s: %w", path, err)
	}
	defer f.Close()

	var payload storeFile
	if err := gob.NewDecoder(lz4.NewReader(f)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode stats table file %s: %w", path, err)
	}
	if payload.Version != storeFormatVersion {
		return nil, fmt.Errorf("stats table file %s has version %d, want %d", path, payload.Version, storeFormatVersion)
	}

	store := New(payload.Outcomes)
	for column, values := range payload.Columns {
		store.columns[column] = map[string]*Bundle{}
		for value, bundle := range values {
			b := bundle.clone()
			store.columns[column][value] = &b
		}
	}
	store.frozen = true
	return store, nil
}
