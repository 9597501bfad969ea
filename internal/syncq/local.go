package syncq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pogoda1/parsik/internal/atomicfile"
)

// Item is one unit of remote work: an announcement text to parse.
type Item struct {
	ID    string `json:"id"`
	Input string `json:"input"`
}

// UnmarshalJSON accepts the id as a JSON string or number. Numbers keep
// their literal text, so 42 becomes "42".
func (it *Item) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID    json.RawMessage `json:"id"`
		Input string          `json:"input"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id := bytes.TrimSpace(raw.ID)
	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
		it.ID = ""
	case id[0] == '"':
		if err := json.Unmarshal(id, &it.ID); err != nil {
			return fmt.Errorf("item id: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(id, &n); err != nil {
			return fmt.Errorf("item id must be a string or number: %w", err)
		}
		it.ID = n.String()
	}
	it.Input = raw.Input
	return nil
}

type localFile struct {
	Data []Item `json:"data"`
}

// LocalStore is the durable list of items still to be processed. Every
// mutation rewrites the whole file atomically, so a crash leaves either the
// old or the new list. A single process is assumed to own the file.
type LocalStore struct {
	path string
	mu   sync.Mutex
}

func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

// Items reads the list from disk. A missing file is an empty list.
func (s *LocalStore) Items() ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Replace clears the list and writes items in their place.
func (s *LocalStore) Replace(items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items == nil {
		items = []Item{}
	}
	return s.writeLocked(items)
}

// Remove deletes every item with id. Removing an absent id is not an error.
func (s *LocalStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.readLocked()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	return s.writeLocked(kept)
}

func (s *LocalStore) readLocked() ([]Item, error) {
	var f localFile
	if _, err := atomicfile.ReadJSON(s.path, &f); err != nil {
		return nil, fmt.Errorf("local queue: %w", err)
	}
	return f.Data, nil
}

func (s *LocalStore) writeLocked(items []Item) error {
	if err := atomicfile.WriteJSON(s.path, localFile{Data: items}); err != nil {
		return fmt.Errorf("local queue: %w", err)
	}
	return nil
}
