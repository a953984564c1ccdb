// Package persist implements the default filesystem persistence used for
// active agents, navigation stacks, states and storages. Every entity is one
// JSON file written atomically (write-temp + rename). The store is a
// self-healing cache, not a database: initialization scans the directory and
// removes files that no longer parse.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentswarm/logging"
)

// DefaultBaseDir is the root of the default persistence layout.
const DefaultBaseDir = "./logs/data"

const removeRetries = 5

// Options configures an EntityStore.
type Options struct {
	Logger logging.Logger
}

// EntityStore persists JSON entities keyed by id inside one directory.
type EntityStore struct {
	dir    string
	mu     sync.Mutex
	inited bool
	logger logging.Logger
}

// NewEntityStore creates a store rooted at dir. The directory is created on
// first use.
func NewEntityStore(dir string, optFns ...func(o *Options)) *EntityStore {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &EntityStore{dir: dir, logger: opts.Logger}
}

// Dir returns the directory backing this store.
func (s *EntityStore) Dir() string { return s.dir }

// WaitForInit creates the directory and removes unparsable entities. Removal
// is retried with a bounded backoff; a file that survives every retry fails
// the init.
func (s *EntityStore) WaitForInit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked()
}

func (s *EntityStore) initLocked() error {
	if s.inited {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create persistence dir %s: %w", s.dir, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan persistence dir %s: %w", s.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err == nil && json.Valid(raw) {
			continue
		}
		s.logger.Warn("removing corrupt persistence entity", "path", path)
		if err := removeWithRetry(path); err != nil {
			return fmt.Errorf("remove corrupt entity %s: %w", path, err)
		}
	}
	s.inited = true
	return nil
}

func removeWithRetry(path string) error {
	var err error
	for i := 0; i < removeRetries; i++ {
		err = os.Remove(path)
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		time.Sleep(time.Duration(i+1) * 10 * time.Millisecond)
	}
	return err
}

func (s *EntityStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Write atomically persists v under id.
func (s *EntityStore) Write(id string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(); err != nil {
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode entity %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for entity %s: %w", id, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write entity %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close entity %s: %w", id, err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename entity %s: %w", id, err)
	}
	return nil
}

// Read loads the entity stored under id into v.
func (s *EntityStore) Read(id string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(); err != nil {
		return err
	}
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		return fmt.Errorf("read entity %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode entity %s: %w", id, err)
	}
	return nil
}

// Has reports whether an entity exists under id.
func (s *EntityStore) Has(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the entity stored under id; missing entities are fine.
func (s *EntityStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Keys returns every stored id in lexical order.
func (s *EntityStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.initLocked(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// ListStore stores items keyed by monotonically increasing numeric string
// keys for ordered push/pop.
type ListStore struct {
	entities *EntityStore
	mu       sync.Mutex
	last     int64
	counted  bool
}

// NewListStore creates a list store rooted at dir.
func NewListStore(dir string, optFns ...func(o *Options)) *ListStore {
	return &ListStore{entities: NewEntityStore(dir, optFns...)}
}

// WaitForInit initializes the underlying entity store and the key counter.
func (l *ListStore) WaitForInit() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initLocked()
}

func (l *ListStore) initLocked() error {
	if err := l.entities.WaitForInit(); err != nil {
		return err
	}
	if l.counted {
		return nil
	}
	keys, err := l.numericKeysLocked()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		l.last = keys[len(keys)-1]
	}
	l.counted = true
	return nil
}

func (l *ListStore) numericKeysLocked() ([]int64, error) {
	raw, err := l.entities.Keys()
	if err != nil {
		return nil, err
	}
	keys := make([]int64, 0, len(raw))
	for _, k := range raw {
		n, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		keys = append(keys, n)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Push appends v under the next numeric key.
func (l *ListStore) Push(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(); err != nil {
		return err
	}
	l.last++
	return l.entities.Write(strconv.FormatInt(l.last, 10), v)
}

// Pop removes the most recently pushed item into v. It returns false when
// the list is empty.
func (l *ListStore) Pop(v any) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(); err != nil {
		return false, err
	}
	keys, err := l.numericKeysLocked()
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}
	last := strconv.FormatInt(keys[len(keys)-1], 10)
	if err := l.entities.Read(last, v); err != nil {
		return false, err
	}
	if err := l.entities.Remove(last); err != nil {
		return false, err
	}
	return true, nil
}

// Items loads every stored item in key order. decode receives the raw entity
// id and must return a fresh destination for each item.
func (l *ListStore) Items(decode func(id string) any) ([]any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(); err != nil {
		return nil, err
	}
	keys, err := l.numericKeysLocked()
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, len(keys))
	for _, k := range keys {
		id := strconv.FormatInt(k, 10)
		dst := decode(id)
		if err := l.entities.Read(id, dst); err != nil {
			return nil, err
		}
		items = append(items, dst)
	}
	return items, nil
}
