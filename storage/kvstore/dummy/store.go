package dummystore

import (
	"sync"

	"github.com/cmrsapp/console/storage/kvstore"
)

type store struct {
	sync.RWMutex
	table map[string]string
}

var _ kvstore.Store = (*store)(nil) // interface compliance check

func Open() kvstore.Store {
	return &store{table: make(map[string]string)}
}

func (s *store) Get(key string) (string, error) {
	s.RLock()
	defer s.RUnlock()

	if val, ok := s.table[key]; ok {
		return val, nil
	}
	return "", kvstore.ErrKeyNotFound
}

func (s *store) Set(key, value string) error {
	s.Lock()
	defer s.Unlock()
	s.table[key] = value
	return nil
}

func (s *store) Delete(keys ...string) error {
	s.Lock()
	defer s.Unlock()
	for _, key := range keys {
		delete(s.table, key)
	}
	return nil
}

func (s *store) Close() error { return nil }
