package store

import (
	"sort"
	"sync"

	cm "github.com/mosaicnetworks/gitmesh/src/common"
)

// InmemStore keeps encoded records in memory. Records are encoded so that
// callers never share slices with the store.
type InmemStore struct {
	lock    sync.RWMutex
	records map[Key][]byte
	closed  bool
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		records: make(map[Key][]byte),
	}
}

// Get implements Store.
func (s *InmemStore) Get(key Key) (*Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.closed {
		return nil, cm.NewStoreErr("InmemStore", cm.Closed, key.String())
	}

	data, ok := s.records[key]
	if !ok {
		return nil, cm.NewStoreErr("Record", cm.KeyNotFound, key.String())
	}

	r := new(Record)
	if err := r.Unmarshal(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Put implements Store.
func (s *InmemStore) Put(record *Record) error {
	data, err := record.Marshal()
	if err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return cm.NewStoreErr("InmemStore", cm.Closed, record.Key.String())
	}

	s.records[record.Key] = data
	return nil
}

// Delete implements Store.
func (s *InmemStore) Delete(key Key) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.records, key)
	return nil
}

// All implements Store. Records are sorted by key.
func (s *InmemStore) All() ([]*Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	res := make([]*Record, 0, len(s.records))
	for _, data := range s.records {
		r := new(Record)
		if err := r.Unmarshal(data); err != nil {
			return nil, err
		}
		res = append(res, r)
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Key.String() < res[j].Key.String()
	})

	return res, nil
}

// Close implements Store.
func (s *InmemStore) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.closed = true
	return nil
}

// StorePath implements Store.
func (s *InmemStore) StorePath() string {
	return ""
}
