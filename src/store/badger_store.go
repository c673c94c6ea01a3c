package store

import (
	"fmt"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/sirupsen/logrus"
)

const documentPrefix = "doc"

// BadgerStore persists records in a Badger database.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

func documentKey(key Key) []byte {
	return []byte(fmt.Sprintf("%s_%s", documentPrefix, key))
}

/*******************************************************************************
Store interface
*******************************************************************************/

// Get implements Store.
func (s *BadgerStore) Get(key Key) (*Record, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "Record", key.String())
	}

	r := new(Record)
	if err := r.Unmarshal(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Put implements Store.
func (s *BadgerStore) Put(record *Record) error {
	val, err := record.Marshal()
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	// insert [doc_key] => [Record bytes]
	if err := tx.Set(documentKey(record.Key), val); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete implements Store.
func (s *BadgerStore) Delete(key Key) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Delete(documentKey(key)); err != nil {
		return err
	}

	return tx.Commit()
}

// All implements Store.
func (s *BadgerStore) All() ([]*Record, error) {
	res := []*Record{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(documentPrefix + "_")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			err := item.Value(func(data []byte) error {
				r := new(Record)
				if err := r.Unmarshal(data); err != nil {
					return err
				}
				res = append(res, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return res, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath returns the full path of the underlying Badger database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

func mapError(err error, name, key string) error {
	if err == badger.ErrKeyNotFound {
		return cm.NewStoreErr(name, cm.KeyNotFound, key)
	}
	return err
}
