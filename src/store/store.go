package store

// Store persists Records.
type Store interface {
	// Get returns the record of key, or a KeyNotFound StoreErr.
	Get(key Key) (*Record, error)

	// Put creates or replaces the record of its key.
	Put(record *Record) error

	// Delete removes the record of key. Deleting a missing key is not an
	// error.
	Delete(key Key) error

	// All returns every record.
	All() ([]*Record, error)

	Close() error

	// StorePath returns the location of the database, empty for in-memory
	// stores.
	StorePath() string
}
