// Package store persists the operation history of documents so that a peer
// restarted offline still knows every edit it saw.
//
// A Record holds the operation log and the authors of one document, keyed by
// the document's file and repository state. Records are rewritten whole on
// every save; the engine debounces saves.
//
// There are two implementations: InmemStore, used by tests and when no
// database is configured, and BadgerStore, backed by a Badger database.
package store
