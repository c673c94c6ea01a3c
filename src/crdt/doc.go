// Package crdt defines the replicated text capability used by the
// synchronization engine, and ships a compact reference implementation.
//
// A Document is a replicated sequence of characters. Local edits produce
// Operations which are shipped to other replicas and integrated there;
// integration is idempotent and commutative over causally independent
// operations. Every operation carries the SiteID of its author, which is what
// the staging engine filters on.
//
// Positions are expressed as Points (row, column) in the visible text, the
// way host editors report ranges. Columns count runes.
//
// Besides integration, a Document can toggle the visibility of any subset of
// its operations with UndoOrRedoOperations. This does not remove history; it
// flips a per-operation undo counter, and the returned TextUpdates describe
// how the visible text changed. The engine uses this on replicas to compute
// author-filtered snapshots.
//
// The reference implementation (RGADocument) is a Replicated Growable Array:
// insertions are anchored after a character identifier and ordered among
// concurrent siblings by Lamport timestamp, deletions are tombstones. It is
// deliberately simple (linear scans) and meant for moderate file sizes.
package crdt
