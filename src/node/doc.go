// Package node implements the synchronization orchestrator of a gitmesh node.
//
// A Node is a single actor: one goroutine consumes the messages of the peer
// transport, the change events of the host editor, the HEAD notifications of
// the repository and the requests of the API, and hands each of them to the
// Core synchronously. The Core owns every piece of mutable state (document
// registry, echo index, pause gate, visibility flag, staged authors) and holds
// no locks.
//
// Documents
//
// A document is a file at a repository state, identified by a DocumentKey
// (file, repository URL, branch, commit). Its content is a CRDT replica seeded
// with the content of the file at that commit, authored by the ghost site, and
// extended by the operations of the local and remote editors. For every file,
// the registry points at the key matching the live state of the repository;
// only that document is reflected in the editor buffer. Entries left behind by
// a commit or a branch switch are marked stale and eventually evicted.
//
// Propagation
//
// Local edits are converted into CRDT operations and broadcast with the
// metadata of the document. Remote operations are integrated into the
// document of the sender's key and, when it is the live document and remote
// changes are visible, applied to the editor buffer. Every edit the Core makes
// to a buffer is recorded in the echo index beforehand so that the change
// notification it triggers is not mistaken for a user edit.
//
// Staging and commit
//
// Staging writes a filtered copy of each live document to the index,
// containing only the edits of the selected authors. Committing stages,
// commits, resets the working tree and replays the edits of the authors that
// were left out on top of the new commit, authored by their original sites.
package node
