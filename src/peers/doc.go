// Package peers defines the concept of a gitmesh peer and implements functions
// to manage collections of peers.
//
// A gitmesh peer is a running instance that edits files of a shared git
// repository. It is identified by its site ID, which is also the author
// identity stamped on its CRDT operations, and it listens on a host and port
// where other peers can reach it.
//
// The bootstrap node keeps a PeerSet of every peer that announced itself, and
// optionaly persists it to a peers.json file in its data directory so that a
// restarted bootstrap node still knows the mesh.
package peers
