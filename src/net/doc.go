// Package net implements the peer-to-peer transport between gitmesh peers.
//
// Every peer keeps one persistent byte stream per other peer. Messages are
// JSON objects written back to back without any length prefix or delimiter;
// the receiving side splits the stream by counting braces outside of string
// literals (cf Framer). There are two kinds of messages:
//
//	{"update":{"metaData":{...},"operations":[...],"authors":[...]}}
//	{"command":"getOperations"}
//
// An update carries CRDT operations for one file at one repository state. A
// getOperations command asks the remote peer to send back an update for every
// document it knows; the answers are written on the same connection.
//
// Peers discover each other through a bootstrap node (cf BootstrapServer). A
// starting peer announces {"port","host","siteId"} to the bootstrap node,
// which replies with the JSON array of previously announced endpoints. The
// peer then dials each of them. Every new connection, inbound or outbound,
// immediately receives a getOperations command so that a newly joined peer
// catches up without waiting for the next edit.
//
// There are two implementations of the Transport interface:
//
// - NetworkMesh: the real mesh, over a StreamLayer (TCP).
//
// - InmemTransport: in-memory transport used only for testing.
//
// Delivery is best-effort. Nothing is acknowledged or retried; CRDT operations
// are idempotent and a peer that detects a gap asks for a full resync with
// RequestRemoteOperations, which is throttled process-wide.
package net
