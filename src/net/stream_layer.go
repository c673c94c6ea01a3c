package net

import (
	"net"
	"time"
)

// StreamLayer carries the raw connections of a NetworkMesh. It accepts the
// connections of the peers that dial us and dials the peers we connect to.
type StreamLayer interface {
	net.Listener

	// Dial opens a connection to the peer listening at address
	Dial(address string, timeout time.Duration) (net.Conn, error)

	// AdvertiseAddr is the address other peers should dial to reach us
	AdvertiseAddr() string
}
