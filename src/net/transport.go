package net

import "errors"

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")
)

// Broadcaster is the outbound half of a Transport.
type Broadcaster interface {
	// SendUpdate writes an update message to every connected peer.
	SendUpdate(update *Update) error

	// RequestRemoteOperations broadcasts a getOperations command, unless one
	// was already broadcast recently. It reports whether the command was
	// sent.
	RequestRemoteOperations() bool
}

// Transport provides an interface for network transports to allow a peer to
// communicate with the other peers of the mesh.
type Transport interface {
	Broadcaster

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to consume and respond to
	// incoming messages.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other peers
	// can reach us
	AdvertiseAddr() string

	// Peers returns the addresses of the currently connected peers.
	Peers() []string

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}
