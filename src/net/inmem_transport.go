package net

import (
	"sync"

	"github.com/google/uuid"
)

// NewInmemAddr returns a new in-memory addr with a randomly generated UUID as
// the ID.
func NewInmemAddr() string {
	return uuid.New().String()
}

// InmemTransport implements the Transport interface, to allow the engine to
// be tested in-memory without going over a network. Messages are encoded and
// decoded on the way, as they would be on a real connection, and one goroutine
// per direction of every link keeps them in order.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan RPC
	localAddr  string
	links      map[string]*inmemLink
	resync     *resyncThrottle

	shutdownCh chan struct{}
	closeOnce  sync.Once
}

type inmemLink struct {
	from  *InmemTransport
	to    *InmemTransport
	queue chan []byte
}

// NewInmemTransport is used to initialize a new transport and generates a
// random local address if none is specified
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = NewInmemAddr()
	}
	trans := &InmemTransport{
		consumerCh: make(chan RPC, 16),
		localAddr:  addr,
		links:      make(map[string]*inmemLink),
		resync:     newResyncThrottle(DefaultResyncInterval),
		shutdownCh: make(chan struct{}),
	}
	return addr, trans
}

// Listen implements the Transport interface. There is nothing to listen on.
func (i *InmemTransport) Listen() {}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan RPC {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// AdvertiseAddr implements the Transport interface.
func (i *InmemTransport) AdvertiseAddr() string {
	return i.localAddr
}

// Peers implements the Transport interface.
func (i *InmemTransport) Peers() []string {
	i.RLock()
	defer i.RUnlock()

	res := make([]string, 0, len(i.links))
	for addr := range i.links {
		res = append(res, addr)
	}
	return res
}

// Connect links two transports in both directions and, as the mesh does on
// every new connection, makes each side request the other's operations.
func (i *InmemTransport) Connect(peer *InmemTransport) {
	i.link(peer)
	peer.link(i)

	cmd, _ := EncodeMessage(&CommandMessage{Name: CommandGetOperations})
	i.enqueue(peer.localAddr, cmd)
	peer.enqueue(i.localAddr, cmd)
}

// Disconnect removes the link to a peer in both directions.
func (i *InmemTransport) Disconnect(peer *InmemTransport) {
	i.unlink(peer.localAddr)
	peer.unlink(i.localAddr)
}

// SendUpdate implements the Transport interface.
func (i *InmemTransport) SendUpdate(update *Update) error {
	return i.broadcast(&UpdateMessage{Update: update})
}

// RequestRemoteOperations implements the Transport interface.
func (i *InmemTransport) RequestRemoteOperations() bool {
	if !i.resync.allow() {
		return false
	}
	i.broadcast(&CommandMessage{Name: CommandGetOperations})
	return true
}

// Close implements the Transport interface.
func (i *InmemTransport) Close() error {
	i.closeOnce.Do(func() {
		close(i.shutdownCh)

		i.Lock()
		for addr, l := range i.links {
			close(l.queue)
			delete(i.links, addr)
		}
		i.Unlock()
	})
	return nil
}

func (i *InmemTransport) isShutdown() bool {
	select {
	case <-i.shutdownCh:
		return true
	default:
		return false
	}
}

func (i *InmemTransport) broadcast(msg Message) error {
	if i.isShutdown() {
		return ErrTransportShutdown
	}

	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	for _, addr := range i.Peers() {
		i.enqueue(addr, data)
	}
	return nil
}

func (i *InmemTransport) link(peer *InmemTransport) {
	i.Lock()
	defer i.Unlock()

	if _, ok := i.links[peer.localAddr]; ok {
		return
	}

	l := &inmemLink{
		from:  i,
		to:    peer,
		queue: make(chan []byte, 1024),
	}
	i.links[peer.localAddr] = l

	go l.run()
}

func (i *InmemTransport) unlink(addr string) {
	i.Lock()
	defer i.Unlock()

	if l, ok := i.links[addr]; ok {
		close(l.queue)
		delete(i.links, addr)
	}
}

func (i *InmemTransport) enqueue(addr string, data []byte) {
	i.RLock()
	defer i.RUnlock()

	if l, ok := i.links[addr]; ok {
		l.queue <- data
	}
}

// run delivers the messages of one direction of a link, one at a time, and
// sends the responses back through the reverse direction.
func (l *inmemLink) run() {
	for data := range l.queue {
		msg, err := DecodeMessage(data)
		if err != nil {
			continue
		}

		respCh := make(chan RPCResponse, 1)
		rpc := RPC{
			From:     l.from.localAddr,
			Command:  msg,
			RespChan: respCh,
		}

		select {
		case l.to.consumerCh <- rpc:
		case <-l.to.shutdownCh:
			return
		case <-l.from.shutdownCh:
			return
		}

		select {
		case resp := <-respCh:
			for _, u := range resp.Updates {
				data, err := EncodeMessage(&UpdateMessage{Update: u})
				if err != nil {
					continue
				}
				l.to.enqueue(l.from.localAddr, data)
			}
		case <-l.to.shutdownCh:
			return
		case <-l.from.shutdownCh:
			return
		}
	}
}
