package net

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/peers"
	"github.com/sirupsen/logrus"
)

// NetworkMesh is the Transport over real network connections. It requires an
// underlying stream layer to provide a stream abstraction.
//
// Every connection, whichever side opened it, is handled by one reader
// goroutine that frames incoming bytes into messages and hands them to the
// consumer one at a time, waiting for the response before reading the next
// message. This keeps messages of one connection in order without imposing any
// order across connections.
type NetworkMesh struct {
	logger *logrus.Entry

	siteID  uint32
	stream  StreamLayer
	timeout time.Duration

	connsLock sync.Mutex
	conns     map[*peerConn]struct{}

	consumeCh chan RPC

	resync *resyncThrottle

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

type peerConn struct {
	target string
	conn   net.Conn

	wLock sync.Mutex
	w     *bufio.Writer
}

func (p *peerConn) send(data []byte, timeout time.Duration) error {
	p.wLock.Lock()
	defer p.wLock.Unlock()

	if timeout > 0 {
		p.conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	if _, err := p.w.Write(data); err != nil {
		return err
	}
	return p.w.Flush()
}

// NewNetworkMesh creates a new mesh with the given stream layer. The timeout
// is used for dialing and to apply write deadlines. The resyncInterval bounds
// the rate of RequestRemoteOperations broadcasts.
func NewNetworkMesh(
	stream StreamLayer,
	siteID uint32,
	timeout time.Duration,
	resyncInterval time.Duration,
	logger *logrus.Entry,
) *NetworkMesh {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &NetworkMesh{
		logger:     logger,
		siteID:     siteID,
		stream:     stream,
		timeout:    timeout,
		conns:      make(map[*peerConn]struct{}),
		consumeCh:  make(chan RPC),
		resync:     newResyncThrottle(resyncInterval),
		shutdownCh: make(chan struct{}),
	}
}

// NewTCPMesh returns a NetworkMesh that is built on top of a TCP streaming
// transport layer, with log output going to the supplied Logger
func NewTCPMesh(
	bindAddr string,
	advertise string,
	siteID uint32,
	timeout time.Duration,
	resyncInterval time.Duration,
	logger *logrus.Entry,
) (*NetworkMesh, error) {
	stream, err := NewTCPStreamLayer(bindAddr, advertise)
	if err != nil {
		return nil, err
	}
	return NewNetworkMesh(stream, siteID, timeout, resyncInterval, logger), nil
}

// Close is used to stop the mesh and drop every connection.
func (n *NetworkMesh) Close() error {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.shutdown {
		close(n.shutdownCh)
		n.stream.Close()

		n.connsLock.Lock()
		for pc := range n.conns {
			pc.conn.Close()
		}
		n.connsLock.Unlock()

		n.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (n *NetworkMesh) Consumer() <-chan RPC {
	return n.consumeCh
}

// LocalAddr implements the Transport interface.
func (n *NetworkMesh) LocalAddr() string {
	addr := n.stream.Addr()

	if addr != nil {
		return addr.String()
	}

	return ""
}

// AdvertiseAddr implements the Transport interface.
func (n *NetworkMesh) AdvertiseAddr() string {
	return n.stream.AdvertiseAddr()
}

// IsShutdown is used to check if the transport is shutdown.
func (n *NetworkMesh) IsShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

// Peers implements the Transport interface.
func (n *NetworkMesh) Peers() []string {
	n.connsLock.Lock()
	defer n.connsLock.Unlock()

	res := make([]string, 0, len(n.conns))
	for pc := range n.conns {
		res = append(res, pc.target)
	}
	return res
}

// Listen opens the stream and handles incoming connections.
func (n *NetworkMesh) Listen() {
	for {
		conn, err := n.stream.Accept()
		if err != nil {
			if n.IsShutdown() {
				return
			}
			n.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}
		n.logger.WithFields(logrus.Fields{
			"node": conn.LocalAddr(),
			"from": conn.RemoteAddr(),
		}).Debug("accepted connection")

		n.startConn(conn.RemoteAddr().String(), conn)
	}
}

// Connect dials a peer and adds the connection to the mesh.
func (n *NetworkMesh) Connect(target string) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	conn, err := n.stream.Dial(target, n.timeout)
	if err != nil {
		return err
	}

	n.logger.WithField("target", target).Debug("connected")

	n.startConn(target, conn)

	return nil
}

// Bootstrap announces this peer to the bootstrap node at addr and connects to
// every endpoint it returns. Failing to reach one of the endpoints is logged
// and does not fail the bootstrap.
func (n *NetworkMesh) Bootstrap(addr string) error {
	conn, err := n.stream.Dial(addr, n.timeout)
	if err != nil {
		return fmt.Errorf("dialing bootstrap node %s: %w", addr, err)
	}
	defer conn.Close()

	if n.timeout > 0 {
		conn.SetDeadline(time.Now().Add(n.timeout))
	}

	announce, err := n.announcement(conn)
	if err != nil {
		return err
	}

	if err := json.NewEncoder(conn).Encode(announce); err != nil {
		return fmt.Errorf("announcing to bootstrap node: %w", err)
	}

	var endpoints []*peers.Peer
	if err := json.NewDecoder(conn).Decode(&endpoints); err != nil {
		return fmt.Errorf("reading bootstrap reply: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"bootstrap": addr,
		"peers":     len(endpoints),
	}).Debug("bootstrapped")

	_, others := peers.ExcludePeer(endpoints, n.siteID)
	for _, p := range others {
		if err := n.Connect(p.NetAddr()); err != nil {
			n.logger.WithError(err).WithField("peer", p.NetAddr()).Warn("Failed to connect to peer")
		}
	}

	return nil
}

// announcement builds the endpoint this peer announces. An unspecified
// advertise host is replaced by the local address used to reach the bootstrap
// node.
func (n *NetworkMesh) announcement(conn net.Conn) (*peers.Peer, error) {
	host, portStr, err := net.SplitHostPort(n.AdvertiseAddr())
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		if local, ok := conn.LocalAddr().(*net.TCPAddr); ok {
			host = local.IP.String()
		}
	}

	return peers.NewPeer(n.siteID, host, port), nil
}

// SendUpdate implements the Transport interface.
func (n *NetworkMesh) SendUpdate(update *Update) error {
	return n.broadcast(&UpdateMessage{Update: update})
}

// RequestRemoteOperations implements the Transport interface.
func (n *NetworkMesh) RequestRemoteOperations() bool {
	if !n.resync.allow() {
		n.logger.Debug("resync throttled")
		return false
	}

	if err := n.broadcast(&CommandMessage{Name: CommandGetOperations}); err != nil {
		n.logger.WithError(err).Error("Failed to request remote operations")
	}

	return true
}

func (n *NetworkMesh) broadcast(msg Message) error {
	if n.IsShutdown() {
		return ErrTransportShutdown
	}

	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}

	n.connsLock.Lock()
	targets := make([]*peerConn, 0, len(n.conns))
	for pc := range n.conns {
		targets = append(targets, pc)
	}
	n.connsLock.Unlock()

	for _, pc := range targets {
		if err := pc.send(data, n.timeout); err != nil {
			n.logger.WithError(err).WithField("peer", pc.target).Warn("Failed to send message")
			pc.conn.Close()
		}
	}

	return nil
}

func (n *NetworkMesh) startConn(target string, conn net.Conn) {
	pc := &peerConn{
		target: target,
		conn:   conn,
		w:      bufio.NewWriterSize(conn, bufSize),
	}

	n.connsLock.Lock()
	n.conns[pc] = struct{}{}
	n.connsLock.Unlock()

	go n.handleConn(pc)

	data, _ := EncodeMessage(&CommandMessage{Name: CommandGetOperations})
	if err := pc.send(data, n.timeout); err != nil {
		n.logger.WithError(err).WithField("peer", target).Warn("Failed to request operations")
		conn.Close()
	}
}

func (n *NetworkMesh) removeConn(pc *peerConn) {
	n.connsLock.Lock()
	delete(n.conns, pc)
	n.connsLock.Unlock()

	pc.conn.Close()

	n.logger.WithField("peer", pc.target).Debug("connection closed")
}

// handleConn is used to handle a connection for its lifespan.
func (n *NetworkMesh) handleConn(pc *peerConn) {
	defer n.removeConn(pc)

	framer := NewFramer(pc.conn)

	for {
		msg, err := framer.Next()
		if err != nil {
			if common.IsSync(err, common.Protocol) {
				n.logger.WithError(err).WithField("peer", pc.target).Warn("Failed to decode incoming message")
				continue
			}
			if err != io.EOF && !n.IsShutdown() {
				n.logger.WithError(err).WithField("peer", pc.target).Debug("Failed to read from connection")
			}
			return
		}

		if err := n.dispatch(pc, msg); err != nil {
			if err != ErrTransportShutdown {
				n.logger.WithError(err).WithField("peer", pc.target).Warn("Failed to write response")
			}
			return
		}
	}
}

// dispatch hands one message to the consumer and writes the response back.
func (n *NetworkMesh) dispatch(pc *peerConn, msg Message) error {
	respCh := make(chan RPCResponse, 1)
	rpc := RPC{
		From:     pc.target,
		Command:  msg,
		RespChan: respCh,
	}

	select {
	case n.consumeCh <- rpc:
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			n.logger.WithError(resp.Error).WithField("peer", pc.target).Debug("message handling failed")
		}
		for _, u := range resp.Updates {
			data, err := EncodeMessage(&UpdateMessage{Update: u})
			if err != nil {
				return err
			}
			if err := pc.send(data, n.timeout); err != nil {
				return err
			}
		}
	case <-n.shutdownCh:
		return ErrTransportShutdown
	}

	return nil
}
