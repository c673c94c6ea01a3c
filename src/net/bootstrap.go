package net

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/peers"
	"github.com/sirupsen/logrus"
)

// DefaultBootstrapAddr is where peers look for the bootstrap node when nothing
// else is configured.
const DefaultBootstrapAddr = "localhost:3000"

// announcement is what a joining peer sends to the bootstrap node. Older
// clients name the site field userID.
type announcement struct {
	peers.Peer
	UserID uint32 `json:"userID,omitempty"`
}

// BootstrapServer is the rendezvous node of the mesh. Each connection carries
// one announcement; the server replies with the endpoints registered so far,
// registers the new one and closes the connection.
type BootstrapServer struct {
	logger *logrus.Entry

	listener net.Listener
	timeout  time.Duration

	lock    sync.Mutex
	peerSet *peers.PeerSet
	store   *peers.JSONPeerSet

	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// NewBootstrapServer binds bindAddr. When store is not nil, the known
// endpoints are loaded from it and written back after every announcement.
func NewBootstrapServer(
	bindAddr string,
	store *peers.JSONPeerSet,
	timeout time.Duration,
	logger *logrus.Entry,
) (*BootstrapServer, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	peerSet := peers.NewPeerSet(nil)
	if store != nil {
		ps, err := store.PeerSet()
		if err != nil {
			return nil, err
		}
		peerSet = ps
	}

	list, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}

	return &BootstrapServer{
		logger:     logger,
		listener:   list,
		timeout:    timeout,
		peerSet:    peerSet,
		store:      store,
		shutdownCh: make(chan struct{}),
	}, nil
}

// Addr returns the address the server listens on.
func (s *BootstrapServer) Addr() string {
	return s.listener.Addr().String()
}

// Peers returns the registered endpoints.
func (s *BootstrapServer) Peers() []*peers.Peer {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]*peers.Peer(nil), s.peerSet.Peers...)
}

// Serve accepts connections until Close is called.
func (s *BootstrapServer) Serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return
			default:
			}
			s.logger.WithField("error", err).Error("Failed to accept connection")
			continue
		}

		go s.handleConn(conn)
	}
}

// Close stops the server.
func (s *BootstrapServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdownCh)
		err = s.listener.Close()
	})
	return err
}

func (s *BootstrapServer) handleConn(conn net.Conn) {
	defer conn.Close()

	if s.timeout > 0 {
		conn.SetDeadline(time.Now().Add(s.timeout))
	}

	var a announcement
	if err := json.NewDecoder(conn).Decode(&a); err != nil {
		s.logger.WithError(err).WithField("from", conn.RemoteAddr()).Warn("Failed to decode announcement")
		return
	}

	peer := a.Peer
	if peer.SiteID == 0 {
		peer.SiteID = a.UserID
	}
	if peer.Host == "" {
		if remote, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			peer.Host = remote.IP.String()
		}
	}

	reply, err := s.register(&peer)
	if err != nil {
		s.logger.WithError(err).Error("Failed to persist peers")
	}

	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.WithError(err).WithField("from", conn.RemoteAddr()).Warn("Failed to send reply")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"site_id": peer.SiteID,
		"addr":    peer.NetAddr(),
		"peers":   len(reply),
	}).Info("peer registered")
}

// register returns the endpoints known before the announcement, except the
// announcing site, and adds the new endpoint.
func (s *BootstrapServer) register(peer *peers.Peer) ([]*peers.Peer, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, reply := peers.ExcludePeer(s.peerSet.Peers, peer.SiteID)

	s.peerSet = s.peerSet.WithNewPeer(peer)

	if s.store != nil {
		return reply, s.store.Write(s.peerSet.Peers)
	}
	return reply, nil
}
