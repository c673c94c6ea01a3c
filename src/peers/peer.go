package peers

import (
	"net"
	"strconv"
)

// Peer is a mesh endpoint as announced to the bootstrap node.
type Peer struct {
	SiteID uint32 `json:"siteId"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
}

// NewPeer ...
func NewPeer(siteID uint32, host string, port int) *Peer {
	return &Peer{
		SiteID: siteID,
		Host:   host,
		Port:   port,
	}
}

// NetAddr returns the host:port string of the peer.
func (p *Peer) NetAddr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, siteID uint32) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.SiteID != siteID {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
