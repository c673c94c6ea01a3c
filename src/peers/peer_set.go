package peers

import (
	"bytes"
	"encoding/json"
)

// PeerSet is an ordered collection of Peers with at most one Peer per site.
type PeerSet struct {
	Peers    []*Peer          `json:"peers"`
	BySiteID map[uint32]*Peer `json:"-"`
}

/* Constructors */

// NewPeerSet creates a new PeerSet from a list of Peers. When several peers
// share a site, the last one wins.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		BySiteID: make(map[uint32]*Peer),
	}

	for _, peer := range peers {
		if _, ok := peerSet.BySiteID[peer.SiteID]; ok {
			_, peerSet.Peers = ExcludePeer(peerSet.Peers, peer.SiteID)
		}
		peerSet.BySiteID[peer.SiteID] = peer
		peerSet.Peers = append(peerSet.Peers, peer)
	}

	if peerSet.Peers == nil {
		peerSet.Peers = []*Peer{}
	}

	return peerSet
}

// NewPeerSetFromPeerSliceBytes creates a new PeerSet from a peerSlice in Bytes
// format.
func NewPeerSetFromPeerSliceBytes(peerSliceBytes []byte) (*PeerSet, error) {
	peers := []*Peer{}

	dec := json.NewDecoder(bytes.NewBuffer(peerSliceBytes))
	if err := dec.Decode(&peers); err != nil {
		return nil, err
	}

	return NewPeerSet(peers), nil
}

// WithNewPeer returns a new PeerSet including the new peer. A peer that
// announces an already known site replaces the previous endpoint, because a
// restarted peer keeps its site but usually gets a new port.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := make([]*Peer, 0, len(peerSet.Peers)+1)
	peers = append(peers, peerSet.Peers...)
	peers = append(peers, peer)
	return NewPeerSet(peers)
}

// WithRemovedPeer returns a new PeerSet excluding the provided site.
func (peerSet *PeerSet) WithRemovedPeer(siteID uint32) *PeerSet {
	_, peers := ExcludePeer(peerSet.Peers, siteID)
	return NewPeerSet(peers)
}

/* ToSlice Methods */

// SiteIDs returns the PeerSet's slice of site IDs.
func (peerSet *PeerSet) SiteIDs() []uint32 {
	res := []uint32{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.SiteID)
	}

	return res
}

/* Utilities */

// Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}

// Marshal marshals the peer slice, which is also the bootstrap reply
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
