package net

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/peers"
)

func newTestMesh(t *testing.T, siteID uint32, resync time.Duration) *NetworkMesh {
	mesh, err := NewTCPMesh("127.0.0.1:0", "", siteID, time.Second, resync, common.NewTestEntry(t, "mesh"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	go mesh.Listen()
	return mesh
}

// expectCommand reads RPCs until it finds a command, answering updates
// with nothing.
func expectCommand(t *testing.T, ch <-chan RPC) RPC {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case rpc := <-ch:
			if _, ok := rpc.Command.(*CommandMessage); ok {
				return rpc
			}
			rpc.Respond(nil, nil)
		case <-timeout:
			t.Fatalf("timeout waiting for command")
		}
	}
}

func expectUpdate(t *testing.T, ch <-chan RPC) *Update {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case rpc := <-ch:
			if u, ok := rpc.Command.(*UpdateMessage); ok {
				rpc.Respond(nil, nil)
				return u.Update
			}
			rpc.Respond(nil, nil)
		case <-timeout:
			t.Fatalf("timeout waiting for update")
		}
	}
}

func TestTCPMesh_BadAddr(t *testing.T) {
	_, err := NewTCPMesh("0.0.0.0:0", "", 2, 0, 0, common.NewTestEntry(t, "mesh"))
	if err != errNotAdvertisable {
		t.Fatalf("err: %v", err)
	}
}

func TestTCPMesh_WithAdvertise(t *testing.T) {
	mesh, err := NewTCPMesh("0.0.0.0:0", "127.0.0.1:12345", 2, 0, 0, common.NewTestEntry(t, "mesh"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer mesh.Close()

	if mesh.AdvertiseAddr() != "127.0.0.1:12345" {
		t.Fatalf("bad: %v", mesh.AdvertiseAddr())
	}
}

func TestNetworkMesh_ConnectRequestsOperations(t *testing.T) {
	mesh1 := newTestMesh(t, 2, time.Minute)
	defer mesh1.Close()
	mesh2 := newTestMesh(t, 3, time.Minute)
	defer mesh2.Close()

	if err := mesh2.Connect(mesh1.AdvertiseAddr()); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Both sides ask for the other's operations as soon as the connection
	// exists.
	rpc := expectCommand(t, mesh1.Consumer())
	if rpc.Command.(*CommandMessage).Name != CommandGetOperations {
		t.Fatalf("bad command %#v", rpc.Command)
	}

	// The answer goes back on the same connection.
	answer := &Update{MetaData: MetaData{File: "a.txt", Commit: "c1"}}
	rpc.Respond([]*Update{answer}, nil)

	// mesh1's own getOperations precedes the answer on that connection.
	got := expectUpdate(t, mesh2.Consumer())
	if got.MetaData != answer.MetaData {
		t.Fatalf("update should be %#v, not %#v", answer.MetaData, got.MetaData)
	}
}

func TestNetworkMesh_SendUpdate(t *testing.T) {
	mesh1 := newTestMesh(t, 2, time.Minute)
	defer mesh1.Close()
	mesh2 := newTestMesh(t, 3, time.Minute)
	defer mesh2.Close()
	mesh3 := newTestMesh(t, 4, time.Minute)
	defer mesh3.Close()

	if err := mesh1.Connect(mesh2.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}
	if err := mesh1.Connect(mesh3.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}

	expectCommand(t, mesh2.Consumer()).Respond(nil, nil)
	expectCommand(t, mesh3.Consumer()).Respond(nil, nil)

	update := &Update{
		MetaData: MetaData{RepositoryURL: "git@example.com:r.git", File: "f"},
		Operations: []crdt.Operation{
			{Kind: crdt.OpInsert, ID: crdt.OpID{Site: 2, Seq: 2}, After: crdt.CharID{Site: 1, Seq: 1, Offset: 4}, Text: " world"},
		},
		Authors: []Author{{SiteID: 2, Name: "alice"}},
	}

	// Give the outbound connections a moment to be registered on both sides.
	time.Sleep(50 * time.Millisecond)

	if err := mesh1.SendUpdate(update); err != nil {
		t.Fatal(err)
	}

	for _, m := range []*NetworkMesh{mesh2, mesh3} {
		got := expectUpdate(t, m.Consumer())
		if got.Operations[0].Text != " world" || got.Authors[0].Name != "alice" {
			t.Fatalf("bad update %#v", got)
		}
	}
}

func TestNetworkMesh_ResyncThrottle(t *testing.T) {
	mesh1 := newTestMesh(t, 2, 10*time.Second)
	defer mesh1.Close()
	mesh2 := newTestMesh(t, 3, 10*time.Second)
	defer mesh2.Close()

	if err := mesh1.Connect(mesh2.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}
	expectCommand(t, mesh2.Consumer()).Respond(nil, nil)

	if !mesh1.RequestRemoteOperations() {
		t.Fatalf("first resync should be sent")
	}
	if mesh1.RequestRemoteOperations() {
		t.Fatalf("second resync within the interval should be throttled")
	}

	expectCommand(t, mesh2.Consumer()).Respond(nil, nil)

	select {
	case rpc := <-mesh2.Consumer():
		if _, ok := rpc.Command.(*CommandMessage); ok {
			t.Fatalf("only one resync should have been broadcast")
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNetworkMesh_RemoveClosed(t *testing.T) {
	mesh1 := newTestMesh(t, 2, time.Minute)
	defer mesh1.Close()
	mesh2 := newTestMesh(t, 3, time.Minute)

	if err := mesh1.Connect(mesh2.AdvertiseAddr()); err != nil {
		t.Fatal(err)
	}
	if len(mesh1.Peers()) != 1 {
		t.Fatalf("mesh1 should have 1 peer, not %d", len(mesh1.Peers()))
	}

	// Unblock mesh1's reader, which waits on mesh2's getOperations.
	expectCommand(t, mesh1.Consumer()).Respond(nil, nil)

	mesh2.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(mesh1.Peers()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("closed connection should leave the active set")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBootstrap(t *testing.T) {
	dir := t.TempDir()

	server, err := NewBootstrapServer("127.0.0.1:0", peers.NewJSONPeerSet(dir), time.Second, common.NewTestEntry(t, "bootstrap"))
	if err != nil {
		t.Fatal(err)
	}
	go server.Serve()
	defer server.Close()

	mesh1 := newTestMesh(t, 2, time.Minute)
	defer mesh1.Close()
	mesh2 := newTestMesh(t, 3, time.Minute)
	defer mesh2.Close()

	if err := mesh1.Bootstrap(server.Addr()); err != nil {
		t.Fatal(err)
	}
	if len(mesh1.Peers()) != 0 {
		t.Fatalf("first peer should not connect to anyone")
	}

	if err := mesh2.Bootstrap(server.Addr()); err != nil {
		t.Fatal(err)
	}
	if len(mesh2.Peers()) != 1 {
		t.Fatalf("second peer should connect to the first one")
	}

	expectCommand(t, mesh1.Consumer()).Respond(nil, nil)

	registered := server.Peers()
	if len(registered) != 2 {
		t.Fatalf("bootstrap should know 2 peers, not %d", len(registered))
	}

	// Persisted endpoints survive a restart of the bootstrap node.
	stored, err := peers.NewJSONPeerSet(dir).PeerSet()
	if err != nil {
		t.Fatal(err)
	}
	if stored.Len() != 2 {
		t.Fatalf("peers.json should contain 2 peers, not %d", stored.Len())
	}
	if stored.BySiteID[2].NetAddr() != mesh1.AdvertiseAddr() {
		t.Fatalf("site 2 should be at %s, not %s", mesh1.AdvertiseAddr(), stored.BySiteID[2].NetAddr())
	}
}
