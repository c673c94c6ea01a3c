package node

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/mosaicnetworks/gitmesh/src/repo"
	"github.com/mosaicnetworks/gitmesh/src/store"
	"github.com/sirupsen/logrus"
)

// ErrShutdown is returned by the API of a node that has been shut down.
var ErrShutdown = errors.New("node is shut down")

//Node defines a gitmesh node
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	core *Core

	trans  net.Transport
	netCh  <-chan net.RPC
	repo   repo.Repository
	editor editor.Editor
	store  store.Store
	bus    *EventBus

	saveSub int
	saveCh  <-chan Event

	commandCh  chan func()
	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	saveTimer *ControlTimer

	start       time.Time
	updates     int
	updateFails int
}

//NewNode is a factory method that returns a Node instance
func NewNode(conf *Config,
	repository repo.Repository,
	ed editor.Editor,
	st store.Store,
	trans net.Transport,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	if conf.Logger == nil {
		conf.Logger = DefaultConfig().Logger
	}

	bus := NewEventBus()
	saveSub, saveCh := bus.Subscribe(64)

	node := Node{
		conf:       conf,
		logger:     conf.Logger.WithField("site_id", conf.SiteID),
		core:       NewCore(conf, repository, ed, trans, st, bus),
		trans:      trans,
		netCh:      trans.Consumer(),
		repo:       repository,
		editor:     ed,
		store:      st,
		bus:        bus,
		saveSub:    saveSub,
		saveCh:     saveCh,
		commandCh:  make(chan func()),
		sigintCh:   sigintCh,
		shutdownCh: make(chan struct{}),
		saveTimer:  NewDebounceTimer(),
	}

	return &node
}

//Init starts watching the workspace repository, when there is one
func (n *Node) Init() error {
	if n.conf.Workspace == "" {
		return nil
	}

	root, err := n.repo.Root(n.conf.Workspace)
	if err != nil {
		if errors.Is(err, repo.ErrNotRepository) {
			n.logger.WithField("workspace", n.conf.Workspace).Warn("Workspace is not a repository")
			return nil
		}
		return err
	}

	n.core.watch(root)
	n.logger.WithField("root", root).Debug("Watching workspace")

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	go n.Run()
}

//Run starts the transport and the actor loop, and blocks until the node is
//shut down
func (n *Node) Run() {
	n.start = time.Now()

	go n.saveTimer.Run(0)

	go n.trans.Listen()

	n.goFunc(n.doBackgroundWork)

	<-n.shutdownCh
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			n.processRPC(rpc)
		case ev := <-n.editor.Changes():
			if err := n.core.OnLocalChange(ev); err != nil {
				n.logger.WithError(err).WithField("file", ev.File).Error("Processing local change")
			}
		case root := <-n.repo.Changes():
			n.logger.WithField("root", root).Debug("Repository changed")
			n.core.ReconcileBranches()
		case f := <-n.commandCh:
			f()
		case ev, ok := <-n.saveCh:
			if ok && ev.Type == SaveRequested {
				n.saveTimer.resetCh <- n.conf.SaveDelay
			}
		case <-n.saveTimer.tickCh:
			n.persist()
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			go n.Shutdown()
			return
		}
	}
}

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.UpdateMessage:
		n.updates++
		err := n.core.OnRemoteUpdate(cmd.Update)
		if err != nil {
			n.updateFails++
			n.logger.WithError(err).WithField("from", rpc.From).Error("Processing update")
		}
		rpc.Respond(nil, err)
	case *net.CommandMessage:
		if cmd.Name != net.CommandGetOperations {
			err := common.NewSyncErr("processRPC", common.Protocol, "unknown command "+cmd.Name)
			n.logger.WithError(err).WithField("from", rpc.From).Warn("Processing command")
			rpc.Respond(nil, err)
			return
		}
		n.logger.WithField("from", rpc.From).Debug("Sending operations")
		rpc.Respond(n.core.Operations(), nil)
	default:
		err := common.NewSyncErr("processRPC", common.Protocol, fmt.Sprintf("unexpected message %T", rpc.Command))
		rpc.Respond(nil, err)
	}
}

func (n *Node) persist() {
	if err := n.core.Persist(); err != nil {
		n.logger.WithError(err).Error("Persisting documents")
		return
	}
	n.logger.Debug("Persisted documents")
}

// do runs f on the actor goroutine and waits for it to return.
func (n *Node) do(f func()) error {
	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		f()
	}

	select {
	case n.commandCh <- cmd:
	case <-n.shutdownCh:
		return ErrShutdown
	}

	select {
	case <-done:
		return nil
	case <-n.shutdownCh:
		return ErrShutdown
	}
}

//Shutdown stops the actor, persists the documents and closes the transport,
//the repository watchers and the store
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)

		close(n.shutdownCh)

		//Wait for the actor loop to return before touching the Core
		n.waitRoutines()

		n.saveTimer.Shutdown()

		n.persist()

		n.trans.Close()

		n.repo.Close()

		n.bus.Close()

		if n.store != nil {
			n.store.Close()
		}
	}
}

/*******************************************************************************
API
*******************************************************************************/

// LocalChange hands a buffer change to the node, like the editor would.
func (n *Node) LocalChange(ev editor.ChangeEvent) error {
	var err error
	if derr := n.do(func() { err = n.core.OnLocalChange(ev) }); derr != nil {
		return derr
	}
	return err
}

// ToggleRemoteChangesVisible ...
func (n *Node) ToggleRemoteChangesVisible(includeOwn bool) (bool, error) {
	var visible bool
	var err error
	derr := n.do(func() {
		err = n.core.ToggleRemoteChangesVisible(includeOwn)
		visible = n.core.Visible()
	})
	if derr != nil {
		return false, derr
	}
	return visible, err
}

// TogglePauseChanges returns the new pause state and, when paused, the
// Deferred settled when the pause ends.
func (n *Node) TogglePauseChanges() (bool, *Deferred, error) {
	var paused bool
	var deferred *Deferred
	err := n.do(func() {
		paused = n.core.TogglePauseChanges()
		deferred = n.core.PauseSignal()
	})
	if err != nil {
		return false, nil, err
	}
	if paused {
		n.setState(Paused)
	} else {
		n.setState(Syncing)
	}
	return paused, deferred, nil
}

// ToggleStaged ...
func (n *Node) ToggleStaged(site crdt.SiteID) (bool, error) {
	var staged bool
	var err error
	if derr := n.do(func() { staged, err = n.core.ToggleStaged(site) }); derr != nil {
		return false, derr
	}
	return staged, err
}

// StageChangesBySiteIDs ...
func (n *Node) StageChangesBySiteIDs(sites []crdt.SiteID) error {
	var err error
	if derr := n.do(func() { err = n.core.StageChangesBySiteIDs(sites) }); derr != nil {
		return derr
	}
	return err
}

// CommitChangesBySiteIDs ...
func (n *Node) CommitChangesBySiteIDs(sites []crdt.SiteID, message string) error {
	var err error
	if derr := n.do(func() { err = n.core.CommitChangesBySiteIDs(sites, message) }); derr != nil {
		return derr
	}
	return err
}

// SwitchBranch ...
func (n *Node) SwitchBranch(branch string) error {
	var err error
	if derr := n.do(func() { err = n.core.SwitchBranch(branch) }); derr != nil {
		return derr
	}
	if n.getState() == Paused {
		n.setState(Syncing)
	}
	return err
}

// Branches ...
func (n *Node) Branches() ([]string, error) {
	var branches []string
	var err error
	if derr := n.do(func() { branches, err = n.core.Branches() }); derr != nil {
		return nil, derr
	}
	return branches, err
}

// Documents ...
func (n *Node) Documents() ([]DocumentInfo, error) {
	var docs []DocumentInfo
	err := n.do(func() { docs = n.core.Documents() })
	return docs, err
}

// Authors ...
func (n *Node) Authors(file string) ([]net.Author, error) {
	var authors []net.Author
	err := n.do(func() { authors = n.core.Authors(file) })
	return authors, err
}

// Staged returns the staged authors.
func (n *Node) Staged() ([]crdt.SiteID, error) {
	var staged []crdt.SiteID
	err := n.do(func() { staged = n.core.StagedSiteIDs() })
	return staged, err
}

// Subscribe registers a listener of the events of the node.
func (n *Node) Subscribe(buffer int) (int, <-chan Event) {
	return n.bus.Subscribe(buffer)
}

// Unsubscribe ...
func (n *Node) Unsubscribe(id int) {
	n.bus.Unsubscribe(id)
}

// ID ...
func (n *Node) ID() crdt.SiteID {
	return n.conf.SiteID
}

// GetState ...
func (n *Node) GetState() State {
	return n.getState()
}

// GetPeers returns the addresses of the connected peers.
func (n *Node) GetPeers() []string {
	return n.trans.Peers()
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	s := map[string]string{}
	n.do(func() {
		s = n.core.Stats()
		s["updates"] = strconv.Itoa(n.updates)
		s["update_errors"] = strconv.Itoa(n.updateFails)
	})

	s["state"] = n.getState().String()
	s["moniker"] = n.conf.Moniker
	s["num_peers"] = strconv.Itoa(len(n.trans.Peers()))
	s["uptime"] = time.Since(n.start).Truncate(time.Second).String()

	return s
}
