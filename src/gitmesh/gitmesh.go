package gitmesh

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/gitmesh/src/config"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/mosaicnetworks/gitmesh/src/node"
	"github.com/mosaicnetworks/gitmesh/src/peers"
	"github.com/mosaicnetworks/gitmesh/src/repo"
	"github.com/mosaicnetworks/gitmesh/src/service"
	"github.com/mosaicnetworks/gitmesh/src/store"
	"github.com/sirupsen/logrus"
)

// Gitmesh is a struct containing the key objects of a gitmesh node. Repository
// and Editor may be set before Init; the git command line and a file-backed
// editor are used otherwise.
type Gitmesh struct {
	Config     *config.Config
	Node       *node.Node
	Transport  *net.NetworkMesh
	Repository repo.Repository
	Editor     editor.Editor
	Store      store.Store
	Service    *service.Service
	logger     *logrus.Entry
}

// NewGitmesh is a factory method to produce a Gitmesh instance.
func NewGitmesh(c *config.Config) *Gitmesh {
	engine := &Gitmesh{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the engine: it opens the repository, the store and the
// mesh, and creates the node and the HTTP service.
func (g *Gitmesh) Init() error {
	g.Config.EnsureSiteID()

	g.logger = g.logger.WithField("site_id", g.Config.SiteID)

	if err := g.initRepository(); err != nil {
		g.logger.Debug("initRepository")
		return err
	}

	if err := g.initEditor(); err != nil {
		g.logger.Debug("initEditor")
		return err
	}

	if err := g.initStore(); err != nil {
		g.logger.Debug("initStore")
		return err
	}

	if err := g.initTransport(); err != nil {
		g.logger.Debug("initTransport")
		return err
	}

	if err := g.initNode(); err != nil {
		g.logger.Debug("initNode")
		return err
	}

	if err := g.initService(); err != nil {
		g.logger.Debug("initService")
		return err
	}

	return nil
}

// Run starts the service and the node, connects to the peers returned by the
// bootstrap server, and blocks until the node is shut down.
func (g *Gitmesh) Run() {
	if g.Service != nil {
		go g.Service.Serve()
	}

	if g.Config.BootstrapAddr != "" {
		go g.bootstrap()
	}

	g.Node.Run()
}

// RunAsync calls Run in a separate goroutine.
func (g *Gitmesh) RunAsync() {
	go g.Run()
}

// Shutdown stops the node, which closes the mesh and the store.
func (g *Gitmesh) Shutdown() {
	if g.Node != nil {
		g.Node.Shutdown()
	}
}

func (g *Gitmesh) bootstrap() {
	addr := g.Config.BootstrapAddr
	if err := g.Transport.Bootstrap(addr); err != nil {
		g.logger.WithError(err).WithField("bootstrap", addr).Error("Bootstrap failed, waiting for peers to connect")
		return
	}
	g.logger.WithField("peers", len(g.Transport.Peers())).Info("Bootstrapped")
}

func (g *Gitmesh) initRepository() error {
	if g.Repository != nil {
		return nil
	}

	r, err := repo.NewGitRepository(g.Config.GitTimeout, g.logger.WithField("prefix", "git"))
	if err != nil {
		return err
	}
	g.Repository = r

	return nil
}

func (g *Gitmesh) initEditor() error {
	if g.Editor != nil {
		return nil
	}
	g.Editor = editor.NewFileEditor(g.logger.WithField("prefix", "editor"))
	return nil
}

func (g *Gitmesh) initStore() error {
	if !g.Config.Store {
		g.Store = store.NewInmemStore()

		g.logger.Debug("created new in-mem store")
		return nil
	}

	dbpath := g.Config.DatabaseDir
	g.logger.WithField("path", dbpath).Debug("Attempting to load or create database")

	if err := os.MkdirAll(dbpath, 0700); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}

	s, err := store.NewBadgerStore(dbpath, g.logger.WithField("prefix", "store"))
	if err != nil {
		return err
	}
	g.Store = s

	return nil
}

func (g *Gitmesh) initTransport() error {
	mesh, err := net.NewTCPMesh(
		g.Config.BindAddr,
		g.Config.AdvertiseAddr,
		g.Config.SiteID,
		g.Config.TCPTimeout,
		g.Config.ResyncInterval,
		g.logger.WithField("prefix", "mesh"),
	)
	if err != nil {
		return err
	}
	g.Transport = mesh

	return nil
}

func (g *Gitmesh) initNode() error {
	conf := &node.Config{
		SiteID:      crdt.SiteID(g.Config.SiteID),
		Moniker:     g.Config.Moniker,
		Workspace:   g.Config.Workspace,
		SaveDelay:   g.Config.SaveDelay,
		StaleLimit:  g.Config.StaleLimit,
		EchoLimit:   g.Config.EchoLimit,
		NewDocument: crdt.NewDocument,
		Logger:      g.logger.WithField("prefix", "node"),
	}

	g.logger.WithFields(logrus.Fields{
		"moniker":   conf.Moniker,
		"workspace": conf.Workspace,
		"listen":    g.Transport.LocalAddr(),
		"advertise": g.Transport.AdvertiseAddr(),
	}).Debug("NODE")

	g.Node = node.NewNode(conf, g.Repository, g.Editor, g.Store, g.Transport)

	if err := g.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %w", err)
	}

	return nil
}

func (g *Gitmesh) initService() error {
	if !g.Config.NoService {
		g.Service = service.NewService(g.Config.ServiceAddr, g.Node, g.logger.WithField("prefix", "service"))
	}
	return nil
}

// NewBootstrapServer binds the rendezvous server of c. When BootstrapStore is
// set, the known endpoints are kept in [datadir]/peers.json.
func NewBootstrapServer(c *config.Config, addr string) (*net.BootstrapServer, error) {
	var peerStore *peers.JSONPeerSet
	if c.BootstrapStore {
		if err := os.MkdirAll(c.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		peerStore = peers.NewJSONPeerSet(c.DataDir)
	}

	return net.NewBootstrapServer(addr, peerStore, c.TCPTimeout, c.Logger().WithField("prefix", "bootstrap"))
}
