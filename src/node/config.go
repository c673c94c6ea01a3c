package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultSaveDelay is the debounce of persistence requests.
	DefaultSaveDelay = time.Second
	// DefaultStaleLimit is the number of stale documents kept around.
	DefaultStaleLimit = 64
	// DefaultEchoLimit bounds the pending echoes of a file.
	DefaultEchoLimit = 256
)

// Config ...
type Config struct {
	SiteID     crdt.SiteID   `mapstructure:"site-id"`
	Moniker    string        `mapstructure:"moniker"`
	Workspace  string        `mapstructure:"workspace"`
	SaveDelay  time.Duration `mapstructure:"save-delay"`
	StaleLimit int           `mapstructure:"stale-limit"`
	EchoLimit  int           `mapstructure:"echo-limit"`

	// NewDocument creates the CRDT replicas; crdt.NewDocument when nil.
	NewDocument crdt.Factory `mapstructure:"-"`

	Logger *logrus.Entry `mapstructure:"-"`
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		SaveDelay:   DefaultSaveDelay,
		StaleLimit:  DefaultStaleLimit,
		EchoLimit:   DefaultEchoLimit,
		NewDocument: crdt.NewDocument,
		Logger:      logrus.NewEntry(logger),
	}
}

// TestConfig returns a configuration logging through t, for site.
func TestConfig(t testing.TB, site crdt.SiteID) *Config {
	config := DefaultConfig()
	config.SiteID = site
	config.SaveDelay = 10 * time.Millisecond
	config.Logger = common.NewTestEntry(t, "node")
	return config
}
