package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetDataDir(t *testing.T) {
	c := NewDefaultConfig()
	c.SetDataDir("/tmp/mesh")
	assert.Equal(t, filepath.Join("/tmp/mesh", DefaultBadgerFile), c.DatabaseDir)

	c.DatabaseDir = "/elsewhere"
	c.SetDataDir("/tmp/other")
	assert.Equal(t, "/elsewhere", c.DatabaseDir)
	assert.Equal(t, filepath.Join("/tmp/other", DefaultPeersFile), c.PeersFile())
}

func TestEnsureSiteID(t *testing.T) {
	c := NewDefaultConfig()
	id := c.EnsureSiteID()
	assert.True(t, id >= 2)
	assert.Equal(t, id, c.EnsureSiteID())

	c.SiteID = 42
	assert.Equal(t, uint32(42), c.EnsureSiteID())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, LogLevel("info"))
	assert.Equal(t, logrus.DebugLevel, LogLevel("chatty"))

	c := NewTestConfig(t, logrus.DebugLevel)
	assert.Equal(t, "gitmesh", c.Logger().Data["prefix"])
}
