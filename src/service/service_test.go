package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/mosaicnetworks/gitmesh/src/net"
	"github.com/mosaicnetworks/gitmesh/src/node"
	"github.com/mosaicnetworks/gitmesh/src/repo"
	"github.com/mosaicnetworks/gitmesh/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "/work/project"

func newTestService(t *testing.T) (*Service, *httptest.Server) {
	conf := node.TestConfig(t, 2)
	conf.Workspace = testRoot
	conf.Moniker = "alice"

	r := repo.NewInmemRepository(testRoot, "https://example.com/project.git", "alice",
		map[string]string{"a.txt": "hello"})
	ed := editor.NewInmemEditor(r, common.NewTestEntry(t, "editor"))
	_, trans := net.NewInmemTransport("")

	n := node.NewNode(conf, r, ed, store.NewInmemStore(), trans)
	require.NoError(t, n.Init())
	n.RunAsync()

	s := NewService("", n, common.NewTestEntry(t, "service"))
	srv := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		srv.Close()
		n.Shutdown()
	})

	return s, srv
}

func post(t *testing.T, url string, body interface{}) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStats(t *testing.T) {
	_, srv := newTestService(t)

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	stats := map[string]string{}
	decodeBody(t, resp, &stats)
	assert.Equal(t, "Syncing", stats["state"])
	assert.Equal(t, "alice", stats["moniker"])
}

func TestChangeAndDocuments(t *testing.T) {
	_, srv := newTestService(t)

	resp := post(t, srv.URL+"/change", editor.ChangeEvent{
		File: testRoot + "/a.txt",
		Changes: []editor.Change{{
			Start: crdt.Point{Row: 0, Column: 5},
			End:   crdt.Point{Row: 0, Column: 5},
			Text:  "!",
		}},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/documents")
	require.NoError(t, err)
	docs := []node.DocumentInfo{}
	decodeBody(t, resp, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.txt", docs[0].File)

	resp, err = http.Get(srv.URL + "/authors?file=" + testRoot + "/a.txt")
	require.NoError(t, err)
	authors := []net.Author{}
	decodeBody(t, resp, &authors)
	require.Len(t, authors, 1)
	assert.Equal(t, "alice", authors[0].Name)

	resp = post(t, srv.URL+"/change", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUserErrors(t *testing.T) {
	_, srv := newTestService(t)

	resp := post(t, srv.URL+"/commit", CommitRequest{Message: "nothing"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := ErrorResponse{}
	decodeBody(t, resp, &errResp)
	assert.Contains(t, errResp.Error, "select at least one author")

	resp = post(t, srv.URL+"/pause", nil)
	pause := PauseResponse{}
	decodeBody(t, resp, &pause)
	assert.True(t, pause.Paused)

	resp = post(t, srv.URL+"/visibility", VisibilityRequest{})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, srv.URL+"/pause", nil)
	decodeBody(t, resp, &pause)
	assert.False(t, pause.Paused)

	resp = post(t, srv.URL+"/visibility", nil)
	vis := VisibilityResponse{}
	decodeBody(t, resp, &vis)
	assert.False(t, vis.Visible)

	resp = post(t, srv.URL+"/branch", BranchRequest{})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStagedAndBranches(t *testing.T) {
	_, srv := newTestService(t)

	resp := post(t, srv.URL+"/staged/abc", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv.URL+"/staged/5", nil)
	staged := StagedResponse{}
	decodeBody(t, resp, &staged)
	assert.Equal(t, crdt.SiteID(5), staged.SiteID)
	assert.True(t, staged.Staged)

	resp, err := http.Get(srv.URL + "/staged")
	require.NoError(t, err)
	sites := []crdt.SiteID{}
	decodeBody(t, resp, &sites)
	assert.Equal(t, []crdt.SiteID{5}, sites)

	resp, err = http.Get(srv.URL + "/branches")
	require.NoError(t, err)
	branches := []string{}
	decodeBody(t, resp, &branches)
	assert.Equal(t, []string{"refs/heads/main"}, branches)
}

func TestEvents(t *testing.T) {
	s, srv := newTestService(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	hello := map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&hello))
	session, _ := hello["session"].(string)
	assert.NotEmpty(t, session)
	assert.Nil(t, hello["event"])

	resp := post(t, srv.URL+"/pause", nil)
	resp.Body.Close()

	msg := map[string]interface{}{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, session, msg["session"])
	ev, ok := msg["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pause", ev["type"])
	assert.Equal(t, true, ev["paused"])

	assert.Equal(t, []string{session}, s.Sessions())
	conn.Close()
	require.Eventually(t, func() bool {
		return len(s.Sessions()) == 0
	}, 3*time.Second, 10*time.Millisecond)
}
