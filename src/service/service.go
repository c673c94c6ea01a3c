package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/mosaicnetworks/gitmesh/src/crdt"
	"github.com/mosaicnetworks/gitmesh/src/editor"
	"github.com/mosaicnetworks/gitmesh/src/node"
	"github.com/sirupsen/logrus"
)

// Service exposes the commands of a node over HTTP, for editor plugins and
// scripts. Events are pushed to websocket clients on /events.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	router      *mux.Router
	sessions    map[string]*session
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		router:      mux.NewRouter(),
		sessions:    make(map[string]*session),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering gitmesh API handlers")

	r := s.router
	r.HandleFunc("/stats", s.makeHandler(s.GetStats)).Methods("GET")
	r.HandleFunc("/peers", s.makeHandler(s.GetPeers)).Methods("GET")
	r.HandleFunc("/documents", s.makeHandler(s.GetDocuments)).Methods("GET")
	r.HandleFunc("/authors", s.makeHandler(s.GetAuthors)).Methods("GET").Queries("file", "{file}")
	r.HandleFunc("/staged", s.makeHandler(s.GetStaged)).Methods("GET")
	r.HandleFunc("/staged/{site:[0-9]+}", s.makeHandler(s.ToggleStaged)).Methods("POST")
	r.HandleFunc("/stage", s.makeHandler(s.Stage)).Methods("POST")
	r.HandleFunc("/commit", s.makeHandler(s.Commit)).Methods("POST")
	r.HandleFunc("/visibility", s.makeHandler(s.ToggleVisibility)).Methods("POST")
	r.HandleFunc("/pause", s.makeHandler(s.TogglePause)).Methods("POST")
	r.HandleFunc("/branches", s.makeHandler(s.GetBranches)).Methods("GET")
	r.HandleFunc("/branch", s.makeHandler(s.SwitchBranch)).Methods("POST")
	r.HandleFunc("/change", s.makeHandler(s.Change)).Methods("POST")

	// the event stream is long-lived and must not hold the service lock
	r.HandleFunc("/events", s.corsHandler(s.Events)).Methods("GET")
}

func (s *Service) corsHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return s.corsHandler(func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		fn(w, r)
	})
}

// Handler returns the router of the service.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving gitmesh API")

	err := http.ListenAndServe(s.bindAddress, s.router)
	if err != nil {
		s.logger.Error(err)
	}
}

/*******************************************************************************
Handlers
*******************************************************************************/

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetStats())
}

// GetPeers ...
func (s *Service) GetPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.GetPeers())
}

// GetDocuments ...
func (s *Service) GetDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.node.Documents()
	if err != nil {
		s.fail(w, "Listing documents", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// GetAuthors ...
func (s *Service) GetAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.node.Authors(mux.Vars(r)["file"])
	if err != nil {
		s.fail(w, "Listing authors", err)
		return
	}
	writeJSON(w, http.StatusOK, authors)
}

// GetStaged ...
func (s *Service) GetStaged(w http.ResponseWriter, r *http.Request) {
	staged, err := s.node.Staged()
	if err != nil {
		s.fail(w, "Listing staged authors", err)
		return
	}
	writeJSON(w, http.StatusOK, staged)
}

// ToggleStaged ...
func (s *Service) ToggleStaged(w http.ResponseWriter, r *http.Request) {
	param := mux.Vars(r)["site"]

	site, err := strconv.ParseUint(param, 10, 32)
	if err != nil {
		s.logger.WithError(err).Errorf("Parsing site parameter %s", param)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	staged, err := s.node.ToggleStaged(crdt.SiteID(site))
	if err != nil {
		s.fail(w, "Toggling staged author", err)
		return
	}
	writeJSON(w, http.StatusOK, StagedResponse{SiteID: crdt.SiteID(site), Staged: staged})
}

// Stage ...
func (s *Service) Stage(w http.ResponseWriter, r *http.Request) {
	var req StageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.node.StageChangesBySiteIDs(req.SiteIDs); err != nil {
		s.fail(w, "Staging changes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Commit ...
func (s *Service) Commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.node.CommitChangesBySiteIDs(req.SiteIDs, req.Message); err != nil {
		s.fail(w, "Committing changes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleVisibility ...
func (s *Service) ToggleVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	visible, err := s.node.ToggleRemoteChangesVisible(req.IncludeOwn)
	if err != nil {
		s.fail(w, "Toggling visibility", err)
		return
	}
	writeJSON(w, http.StatusOK, VisibilityResponse{Visible: visible})
}

// TogglePause ...
func (s *Service) TogglePause(w http.ResponseWriter, r *http.Request) {
	paused, _, err := s.node.TogglePauseChanges()
	if err != nil {
		s.fail(w, "Toggling pause", err)
		return
	}
	writeJSON(w, http.StatusOK, PauseResponse{Paused: paused})
}

// GetBranches ...
func (s *Service) GetBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.node.Branches()
	if err != nil {
		s.fail(w, "Listing branches", err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

// SwitchBranch ...
func (s *Service) SwitchBranch(w http.ResponseWriter, r *http.Request) {
	var req BranchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Branch == "" {
		http.Error(w, "missing branch", http.StatusBadRequest)
		return
	}
	if err := s.node.SwitchBranch(req.Branch); err != nil {
		s.fail(w, "Switching branch", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Change hands a buffer change to the node, for editors that report their
// changes over HTTP.
func (s *Service) Change(w http.ResponseWriter, r *http.Request) {
	var ev editor.ChangeEvent
	if !s.decode(w, r, &ev) {
		return
	}
	if err := s.node.LocalChange(ev); err != nil {
		s.fail(w, "Processing change", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/*******************************************************************************
Helpers
*******************************************************************************/

func (s *Service) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.WithError(err).WithField("path", r.URL.Path).Debug("Decoding request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Service) fail(w http.ResponseWriter, msg string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error(msg)
	} else {
		s.logger.WithError(err).Debug(msg)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, node.ErrShutdown):
		return http.StatusServiceUnavailable
	case common.IsSync(err, common.UserActionable):
		return http.StatusConflict
	case common.IsSync(err, common.Untracked):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
