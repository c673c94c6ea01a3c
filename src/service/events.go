package service

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mosaicnetworks/gitmesh/src/node"
)

const (
	eventBuffer  = 64
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type session struct {
	id   string
	conn *websocket.Conn
	sub  int
}

// Sessions returns the ids of the connected event clients.
func (s *Service) Sessions() []string {
	s.Lock()
	defer s.Unlock()

	res := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		res = append(res, id)
	}
	return res
}

// Events upgrades the connection to a websocket and pushes the events of the
// node until either side closes it.
func (s *Service) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Upgrading connection")
		return
	}

	sub, events := s.node.Subscribe(eventBuffer)
	sess := &session{
		id:   uuid.New().String(),
		conn: conn,
		sub:  sub,
	}

	s.Lock()
	s.sessions[sess.id] = sess
	s.Unlock()

	logger := s.logger.WithField("session", sess.id)
	logger.Debug("Event session opened")

	defer func() {
		s.node.Unsubscribe(sess.sub)
		conn.Close()
		logger.Debug("Event session closed")

		s.Lock()
		delete(s.sessions, sess.id)
		s.Unlock()
	}()

	// the client only ever closes; reading is how we notice
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := sess.write(EventMessage{Session: sess.id}); err != nil {
		logger.WithError(err).Debug("Writing hello")
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "node shut down"))
				return
			}
			if err := sess.write(EventMessage{Session: sess.id, Event: eventRef(ev)}); err != nil {
				logger.WithError(err).Debug("Writing event")
				return
			}
		case <-closed:
			return
		}
	}
}

func (sess *session) write(msg EventMessage) error {
	sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return sess.conn.WriteJSON(msg)
}

func eventRef(ev node.Event) *node.Event {
	return &ev
}
