package http

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/couchcryptid/accident-dashboard/internal/presentation"
	"github.com/couchcryptid/accident-dashboard/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
)

// viewStream pushes views of one session to one websocket client. Only the
// newest pending view is kept; a slow client skips intermediate versions.
type viewStream struct {
	conn   *websocket.Conn
	logger *slog.Logger
	notify chan struct{}

	mu        sync.Mutex
	pending   *presentation.View
	queued    uint64
	hasQueued bool
}

func newViewStream(conn *websocket.Conn, logger *slog.Logger) *viewStream {
	return &viewStream{
		conn:   conn,
		logger: logger,
		notify: make(chan struct{}, 1),
	}
}

// offer queues view unless a view of the same or a newer version was queued.
func (v *viewStream) offer(view presentation.View) {
	v.mu.Lock()
	if v.hasQueued && view.Version <= v.queued {
		v.mu.Unlock()
		return
	}
	v.queued, v.hasQueued = view.Version, true
	v.pending = &view
	v.mu.Unlock()

	select {
	case v.notify <- struct{}{}:
	default:
	}
}

func (v *viewStream) take() *presentation.View {
	v.mu.Lock()
	defer v.mu.Unlock()
	view := v.pending
	v.pending = nil
	return view
}

// readPump drains client frames so pongs and close frames are processed.
func (v *viewStream) readPump() {
	v.conn.SetReadLimit(maxMessageSize)
	if err := v.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.logger.Debug("websocket closed unexpectedly", "error", err)
			}
			return
		}
	}
}

// writePump writes queued views and pings until the client goes away or the
// session is discarded.
func (v *viewStream) writePump(clientGone, sessionDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = v.conn.Close()
	}()

	for {
		select {
		case <-v.notify:
			view := v.take()
			if view == nil {
				continue
			}
			payload, err := json.Marshal(view)
			if err != nil {
				v.logger.Error("encode view", "error", err)
				return
			}
			if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				v.logger.Debug("write view failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-sessionDone:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "session discarded")
			_ = v.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return

		case <-clientGone:
			return
		}
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Warn("websocket upgrade failed", "session_id", sess.ID(), "error", err)
		return
	}

	logger := s.logger.With("session_id", sess.ID())
	stream := newViewStream(conn, logger)
	unsubscribe := sess.Subscribe(func(snap session.Snapshot) {
		stream.offer(s.render(snap))
	})
	defer unsubscribe()
	stream.offer(s.render(sess.Snapshot()))

	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		stream.readPump()
	}()

	logger.Debug("websocket connected")
	stream.writePump(clientGone, sess.Done())
	<-clientGone
	logger.Debug("websocket disconnected")
}
