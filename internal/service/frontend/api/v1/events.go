package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/Kohei-Wada/taskdog-sub001/internal/common/logger"
	"github.com/Kohei-Wada/taskdog-sub001/internal/service/events"
)

// writeTimeout bounds one event delivery to a client.
const writeTimeout = 5 * time.Second

var errSessionClosed = errors.New("event session closed")

// eventStream upgrades the connection to a WebSocket and streams change
// events until the client disconnects. The clientId query parameter names
// the client for originator suppression; absent ids get a generated one,
// announced in the connected greeting.
func (a *API) eventStream(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	userName := r.URL.Query().Get("userName")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Warn(r.Context(), "WebSocket upgrade failed", "err", err)
		return
	}

	ctx := r.Context()
	sess := &eventSession{conn: conn}
	a.hub.Subscribe(clientID, sess)
	logger.Info(ctx, "Event stream client connected", "clientId", clientID, "userName", userName)

	// Block until the client goes away. Clients send no application
	// messages; Read keeps control frames serviced.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	a.hub.Unsubscribe(clientID)
	sess.Close()
	logger.Info(ctx, "Event stream client disconnected", "clientId", clientID)
}

// eventSession adapts one WebSocket connection to the hub's subscriber
// interface. Writes are serialized; a failed write makes the hub drop the
// session.
type eventSession struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Deliver implements events.Subscriber.
func (s *eventSession) Deliver(event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// Close closes the connection once.
func (s *eventSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close(websocket.StatusNormalClosure, "stream closed")
}
