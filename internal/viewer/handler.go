package viewer

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	// Viewers only send control traffic back, keep the read limit tight.
	maxViewerMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 256 * 1024, // JPEG frames
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsTransport adapts a gorilla connection to the session Transport.
// Frame writes and keepalive pings come from different goroutines, so
// writes are serialized here.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) WriteFrame(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (t *wsTransport) writePing() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// Handler upgrades viewer connections and hands them to the hub.
type Handler struct {
	hub *Hub
}

// NewHandler creates the viewer websocket handler.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeHTTP handles a viewer connecting to the stream. The session's
// flush goroutine pushes binary JPEG messages; this handler only reads to
// detect disconnection and answer keepalives.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Viewer] upgrade error: %v", err)
		return
	}

	transport := &wsTransport{conn: conn}
	session := h.hub.Attach(transport, r.RemoteAddr)

	go h.pingLoop(transport, session)
	go h.readPump(conn, session)
}

// pingLoop keeps the connection alive until the session ends.
func (h *Handler) pingLoop(transport *wsTransport, session *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-session.Done():
			return
		case <-ticker.C:
			if err := transport.writePing(); err != nil {
				session.Close()
				return
			}
		}
	}
}

// readPump drains incoming messages to detect disconnection. The core
// does not interpret viewer messages.
func (h *Handler) readPump(conn *websocket.Conn, session *Session) {
	defer session.Close()

	conn.SetReadLimit(maxViewerMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[Viewer] session %s read error: %v", session.ID, err)
			}
			return
		}
	}
}
