package ingest

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"streamcast/internal/frame"
	"streamcast/internal/stats"
)

const (
	// maxFrameSize bounds a single pushed frame. Generous for JPEG at
	// high resolution and quality.
	maxFrameSize = 8 * 1024 * 1024

	readWait = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  256 * 1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler accepts a producer pushing encoded frames over a websocket.
// Each binary message overwrites the frame slot; the producer's cadence
// directly drives the stream. Text and control messages are ignored.
type Handler struct {
	slot      *frame.Slot
	collector *stats.Collector // optional
}

// NewHandler creates the ingest handler.
func NewHandler(slot *frame.Slot, collector *stats.Collector) *Handler {
	return &Handler{slot: slot, collector: collector}
}

// ServeHTTP upgrades the producer connection and consumes frames until
// the producer disconnects. A disconnect only ends ingest; the last
// published frame keeps serving viewers.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Ingest] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[Ingest] producer connected from %s", r.RemoteAddr)

	conn.SetReadLimit(maxFrameSize)
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(10*time.Second))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[Ingest] producer %s read error: %v", r.RemoteAddr, err)
			} else {
				log.Printf("[Ingest] producer %s disconnected", r.RemoteAddr)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		h.slot.Publish(data)
		if h.collector != nil {
			h.collector.RecordIngest(len(data))
			h.collector.RecordPublish()
		}
	}
}
