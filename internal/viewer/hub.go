package viewer

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"streamcast/internal/frame"
	"streamcast/internal/stats"
)

// EventRecorder persists session lifecycle events. The hub treats
// recording as best effort; a storage failure never affects delivery.
type EventRecorder interface {
	RecordConnect(sessionID, remoteAddr string) error
	RecordDisconnect(sessionID string, framesSent, bytesSent, framesDropped uint64) error
}

// DefaultPollInterval is the broadcast loop's fallback scan cadence,
// roughly 30 checks per second as in the reference viewer loop.
const DefaultPollInterval = 33 * time.Millisecond

// Hub runs the broadcast loop: it watches the frame slot and fans new
// versions out to every registered session's queue. It holds no
// per-session delivery state; freshness tracking lives in each session.
type Hub struct {
	slot     *frame.Slot
	registry *Registry

	queueCapacity int
	pollInterval  time.Duration

	recorder  EventRecorder    // optional
	collector *stats.Collector // optional

	// lastBroadcast is touched only by the Run goroutine.
	lastBroadcast uint64
}

// NewHub creates a hub over the given slot. recorder and collector may be
// nil.
func NewHub(slot *frame.Slot, queueCapacity int, recorder EventRecorder, collector *stats.Collector) *Hub {
	return &Hub{
		slot:          slot,
		registry:      NewRegistry(),
		queueCapacity: queueCapacity,
		pollInterval:  DefaultPollInterval,
		recorder:      recorder,
		collector:     collector,
	}
}

// Registry exposes the live session set for the HTTP status surface.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Attach creates, registers and seeds a session over the transport and
// starts its flush goroutine. A viewer that connects after frames have
// been published receives the current frame immediately.
func (h *Hub) Attach(transport Transport, remoteAddr string) *Session {
	s := NewSession(uuid.NewString(), remoteAddr, transport, h.queueCapacity, h.onSessionClose)
	s.collector = h.collector

	// Register before seeding so a version fanned out in between still
	// reaches this session; Offer dedupes if the seed then repeats it.
	h.registry.Add(s)
	if payload, version := h.slot.Read(); version > 0 {
		s.Offer(payload, version)
	}
	log.Printf("[Hub] session %s connected from %s (total: %d)", s.ID, remoteAddr, h.registry.Len())
	if h.recorder != nil {
		if err := h.recorder.RecordConnect(s.ID, remoteAddr); err != nil {
			log.Printf("[Hub] failed to record connect for %s: %v", s.ID, err)
		}
	}

	go s.Run()
	return s
}

func (h *Hub) onSessionClose(s *Session) {
	h.registry.Remove(s.ID)
	log.Printf("[Hub] session %s disconnected (sent %d frames, dropped %d)",
		s.ID, s.FramesSent(), s.FramesDropped())
	if h.recorder != nil {
		if err := h.recorder.RecordDisconnect(s.ID, s.FramesSent(), s.BytesSent(), s.FramesDropped()); err != nil {
			log.Printf("[Hub] failed to record disconnect for %s: %v", s.ID, err)
		}
	}
}

// Run drives the broadcast loop until the context is cancelled, then
// closes every remaining session. Fan-out is event-driven off the slot's
// update signal with a poll ticker as fallback.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, s := range h.registry.Snapshot() {
				s.Close()
			}
			return
		case <-h.slot.Updated():
			h.fanOut()
		case <-ticker.C:
			h.fanOut()
		}
	}
}

func (h *Hub) fanOut() {
	payload, version := h.slot.Read()
	if version == 0 || version <= h.lastBroadcast {
		return
	}
	h.lastBroadcast = version
	for _, s := range h.registry.Snapshot() {
		s.Offer(payload, version)
	}
}
