package frame

import (
	"sync"
	"time"
)

// Frame is one encoded image payload together with its version number.
// Version 0 is reserved for "no frame yet"; the first published frame is
// version 1.
type Frame struct {
	Payload []byte
	Version uint64
	// Timestamp records when the frame was published.
	Timestamp time.Time
}

// Slot stores the single most recent frame for one stream. One writer
// (the publisher) replaces the frame, any number of readers observe it.
// Readers always see a consistent payload/version pair.
type Slot struct {
	mu      sync.RWMutex
	current Frame

	// notify carries a coalesced "slot changed" signal for the broadcast
	// loop. Capacity 1, non-blocking send: a slow consumer collapses many
	// publishes into one wakeup and never stalls the publisher.
	notify chan struct{}
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{
		notify: make(chan struct{}, 1),
	}
}

// Publish replaces the current frame, assigning the next version number.
// The payload is copied so the caller may reuse its buffer.
func (s *Slot) Publish(payload []byte) uint64 {
	data := make([]byte, len(payload))
	copy(data, payload)

	s.mu.Lock()
	s.current = Frame{
		Payload:   data,
		Version:   s.current.Version + 1,
		Timestamp: time.Now(),
	}
	version := s.current.Version
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return version
}

// Read returns the current payload and version. Before the first publish
// it returns (nil, 0), the empty sentinel. The returned payload is shared
// and must be treated as read-only.
func (s *Slot) Read() ([]byte, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Payload, s.current.Version
}

// Version returns the current version without touching the payload.
func (s *Slot) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Version
}

// Updated returns a channel that receives a signal after a publish.
// Signals are coalesced; consumers should re-check the version after each
// wakeup rather than count signals.
func (s *Slot) Updated() <-chan struct{} {
	return s.notify
}
