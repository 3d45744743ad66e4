package viewer

import (
	"log"
	"sync"
	"sync/atomic"

	"streamcast/internal/frame"
	"streamcast/internal/stats"
)

// Transport is the wire abstraction a session delivers frames through.
// WriteFrame sends one opaque binary payload; an error means the viewer is
// gone and the session must terminate.
type Transport interface {
	WriteFrame(payload []byte) error
	Close() error
}

// Session is the per-viewer delivery state: a bounded drop-oldest queue
// and one flush goroutine draining it over the transport. A slow session
// drops frames; it never blocks the broadcast loop or other sessions.
type Session struct {
	ID         string
	RemoteAddr string

	transport Transport
	queue     *frame.Queue

	lastOffered atomic.Uint64
	lastSent    atomic.Uint64
	framesSent  atomic.Uint64
	bytesSent   atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}

	// flushDone is closed when the flush goroutine exits. Transports
	// whose writer dies with the HTTP handler wait on it so no write can
	// happen after the handler returns.
	flushDone chan struct{}

	// collector aggregates delivery counters across all sessions; nil in
	// tests.
	collector *stats.Collector

	// onClose is invoked exactly once when the session terminates, after
	// the flush goroutine has stopped. The hub uses it to deregister.
	onClose func(*Session)
}

// NewSession creates a session over the given transport. The flush
// goroutine is started by Run.
func NewSession(id, remoteAddr string, transport Transport, queueCapacity int, onClose func(*Session)) *Session {
	return &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		transport:  transport,
		queue:      frame.NewQueue(queueCapacity),
		done:       make(chan struct{}),
		flushDone:  make(chan struct{}),
		onClose:    onClose,
	}
}

// Offer hands a new frame to the session. Versions at or below the
// newest version already offered are ignored: the session never sends the
// same version twice and never goes backwards. Returns true when the
// frame was enqueued.
func (s *Session) Offer(payload []byte, version uint64) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	for {
		prev := s.lastOffered.Load()
		if version <= prev {
			return false
		}
		if s.lastOffered.CompareAndSwap(prev, version) {
			break
		}
	}
	if evicted := s.queue.Push(frame.Frame{Payload: payload, Version: version}); evicted {
		log.Printf("[Session] %s slow, evicted oldest queued frame", s.ID)
		if s.collector != nil {
			s.collector.RecordDrop()
		}
	}
	return true
}

// Run drains the queue over the transport until the session ends. Frames
// go out in strictly increasing version order; a write failure terminates
// the session and deregisters it.
func (s *Session) Run() {
	defer close(s.flushDone)
	defer s.Close()

	for {
		f, ok := s.queue.Pop()
		if !ok {
			return
		}
		if err := s.transport.WriteFrame(f.Payload); err != nil {
			log.Printf("[Session] %s write failed: %v", s.ID, err)
			return
		}
		s.lastSent.Store(f.Version)
		s.framesSent.Add(1)
		s.bytesSent.Add(uint64(len(f.Payload)))
		if s.collector != nil {
			s.collector.RecordDelivered(len(f.Payload))
		}
	}
}

// Close terminates the session: the queue is discarded, the flush
// goroutine unblocks, the transport is closed and the close hook fires.
// Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.queue.Close()
		s.transport.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// LastSentVersion returns the version of the newest frame written to the
// transport, 0 if none yet.
func (s *Session) LastSentVersion() uint64 {
	return s.lastSent.Load()
}

// FramesSent returns the number of frames delivered to the viewer.
func (s *Session) FramesSent() uint64 {
	return s.framesSent.Load()
}

// BytesSent returns the number of payload bytes delivered to the viewer.
func (s *Session) BytesSent() uint64 {
	return s.bytesSent.Load()
}

// FramesDropped returns the number of frames evicted from the queue.
func (s *Session) FramesDropped() uint64 {
	return s.queue.Dropped()
}

// Done is closed once the session has terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Flushed is closed once the flush goroutine has exited. Done closes at
// the start of Close while a write may still be in flight; callers that
// must not outlive their writer wait on Flushed instead.
func (s *Session) Flushed() <-chan struct{} {
	return s.flushDone
}
