package viewer

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"streamcast/internal/frame"
)

// TestHubLateJoiner verifies a viewer connecting after several publishes
// is seeded with the newest frame only.
func TestHubLateJoiner(t *testing.T) {
	slot := frame.NewSlot()
	hub := NewHub(slot, 4, nil, nil)

	for v := 1; v <= 5; v++ {
		slot.Publish([]byte{byte(v)})
	}

	tr := newRecordingTransport()
	s := hub.Attach(tr, "test")
	defer s.Close()

	waitFrames(t, tr, 1)
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.frames) != 1 {
		t.Fatalf("seeded frames = %d, want 1", len(tr.frames))
	}
	if !bytes.Equal(tr.frames[0], []byte{5}) {
		t.Errorf("seeded payload = %v, want the newest frame", tr.frames[0])
	}
}

// TestHubNoFrameYet verifies a viewer connecting before any publish
// receives nothing until the first publish.
func TestHubNoFrameYet(t *testing.T) {
	slot := frame.NewSlot()
	hub := NewHub(slot, 4, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	tr := newRecordingTransport()
	s := hub.Attach(tr, "test")
	defer s.Close()

	time.Sleep(50 * time.Millisecond)
	if n := tr.frameCount(); n != 0 {
		t.Fatalf("received %d frames before the first publish", n)
	}

	slot.Publish([]byte("first"))
	waitFrames(t, tr, 1)
	if s.LastSentVersion() != 1 {
		t.Errorf("LastSentVersion = %d, want 1", s.LastSentVersion())
	}
}

// TestHubFanOut verifies every registered session receives a newly
// published frame.
func TestHubFanOut(t *testing.T) {
	slot := frame.NewSlot()
	hub := NewHub(slot, 4, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	trA := newRecordingTransport()
	trB := newRecordingTransport()
	sA := hub.Attach(trA, "a")
	sB := hub.Attach(trB, "b")
	defer sA.Close()
	defer sB.Close()

	slot.Publish([]byte("frame"))
	waitFrames(t, trA, 1)
	waitFrames(t, trB, 1)
}

// TestHubDisconnectIsolation verifies a failing viewer is deregistered
// while the publisher and other sessions continue unaffected.
func TestHubDisconnectIsolation(t *testing.T) {
	slot := frame.NewSlot()
	hub := NewHub(slot, 4, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	bad := newRecordingTransport()
	bad.failOn = 1
	good := newRecordingTransport()

	sBad := hub.Attach(bad, "bad")
	sGood := hub.Attach(good, "good")
	defer sGood.Close()

	slot.Publish([]byte("frame-1"))

	select {
	case <-sBad.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("failing session did not terminate")
	}
	waitFrames(t, good, 1)

	// Deregistration must be complete and further publishes must still
	// reach the healthy session.
	deadline := time.After(2 * time.Second)
	for hub.Registry().Get(sBad.ID) != nil {
		select {
		case <-deadline:
			t.Fatal("failed session still registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	slot.Publish([]byte("frame-2"))
	waitFrames(t, good, 1)
	if hub.Registry().Len() != 1 {
		t.Errorf("registry size = %d, want 1", hub.Registry().Len())
	}
}

// TestHubShutdownClosesSessions verifies cancelling the hub context ends
// every session.
func TestHubShutdownClosesSessions(t *testing.T) {
	slot := frame.NewSlot()
	hub := NewHub(slot, 4, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	tr := newRecordingTransport()
	s := hub.Attach(tr, "test")

	cancel()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session not closed on hub shutdown")
	}
}

// TestViewerHandlerEndToEnd upgrades a real websocket connection and
// verifies the seeded frame arrives as a binary message.
func TestViewerHandlerEndToEnd(t *testing.T) {
	slot := frame.NewSlot()
	hub := NewHub(slot, 4, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slot.Publish([]byte{0xFF, 0xD8, 0xFF, 0xD9})

	srv := httptest.NewServer(NewHandler(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Errorf("message type = %d, want binary", msgType)
	}
	if !bytes.Equal(payload, []byte{0xFF, 0xD8, 0xFF, 0xD9}) {
		t.Errorf("payload = %v, want the published frame", payload)
	}

	// Publish another frame and expect it over the same connection.
	slot.Publish([]byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if len(payload) != 5 {
		t.Errorf("second payload length = %d, want 5", len(payload))
	}
}

// TestHubAttachDuringPublish verifies sessions attaching while frames
// are being published always converge on the final version: either the
// seed reads it or a fan-out after registration delivers it, with no
// window in which a viewer is left permanently one frame stale.
func TestHubAttachDuringPublish(t *testing.T) {
	slot := frame.NewSlot()
	hub := NewHub(slot, 4, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	published := make(chan struct{})
	go func() {
		defer close(published)
		for v := 0; v < 50; v++ {
			slot.Publish([]byte("frame"))
			time.Sleep(time.Millisecond)
		}
	}()

	sessions := make([]*Session, 0, 20)
	for i := 0; i < 20; i++ {
		tr := newRecordingTransport()
		sessions = append(sessions, hub.Attach(tr, "test"))
		time.Sleep(2 * time.Millisecond)
	}
	<-published

	final := slot.Version()
	deadline := time.After(2 * time.Second)
	for _, s := range sessions {
		for s.LastSentVersion() != final {
			select {
			case <-deadline:
				t.Fatalf("session %s stuck at version %d, final is %d", s.ID, s.LastSentVersion(), final)
			case <-time.After(5 * time.Millisecond):
			}
		}
		s.Close()
	}
}
