package database

import (
	"testing"
)

func testDB(t *testing.T) *Database {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// TestSessionEventRoundTrip verifies connect and disconnect events are
// stored with their counters.
func TestSessionEventRoundTrip(t *testing.T) {
	db := testDB(t)

	if err := db.RecordConnect("sess-1", "10.0.0.1:51234"); err != nil {
		t.Fatalf("RecordConnect: %v", err)
	}
	if err := db.RecordDisconnect("sess-1", 120, 480000, 7); err != nil {
		t.Fatalf("RecordDisconnect: %v", err)
	}

	events, err := db.ListSessionEvents(10)
	if err != nil {
		t.Fatalf("ListSessionEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	var connect, disconnect *SessionEventRecord
	for i := range events {
		switch events[i].Event {
		case "connected":
			connect = &events[i]
		case "disconnected":
			disconnect = &events[i]
		}
	}
	if connect == nil || disconnect == nil {
		t.Fatalf("missing event kinds in %v", events)
	}
	if connect.SessionID != "sess-1" || connect.RemoteAddr != "10.0.0.1:51234" {
		t.Errorf("connect event = %+v", connect)
	}
	if disconnect.FramesSent != 120 || disconnect.BytesSent != 480000 || disconnect.FramesDropped != 7 {
		t.Errorf("disconnect counters = %+v", disconnect)
	}
}

// TestListSessionEventsLimit verifies the limit is applied.
func TestListSessionEventsLimit(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 5; i++ {
		if err := db.RecordConnect("sess", "addr"); err != nil {
			t.Fatalf("RecordConnect: %v", err)
		}
	}
	events, err := db.ListSessionEvents(3)
	if err != nil {
		t.Fatalf("ListSessionEvents: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}
}

// TestConfigRoundTrip verifies get/set/update of config values and the
// empty default for unset keys.
func TestConfigRoundTrip(t *testing.T) {
	db := testDB(t)

	if v, err := db.GetConfig("missing"); err != nil || v != "" {
		t.Errorf("GetConfig(missing) = %q, %v; want empty, nil", v, err)
	}

	if err := db.SetConfig("quality", "80"); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	if v, _ := db.GetConfig("quality"); v != "80" {
		t.Errorf("GetConfig = %q, want 80", v)
	}

	if err := db.SetConfig("quality", "60"); err != nil {
		t.Fatalf("SetConfig update: %v", err)
	}
	if v, _ := db.GetConfig("quality"); v != "60" {
		t.Errorf("GetConfig after update = %q, want 60", v)
	}
}
