package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"streamcast/internal/database"
	"streamcast/internal/frame"
	"streamcast/internal/ingest"
	"streamcast/internal/stats"
	"streamcast/internal/stream"
	"streamcast/internal/viewer"
)

// handleHTTPServer configures and starts the HTTP server on the given
// address. It shuts the server down when the context is cancelled.
func handleHTTPServer(ctx context.Context, addr string, slot *frame.Slot, hub *viewer.Hub, collector *stats.Collector, db *database.Database, wg *sync.WaitGroup, errc chan error, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]string{
			"name":   "streamcast",
			"ingest": "/ws/stream",
			"view":   "/ws/view",
			"mjpeg":  "/video/stream",
		})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.Handle("/ws/stream", ingest.NewHandler(slot, collector))
	mux.Handle("/ws/view", viewer.NewHandler(hub))
	mux.Handle("/video/stream", stream.NewMJPEGHandler(hub))
	mux.Handle("/video/snapshot", stream.NewSnapshotHandler(slot))
	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, collector.Snapshot(hub.Registry().Len()))
	})
	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sessionsPayload(hub, db, logger))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: time.Second * 60}
	for _, route := range []string{"/ws/stream", "/ws/view", "/video/stream", "/video/snapshot", "/api/stats", "/api/sessions", "/healthz"} {
		logger.Printf("HTTP mounted on %s", route)
	}

	(*wg).Add(1)
	go func() {
		defer (*wg).Done()

		// Start HTTP server in a separate goroutine.
		go func() {
			logger.Printf("HTTP server listening on %q", addr)
			errc <- srv.ListenAndServe()
		}()

		<-ctx.Done()
		logger.Printf("shutting down HTTP server at %q", addr)

		// Shutdown gracefully with a 30s timeout.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Printf("failed to shutdown: %v", err)
		}
	}()
}

type liveSession struct {
	ID            string `json:"id"`
	RemoteAddr    string `json:"remote_addr"`
	LastVersion   uint64 `json:"last_version"`
	FramesSent    uint64 `json:"frames_sent"`
	BytesSent     uint64 `json:"bytes_sent"`
	FramesDropped uint64 `json:"frames_dropped"`
}

type sessionEvent struct {
	SessionID     string    `json:"session_id"`
	RemoteAddr    string    `json:"remote_addr,omitempty"`
	Event         string    `json:"event"`
	FramesSent    uint64    `json:"frames_sent"`
	BytesSent     uint64    `json:"bytes_sent"`
	FramesDropped uint64    `json:"frames_dropped"`
	Timestamp     time.Time `json:"timestamp"`
}

// sessionsPayload combines the live registry view with the recent
// connect/disconnect history from the event log.
func sessionsPayload(hub *viewer.Hub, db *database.Database, logger *log.Logger) map[string]any {
	live := []liveSession{}
	for _, s := range hub.Registry().Snapshot() {
		live = append(live, liveSession{
			ID:            s.ID,
			RemoteAddr:    s.RemoteAddr,
			LastVersion:   s.LastSentVersion(),
			FramesSent:    s.FramesSent(),
			BytesSent:     s.BytesSent(),
			FramesDropped: s.FramesDropped(),
		})
	}

	events := []sessionEvent{}
	if db != nil {
		records, err := db.ListSessionEvents(50)
		if err != nil {
			logger.Printf("list session events: %v", err)
		}
		for _, rec := range records {
			events = append(events, sessionEvent{
				SessionID:     rec.SessionID,
				RemoteAddr:    rec.RemoteAddr,
				Event:         rec.Event,
				FramesSent:    rec.FramesSent,
				BytesSent:     rec.BytesSent,
				FramesDropped: rec.FramesDropped,
				Timestamp:     rec.Timestamp,
			})
		}
	}

	return map[string]any{"sessions": live, "events": events}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
