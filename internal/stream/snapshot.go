package stream

import (
	"fmt"
	"net/http"

	"streamcast/internal/frame"
)

// SnapshotHandler serves the current frame as a single JPEG.
type SnapshotHandler struct {
	slot *frame.Slot
}

// NewSnapshotHandler creates a snapshot handler over the slot.
func NewSnapshotHandler(slot *frame.Slot) *SnapshotHandler {
	return &SnapshotHandler{slot: slot}
}

// ServeHTTP responds with the newest frame, or 503 before the first
// publish.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	payload, version := h.slot.Read()
	if version == 0 {
		http.Error(w, "no frame available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(payload)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(payload)
}
