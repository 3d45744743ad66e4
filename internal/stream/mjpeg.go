package stream

import (
	"fmt"
	"log"
	"net/http"

	"streamcast/internal/viewer"
)

// MJPEGHandler serves the stream as multipart/x-mixed-replace for plain
// <img> viewers. Each HTTP client gets a full viewer session, so the
// same queue and drop-oldest policy apply as on the websocket path.
type MJPEGHandler struct {
	hub *viewer.Hub
}

// NewMJPEGHandler creates the MJPEG fallback handler.
func NewMJPEGHandler(hub *viewer.Hub) *MJPEGHandler {
	return &MJPEGHandler{hub: hub}
}

// mjpegTransport writes frames as multipart parts. It runs on the
// session's flush goroutine only.
type mjpegTransport struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (t *mjpegTransport) WriteFrame(payload []byte) error {
	if _, err := fmt.Fprintf(t.w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	if _, err := t.w.Write(payload); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(t.w, "\r\n"); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Close is a no-op; the response ends when ServeHTTP returns.
func (t *mjpegTransport) Close() error {
	return nil
}

// ServeHTTP streams frames until the client goes away or the session is
// shut down.
func (h *MJPEGHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	session := h.hub.Attach(&mjpegTransport{w: w, flusher: flusher}, r.RemoteAddr)
	log.Printf("[MJPEG] client connected from %s", r.RemoteAddr)

	select {
	case <-r.Context().Done():
		session.Close()
	case <-session.Done():
	}
	// The flush goroutine writes straight into the ResponseWriter, which
	// is invalid once this handler returns. Wait for it to exit.
	<-session.Flushed()
	log.Printf("[MJPEG] client disconnected from %s", r.RemoteAddr)
}
