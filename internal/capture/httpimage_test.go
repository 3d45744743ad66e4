package capture

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestHTTPImageSource verifies open probing and per-cycle fetching
// against a stub camera endpoint.
func TestHTTPImageSource(t *testing.T) {
	image := jpegFrame(0x42)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(image)
	}))
	defer srv.Close()

	src := NewHTTPImageSource(srv.URL)
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer src.Close()

	frame, err := src.Acquire()
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !bytes.Equal(frame, image) {
		t.Errorf("frame = %v, want %v", frame, image)
	}
}

// TestHTTPImageSourceOpenFailure verifies a failing endpoint is reported
// at startup.
func TestHTTPImageSourceOpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewHTTPImageSource(srv.URL)
	if err := src.Open(); err == nil {
		t.Fatal("Open succeeded against a 404 endpoint")
	}
}

// TestNewSourceSelection verifies device strings route to the right
// implementation.
func TestNewSourceSelection(t *testing.T) {
	if _, ok := New("http://cam.local/still.jpg", 5, 640, 480).(*HTTPImageSource); !ok {
		t.Error("still image URL did not select the HTTP source")
	}
	if _, ok := New("/dev/video0", 5, 640, 480).(*FFmpegSource); !ok {
		t.Error("V4L2 device did not select the ffmpeg source")
	}
	if _, ok := New("rtsp://cam.local/stream", 5, 640, 480).(*FFmpegSource); !ok {
		t.Error("RTSP URL did not select the ffmpeg source")
	}
}
