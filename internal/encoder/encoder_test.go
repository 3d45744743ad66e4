package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

// TestEncodeDecodable verifies Encode output parses back as a JPEG with
// the original dimensions.
func TestEncodeDecodable(t *testing.T) {
	e := NewJPEG(80)

	payload, err := e.Encode(testImage(64, 48))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("output not decodable: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("decoded bounds = %v, want 64x48", b)
	}
}

// TestQualityClamped verifies out-of-range qualities are clamped.
func TestQualityClamped(t *testing.T) {
	if q := NewJPEG(-5).Quality(); q != 1 {
		t.Errorf("quality = %d, want 1", q)
	}
	if q := NewJPEG(200).Quality(); q != 100 {
		t.Errorf("quality = %d, want 100", q)
	}
	if q := NewJPEG(70).Quality(); q != 70 {
		t.Errorf("quality = %d, want 70", q)
	}
}

// TestAnnotateProducesJPEG verifies the annotated payload is still a
// decodable JPEG of the same size.
func TestAnnotateProducesJPEG(t *testing.T) {
	e := NewJPEG(80)
	payload, err := e.Encode(testImage(160, 120))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	annotated := e.Annotate(payload, "Recv: 5.0  Net: 120.0 KB/s")
	decoded, err := jpeg.Decode(bytes.NewReader(annotated))
	if err != nil {
		t.Fatalf("annotated payload not decodable: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 160 || b.Dy() != 120 {
		t.Errorf("annotated bounds = %v, want 160x120", b)
	}
	if bytes.Equal(annotated, payload) {
		t.Error("annotation left the payload unchanged")
	}
}

// TestAnnotateBadPayload verifies undecodable input passes through
// untouched.
func TestAnnotateBadPayload(t *testing.T) {
	e := NewJPEG(80)
	garbage := []byte{0x00, 0x01, 0x02, 0x03}

	if got := e.Annotate(garbage, "label"); !bytes.Equal(got, garbage) {
		t.Errorf("Annotate of garbage = %v, want input unchanged", got)
	}
}

// TestAnnotateEmptyLabel verifies an empty label is a pass-through.
func TestAnnotateEmptyLabel(t *testing.T) {
	e := NewJPEG(80)
	payload, _ := e.Encode(testImage(32, 32))

	got := e.Annotate(payload, "")
	if !bytes.Equal(got, payload) {
		t.Error("empty label re-encoded the frame")
	}
}
