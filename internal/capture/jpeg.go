package capture

import "bytes"

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// extractJPEG pulls the first complete JPEG (SOI..EOI) out of buf,
// returning the frame and the remaining buffer. frame is nil when no
// complete image is present yet; callers keep appending pipe output and
// retry.
func extractJPEG(buf []byte) (frame []byte, rest []byte) {
	start := bytes.Index(buf, jpegStart)
	if start < 0 {
		return nil, buf
	}
	end := bytes.Index(buf[start+2:], jpegEnd)
	if end < 0 {
		return nil, buf
	}
	end = start + 2 + end + 2

	frame = make([]byte, end-start)
	copy(frame, buf[start:end])
	return frame, buf[end:]
}
