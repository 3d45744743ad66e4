package capture

import "strings"

// Source produces one encoded JPEG frame per Acquire call. Open must be
// called before the first Acquire; a failed Open is a startup error while
// a failed Acquire only loses that cycle.
type Source interface {
	Open() error
	Acquire() ([]byte, error)
	Close() error
}

// New picks a source implementation for the device string: HTTP still
// image endpoints are polled, everything else (V4L2 device paths, RTSP
// and MJPEG-over-HTTP URLs) goes through ffmpeg.
func New(device string, fps, width, height int) Source {
	if isHTTPImageEndpoint(device) {
		return NewHTTPImageSource(device)
	}
	return NewFFmpegSource(device, fps, width, height)
}

// isHTTPImageEndpoint reports whether the device is an HTTP endpoint
// serving single JPEG images rather than a stream.
func isHTTPImageEndpoint(device string) bool {
	return (strings.HasPrefix(device, "http://") || strings.HasPrefix(device, "https://")) &&
		(strings.Contains(device, ".jpg") || strings.Contains(device, ".jpeg") || strings.Contains(device, "image"))
}
