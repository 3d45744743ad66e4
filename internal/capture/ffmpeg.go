package capture

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// FFmpegSource reads an MJPEG image pipe from an ffmpeg child process.
// It handles V4L2 devices, RTSP URLs and HTTP streams with the same
// frame-extraction loop.
type FFmpegSource struct {
	device string
	fps    int
	width  int
	height int

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	buf    []byte
	chunk  []byte
}

// NewFFmpegSource creates a source for the given device. Open starts the
// child process.
func NewFFmpegSource(device string, fps, width, height int) *FFmpegSource {
	return &FFmpegSource{
		device: device,
		fps:    fps,
		width:  width,
		height: height,
		chunk:  make([]byte, 8192),
	}
}

func (s *FFmpegSource) args() []string {
	switch {
	case strings.HasPrefix(s.device, "rtsp://"):
		return []string{
			"-rtsp_transport", "tcp",
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.fps),
			"-q:v", "5",
			"-",
		}
	case strings.HasPrefix(s.device, "http://"), strings.HasPrefix(s.device, "https://"):
		return []string{
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.fps),
			"-q:v", "5",
			"-",
		}
	default:
		return []string{
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", s.width, s.height),
			"-framerate", fmt.Sprintf("%d", s.fps),
			"-i", s.device,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		}
	}
}

// Open starts ffmpeg. Failure here means the capture source cannot be
// opened at all and is fatal to the publisher.
func (s *FFmpegSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := exec.Command("ffmpeg", s.args()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg for %s: %w", s.device, err)
	}

	// ffmpeg logs progress to stderr continuously; drain it so the
	// child never blocks on a full pipe.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	s.cmd = cmd
	s.stdout = stdout
	s.buf = s.buf[:0]
	return nil
}

// Acquire returns the next complete JPEG frame from the pipe. It is
// called from the single publisher goroutine; Close from another
// goroutine kills the child, which fails the pending Read and unblocks
// Acquire.
func (s *FFmpegSource) Acquire() ([]byte, error) {
	s.mu.Lock()
	stdout := s.stdout
	s.mu.Unlock()

	if stdout == nil {
		return nil, fmt.Errorf("source %s not open", s.device)
	}
	for {
		if frame, rest := extractJPEG(s.buf); frame != nil {
			s.buf = rest
			return frame, nil
		}
		n, err := stdout.Read(s.chunk)
		if n > 0 {
			s.buf = append(s.buf, s.chunk[:n]...)
		}
		if err != nil {
			return nil, fmt.Errorf("read ffmpeg pipe: %w", err)
		}
	}
}

// Close stops the child process. Safe to call more than once.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil && s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	s.cmd = nil
	s.stdout = nil
	return nil
}
