package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"streamcast/internal/capture"
	"streamcast/internal/config"
	"streamcast/internal/frame"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second

	// maxDialRetries bounds reconnection attempts before giving up.
	maxDialRetries = 10
	dialRetryWait  = 3 * time.Second
)

func main() {
	cfg := config.ParsePushFlags()

	var (
		logger *log.Logger
	)
	{
		logger = log.New(os.Stderr, "[streamcast-push] ", log.Ltime)
	}

	source := capture.New(cfg.Device, cfg.FPS, cfg.Width, cfg.Height)
	if err := source.Open(); err != nil {
		logger.Fatalf("open capture %q: %v", cfg.Device, err)
	}
	defer source.Close()
	logger.Printf("capturing from %q at %d fps", cfg.Device, cfg.FPS)

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Frames flow capture -> queue -> sender. The queue drops the oldest
	// pending frame when the network is slower than the capture rate, so
	// a stalled uplink never backs up into the capture loop.
	queue := frame.NewQueue(cfg.QueueCapacity)

	go func() {
		errc <- runSender(ctx, cfg.URI, queue, logger)
	}()

	go captureLoop(ctx, source, queue, cfg.FPS, logger)

	logger.Printf("exiting (%v)", <-errc)
	cancel()
	queue.Close()
	logger.Println("exited")
}

// captureLoop acquires frames at the target rate and enqueues them.
func captureLoop(ctx context.Context, source capture.Source, queue *frame.Queue, fps int, logger *log.Logger) {
	if fps <= 0 {
		fps = 5
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	var version uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := source.Acquire()
			if err != nil {
				logger.Printf("capture failed: %v", err)
				continue
			}
			version++
			if queue.Push(frame.Frame{Payload: payload, Version: version, Timestamp: time.Now()}) {
				logger.Printf("uplink slow, dropped oldest pending frame")
			}
		}
	}
}

// runSender drains the queue over a websocket to the ingest endpoint,
// redialing on connection loss.
func runSender(ctx context.Context, uri string, queue *frame.Queue, logger *log.Logger) error {
	retries := 0
	for {
		conn, _, err := websocket.DefaultDialer.Dial(uri, nil)
		if err != nil {
			retries++
			if retries > maxDialRetries {
				return fmt.Errorf("dial %s: %w", uri, err)
			}
			logger.Printf("dial %s failed (attempt %d/%d): %v", uri, retries, maxDialRetries, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(dialRetryWait):
			}
			continue
		}
		retries = 0
		logger.Printf("connected to %s", uri)

		if err := sendFrames(ctx, conn, queue); err != nil {
			if ctx.Err() != nil {
				conn.Close()
				return ctx.Err()
			}
			logger.Printf("connection lost: %v", err)
			conn.Close()
			continue
		}
		conn.Close()
		return nil
	}
}

// sendFrames pumps queued frames over one connection until it fails or
// the queue closes. A read loop runs alongside so the websocket library
// can answer the server's pings. All writes happen on this goroutine.
func sendFrames(ctx context.Context, conn *websocket.Conn, queue *frame.Queue) error {
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	quit := make(chan struct{})
	defer close(quit)

	frames := make(chan frame.Frame)
	drained := make(chan struct{})
	go func() {
		for {
			f, ok := queue.Pop()
			if !ok {
				close(drained)
				return
			}
			select {
			case frames <- f:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-drained:
			return nil
		case f := <-frames:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, f.Payload); err != nil {
				return err
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
