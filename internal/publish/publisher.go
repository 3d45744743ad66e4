package publish

import (
	"context"
	"fmt"
	"log"
	"time"

	"streamcast/internal/capture"
	"streamcast/internal/encoder"
	"streamcast/internal/frame"
	"streamcast/internal/stats"
)

// DefaultMaxConsecutiveFailures bounds how long the publisher retries a
// source that fails every cycle before giving up. At 5 fps this is about
// thirty seconds of silence.
const DefaultMaxConsecutiveFailures = 150

// Publisher drives the local capture loop: acquire a frame from the
// source, optionally stamp the stats overlay, publish into the slot,
// sleep until the next tick. A failed cycle is logged and skipped; only
// a failed source open or a long unbroken failure streak is fatal.
type Publisher struct {
	source    capture.Source
	slot      *frame.Slot
	enc       *encoder.JPEG
	collector *stats.Collector // optional

	fps     int
	overlay bool

	// MaxConsecutiveFailures may be lowered in tests.
	MaxConsecutiveFailures int

	done chan error
}

// New creates a publisher. enc is only used when overlay is enabled.
func New(source capture.Source, slot *frame.Slot, enc *encoder.JPEG, collector *stats.Collector, fps int, overlay bool) *Publisher {
	if fps <= 0 {
		fps = 5
	}
	return &Publisher{
		source:                 source,
		slot:                   slot,
		enc:                    enc,
		collector:              collector,
		fps:                    fps,
		overlay:                overlay,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		done:                   make(chan error, 1),
	}
}

// Start opens the capture source and launches the publish loop. An open
// failure is returned to the caller as a startup error.
func (p *Publisher) Start(ctx context.Context) error {
	if err := p.source.Open(); err != nil {
		return fmt.Errorf("open capture source: %w", err)
	}
	go p.run(ctx)
	return nil
}

// Done receives nil on clean shutdown or the fatal error that stopped
// the loop.
func (p *Publisher) Done() <-chan error {
	return p.done
}

func (p *Publisher) run(ctx context.Context) {
	defer p.source.Close()

	interval := time.Second / time.Duration(p.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[Publisher] capture loop started at %d fps", p.fps)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			p.done <- nil
			return
		case <-ticker.C:
			payload, err := p.source.Acquire()
			if err != nil {
				failures++
				log.Printf("[Publisher] capture failed (%d consecutive): %v", failures, err)
				if failures >= p.MaxConsecutiveFailures {
					p.done <- fmt.Errorf("capture failed %d cycles in a row: %w", failures, err)
					return
				}
				continue
			}
			failures = 0

			if p.overlay && p.enc != nil {
				payload = p.enc.Annotate(payload, p.overlayLabel())
			}
			p.slot.Publish(payload)
			if p.collector != nil {
				p.collector.RecordPublish()
			}
		}
	}
}

func (p *Publisher) overlayLabel() string {
	if p.collector == nil {
		return ""
	}
	snap := p.collector.Snapshot(0)
	return fmt.Sprintf("Pub: %.1f  Send: %.1f  Net: %.1f KB/s",
		snap.PublishRate, snap.DeliverRate, snap.NetworkRate/1024.0)
}
