package stats

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSampleInterval is how often Run recomputes rates and pushes
// snapshots to the sink.
const DefaultSampleInterval = time.Second

// Collector accumulates throughput counters for the whole process:
// ingest traffic, publishes into the frame slot and deliveries to
// viewers. Recording methods are safe for concurrent use from every
// pipeline goroutine; rates are sampled once per interval by Run.
type Collector struct {
	started time.Time

	framesReceived  atomic.Uint64
	bytesReceived   atomic.Uint64
	framesPublished atomic.Uint64
	framesDelivered atomic.Uint64
	bytesDelivered  atomic.Uint64
	framesDropped   atomic.Uint64

	mu            sync.Mutex
	lastSample    time.Time
	lastReceived  uint64
	lastPublished uint64
	lastDelivered uint64
	lastNetBytes  uint64
	recvRate      float64
	publishRate   float64
	deliverRate   float64
	netRate       float64
}

// Snapshot is a point-in-time view of the counters, served as JSON by the
// stats endpoint and pushed to the optional Redis sink.
type Snapshot struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	FramesReceived  uint64  `json:"frames_received"`
	BytesReceived   uint64  `json:"bytes_received"`
	FramesPublished uint64  `json:"frames_published"`
	FramesDelivered uint64  `json:"frames_delivered"`
	BytesDelivered  uint64  `json:"bytes_delivered"`
	FramesDropped   uint64  `json:"frames_dropped"`
	ReceiveRate     float64 `json:"receive_rate"`      // messages/sec
	PublishRate     float64 `json:"publish_rate"`      // frames/sec
	DeliverRate     float64 `json:"deliver_rate"`      // frames/sec
	NetworkRate     float64 `json:"network_rate_bps"`  // ingest bytes/sec
	Sessions        int     `json:"sessions"`
}

// Sink receives periodic snapshots, e.g. for a dashboard.
type Sink interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// New creates a collector.
func New() *Collector {
	now := time.Now()
	return &Collector{started: now, lastSample: now}
}

// RecordIngest counts one received producer message of n bytes.
func (c *Collector) RecordIngest(n int) {
	c.framesReceived.Add(1)
	c.bytesReceived.Add(uint64(n))
}

// RecordPublish counts one frame published into the slot.
func (c *Collector) RecordPublish() {
	c.framesPublished.Add(1)
}

// RecordDelivered counts one frame of n bytes written to a viewer.
func (c *Collector) RecordDelivered(n int) {
	c.framesDelivered.Add(1)
	c.bytesDelivered.Add(uint64(n))
}

// RecordDrop counts one frame evicted from a viewer queue.
func (c *Collector) RecordDrop() {
	c.framesDropped.Add(1)
}

// Sample recomputes the per-second rates from the deltas since the last
// sample.
func (c *Collector) Sample() {
	now := time.Now()

	received := c.framesReceived.Load()
	published := c.framesPublished.Load()
	delivered := c.framesDelivered.Load()
	netBytes := c.bytesReceived.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := now.Sub(c.lastSample).Seconds()
	if elapsed <= 0 {
		return
	}
	c.recvRate = float64(received-c.lastReceived) / elapsed
	c.publishRate = float64(published-c.lastPublished) / elapsed
	c.deliverRate = float64(delivered-c.lastDelivered) / elapsed
	c.netRate = float64(netBytes-c.lastNetBytes) / elapsed

	c.lastSample = now
	c.lastReceived = received
	c.lastPublished = published
	c.lastDelivered = delivered
	c.lastNetBytes = netBytes
}

// Snapshot returns the current counters and rates. sessions is supplied
// by the caller since the live session count belongs to the registry.
func (c *Collector) Snapshot(sessions int) Snapshot {
	c.mu.Lock()
	recvRate, publishRate, deliverRate, netRate := c.recvRate, c.publishRate, c.deliverRate, c.netRate
	c.mu.Unlock()

	return Snapshot{
		UptimeSeconds:   time.Since(c.started).Seconds(),
		FramesReceived:  c.framesReceived.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		FramesPublished: c.framesPublished.Load(),
		FramesDelivered: c.framesDelivered.Load(),
		BytesDelivered:  c.bytesDelivered.Load(),
		FramesDropped:   c.framesDropped.Load(),
		ReceiveRate:     recvRate,
		PublishRate:     publishRate,
		DeliverRate:     deliverRate,
		NetworkRate:     netRate,
		Sessions:        sessions,
	}
}

// Run samples rates once per interval and, when a sink is configured,
// pushes snapshots to it until the context is cancelled. sessions is
// polled for the live viewer count and may be nil.
func (c *Collector) Run(ctx context.Context, interval time.Duration, sink Sink, sessions func() int) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sample()
			if sink != nil {
				n := 0
				if sessions != nil {
					n = sessions()
				}
				if err := sink.Publish(ctx, c.Snapshot(n)); err != nil {
					log.Printf("[Stats] sink publish failed: %v", err)
				}
			}
		}
	}
}
