package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"streamcast/internal/capture"
	"streamcast/internal/config"
	"streamcast/internal/database"
	"streamcast/internal/encoder"
	"streamcast/internal/frame"
	"streamcast/internal/publish"
	"streamcast/internal/stats"
	"streamcast/internal/viewer"
)

func main() {
	cfg := config.ParseServerFlags()

	// Setup logger. Replace logger with your own log package of choice.
	var (
		logger *log.Logger
	)
	{
		logger = log.New(os.Stderr, "[streamcast] ", log.Ltime)
	}

	// Session event log. An empty -db disables persistence entirely.
	var db *database.Database
	if cfg.DBPath != "" {
		var err error
		db, err = database.New(cfg.DBPath)
		if err != nil {
			logger.Fatalf("open database %q: %v", cfg.DBPath, err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			logger.Fatalf("migrate database: %v", err)
		}
	}

	collector := stats.New()
	slot := frame.NewSlot()

	var recorder viewer.EventRecorder
	if db != nil {
		recorder = db
	}
	hub := viewer.NewHub(slot, cfg.QueueCapacity, recorder, collector)

	// Channel used by both the signal handler and server goroutines to
	// notify the main goroutine when to stop.
	errc := make(chan error)

	// SIGINT and SIGTERM cause a graceful stop.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	// Optional local capture publisher. When -device is empty, frames
	// arrive only through the ingest endpoint.
	if cfg.Device != "" {
		source := capture.New(cfg.Device, cfg.FPS, cfg.Width, cfg.Height)
		enc := encoder.NewJPEG(cfg.Quality)
		pub := publish.New(source, slot, enc, collector, cfg.FPS, cfg.Overlay)
		if err := pub.Start(ctx); err != nil {
			logger.Fatalf("start capture on %q: %v", cfg.Device, err)
		}
		logger.Printf("capturing from %q at %d fps", cfg.Device, cfg.FPS)
		go func() {
			if err := <-pub.Done(); err != nil {
				errc <- fmt.Errorf("publisher: %w", err)
			}
		}()
	}

	// Optional Redis stats sink; the collector still samples rates for
	// the overlay and the stats endpoint when no sink is configured.
	var sink stats.Sink
	if cfg.RedisAddr != "" {
		redisSink, err := stats.NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisKey, cfg.RedisChannel)
		if err != nil {
			logger.Fatalf("connect redis %q: %v", cfg.RedisAddr, err)
		}
		defer redisSink.Close()
		sink = redisSink
		logger.Printf("publishing stats to redis at %q", cfg.RedisAddr)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		collector.Run(ctx, stats.DefaultSampleInterval, sink, hub.Registry().Len)
	}()

	handleHTTPServer(ctx, cfg.ListenAddr, slot, hub, collector, db, &wg, errc, logger)

	// Wait for signal.
	logger.Printf("exiting (%v)", <-errc)

	// Send cancellation signal to the goroutines.
	cancel()

	wg.Wait()
	logger.Println("exited")
}
