package config

import (
	"flag"
	"os"
	"strconv"

	"streamcast/internal/frame"
)

// Config holds the server's runtime configuration. Every flag falls back
// to a STREAMCAST_* environment variable before its built-in default.
type Config struct {
	ListenAddr string

	// Device enables the local capture publisher: a V4L2 path, RTSP or
	// HTTP URL. Empty means frames arrive only via the ingest endpoint.
	Device string
	FPS    int
	Width  int
	Height int

	Quality       int
	Overlay       bool
	QueueCapacity int

	DBPath string

	// RedisAddr enables the stats sink when non-empty.
	RedisAddr    string
	RedisKey     string
	RedisChannel string
}

// ParseServerFlags parses flags for the streamcast server binary.
func ParseServerFlags() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.ListenAddr, "listen", getEnv("STREAMCAST_LISTEN", ":9000"), "HTTP listen address")
	flag.StringVar(&cfg.Device, "device", getEnv("STREAMCAST_DEVICE", ""), "Local capture device or URL (empty: ingest only)")
	flag.IntVar(&cfg.FPS, "fps", getEnvInt("STREAMCAST_FPS", 30), "Local capture frame rate")
	flag.IntVar(&cfg.Width, "width", getEnvInt("STREAMCAST_WIDTH", 640), "Local capture width")
	flag.IntVar(&cfg.Height, "height", getEnvInt("STREAMCAST_HEIGHT", 480), "Local capture height")
	flag.IntVar(&cfg.Quality, "quality", getEnvInt("STREAMCAST_QUALITY", 80), "JPEG quality for re-encoded frames (1-100)")
	flag.BoolVar(&cfg.Overlay, "overlay", getEnvBool("STREAMCAST_OVERLAY", false), "Stamp throughput stats onto outgoing frames")
	flag.IntVar(&cfg.QueueCapacity, "queue", getEnvInt("STREAMCAST_QUEUE", frame.DefaultQueueCapacity), "Per-viewer frame queue capacity")
	flag.StringVar(&cfg.DBPath, "db", getEnv("STREAMCAST_DB", "streamcast.db"), "SQLite database path (empty: disable event log)")
	flag.StringVar(&cfg.RedisAddr, "redis", getEnv("STREAMCAST_REDIS", ""), "Redis address for the stats sink (empty: disabled)")
	flag.StringVar(&cfg.RedisKey, "redis-key", getEnv("STREAMCAST_REDIS_KEY", "streamcast:stats"), "Redis key for the latest stats snapshot")
	flag.StringVar(&cfg.RedisChannel, "redis-channel", getEnv("STREAMCAST_REDIS_CHANNEL", "streamcast:stats"), "Redis channel for stats publishes")
	flag.Parse()
	return cfg
}

// PushConfig holds configuration for the push client binary.
type PushConfig struct {
	URI           string
	Device        string
	FPS           int
	Width         int
	Height        int
	Quality       int
	QueueCapacity int
}

// ParsePushFlags parses flags for the streamcast-push binary.
func ParsePushFlags() *PushConfig {
	cfg := &PushConfig{}
	flag.StringVar(&cfg.URI, "uri", getEnv("STREAMCAST_URI", "ws://localhost:9000/ws/stream"), "Ingest websocket URI")
	flag.StringVar(&cfg.Device, "device", getEnv("STREAMCAST_DEVICE", "/dev/video0"), "Capture device or URL")
	flag.IntVar(&cfg.FPS, "fps", getEnvInt("STREAMCAST_FPS", 5), "Target frames per second")
	flag.IntVar(&cfg.Width, "width", getEnvInt("STREAMCAST_WIDTH", 640), "Capture width")
	flag.IntVar(&cfg.Height, "height", getEnvInt("STREAMCAST_HEIGHT", 480), "Capture height")
	flag.IntVar(&cfg.Quality, "quality", getEnvInt("STREAMCAST_QUALITY", 80), "JPEG quality (1-100)")
	flag.IntVar(&cfg.QueueCapacity, "queue", getEnvInt("STREAMCAST_QUEUE", frame.DefaultQueueCapacity), "Send queue capacity")
	flag.Parse()
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return fallback
}
