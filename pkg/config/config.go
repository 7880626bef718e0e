package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Studio struct {
		Layout        string  `yaml:"layout"`
		IdealWidth    int     `yaml:"ideal_width"`
		IdealHeight   int     `yaml:"ideal_height"`
		MaxWidth      int     `yaml:"max_width"`
		MaxHeight     int     `yaml:"max_height"`
		AspectRatio   float64 `yaml:"aspect_ratio"`
		MoveDelta     float64 `yaml:"move_delta"`
		MinScale      float64 `yaml:"min_scale"`
		DefaultFacing string  `yaml:"default_facing"`
		RefreshRate   int     `yaml:"refresh_rate"`

		Preview struct {
			FrameRate   int `yaml:"frame_rate"`
			JPEGQuality int `yaml:"jpeg_quality"`
		} `yaml:"preview"`
	} `yaml:"studio"`

	Overlays struct {
		Catalog     map[string]string `yaml:"catalog"`
		Default     string            `yaml:"default"`
		BaseDir     string            `yaml:"base_dir"`
		HTTPTimeout time.Duration     `yaml:"http_timeout"`
		CacheTTL    time.Duration     `yaml:"cache_ttl"` // 0 disables the decoded overlay cache
		CacheSize   int               `yaml:"cache_size"`
	} `yaml:"overlays"`

	Recording struct {
		Codec        string        `yaml:"codec"` // webm, ivf or mjpeg
		FrameRate    int           `yaml:"frame_rate"`
		Timeslice    time.Duration `yaml:"timeslice"`
		Audio        bool          `yaml:"audio"`
		FileName     string        `yaml:"file_name"`
		FFmpegPath   string        `yaml:"ffmpeg_path"`
		VideoBitrate string        `yaml:"video_bitrate"`
		AudioBitrate string        `yaml:"audio_bitrate"`
		JPEGQuality  int           `yaml:"jpeg_quality"`
	} `yaml:"recording"`

	Capture struct {
		FileNameLayout string `yaml:"file_name_layout"`
	} `yaml:"capture"`

	Scanner struct {
		Address       string   `yaml:"address"`
		IdealHeight   int      `yaml:"ideal_height"`
		AspectRatio   float64  `yaml:"aspect_ratio"`
		RefreshRate   int      `yaml:"refresh_rate"`
		Formats       []string `yaml:"formats"`
		TryHarder     bool     `yaml:"try_harder"`
		DefaultFacing string   `yaml:"default_facing"`
	} `yaml:"scanner"`

	Camera struct {
		Source string `yaml:"source"` // synthetic or remote

		Synthetic struct {
			Width        int     `yaml:"width"`
			Height       int     `yaml:"height"`
			FrameRate    float64 `yaml:"frame_rate"`
			PreCorrected bool    `yaml:"pre_corrected"`
		} `yaml:"synthetic"`

		Remote struct {
			AcquireTimeout time.Duration `yaml:"acquire_timeout"`
			ReadTimeout    time.Duration `yaml:"read_timeout"`
			PingInterval   time.Duration `yaml:"ping_interval"`
			MaxFrameBytes  int64         `yaml:"max_frame_bytes"`
			MaxFrameSide   int           `yaml:"max_frame_side"`
		} `yaml:"remote"`
	} `yaml:"camera"`

	Artifacts struct {
		Backend  string        `yaml:"backend"` // dir, memory or redis
		Dir      string        `yaml:"dir"`
		TTL      time.Duration `yaml:"ttl"`
		MaxItems int           `yaml:"max_items"`
	} `yaml:"artifacts"`

	Monitoring struct {
		PrometheusEnabled bool          `yaml:"prometheus_enabled"`
		PrometheusPort    int           `yaml:"prometheus_port"`
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		Enabled         bool          `yaml:"enabled"`
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		// Operators maps operator ids to their shared secret and role.
		Operators map[string]Operator `yaml:"operators"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int     `yaml:"connections_per_minute"`
			MessagesPerSecond    float64 `yaml:"messages_per_second"`
			Burst                int     `yaml:"burst"`
			MaxConcurrent        int     `yaml:"max_concurrent_connections"`
			MaxMessageSizeBytes  int64   `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

type Operator struct {
	Secret string `yaml:"secret"`
	Role   string `yaml:"role"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Studio
	if c.Studio.Layout != "single" && c.Studio.Layout != "split" {
		return fmt.Errorf("studio.layout must be single or split, got %q", c.Studio.Layout)
	}
	if c.Studio.IdealWidth <= 0 || c.Studio.IdealHeight <= 0 {
		return fmt.Errorf("studio.ideal_width and ideal_height must be > 0")
	}
	if c.Studio.MaxWidth < 0 || c.Studio.MaxHeight < 0 {
		return fmt.Errorf("studio.max_width and max_height must be >= 0")
	}
	if c.Studio.MoveDelta <= 0 {
		return fmt.Errorf("studio.move_delta must be > 0")
	}
	if c.Studio.MinScale < 0 {
		return fmt.Errorf("studio.min_scale must be >= 0")
	}
	if err := validFacing("studio.default_facing", c.Studio.DefaultFacing); err != nil {
		return err
	}
	if c.Studio.RefreshRate <= 0 {
		return fmt.Errorf("studio.refresh_rate must be > 0")
	}
	if c.Studio.Preview.FrameRate <= 0 {
		return fmt.Errorf("studio.preview.frame_rate must be > 0")
	}

	// Overlays
	if len(c.Overlays.Catalog) == 0 {
		return fmt.Errorf("overlays.catalog must not be empty")
	}
	if c.Overlays.Default != "" {
		if _, ok := c.Overlays.Catalog[c.Overlays.Default]; !ok {
			return fmt.Errorf("overlays.default %q is not in the catalog", c.Overlays.Default)
		}
	}
	if c.Overlays.CacheTTL < 0 || c.Overlays.CacheSize < 0 {
		return fmt.Errorf("overlays.cache_ttl and overlays.cache_size must not be negative")
	}

	// Recording
	switch c.Recording.Codec {
	case "webm", "ivf", "mjpeg":
	default:
		return fmt.Errorf("recording.codec must be webm, ivf or mjpeg, got %q", c.Recording.Codec)
	}
	if c.Recording.FrameRate <= 0 {
		return fmt.Errorf("recording.frame_rate must be > 0")
	}
	if c.Recording.Timeslice <= 0 {
		return fmt.Errorf("recording.timeslice must be > 0")
	}

	// Capture
	if c.Capture.FileNameLayout == "" {
		return fmt.Errorf("capture.file_name_layout must not be empty")
	}

	// Scanner
	if c.Scanner.Address == "" {
		return fmt.Errorf("scanner.address must not be empty")
	}
	if c.Scanner.RefreshRate <= 0 {
		return fmt.Errorf("scanner.refresh_rate must be > 0")
	}
	if err := validFacing("scanner.default_facing", c.Scanner.DefaultFacing); err != nil {
		return err
	}

	// Camera
	switch c.Camera.Source {
	case "synthetic":
		if c.Camera.Synthetic.Width <= 0 || c.Camera.Synthetic.Height <= 0 {
			return fmt.Errorf("camera.synthetic width and height must be > 0")
		}
	case "remote":
		if c.Camera.Remote.AcquireTimeout <= 0 {
			return fmt.Errorf("camera.remote.acquire_timeout must be > 0")
		}
	default:
		return fmt.Errorf("camera.source must be synthetic or remote, got %q", c.Camera.Source)
	}

	// Artifacts
	switch c.Artifacts.Backend {
	case "dir":
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir must not be empty when backend=dir")
		}
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("artifacts.backend=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("artifacts.backend must be dir, memory or redis, got %q", c.Artifacts.Backend)
	}
	if c.Artifacts.TTL < 0 {
		return fmt.Errorf("artifacts.ttl must be >= 0")
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}
	if c.Monitoring.MetricsInterval <= 0 {
		return fmt.Errorf("monitoring.metrics_interval must be > 0")
	}

	// Tracing
	if c.Tracing.Enabled && c.Tracing.JaegerURL == "" {
		return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty")
		}
		if c.Auth.AccessTokenTTL <= 0 {
			return fmt.Errorf("auth.access_token_ttl must be > 0")
		}
		if c.Auth.RefreshTokenTTL <= 0 {
			return fmt.Errorf("auth.refresh_token_ttl must be > 0")
		}
		for id, op := range c.Auth.Operators {
			if op.Secret == "" {
				return fmt.Errorf("auth.operators.%s.secret must not be empty", id)
			}
			if op.Role != "operator" && op.Role != "viewer" {
				return fmt.Errorf("auth.operators.%s.role must be operator or viewer", id)
			}
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

func validFacing(field, v string) error {
	if v != "user" && v != "environment" {
		return fmt.Errorf("%s must be user or environment, got %q", field, v)
	}
	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	// Image capture screen: 1080x720 surface, overlay over video.
	cfg.Studio.Layout = "single"
	cfg.Studio.IdealWidth = 1080
	cfg.Studio.IdealHeight = 720
	cfg.Studio.MaxWidth = 1920
	cfg.Studio.MaxHeight = 1080
	cfg.Studio.AspectRatio = 4.0 / 3.0
	cfg.Studio.MoveDelta = 50
	cfg.Studio.MinScale = 0
	cfg.Studio.DefaultFacing = "user"
	cfg.Studio.RefreshRate = 60
	cfg.Studio.Preview.FrameRate = 10
	cfg.Studio.Preview.JPEGQuality = 70

	cfg.Overlays.Catalog = map[string]string{
		"aqua": "aqua.png",
		"rem":  "rem.png",
		"dio":  "dio.png",
	}
	cfg.Overlays.Default = "aqua"
	cfg.Overlays.BaseDir = "assets"
	cfg.Overlays.HTTPTimeout = 10 * time.Second
	cfg.Overlays.CacheTTL = 10 * time.Minute
	cfg.Overlays.CacheSize = 16

	cfg.Recording.Codec = "webm"
	cfg.Recording.FrameRate = 30
	cfg.Recording.Timeslice = 200 * time.Millisecond
	cfg.Recording.Audio = true
	cfg.Recording.FileName = "recording"
	cfg.Recording.FFmpegPath = "ffmpeg"
	cfg.Recording.VideoBitrate = "1M"
	cfg.Recording.AudioBitrate = "64k"
	cfg.Recording.JPEGQuality = 80

	cfg.Capture.FileNameLayout = "2006-01-02"

	cfg.Scanner.Address = ":8082"
	cfg.Scanner.IdealHeight = 720
	cfg.Scanner.AspectRatio = 4.0 / 3.0
	cfg.Scanner.RefreshRate = 15
	cfg.Scanner.TryHarder = false
	cfg.Scanner.DefaultFacing = "environment"

	cfg.Camera.Source = "synthetic"
	cfg.Camera.Synthetic.Width = 1280
	cfg.Camera.Synthetic.Height = 720
	cfg.Camera.Synthetic.FrameRate = 30
	cfg.Camera.Remote.AcquireTimeout = 5 * time.Second
	cfg.Camera.Remote.ReadTimeout = 30 * time.Second
	cfg.Camera.Remote.PingInterval = 10 * time.Second
	cfg.Camera.Remote.MaxFrameBytes = 8 << 20
	cfg.Camera.Remote.MaxFrameSide = 4096

	cfg.Artifacts.Backend = "dir"
	cfg.Artifacts.Dir = "artifacts"
	cfg.Artifacts.TTL = 24 * time.Hour
	cfg.Artifacts.MaxItems = 100

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090
	cfg.Monitoring.MetricsInterval = 30 * time.Second

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	cfg.Auth.AllowedOrigins = []string{"*"}

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("OVERLAYCAM_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("OVERLAYCAM_SCANNER_ADDRESS"); addr != "" {
		c.Scanner.Address = addr
	}
	if level := os.Getenv("OVERLAYCAM_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("OVERLAYCAM_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if source := os.Getenv("OVERLAYCAM_CAMERA_SOURCE"); source != "" {
		c.Camera.Source = source
	}
	if codec := os.Getenv("OVERLAYCAM_RECORDING_CODEC"); codec != "" {
		c.Recording.Codec = codec
	}
	if path := os.Getenv("OVERLAYCAM_FFMPEG_PATH"); path != "" {
		c.Recording.FFmpegPath = path
	}
	if backend := os.Getenv("OVERLAYCAM_ARTIFACTS_BACKEND"); backend != "" {
		c.Artifacts.Backend = backend
	}
	if dir := os.Getenv("OVERLAYCAM_ARTIFACTS_DIR"); dir != "" {
		c.Artifacts.Dir = dir
	}
	if addr := os.Getenv("OVERLAYCAM_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if v := os.Getenv("OVERLAYCAM_TRACING_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Tracing.Enabled = enabled
		}
	}
}
