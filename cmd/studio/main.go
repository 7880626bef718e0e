package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/internal/core/services"
	httphandlers "overlaycam/internal/handlers/http"
	"overlaycam/internal/infrastructure/encoder"
	"overlaycam/internal/infrastructure/loader"
	"overlaycam/internal/infrastructure/media"
	"overlaycam/internal/infrastructure/middleware"
	"overlaycam/internal/infrastructure/monitoring"
	"overlaycam/internal/infrastructure/render"
	repositories "overlaycam/internal/infrastructure/repositories"
	"overlaycam/internal/infrastructure/scheduler"
	wsinfra "overlaycam/internal/infrastructure/signal"
	"overlaycam/pkg/config"
	"overlaycam/pkg/logger"
	"overlaycam/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/root/configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "overlaycam-studio",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	artifactRepo := repoFactory.CreateArtifactRepository()

	// Initialize monitoring
	prometheusCollector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	stats := services.NewMetricsService()
	metrics := services.MultiMetrics{prometheusCollector, stats}

	devices, remoteCamera, err := media.NewDevices(cfg, log)
	if err != nil {
		log.Fatalw("failed to create camera source", "error", err)
	}

	newEncoder, err := encoder.NewFactory(encoder.Config{
		Codec:       cfg.Recording.Codec,
		JPEGQuality: cfg.Recording.JPEGQuality,
		FFmpeg: encoder.FFmpegConfig{
			Path:         cfg.Recording.FFmpegPath,
			VideoBitrate: cfg.Recording.VideoBitrate,
			AudioBitrate: cfg.Recording.AudioBitrate,
		},
	}, log)
	if err != nil {
		log.Fatalw("failed to create encoder factory", "error", err)
	}

	var overlayLoader ports.ImageLoader = &loader.SchemeLoader{
		File: loader.NewFileLoader(cfg.Overlays.BaseDir, log),
		HTTP: loader.NewHTTPLoader(cfg.Overlays.HTTPTimeout, log),
	}
	if cfg.Overlays.CacheTTL > 0 {
		overlayLoader = loader.NewCachingLoader(overlayLoader, cfg.Overlays.CacheTTL, cfg.Overlays.CacheSize)
	}

	studio := services.NewStudio(services.StudioConfig{
		Layout: domain.Layout(cfg.Studio.Layout),
		Sizer: services.SizerConfig{
			IdealWidth:  cfg.Studio.IdealWidth,
			IdealHeight: cfg.Studio.IdealHeight,
			MaxWidth:    cfg.Studio.MaxWidth,
			MaxHeight:   cfg.Studio.MaxHeight,
		},
		AspectRatio:    cfg.Studio.AspectRatio,
		MoveDelta:      cfg.Studio.MoveDelta,
		MinScale:       cfg.Studio.MinScale,
		DefaultFacing:  domain.FacingMode(cfg.Studio.DefaultFacing),
		DefaultOverlay: cfg.Overlays.Default,
		CaptureLayout:  cfg.Capture.FileNameLayout,
		Recording: services.RecordingConfig{
			FrameRate: cfg.Recording.FrameRate,
			Timeslice: cfg.Recording.Timeslice,
			Audio:     cfg.Recording.Audio,
			FileName:  cfg.Recording.FileName,
		},
	}, services.StudioDeps{
		Devices:    devices,
		Probe:      services.DefaultCapabilityProbe{},
		Loader:     overlayLoader,
		Catalog:    domain.OverlayCatalog(cfg.Overlays.Catalog),
		NewSurface: render.Factory(),
		Scheduler:  scheduler.NewTickerScheduler(cfg.Studio.RefreshRate, log),
		NewEncoder: newEncoder,
		Sink:       artifactRepo,
		Metrics:    metrics,
		Logger:     log,
	})

	hubConfig := wsinfra.HubConfig{
		MaxMessageSize: cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}
	preview := wsinfra.NewPreviewServer(studio, wsinfra.PreviewConfig{
		FrameRate:   cfg.Studio.Preview.FrameRate,
		JPEGQuality: cfg.Studio.Preview.JPEGQuality,
	}, wsinfra.NewHub("preview", hubConfig, log), log)
	go preview.Run(ctx)

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddPingCheck("artifact_backend", repoFactory.HealthCheck, 2*time.Second)
	healthChecker.AddRepositoryCheck(artifactRepo, 2*time.Second)
	healthChecker.AddStudioCheck(studio, time.Second)

	// Initialize HTTP handlers
	studioHandler := httphandlers.NewStudioHandler(studio, preview)
	artifactHandler := httphandlers.NewArtifactHandler(artifactRepo, repoFactory.Backend())

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(log))

	// Global HTTP rate limiting (if enabled)
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	identify := middleware.AnonymousOperatorMiddleware()
	if cfg.Auth.Enabled {
		operators := make(map[domain.OperatorID]services.OperatorCredential, len(cfg.Auth.Operators))
		for id, op := range cfg.Auth.Operators {
			operators[domain.OperatorID(id)] = services.OperatorCredential{
				Secret: op.Secret,
				Role:   domain.OperatorRole(op.Role),
			}
		}
		authService := services.NewAuthService(
			cfg.Auth.JWTSecret,
			cfg.Auth.AccessTokenTTL,
			cfg.Auth.RefreshTokenTTL,
			operators,
		)
		httphandlers.NewAuthHandler(authService).SetupRoutes(router)
		identify = middleware.AuthMiddleware(authService)
	}

	guards := httphandlers.RouteGuards{
		Control:   middleware.RequireControl(),
		WebSocket: middleware.NewWebSocketRateLimitMiddleware(cfg),
	}
	api := router.Group("/api/v1")
	api.Use(identify)
	studioHandler.SetupRoutes(api, guards)
	artifactHandler.SetupRoutes(api, guards)

	// Remote cameras push frames here when camera.source is remote
	if remoteCamera != nil {
		router.GET("/camera/ws", identify, guards.Control, guards.WebSocket, gin.WrapF(remoteCamera.HandleWebSocket))
		router.GET("/camera/feeds", identify, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"feeds": remoteCamera.Feeds()})
		})
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"uptime":    time.Since(startTime).String(),
		})
	})

	router.GET("/stats", identify, func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.Snapshot())
	})

	router.GET("/ready", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status == monitoring.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	// Create HTTP server with timeouts. Websocket routes hijack the
	// connection, so the write timeout only bounds plain requests.
	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting OverlayCam studio server",
			"address", cfg.Server.Address,
			"camera", cfg.Camera.Source,
			"codec", cfg.Recording.Codec,
			"artifacts", repoFactory.Backend(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down OverlayCam studio server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Closing the studio saves an in-flight recording before the store goes away
	if err := studio.Close(shutdownCtx); err != nil {
		log.Errorw("Error closing studio", "error", err)
	}
	cancel()
	preview.Hub().Close()

	// Shutdown HTTP server gracefully
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		// Force close if graceful shutdown fails
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	// Close repository factory
	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("OverlayCam studio server stopped")
}
