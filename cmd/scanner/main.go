package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/services"
	httphandlers "overlaycam/internal/handlers/http"
	"overlaycam/internal/infrastructure/barcode"
	"overlaycam/internal/infrastructure/media"
	"overlaycam/internal/infrastructure/middleware"
	"overlaycam/internal/infrastructure/monitoring"
	"overlaycam/internal/infrastructure/scheduler"
	wsinfra "overlaycam/internal/infrastructure/signal"
	"overlaycam/pkg/config"
	"overlaycam/pkg/logger"
	"overlaycam/pkg/tracing"
	"overlaycam/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/root/configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error
	var loadedFrom string

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			loadedFrom = path
			break
		}
	}

	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if loadedFrom != "" {
		log.Infow("Loaded config", "path", loadedFrom)
	} else {
		log.Warnw("Could not load config from any path, using defaults", "error", err)
	}

	supported := make([]string, 0, len(domain.AllBarcodeFormats()))
	for _, f := range domain.AllBarcodeFormats() {
		supported = append(supported, string(f))
	}
	if err := validation.ValidateBarcodeFormats(cfg.Scanner.Formats, supported); err != nil {
		log.Fatalw("invalid scanner.formats", "error", err)
	}
	formats := make([]domain.BarcodeFormat, 0, len(cfg.Scanner.Formats))
	for _, f := range cfg.Scanner.Formats {
		formats = append(formats, domain.BarcodeFormat(f))
	}

	tracer, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "overlaycam-scanner",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	devices, remoteCamera, err := media.NewDevices(cfg, log)
	if err != nil {
		log.Fatalw("failed to create camera source", "error", err)
	}

	prometheusCollector := monitoring.NewPrometheusCollector(prometheus.DefaultRegisterer)
	stats := services.NewMetricsService()
	metrics := services.MultiMetrics{prometheusCollector, stats}

	scanner := services.NewScanner(services.ScannerConfig{
		IdealHeight: cfg.Scanner.IdealHeight,
		AspectRatio: cfg.Scanner.AspectRatio,
		Hints: domain.DecodeHints{
			PossibleFormats: formats,
			TryHarder:       cfg.Scanner.TryHarder,
		},
		DefaultFacing: domain.FacingMode(cfg.Scanner.DefaultFacing),
	}, services.ScannerDeps{
		Devices:   devices,
		Probe:     services.DefaultCapabilityProbe{},
		Decoder:   barcode.NewDecoder(log),
		Scheduler: scheduler.NewTickerScheduler(cfg.Scanner.RefreshRate, log),
		Metrics:   metrics,
		Logger:    log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := wsinfra.NewScanEventServer(scanner, wsinfra.NewHub("scan", wsinfra.HubConfig{
		MaxMessageSize: cfg.RateLimiting.WebSocket.MaxMessageSizeBytes,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, log), log)
	go events.Run(ctx)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.ErrorHandlerMiddleware(log))
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
	httphandlers.NewScannerHandler(scanner, events).SetupRoutes(api, guards)

	if remoteCamera != nil {
		router.GET("/camera/ws", identify, guards.Control, guards.WebSocket, gin.WrapF(remoteCamera.HandleWebSocket))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"running": scanner.Running(),
			"clients": events.Hub().Clients(),
		})
	})

	router.GET("/stats", identify, func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.Snapshot())
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	srv := &http.Server{
		Addr:        cfg.Scanner.Address,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting OverlayCam scanner server",
			"address", cfg.Scanner.Address,
			"camera", cfg.Camera.Source,
			"formats", cfg.Scanner.Formats,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	scanner.Stop()
	cancel()
	events.Hub().Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		srv.Close()
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracer", "error", err)
	}

	log.Info("OverlayCam scanner server stopped")
}
