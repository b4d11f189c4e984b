// Command scenebridge is the planning scene gateway. It connects to a
// rosbridge server, loads the robot description and exposes the planning
// scene over HTTP, WebSocket and ZeroMQ.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/open-teleop/scenebridge/domain/diagnostic"
	"github.com/open-teleop/scenebridge/domain/scene"
	"github.com/open-teleop/scenebridge/domain/teleop"
	"github.com/open-teleop/scenebridge/pkg/api"
	"github.com/open-teleop/scenebridge/pkg/config"
	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/processing"
	"github.com/open-teleop/scenebridge/pkg/robot"
	"github.com/open-teleop/scenebridge/pkg/rosbridge"
	planning "github.com/open-teleop/scenebridge/pkg/scene"
	"github.com/open-teleop/scenebridge/pkg/zeromq"
)

const snapshotInterval = 10 * time.Second

func main() {
	// Load bootstrap configuration
	configDir := config.ResolveConfigDir("")
	cfg, err := config.LoadBootstrapConfig(configDir)
	if err != nil {
		log.Fatalf("Failed to load bootstrap configuration: %v", err)
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Infof("Loaded bootstrap configuration from %s", configDir)

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
	logger.Infof("Server exited properly")
}

func run(cfg *config.BootstrapConfig, logger customlog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Connect to the middleware
	client := rosbridge.NewClient(rosbridge.Options{
		URL:              cfg.Rosbridge.URL,
		CallTimeout:      time.Duration(cfg.Rosbridge.CallTimeoutMs) * time.Millisecond,
		HandshakeTimeout: time.Duration(cfg.Rosbridge.HandshakeTimeoutMs) * time.Millisecond,
		Metrics:          rosbridge.NewMetrics(reg),
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Rosbridge.HandshakeTimeoutMs)*time.Millisecond)
	err := client.Connect(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to rosbridge at %s: %w", cfg.Rosbridge.URL, err)
	}
	defer client.Close()

	// Load the robot the scene belongs to
	cacheDir := ""
	if cfg.Data.CacheRobotFiles {
		cacheDir = cfg.Data.Directory
	}
	loader := robot.NewFileServerLoader(client, cacheDir, logger)
	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeout)*time.Second)
	r, err := robot.LoadRobotFrom(ctx, loader, cfg.Rosbridge.URDFParam, cfg.Rosbridge.SRDFParam)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load robot: %w", err)
	}
	logger.Infof("Loaded robot '%s' (root link %s, main group %s)", r.Name, r.RootName, r.MainGroupName())

	registry := planning.NewRegistry(logger, reg)
	planningScene := planning.NewPlanningScene(client, r, registry, logger)

	// Scene commands are applied by the pool in arrival order
	pool := processing.NewProcessingPool("scene", cfg.Processing.Workers, cfg.Processing.QueueSize, logger)
	pool.SetProcessor(processing.NewSceneCommandProcessor(logger, planningScene).CreateProcessorFunc())

	zmqService, err := zeromq.NewZeroMQService(cfg.ZeroMQ, logger)
	if err != nil {
		return fmt.Errorf("failed to create ZeroMQ service: %w", err)
	}

	hub := api.NewHub(logger)
	pool.SetResultHandler(processing.NewEventResultHandler(logger, zmqService, hub).CreateHandlerFunc())
	pool.Start()
	defer pool.Stop()

	requestTimeout := time.Duration(cfg.Server.RequestTimeout) * time.Second
	snapshots := zeromq.RegisterSceneHandlers(zmqService, pool, registry, requestTimeout, logger)
	if err := zmqService.Start(); err != nil {
		return fmt.Errorf("failed to start ZeroMQ service: %w", err)
	}
	defer zmqService.Stop()

	diagnosticService := diagnostic.NewDiagnosticService(pool, client, registry, logger)
	if err := diagnosticService.StartEventListener(zeromq.ConnectAddress(cfg.ZeroMQ.PublishBindAddress)); err != nil {
		logger.Warnf("Failed to start scene event listener: %v", err)
	}
	defer diagnosticService.Stop()

	app := api.NewServer(api.Services{
		Scene:       scene.NewSceneService(pool, registry, r, requestTimeout, logger),
		Teleop:      teleop.NewTeleopService(client, cfg.Teleop.VelocityTopic, cfg.Teleop.MaxLinear, cfg.Teleop.MaxAngular, logger),
		Diagnostics: diagnosticService,
		Hub:         hub,
		Queue:       pool,
		Config:      cfg,
		Gatherer:    reg,
	}, logger, cfg.Logging.Level == "debug")

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTPPort)
		logger.Infof("Server starting on %s", addr)
		serverErr <- app.Listen(addr)
	}()

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := snapshots.PublishSnapshot(); err != nil {
				logger.Warnf("Failed to publish scene snapshot: %v", err)
			}
		case err := <-serverErr:
			return fmt.Errorf("failed to start server: %w", err)
		case <-quit:
			logger.Infof("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			return nil
		}
	}
}
