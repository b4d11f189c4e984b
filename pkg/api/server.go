// Package api assembles the HTTP and WebSocket surface of the gateway.
package api

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/open-teleop/scenebridge/domain/diagnostic"
	"github.com/open-teleop/scenebridge/domain/scene"
	"github.com/open-teleop/scenebridge/domain/teleop"
	"github.com/open-teleop/scenebridge/pkg/config"
	customlog "github.com/open-teleop/scenebridge/pkg/log"
)

// Services are the domain services mounted by the server. Nil services are
// not mounted.
type Services struct {
	Scene       *scene.SceneService
	Teleop      *teleop.TeleopService
	Diagnostics *diagnostic.DiagnosticService
	Hub         *Hub
	Queue       CommandQueue
	Config      *config.BootstrapConfig
	Gatherer    prometheus.Gatherer
}

// NewServer creates the fiber app with every route registered
func NewServer(svc Services, log customlog.Logger, requestLogging bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "SceneBridge Gateway",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	if requestLogging {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	started := time.Now()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "scenebridge gateway",
		})
	})

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"uptime": time.Since(started).Round(time.Second).String(),
		})
	})

	if svc.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	if svc.Scene != nil {
		svc.Scene.RegisterRoutes(v1)
	}
	if svc.Teleop != nil {
		v1.Post("/teleop/velocity", svc.Teleop.CommandHandler)
	}
	if svc.Diagnostics != nil {
		v1.Get("/diagnostics", svc.Diagnostics.GetMetricsHandler)
	}
	if svc.Config != nil {
		RegisterConfigRoutes(v1, svc.Config, log)
	}

	if svc.Hub != nil && svc.Queue != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws/scene", websocket.New(func(conn *websocket.Conn) {
			SceneWebSocketHandler(conn, log, svc.Hub, svc.Queue)
		}))
	}

	return app
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	// Default 500 status code
	code := fiber.StatusInternalServerError

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Return JSON response
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
