package api

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"gopkg.in/yaml.v3"

	"github.com/open-teleop/scenebridge/pkg/config"
	customlog "github.com/open-teleop/scenebridge/pkg/log"
)

// ConfigHandler holds dependencies for configuration API endpoints.
type ConfigHandler struct {
	config *config.BootstrapConfig
	logger customlog.Logger
}

// NewConfigHandler creates a new handler for configuration endpoints.
func NewConfigHandler(cfg *config.BootstrapConfig, logger customlog.Logger) *ConfigHandler {
	if cfg == nil {
		panic("BootstrapConfig cannot be nil in NewConfigHandler")
	}
	if logger == nil {
		panic("Logger cannot be nil in NewConfigHandler")
	}
	return &ConfigHandler{
		config: cfg,
		logger: logger,
	}
}

// RegisterConfigRoutes registers the configuration API endpoints under router.
func RegisterConfigRoutes(router fiber.Router, cfg *config.BootstrapConfig, logger customlog.Logger) {
	h := NewConfigHandler(cfg, logger)

	// Configuration is read at startup; the API only exposes it
	router.Get("/config", h.handleGetConfig)

	logger.Infof("Registered configuration API endpoint under /api/v1/config")
}

// handleGetConfig returns the effective configuration as YAML, or as JSON
// when the client asks for it.
func (h *ConfigHandler) handleGetConfig(c *fiber.Ctx) error {
	h.logger.Debugf("Handling GET request for /api/v1/config")

	if c.Accepts("application/x-yaml", fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return c.JSON(h.config)
	}

	yamlData, err := yaml.Marshal(h.config)
	if err != nil {
		h.logger.Errorf("Failed to encode configuration as YAML: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encode configuration",
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-yaml")
	return c.Send(yamlData)
}
