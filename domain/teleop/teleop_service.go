// Package teleop forwards velocity commands to the middleware.
package teleop

import (
	"math"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/msgs"
)

// DefaultVelocityTopic is the topic velocity commands are published on
const DefaultVelocityTopic = "/cmd_vel"

// Command represents a teleoperation command
type Command struct {
	LinearX  float64 `json:"linear_x"`
	LinearY  float64 `json:"linear_y"`
	LinearZ  float64 `json:"linear_z"`
	AngularX float64 `json:"angular_x"`
	AngularY float64 `json:"angular_y"`
	AngularZ float64 `json:"angular_z"`
}

// Twist converts the command to its wire message
func (c Command) Twist() msgs.Twist {
	return msgs.Twist{
		Linear:  msgs.Vector3{X: c.LinearX, Y: c.LinearY, Z: c.LinearZ},
		Angular: msgs.Vector3{X: c.AngularX, Y: c.AngularY, Z: c.AngularZ},
	}
}

// Publisher sends messages to a middleware topic
type Publisher interface {
	Publish(topic string, msg msgs.WireCodec) error
}

// TeleopService handles robot teleoperation commands
type TeleopService struct {
	publisher  Publisher
	topic      string
	maxLinear  float64
	maxAngular float64
	logger     customlog.Logger
}

// NewTeleopService creates a new teleop service instance. Commands whose
// components exceed the limits are rejected; a zero limit disables the check.
func NewTeleopService(publisher Publisher, topic string, maxLinear, maxAngular float64, logger customlog.Logger) *TeleopService {
	if topic == "" {
		topic = DefaultVelocityTopic
	}
	return &TeleopService{
		publisher:  publisher,
		topic:      topic,
		maxLinear:  maxLinear,
		maxAngular: maxAngular,
		logger:     logger,
	}
}

// CommandHandler processes incoming teleop commands
func (s *TeleopService) CommandHandler(c *fiber.Ctx) error {
	var cmd Command
	if err := c.BodyParser(&cmd); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := s.ValidateCommand(cmd); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := s.SendCommand(cmd); err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.JSON(fiber.Map{
		"status":  "command sent",
		"topic":   s.topic,
		"command": cmd,
	})
}

// ValidateCommand checks if a command is within safe limits
func (s *TeleopService) ValidateCommand(cmd Command) error {
	for _, v := range []float64{cmd.LinearX, cmd.LinearY, cmd.LinearZ, cmd.AngularX, cmd.AngularY, cmd.AngularZ} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fiber.NewError(fiber.StatusBadRequest, "velocity components must be finite")
		}
	}
	if s.maxLinear > 0 && exceeds(s.maxLinear, cmd.LinearX, cmd.LinearY, cmd.LinearZ) {
		return fiber.NewError(fiber.StatusBadRequest, "linear velocity exceeds limit")
	}
	if s.maxAngular > 0 && exceeds(s.maxAngular, cmd.AngularX, cmd.AngularY, cmd.AngularZ) {
		return fiber.NewError(fiber.StatusBadRequest, "angular velocity exceeds limit")
	}
	return nil
}

func exceeds(limit float64, values ...float64) bool {
	for _, v := range values {
		if math.Abs(v) > limit {
			return true
		}
	}
	return false
}

// SendCommand publishes a validated command as a Twist
func (s *TeleopService) SendCommand(cmd Command) error {
	s.logger.Debugf("Publishing velocity command on %s: linear_x=%.2f angular_z=%.2f", s.topic, cmd.LinearX, cmd.AngularZ)
	return s.publisher.Publish(s.topic, cmd.Twist())
}
