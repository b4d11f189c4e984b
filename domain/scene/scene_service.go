// Package scene serves the planning scene over HTTP.
package scene

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/processing"
	"github.com/open-teleop/scenebridge/pkg/robot"
	"github.com/open-teleop/scenebridge/pkg/scene"
)

// Mesh operations accepted by the collision mesh endpoint
const (
	ModeAdd    = "add"
	ModeAppend = "append"
)

// CommandSubmitter applies scene commands in order
type CommandSubmitter interface {
	SubmitAndWait(ctx context.Context, cmd *processing.Command) (*processing.ProcessResult, error)
}

// ObjectSource lists the collision objects in the scene
type ObjectSource interface {
	Objects() []scene.ObjectInfo
	Get(id string) (scene.ObjectInfo, bool)
}

// CollisionMeshRequest is the body of a collision mesh request
type CollisionMeshRequest struct {
	ID   string         `json:"id"`
	Mesh scene.MeshSpec `json:"mesh"`
}

// RobotInfo describes the loaded robot
type RobotInfo struct {
	Name          string   `json:"name"`
	RootLink      string   `json:"root_link"`
	MainGroup     string   `json:"main_group"`
	Groups        []string `json:"groups"`
	Joints        []string `json:"joints"`
	MeshFilenames []string `json:"mesh_filenames"`
}

// SceneService handles planning scene requests
type SceneService struct {
	submitter CommandSubmitter
	objects   ObjectSource
	robot     *robot.Robot
	timeout   time.Duration
	logger    customlog.Logger
}

// NewSceneService creates a new scene service instance
func NewSceneService(submitter CommandSubmitter, objects ObjectSource, r *robot.Robot, timeout time.Duration, logger customlog.Logger) *SceneService {
	return &SceneService{
		submitter: submitter,
		objects:   objects,
		robot:     r,
		timeout:   timeout,
		logger:    logger,
	}
}

// RegisterRoutes mounts the scene endpoints on router
func (s *SceneService) RegisterRoutes(router fiber.Router) {
	router.Get("/robot", s.GetRobotHandler)
	router.Get("/scene", s.GetSceneHandler)
	router.Get("/scene/collision_meshes/:id", s.GetCollisionMeshHandler)
	router.Post("/scene/collision_meshes", s.CollisionMeshHandler)
	router.Delete("/scene/collision_meshes/:id", s.RemoveCollisionMeshHandler)
}

// Info describes the robot the scene belongs to
func (s *SceneService) Info() RobotInfo {
	r := s.robot
	info := RobotInfo{
		Name:      r.Name,
		RootLink:  r.RootName,
		MainGroup: r.MainGroupName(),
		Groups:    []string{},
		Joints:    []string{},
	}
	if r.Semantics != nil {
		info.Groups = r.Semantics.GroupNames()
	}
	if r.Model != nil {
		for _, j := range r.Model.ConfigurableJoints() {
			info.Joints = append(info.Joints, j.Name)
		}
		info.MeshFilenames = r.Model.MeshURLs()
	}
	return info
}

// GetRobotHandler handles API requests for the robot description
func (s *SceneService) GetRobotHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"robot":  s.Info(),
	})
}

// GetSceneHandler handles API requests for the collision objects
func (s *SceneService) GetSceneHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"objects": s.objects.Objects(),
	})
}

// GetCollisionMeshHandler handles API requests for a single collision object
func (s *SceneService) GetCollisionMeshHandler(c *fiber.Ctx) error {
	info, ok := s.objects.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "collision object not found")
	}
	return c.JSON(info)
}

// CollisionMeshHandler adds or appends a collision mesh. The mode query
// parameter selects the operation and defaults to add.
func (s *SceneService) CollisionMeshHandler(c *fiber.Ctx) error {
	mode := c.Query("mode", ModeAdd)
	var kind string
	switch mode {
	case ModeAdd:
		kind = processing.CommandAdd
	case ModeAppend:
		kind = processing.CommandAppend
	default:
		return fiber.NewError(fiber.StatusBadRequest, "mode must be add or append")
	}

	var req CollisionMeshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	cm, err := req.Mesh.CollisionMesh(req.ID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return s.submit(c, &processing.Command{
		Kind: kind,
		ID:   req.ID,
		Mesh: &cm,
	})
}

// RemoveCollisionMeshHandler removes a collision object from the scene
func (s *SceneService) RemoveCollisionMeshHandler(c *fiber.Ctx) error {
	return s.submit(c, &processing.Command{
		Kind: processing.CommandRemove,
		ID:   utils.CopyString(c.Params("id")),
	})
}

// submit waits for the command to be applied. On a 504 the command is
// dropped unless a worker had already started it.
func (s *SceneService) submit(c *fiber.Ctx, cmd *processing.Command) error {
	cmd.Source = "http"
	cmd.Timestamp = time.Now().UnixNano()

	ctx, cancel := context.WithTimeout(c.Context(), s.timeout)
	defer cancel()

	result, err := s.submitter.SubmitAndWait(ctx, cmd)
	if err != nil {
		s.logger.Warnf("%s command for '%s' failed: %v", cmd.Kind, cmd.ID, err)
		switch {
		case errors.Is(err, scene.ErrEmptyID):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, processing.ErrQueueFull), errors.Is(err, processing.ErrPoolStopped):
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
		default:
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
	}

	return c.JSON(fiber.Map{
		"status": "success",
		"result": result.Data,
	})
}
