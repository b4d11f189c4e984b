package scene

import (
	"errors"
	"fmt"
	"time"

	"github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/msgs"
	"github.com/open-teleop/scenebridge/pkg/robot"
)

// CollisionObjectTopic is where collision objects are published.
const CollisionObjectTopic = "/collision_object"

// ErrEmptyID is returned for a collision mesh without an id.
var ErrEmptyID = errors.New("collision mesh id is empty")

// Publisher sends a message on a middleware topic.
type Publisher interface {
	Publish(topic string, msg msgs.WireCodec) error
}

// PlanningScene adds and removes collision meshes in the scene of a robot.
type PlanningScene struct {
	publisher Publisher
	robot     *robot.Robot
	registry  *Registry
	logger    log.Logger
	now       func() time.Time
}

// NewPlanningScene creates a scene for r. A nil registry gets an
// unregistered one.
func NewPlanningScene(publisher Publisher, r *robot.Robot, registry *Registry, logger log.Logger) *PlanningScene {
	if registry == nil {
		registry = NewRegistry(logger, nil)
	}
	return &PlanningScene{
		publisher: publisher,
		robot:     r,
		registry:  registry,
		logger:    logger.WithField("component", "planning_scene"),
		now:       time.Now,
	}
}

// Robot returns the robot the scene belongs to.
func (s *PlanningScene) Robot() *robot.Robot {
	return s.robot
}

// Registry returns the bookkeeping of published objects.
func (s *PlanningScene) Registry() *Registry {
	return s.registry
}

// AddCollisionMesh adds cm to the scene, replacing any object with the
// same id.
func (s *PlanningScene) AddCollisionMesh(cm CollisionMesh) error {
	return s.publishMesh(cm, msgs.CollisionObjectAdd)
}

// AppendCollisionMesh adds cm to the object with the same id, creating the
// object if needed.
func (s *PlanningScene) AppendCollisionMesh(cm CollisionMesh) error {
	return s.publishMesh(cm, msgs.CollisionObjectAppend)
}

// RemoveCollisionMesh removes every mesh stored under id.
func (s *PlanningScene) RemoveCollisionMesh(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	msg := msgs.CollisionObject{
		Header:    msgs.NewHeader(s.rootName()),
		ID:        id,
		Meshes:    []msgs.Mesh{},
		MeshPoses: []msgs.Pose{},
		Operation: msgs.CollisionObjectRemove,
	}
	if err := s.publisher.Publish(CollisionObjectTopic, msg); err != nil {
		return fmt.Errorf("failed to remove collision mesh %s: %w", id, err)
	}
	s.registry.Record(id, msgs.CollisionObjectRemove, 0, s.now().UnixNano())
	s.logger.Infof("Removed collision mesh '%s'", id)
	return nil
}

// CollisionMeshes lists the objects published through this scene.
func (s *PlanningScene) CollisionMeshes() []ObjectInfo {
	return s.registry.Objects()
}

func (s *PlanningScene) publishMesh(cm CollisionMesh, op int8) error {
	if cm.ID == "" {
		return ErrEmptyID
	}
	msg := cm.Message(op, s.rootName())
	if err := s.publisher.Publish(CollisionObjectTopic, msg); err != nil {
		return fmt.Errorf("failed to %s collision mesh %s: %w", OperationName(op), cm.ID, err)
	}
	s.registry.Record(cm.ID, op, len(msg.Meshes), s.now().UnixNano())
	s.logger.Infof("Published %s of collision mesh '%s' in frame %s", OperationName(op), cm.ID, msg.Header.FrameID)
	return nil
}

func (s *PlanningScene) rootName() string {
	if s.robot == nil || s.robot.RootName == "" {
		return msgs.DefaultFrameID
	}
	return s.robot.RootName
}
