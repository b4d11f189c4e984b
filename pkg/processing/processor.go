package processing

import (
	"fmt"

	customlog "github.com/open-teleop/scenebridge/pkg/log"
	"github.com/open-teleop/scenebridge/pkg/scene"
)

// SceneMutator is the part of the planning scene commands are applied to
type SceneMutator interface {
	AddCollisionMesh(cm scene.CollisionMesh) error
	AppendCollisionMesh(cm scene.CollisionMesh) error
	RemoveCollisionMesh(id string) error
}

// SceneCommandProcessor applies commands to a planning scene
type SceneCommandProcessor struct {
	logger customlog.Logger
	scene  SceneMutator
}

// NewSceneCommandProcessor creates a new scene command processor
func NewSceneCommandProcessor(logger customlog.Logger, s SceneMutator) *SceneCommandProcessor {
	return &SceneCommandProcessor{
		logger: logger,
		scene:  s,
	}
}

// ProcessCommand applies cmd and describes the outcome
func (p *SceneCommandProcessor) ProcessCommand(cmd *Command) (map[string]interface{}, error) {
	if cmd.ID == "" {
		return nil, scene.ErrEmptyID
	}

	meshCount := 0
	switch cmd.Kind {
	case CommandAdd, CommandAppend:
		if cmd.Mesh == nil {
			return nil, fmt.Errorf("%s command for '%s' carries no mesh", cmd.Kind, cmd.ID)
		}
		mesh := *cmd.Mesh
		mesh.ID = cmd.ID
		var err error
		if cmd.Kind == CommandAdd {
			err = p.scene.AddCollisionMesh(mesh)
		} else {
			err = p.scene.AppendCollisionMesh(mesh)
		}
		if err != nil {
			return nil, err
		}
		meshCount = 1
	case CommandRemove:
		if err := p.scene.RemoveCollisionMesh(cmd.ID); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown command kind '%s'", cmd.Kind)
	}

	p.logger.Debugf("Applied %s command for '%s' from %s", cmd.Kind, cmd.ID, cmd.Source)

	return map[string]interface{}{
		"id":         cmd.ID,
		"operation":  cmd.Kind,
		"mesh_count": meshCount,
		"source":     cmd.Source,
		"timestamp":  cmd.Timestamp,
	}, nil
}

// CreateProcessorFunc creates a CommandProcessor that can be used with the ProcessingPool
func (p *SceneCommandProcessor) CreateProcessorFunc() CommandProcessor {
	return func(cmd *Command) (map[string]interface{}, error) {
		return p.ProcessCommand(cmd)
	}
}
