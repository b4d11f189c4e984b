// Package scene manipulates the planning scene of the middleware by
// publishing collision objects.
package scene

import (
	"github.com/open-teleop/scenebridge/pkg/msgs"
	"github.com/open-teleop/scenebridge/pkg/spatial"
)

// CollisionMesh is a mesh placed in the planning scene under an id.
type CollisionMesh struct {
	ID   string
	Mesh spatial.Mesh
	// Frame places the mesh in the scene.
	Frame spatial.Frame
	// RootName is the frame the pose is expressed in. Empty selects the
	// robot's root link.
	RootName string
}

// NewCollisionMesh places mesh at the world origin.
func NewCollisionMesh(mesh spatial.Mesh, id string) CollisionMesh {
	return CollisionMesh{
		ID:    id,
		Mesh:  mesh,
		Frame: spatial.WorldXY(),
	}
}

// Message builds the collision object carrying cm with operation op.
func (cm CollisionMesh) Message(op int8, rootName string) msgs.CollisionObject {
	if cm.RootName != "" {
		rootName = cm.RootName
	}
	return msgs.CollisionObject{
		Header:    msgs.NewHeader(rootName),
		ID:        cm.ID,
		Meshes:    []msgs.Mesh{msgs.MeshFromSpatial(cm.Mesh)},
		MeshPoses: []msgs.Pose{msgs.PoseFromFrame(cm.Frame)},
		Operation: op,
	}
}
