package scene

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/open-teleop/scenebridge/pkg/msgs"
	"github.com/open-teleop/scenebridge/pkg/spatial"
)

// MeshSpec is the transport form of a collision mesh accepted by the
// gateway surfaces.
type MeshSpec struct {
	Vertices [][3]float64 `json:"vertices"`
	Faces    [][]int      `json:"faces"`
	// Pose places the mesh; nil keeps it at the origin.
	Pose     *msgs.Pose `json:"pose,omitempty"`
	RootName string     `json:"root_name,omitempty"`
}

// ErrEmptyMesh is returned for a spec without vertices or faces.
var ErrEmptyMesh = errors.New("mesh has no vertices or faces")

// BoxSpec builds the spec of an axis aligned box centred at the origin.
func BoxSpec(width, height, depth float64) MeshSpec {
	box := spatial.BoxFromWidthHeightDepth(width, height, depth)
	spec := MeshSpec{Faces: box.Faces()}
	for _, v := range box.Vertices() {
		spec.Vertices = append(spec.Vertices, [3]float64{v.X, v.Y, v.Z})
	}
	return spec
}

// Validate checks that every face has at least three vertices and that
// every index is in range.
func (s MeshSpec) Validate() error {
	if len(s.Vertices) == 0 || len(s.Faces) == 0 {
		return ErrEmptyMesh
	}
	for i, face := range s.Faces {
		if len(face) < 3 {
			return fmt.Errorf("face %d has %d vertices, need at least 3", i, len(face))
		}
		for _, idx := range face {
			if idx < 0 || idx >= len(s.Vertices) {
				return fmt.Errorf("face %d references vertex %d of %d", i, idx, len(s.Vertices))
			}
		}
	}
	return nil
}

// CollisionMesh validates the spec and builds the collision mesh for id.
func (s MeshSpec) CollisionMesh(id string) (CollisionMesh, error) {
	if id == "" {
		return CollisionMesh{}, ErrEmptyID
	}
	if err := s.Validate(); err != nil {
		return CollisionMesh{}, err
	}
	vertices := make([]r3.Vec, len(s.Vertices))
	for i, v := range s.Vertices {
		vertices[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	cm := NewCollisionMesh(spatial.MeshFromVerticesAndFaces(vertices, s.Faces), id)
	if s.Pose != nil {
		cm.Frame = s.Pose.Frame()
	}
	cm.RootName = s.RootName
	return cm, nil
}
