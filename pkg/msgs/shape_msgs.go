package msgs

import (
	"github.com/open-teleop/scenebridge/pkg/spatial"
)

// MeshTriangle mirrors shape_msgs/MeshTriangle.
type MeshTriangle struct {
	VertexIndices [3]uint32 `json:"vertex_indices" msg:"vertex_indices"`
}

func (MeshTriangle) MessageType() string { return "shape_msgs/MeshTriangle" }

func (t MeshTriangle) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"vertex_indices": []interface{}{t.VertexIndices[0], t.VertexIndices[1], t.VertexIndices[2]},
	}
}

// Mesh mirrors shape_msgs/Mesh.
type Mesh struct {
	Triangles []MeshTriangle `json:"triangles" msg:"triangles"`
	Vertices  []Point        `json:"vertices" msg:"vertices"`
}

// MeshFromSpatial converts a polygon mesh, splitting faces into triangles.
func MeshFromSpatial(m spatial.Mesh) Mesh {
	out := Mesh{
		Triangles: []MeshTriangle{},
		Vertices:  make([]Point, len(m.Vertices)),
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = Point{X: v.X, Y: v.Y, Z: v.Z}
	}
	for _, tri := range m.Triangles() {
		out.Triangles = append(out.Triangles, MeshTriangle{
			VertexIndices: [3]uint32{uint32(tri[0]), uint32(tri[1]), uint32(tri[2])},
		})
	}
	return out
}

func (Mesh) MessageType() string { return "shape_msgs/Mesh" }

func (m Mesh) ToMap() map[string]interface{} {
	triangles := make([]interface{}, len(m.Triangles))
	for i, t := range m.Triangles {
		triangles[i] = t.ToMap()
	}
	vertices := make([]interface{}, len(m.Vertices))
	for i, v := range m.Vertices {
		vertices[i] = v.ToMap()
	}
	return map[string]interface{}{
		"triangles": triangles,
		"vertices":  vertices,
	}
}

// MeshFromMap decodes a shape_msgs/Mesh wire map.
func MeshFromMap(m map[string]interface{}) (Mesh, error) {
	return decodeAs[Mesh](m)
}
