package spatial

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is an axis-aligned box centred on its frame origin.
type Box struct {
	Frame Frame
	XSize float64
	YSize float64
	ZSize float64
}

// BoxFromWidthHeightDepth creates a box at the world origin. Width runs
// along x, depth along y and height along z.
func BoxFromWidthHeightDepth(width, height, depth float64) Box {
	return Box{
		Frame: WorldXY(),
		XSize: width,
		YSize: depth,
		ZSize: height,
	}
}

// Vertices returns the eight corners, bottom ring first.
func (b Box) Vertices() []r3.Vec {
	dx, dy, dz := b.XSize/2, b.YSize/2, b.ZSize/2
	local := []r3.Vec{
		{X: -dx, Y: -dy, Z: -dz},
		{X: -dx, Y: dy, Z: -dz},
		{X: dx, Y: dy, Z: -dz},
		{X: dx, Y: -dy, Z: -dz},
		{X: -dx, Y: -dy, Z: dz},
		{X: -dx, Y: dy, Z: dz},
		{X: dx, Y: dy, Z: dz},
		{X: dx, Y: -dy, Z: dz},
	}
	vertices := make([]r3.Vec, len(local))
	for i, v := range local {
		vertices[i] = b.Frame.ToWorld(v)
	}
	return vertices
}

// Faces returns the six quads indexing into Vertices, wound so normals point
// outwards.
func (b Box) Faces() [][]int {
	return [][]int{
		{0, 1, 2, 3},
		{4, 7, 6, 5},
		{0, 3, 7, 4},
		{3, 2, 6, 7},
		{2, 1, 5, 6},
		{1, 0, 4, 5},
	}
}

// Mesh is a polygonal mesh given by vertex positions and faces of vertex
// indices.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][]int
}

// MeshFromVerticesAndFaces copies the inputs into a new mesh.
func MeshFromVerticesAndFaces(vertices []r3.Vec, faces [][]int) Mesh {
	m := Mesh{
		Vertices: append([]r3.Vec(nil), vertices...),
		Faces:    make([][]int, len(faces)),
	}
	for i, f := range faces {
		m.Faces[i] = append([]int(nil), f...)
	}
	return m
}

// Triangles splits every face into a fan of triangles. Faces with fewer than
// three vertices are skipped.
func (m Mesh) Triangles() [][3]int {
	var triangles [][3]int
	for _, face := range m.Faces {
		for i := 1; i+1 < len(face); i++ {
			triangles = append(triangles, [3]int{face[0], face[i], face[i+1]})
		}
	}
	return triangles
}
