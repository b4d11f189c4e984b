// Package robot holds the robot description used to address the planning
// scene, loaded from the middleware's parameter server and file server.
package robot

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrNoRoot is returned for a model whose joints leave no unique root link.
var ErrNoRoot = errors.New("robot model has no unique root link")

// Model is the kinematic part of a URDF description.
type Model struct {
	XMLName xml.Name `xml:"robot"`
	Name    string   `xml:"name,attr"`
	Links   []Link   `xml:"link"`
	Joints  []Joint  `xml:"joint"`
}

// Link is a rigid body of the model.
type Link struct {
	Name       string     `xml:"name,attr"`
	Visuals    []Geometry `xml:"visual"`
	Collisions []Geometry `xml:"collision"`
}

// Geometry is a visual or collision element. Only the mesh reference and
// origin are kept.
type Geometry struct {
	Origin *Origin `xml:"origin"`
	Mesh   *struct {
		Filename string `xml:"filename,attr"`
		Scale    string `xml:"scale,attr"`
	} `xml:"geometry>mesh"`
}

// Origin is a URDF origin element; xyz and rpy are kept as written.
type Origin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

// Joint connects a parent link to a child link.
type Joint struct {
	Name   string  `xml:"name,attr"`
	Type   string  `xml:"type,attr"`
	Parent LinkRef `xml:"parent"`
	Child  LinkRef `xml:"child"`
	Origin *Origin `xml:"origin"`
	Axis   *struct {
		XYZ string `xml:"xyz,attr"`
	} `xml:"axis"`
	Limit *struct {
		Lower    float64 `xml:"lower,attr"`
		Upper    float64 `xml:"upper,attr"`
		Effort   float64 `xml:"effort,attr"`
		Velocity float64 `xml:"velocity,attr"`
	} `xml:"limit"`
}

// LinkRef names the link on one side of a joint.
type LinkRef struct {
	Link string `xml:"link,attr"`
}

// ParseURDF decodes a URDF document.
func ParseURDF(doc string) (*Model, error) {
	var m Model
	if err := xml.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("failed to parse URDF: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("failed to parse URDF: robot element has no name")
	}
	return &m, nil
}

// RobotName reads only the name attribute of the root robot element.
func RobotName(doc string) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", fmt.Errorf("failed to read robot name: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "robot" {
			return "", fmt.Errorf("unexpected root element %q", start.Name.Local)
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "name" && attr.Value != "" {
				return attr.Value, nil
			}
		}
		return "", fmt.Errorf("robot element has no name")
	}
}

// Root returns the name of the link that is no joint's child.
func (m *Model) Root() (string, error) {
	children := make(map[string]bool, len(m.Joints))
	for _, j := range m.Joints {
		children[j.Child.Link] = true
	}
	root := ""
	for _, l := range m.Links {
		if children[l.Name] {
			continue
		}
		if root != "" {
			return "", fmt.Errorf("%w: %s and %s", ErrNoRoot, root, l.Name)
		}
		root = l.Name
	}
	if root == "" {
		return "", ErrNoRoot
	}
	return root, nil
}

// MeshURLs lists every distinct mesh file referenced by the model in
// document order.
func (m *Model) MeshURLs() []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(geoms []Geometry) {
		for _, g := range geoms {
			if g.Mesh == nil || g.Mesh.Filename == "" || seen[g.Mesh.Filename] {
				continue
			}
			seen[g.Mesh.Filename] = true
			urls = append(urls, g.Mesh.Filename)
		}
	}
	for _, l := range m.Links {
		add(l.Visuals)
		add(l.Collisions)
	}
	return urls
}

// ConfigurableJoints returns the joints that are not fixed.
func (m *Model) ConfigurableJoints() []Joint {
	var out []Joint
	for _, j := range m.Joints {
		if j.Type != "fixed" {
			out = append(out, j)
		}
	}
	return out
}
