package robot

import (
	"encoding/xml"
	"fmt"
)

// Semantics is the SRDF description layered on a model.
type Semantics struct {
	XMLName            xml.Name            `xml:"robot"`
	RobotName          string              `xml:"name,attr"`
	Groups             []Group             `xml:"group"`
	EndEffectors       []EndEffector       `xml:"end_effector"`
	PassiveJoints      []NamedElement      `xml:"passive_joint"`
	DisabledCollisions []DisabledCollision `xml:"disable_collisions"`
}

// Group is a planning group.
type Group struct {
	Name   string         `xml:"name,attr"`
	Links  []NamedElement `xml:"link"`
	Joints []NamedElement `xml:"joint"`
	Chains []Chain        `xml:"chain"`
	Groups []NamedElement `xml:"group"`
}

// NamedElement is any SRDF element identified by its name attribute.
type NamedElement struct {
	Name string `xml:"name,attr"`
}

// Chain is a kinematic chain from base to tip.
type Chain struct {
	BaseLink string `xml:"base_link,attr"`
	TipLink  string `xml:"tip_link,attr"`
}

// EndEffector attaches a group to a parent link.
type EndEffector struct {
	Name        string `xml:"name,attr"`
	Group       string `xml:"group,attr"`
	ParentLink  string `xml:"parent_link,attr"`
	ParentGroup string `xml:"parent_group,attr"`
}

// DisabledCollision is a link pair excluded from collision checking.
type DisabledCollision struct {
	Link1  string `xml:"link1,attr"`
	Link2  string `xml:"link2,attr"`
	Reason string `xml:"reason,attr"`
}

// ParseSRDF decodes an SRDF document.
func ParseSRDF(doc string) (*Semantics, error) {
	var s Semantics
	if err := xml.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("failed to parse SRDF: %w", err)
	}
	return &s, nil
}

// GroupNames returns the planning group names in declaration order.
func (s *Semantics) GroupNames() []string {
	names := make([]string, 0, len(s.Groups))
	for _, g := range s.Groups {
		names = append(names, g.Name)
	}
	return names
}

// MainGroupName returns the first declared planning group, or "" when the
// description has none.
func (s *Semantics) MainGroupName() string {
	if len(s.Groups) == 0 {
		return ""
	}
	return s.Groups[0].Name
}

// IsCollisionDisabled reports whether the pair is excluded in either order.
func (s *Semantics) IsCollisionDisabled(a, b string) bool {
	for _, d := range s.DisabledCollisions {
		if (d.Link1 == a && d.Link2 == b) || (d.Link1 == b && d.Link2 == a) {
			return true
		}
	}
	return false
}
