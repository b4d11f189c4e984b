package msgs

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/open-teleop/scenebridge/pkg/spatial"
)

// Point mirrors geometry_msgs/Point.
type Point struct {
	X float64 `json:"x" msg:"x"`
	Y float64 `json:"y" msg:"y"`
	Z float64 `json:"z" msg:"z"`
}

func (Point) MessageType() string { return "geometry_msgs/Point" }

func (p Point) ToMap() map[string]interface{} {
	return map[string]interface{}{"x": p.X, "y": p.Y, "z": p.Z}
}

// PointFromMap decodes a geometry_msgs/Point wire map.
func PointFromMap(m map[string]interface{}) (Point, error) {
	return decodeAs[Point](m)
}

// Quaternion mirrors geometry_msgs/Quaternion. It should be unit length but
// that is not checked.
type Quaternion struct {
	X float64 `json:"x" msg:"x"`
	Y float64 `json:"y" msg:"y"`
	Z float64 `json:"z" msg:"z"`
	W float64 `json:"w" msg:"w"`
}

// IdentityQuaternion returns the zero rotation (0, 0, 0, 1).
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

func (Quaternion) MessageType() string { return "geometry_msgs/Quaternion" }

func (q Quaternion) ToMap() map[string]interface{} {
	return map[string]interface{}{"x": q.X, "y": q.Y, "z": q.Z, "w": q.W}
}

// QuaternionFromMap decodes a geometry_msgs/Quaternion wire map.
func QuaternionFromMap(m map[string]interface{}) (Quaternion, error) {
	return decodeAs[Quaternion](m)
}

// Vector3 mirrors geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x" msg:"x"`
	Y float64 `json:"y" msg:"y"`
	Z float64 `json:"z" msg:"z"`
}

func (Vector3) MessageType() string { return "geometry_msgs/Vector3" }

func (v Vector3) ToMap() map[string]interface{} {
	return map[string]interface{}{"x": v.X, "y": v.Y, "z": v.Z}
}

// Vector3FromMap decodes a geometry_msgs/Vector3 wire map.
func Vector3FromMap(m map[string]interface{}) (Vector3, error) {
	return decodeAs[Vector3](m)
}

// Pose mirrors geometry_msgs/Pose.
type Pose struct {
	Position    Point      `json:"position" msg:"position"`
	Orientation Quaternion `json:"orientation" msg:"orientation"`
}

// NewPose returns a pose at the origin with identity orientation.
func NewPose() Pose {
	return Pose{Orientation: IdentityQuaternion()}
}

func (Pose) MessageType() string { return "geometry_msgs/Pose" }

func (p Pose) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"position":    p.Position.ToMap(),
		"orientation": p.Orientation.ToMap(),
	}
}

// PoseFromMap decodes a geometry_msgs/Pose wire map.
func PoseFromMap(m map[string]interface{}) (Pose, error) {
	return decodeAs[Pose](m)
}

// FrameQuaternion reorders a wire quaternion (x, y, z, w) into the frame
// convention (w, x, y, z).
func FrameQuaternion(q Quaternion) [4]float64 {
	return [4]float64{q.W, q.X, q.Y, q.Z}
}

// WireQuaternion reorders a frame quaternion (w, x, y, z) into the wire
// record (x, y, z, w).
func WireQuaternion(wxyz [4]float64) Quaternion {
	return Quaternion{X: wxyz[1], Y: wxyz[2], Z: wxyz[3], W: wxyz[0]}
}

// PoseFromFrame converts a frame into a pose.
func PoseFromFrame(f spatial.Frame) Pose {
	return Pose{
		Position:    Point{X: f.Point.X, Y: f.Point.Y, Z: f.Point.Z},
		Orientation: WireQuaternion(f.Quaternion()),
	}
}

// Frame converts the pose into a frame.
func (p Pose) Frame() spatial.Frame {
	point := r3.Vec{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z}
	return spatial.FrameFromQuaternion(FrameQuaternion(p.Orientation), point)
}

// PoseStamped mirrors geometry_msgs/PoseStamped.
type PoseStamped struct {
	Header Header `json:"header" msg:"header"`
	Pose   Pose   `json:"pose" msg:"pose"`
}

// NewPoseStamped returns a default header and pose.
func NewPoseStamped() PoseStamped {
	return PoseStamped{Header: NewHeader(""), Pose: NewPose()}
}

func (PoseStamped) MessageType() string { return "geometry_msgs/PoseStamped" }

func (p PoseStamped) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"header": p.Header.ToMap(),
		"pose":   p.Pose.ToMap(),
	}
}

// PoseStampedFromMap decodes a geometry_msgs/PoseStamped wire map.
func PoseStampedFromMap(m map[string]interface{}) (PoseStamped, error) {
	return decodeAs[PoseStamped](m)
}

// Transform mirrors geometry_msgs/Transform.
type Transform struct {
	Translation Vector3    `json:"translation" msg:"translation"`
	Rotation    Quaternion `json:"rotation" msg:"rotation"`
}

// NewTransform returns zero translation and identity rotation.
func NewTransform() Transform {
	return Transform{Rotation: IdentityQuaternion()}
}

func (Transform) MessageType() string { return "geometry_msgs/Transform" }

func (t Transform) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"translation": t.Translation.ToMap(),
		"rotation":    t.Rotation.ToMap(),
	}
}

// TransformFromMap decodes a geometry_msgs/Transform wire map.
func TransformFromMap(m map[string]interface{}) (Transform, error) {
	return decodeAs[Transform](m)
}

// Twist mirrors geometry_msgs/Twist.
type Twist struct {
	Linear  Vector3 `json:"linear" msg:"linear"`
	Angular Vector3 `json:"angular" msg:"angular"`
}

// NewTwist returns zero linear and angular velocity.
func NewTwist() Twist {
	return Twist{}
}

func (Twist) MessageType() string { return "geometry_msgs/Twist" }

func (t Twist) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"linear":  t.Linear.ToMap(),
		"angular": t.Angular.ToMap(),
	}
}

// TwistFromMap decodes a geometry_msgs/Twist wire map.
func TwistFromMap(m map[string]interface{}) (Twist, error) {
	return decodeAs[Twist](m)
}
