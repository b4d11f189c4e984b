package msgs

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/open-teleop/scenebridge/pkg/spatial"
)

const tol = 1e-9

func TestDefaults(t *testing.T) {
	assert.Equal(t, Quaternion{X: 0, Y: 0, Z: 0, W: 1}, NewPose().Orientation)
	assert.Equal(t, Point{}, NewPose().Position)
	assert.Equal(t, Quaternion{W: 1}, NewTransform().Rotation)
	assert.Equal(t, Twist{}, NewTwist())

	ps := NewPoseStamped()
	assert.Equal(t, "/world", ps.Header.FrameID)
	assert.Equal(t, uint32(0), ps.Header.Seq)
	assert.Equal(t, NewPose(), ps.Pose)
}

func TestMessageTypes(t *testing.T) {
	cases := map[string]WireCodec{
		"geometry_msgs/Point":         Point{},
		"geometry_msgs/Quaternion":    Quaternion{},
		"geometry_msgs/Vector3":       Vector3{},
		"geometry_msgs/Pose":          Pose{},
		"geometry_msgs/PoseStamped":   PoseStamped{},
		"geometry_msgs/Transform":     Transform{},
		"geometry_msgs/Twist":         Twist{},
		"std_msgs/Header":             Header{},
		"shape_msgs/Mesh":             Mesh{},
		"moveit_msgs/CollisionObject": CollisionObject{},
	}
	for want, msg := range cases {
		assert.Equal(t, want, msg.MessageType())
	}
}

func TestPoseToMap(t *testing.T) {
	p := Pose{
		Position:    Point{X: 1, Y: 2, Z: 3},
		Orientation: Quaternion{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9},
	}
	m := p.ToMap()
	assert.Equal(t, map[string]interface{}{"x": 1.0, "y": 2.0, "z": 3.0}, m["position"])
	assert.Equal(t, map[string]interface{}{"x": 0.1, "y": 0.2, "z": 0.3, "w": 0.9}, m["orientation"])

	back, err := PoseFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestPoseFromMapAcceptsIntegers(t *testing.T) {
	p, err := PoseFromMap(map[string]interface{}{
		"position":    map[string]interface{}{"x": 1, "y": 2, "z": 3},
		"orientation": map[string]interface{}{"x": 0, "y": 0, "z": 0, "w": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, Point{X: 1, Y: 2, Z: 3}, p.Position)
	assert.Equal(t, IdentityQuaternion(), p.Orientation)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	point := func(m map[string]interface{}) error { _, err := PointFromMap(m); return err }
	quaternion := func(m map[string]interface{}) error { _, err := QuaternionFromMap(m); return err }
	header := func(m map[string]interface{}) error { _, err := HeaderFromMap(m); return err }
	mesh := func(m map[string]interface{}) error { _, err := MeshFromMap(m); return err }
	stamped := func(seq, secs, nsecs interface{}) map[string]interface{} {
		return map[string]interface{}{
			"seq":      seq,
			"stamp":    map[string]interface{}{"secs": secs, "nsecs": nsecs},
			"frame_id": "/world",
		}
	}

	cases := []struct {
		name    string
		msgType string
		decode  func(map[string]interface{}) error
		in      map[string]interface{}
	}{
		{"missing field", "geometry_msgs/Point", point, map[string]interface{}{"x": 1.0, "y": 2.0}},
		{"unknown field", "geometry_msgs/Point", point, map[string]interface{}{"x": 1.0, "y": 2.0, "z": 3.0, "q": 4.0}},
		{"wrong kind", "geometry_msgs/Point", point, map[string]interface{}{"x": "one", "y": 2.0, "z": 3.0}},
		{"nil", "geometry_msgs/Point", point, nil},
		{"null float", "geometry_msgs/Quaternion", quaternion, map[string]interface{}{"x": 0.0, "y": 0.0, "z": 0.0, "w": nil}},
		{"null nested record", "std_msgs/Header", header, map[string]interface{}{"seq": 1, "stamp": nil, "frame_id": "/world"}},
		{"null array element", "shape_msgs/Mesh", mesh, map[string]interface{}{
			"triangles": []interface{}{nil},
			"vertices":  []interface{}{},
		}},
		{"fractional integer", "std_msgs/Header", header, stamped(1.7, 0, 0)},
		{"fractional nested integer", "std_msgs/Header", header, stamped(1, 0, 2.9)},
		{"int32 overflow", "std_msgs/Header", header, stamped(1, 3e10, 0)},
		{"negative unsigned", "std_msgs/Header", header, stamped(-1, 0, 0)},
		{"uint32 overflow", "std_msgs/Header", header, stamped(int64(math.MaxUint32)+1, 0, 0)},
		{"infinite integer", "std_msgs/Header", header, stamped(1, math.Inf(1), 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.decode(tc.in)
			require.Error(t, err)
			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tc.msgType, decErr.Type)
		})
	}
}

func TestDecodeAcceptsIntegralNumbers(t *testing.T) {
	h, err := HeaderFromMap(map[string]interface{}{
		"seq":      float64(math.MaxUint32),
		"stamp":    map[string]interface{}{"secs": 1.0e9, "nsecs": int64(-5)},
		"frame_id": "/world",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), h.Seq)
	assert.Equal(t, int32(1e9), h.Stamp.Secs)
	assert.Equal(t, int32(-5), h.Stamp.Nsecs)
}

func TestDecodeJSONRejectsNull(t *testing.T) {
	var q Quaternion
	err := DecodeJSON([]byte(`{"x":0,"y":0,"z":0,"w":null}`), &q)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "geometry_msgs/Quaternion", decErr.Type)

	var h Header
	err = DecodeJSON([]byte(`{"seq":1,"stamp":{"secs":3e10,"nsecs":0},"frame_id":"/world"}`), &h)
	require.ErrorAs(t, err, &decErr)
}

func TestDecodeNestedMissingField(t *testing.T) {
	_, err := PoseStampedFromMap(map[string]interface{}{
		"header": map[string]interface{}{
			"seq":      0,
			"stamp":    map[string]interface{}{"secs": 0},
			"frame_id": "/world",
		},
		"pose": NewPose().ToMap(),
	})
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "geometry_msgs/PoseStamped", decErr.Type)
}

func TestDecodeJSON(t *testing.T) {
	var tw Twist
	err := DecodeJSON([]byte(`{"linear":{"x":0.5,"y":0,"z":0},"angular":{"x":0,"y":0,"z":1.5}}`), &tw)
	require.NoError(t, err)
	assert.Equal(t, 0.5, tw.Linear.X)
	assert.Equal(t, 1.5, tw.Angular.Z)

	err = DecodeJSON([]byte(`{"linear":`), &tw)
	assert.Error(t, err)
}

func TestQuaternionReorder(t *testing.T) {
	q := Quaternion{X: 1, Y: 2, Z: 3, W: 4}
	assert.Equal(t, [4]float64{4, 1, 2, 3}, FrameQuaternion(q))
	assert.Equal(t, q, WireQuaternion(FrameQuaternion(q)))
}

func TestPoseFrameRoundTrip(t *testing.T) {
	s := math.Sqrt(0.5)
	poses := []Pose{
		NewPose(),
		{Position: Point{X: 1, Y: -2, Z: 0.5}, Orientation: Quaternion{Z: s, W: s}},
		{Position: Point{X: 0.3, Y: 0.2, Z: 0.1}, Orientation: Quaternion{X: 0.5, Y: 0.5, Z: 0.5, W: 0.5}},
	}
	for _, p := range poses {
		back := PoseFromFrame(p.Frame())
		assert.InDelta(t, p.Position.X, back.Position.X, tol)
		assert.InDelta(t, p.Position.Y, back.Position.Y, tol)
		assert.InDelta(t, p.Position.Z, back.Position.Z, tol)
		assert.InDelta(t, p.Orientation.X, back.Orientation.X, tol)
		assert.InDelta(t, p.Orientation.Y, back.Orientation.Y, tol)
		assert.InDelta(t, p.Orientation.Z, back.Orientation.Z, tol)
		assert.InDelta(t, p.Orientation.W, back.Orientation.W, tol)
	}
}

func TestPoseFrameRoundTripCanonicalSign(t *testing.T) {
	// q and -q are the same rotation; frames report the w >= 0 form.
	p := Pose{Position: Point{X: 1}, Orientation: Quaternion{Z: 0.6, W: -0.8}}
	back := PoseFromFrame(p.Frame())
	assert.InDelta(t, 0, back.Orientation.X, tol)
	assert.InDelta(t, 0, back.Orientation.Y, tol)
	assert.InDelta(t, -0.6, back.Orientation.Z, tol)
	assert.InDelta(t, 0.8, back.Orientation.W, tol)
	assert.InDelta(t, 1, back.Position.X, tol)
}

func TestPoseFrameNormalisesOrientation(t *testing.T) {
	cases := []struct {
		in   Quaternion
		want Quaternion
	}{
		{Quaternion{W: 2}, Quaternion{W: 1}},
		{Quaternion{Z: 1.2, W: 1.6}, Quaternion{Z: 0.6, W: 0.8}},
		{Quaternion{}, Quaternion{W: 1}},
	}
	for _, tc := range cases {
		back := PoseFromFrame(Pose{Orientation: tc.in}.Frame())
		assert.InDelta(t, tc.want.X, back.Orientation.X, tol)
		assert.InDelta(t, tc.want.Y, back.Orientation.Y, tol)
		assert.InDelta(t, tc.want.Z, back.Orientation.Z, tol)
		assert.InDelta(t, tc.want.W, back.Orientation.W, tol)
	}
}

func TestPoseFrameAxes(t *testing.T) {
	s := math.Sqrt(0.5)
	f := Pose{Position: Point{X: 1, Y: 2, Z: 3}, Orientation: Quaternion{Z: s, W: s}}.Frame()
	assert.InDelta(t, 1, f.Point.X, tol)
	assert.InDelta(t, 3, f.Point.Z, tol)
	assert.InDelta(t, 0, f.XAxis.X, tol)
	assert.InDelta(t, 1, f.XAxis.Y, tol)
	assert.InDelta(t, -1, f.YAxis.X, tol)
}

func TestPoseFromWorldXY(t *testing.T) {
	p := PoseFromFrame(spatial.WorldXY().Translated(r3.Vec{Z: 2}))
	assert.Equal(t, 2.0, p.Position.Z)
	assert.InDelta(t, 1, p.Orientation.W, tol)
}
