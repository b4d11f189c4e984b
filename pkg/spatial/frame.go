// Package spatial provides the frame and primitive geometry used to place
// collision objects in a planning scene. Vector and quaternion arithmetic is
// delegated to gonum.
package spatial

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame is a right-handed coordinate system defined by an origin and two
// orthonormal axes. The third axis is derived.
type Frame struct {
	Point r3.Vec
	XAxis r3.Vec
	YAxis r3.Vec
}

// WorldXY returns the world frame.
func WorldXY() Frame {
	return Frame{
		Point: r3.Vec{},
		XAxis: r3.Vec{X: 1},
		YAxis: r3.Vec{Y: 1},
	}
}

// NewFrame builds a frame from an origin and two axes. The axes are
// normalised and yaxis is made orthogonal to xaxis.
func NewFrame(point, xaxis, yaxis r3.Vec) Frame {
	x := r3.Unit(xaxis)
	y := r3.Unit(r3.Sub(yaxis, r3.Scale(r3.Dot(yaxis, x), x)))
	return Frame{Point: point, XAxis: x, YAxis: y}
}

// FrameFromQuaternion builds a frame from a quaternion given in w, x, y, z
// order and an origin. The quaternion is normalised; a zero quaternion is
// treated as the identity rotation.
func FrameFromQuaternion(q [4]float64, point r3.Vec) Frame {
	n := quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]}
	abs := quat.Abs(n)
	if abs == 0 {
		f := WorldXY()
		f.Point = point
		return f
	}
	n = quat.Scale(1/abs, n)

	return Frame{
		Point: point,
		XAxis: rotate(n, r3.Vec{X: 1}),
		YAxis: rotate(n, r3.Vec{Y: 1}),
	}
}

// rotate applies the unit quaternion q to v
func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// ZAxis returns the cross product of the x and y axes.
func (f Frame) ZAxis() r3.Vec {
	return r3.Cross(f.XAxis, f.YAxis)
}

// Quaternion returns the frame orientation in w, x, y, z order. The sign is
// chosen so that w is never negative.
func (f Frame) Quaternion() [4]float64 {
	x, y, z := f.XAxis, f.YAxis, f.ZAxis()

	// Rotation matrix columns are the frame axes.
	m00, m01, m02 := x.X, y.X, z.X
	m10, m11, m12 := x.Y, y.Y, z.Y
	m20, m21, m22 := x.Z, y.Z, z.Z

	var w, qx, qy, qz float64
	trace := m00 + m11 + m22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		w = 0.25 / s
		qx = (m21 - m12) * s
		qy = (m02 - m20) * s
		qz = (m10 - m01) * s
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		w = (m21 - m12) / s
		qx = 0.25 * s
		qy = (m01 + m10) / s
		qz = (m02 + m20) / s
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		w = (m02 - m20) / s
		qx = (m01 + m10) / s
		qy = 0.25 * s
		qz = (m12 + m21) / s
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		w = (m10 - m01) / s
		qx = (m02 + m20) / s
		qy = (m12 + m21) / s
		qz = 0.25 * s
	}

	if w < 0 {
		w, qx, qy, qz = -w, -qx, -qy, -qz
	}
	return [4]float64{w, qx, qy, qz}
}

// ToWorld maps a point expressed in this frame to world coordinates.
func (f Frame) ToWorld(local r3.Vec) r3.Vec {
	p := r3.Add(f.Point, r3.Scale(local.X, f.XAxis))
	p = r3.Add(p, r3.Scale(local.Y, f.YAxis))
	return r3.Add(p, r3.Scale(local.Z, f.ZAxis()))
}

// Translated returns a copy of the frame moved by d in world coordinates.
func (f Frame) Translated(d r3.Vec) Frame {
	f.Point = r3.Add(f.Point, d)
	return f
}
