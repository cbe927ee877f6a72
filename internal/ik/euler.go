package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	axisX = mgl64.Vec3{1, 0, 0}
	axisY = mgl64.Vec3{0, 1, 0}
	axisZ = mgl64.Vec3{0, 0, 1}
)

// ToEuler returns the x, y, z angles in radians for q = Rz * Ry * Rx.
func ToEuler(q mgl64.Quat) mgl64.Vec3 {
	q = q.Normalize()
	w, x, y, z := q.W, q.V[0], q.V[1], q.V[2]

	roll := math.Atan2(2*(w*x+y*z), 1-2*(x*x+y*y))
	pitch := math.Asin(mgl64.Clamp(2*(w*y-z*x), -1, 1))
	yaw := math.Atan2(2*(w*z+x*y), 1-2*(y*y+z*z))
	return mgl64.Vec3{roll, pitch, yaw}
}

// FromEuler is the inverse of ToEuler.
func FromEuler(e mgl64.Vec3) mgl64.Quat {
	return mgl64.QuatRotate(e[2], axisZ).
		Mul(mgl64.QuatRotate(e[1], axisY)).
		Mul(mgl64.QuatRotate(e[0], axisX)).
		Normalize()
}

// ClampEuler limits q's Euler angles to [minDeg, maxDeg] per axis.
// This approximates swing/twist limits; near pitch ±90° the decomposition is not unique.
func ClampEuler(q mgl64.Quat, minDeg, maxDeg mgl64.Vec3) mgl64.Quat {
	e := ToEuler(q)
	for i := 0; i < 3; i++ {
		e[i] = mgl64.Clamp(e[i], mgl64.DegToRad(minDeg[i]), mgl64.DegToRad(maxDeg[i]))
	}
	return FromEuler(e)
}
