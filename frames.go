package spacecore

import (
	"fmt"
	"math"
	"time"
)

// The core never works in an absolute galactic frame: every stored position is
// relative to the center of some reference body, because double precision
// coordinates lose sub-meter resolution at interplanetary distances. This file
// supplies the frame lookup between any two bodies of one registry through
// their parent-child transform chain.

// LVLH2Inertial re-expresses a vector from the local orbital frame of the
// provided orbit (radial, tangential, normal) into the body inertial frame.
// Thrust pointing and local-vertical attitude targets are stated in this frame.
func LVLH2Inertial(o *Orbit, v []float64) []float64 {
	_, _, i, Ω, _, _, _, _, u := o.Elements()
	return Rot313Vec(-u, -i, -Ω, v)
}

// AttitudeFacing returns the attitude whose thrust axis points along the
// provided direction in the current body frame.
func AttitudeFacing(dir []float64) Quaternion {
	u := unit(dir)
	x := []float64{1, 0, 0}
	c := dot(x, u)
	if c > 1-1e-12 {
		return IdentityQuaternion()
	}
	if c < -1+1e-12 {
		// Antiparallel: any axis orthogonal to the thrust axis works.
		return NewQuaternionFromAxisAngle([]float64{0, 0, 1}, math.Pi)
	}
	return NewQuaternionFromAxisAngle(cross(x, u), math.Acos(c))
}

// stateInRootFrame accumulates the body's position and velocity relative to
// the registry root at the given epoch by walking the parent chain.
func stateInRootFrame(b *CelestialObject, dt time.Time) (R, V []float64) {
	R = []float64{0, 0, 0}
	V = []float64{0, 0, 0}
	for cursor := b; cursor.parent != nil; cursor = cursor.parent {
		bR, bV := cursor.PositionVelocityAt(dt)
		R = add(R, bR)
		V = add(V, bV)
	}
	return
}

// ChgFrame re-expresses a position and velocity from one body-centered frame
// into another at the given epoch. Both bodies must belong to the same
// registry hierarchy.
func ChgFrame(R, V []float64, from, to *CelestialObject, dt time.Time) ([]float64, []float64) {
	if from.Equals(to) {
		panic(fmt.Errorf("already in the %s frame", to.Name))
	}
	fromR, fromV := stateInRootFrame(from, dt)
	toR, toV := stateInRootFrame(to, dt)
	return add(R, sub(fromR, toR)), add(V, sub(fromV, toV))
}

// Rebase atomically swaps the vehicle onto a new reference body, re-expressing
// its position and velocity in the new frame. Consumers never observe an
// intermediate frame: the vehicle is mutated in one shot at a step boundary.
func (v *Vehicle) Rebase(to *CelestialObject, dt time.Time) {
	if v.Body.Equals(to) {
		return
	}
	newR, newV := ChgFrame(v.R, v.V, v.Body, to, dt)
	v.R = newR
	v.V = newV
	v.Body = to
	v.logger.Log("subsys", "frames", "rebased", to.Name, "r", norm(v.R))
}
