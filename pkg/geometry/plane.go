package geometry

import "math"

// Plane is the set of points p where Normal·p + D = 0.
// Normal is expected to be unit length when D is read as a signed distance.
type Plane struct {
	Normal Vector3
	D      float64
}

// NewPlane creates a plane from its equation coefficients
func NewPlane(normal Vector3, d float64) Plane {
	return Plane{Normal: normal, D: d}
}

// PlaneFromPointNormal creates the plane through point facing along normal.
// The normal is normalized.
func PlaneFromPointNormal(point, normal Vector3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// IsDegenerate reports whether the normal has zero length
func (p Plane) IsDegenerate() bool {
	return p.Normal.Length() == 0
}

// Normalized rescales the equation so that the normal has unit length
func (p Plane) Normalized() Plane {
	length := p.Normal.Length()
	if length == 0 {
		return p
	}
	return Plane{Normal: p.Normal.Mul(1 / length), D: p.D / length}
}

// Inverted returns the same plane facing the other way
func (p Plane) Inverted() Plane {
	return Plane{Normal: p.Normal.Mul(-1), D: -p.D}
}

// SignedDistance returns the distance of point from the plane, positive on
// the side the normal points to
func (p Plane) SignedDistance(point Vector3) float64 {
	length := p.Normal.Length()
	if length == 0 {
		return math.NaN()
	}
	return (p.Normal.Dot(point) + p.D) / length
}

// Contains reports whether point lies on the plane within eps
func (p Plane) Contains(point Vector3, eps float64) bool {
	return math.Abs(p.SignedDistance(point)) <= eps
}

// Basis returns two unit vectors spanning the plane such that (u, v, n)
// is right-handed. The seed axis is the one least aligned with the normal.
// ok is false for a degenerate plane.
func (p Plane) Basis() (u, v Vector3, ok bool) {
	n := p.Normal.Normalize()
	if n.IsZero() {
		return Vector3{}, Vector3{}, false
	}

	a := n.Abs()
	axis := NewVector3(1, 0, 0)
	if a.Y < a.X && a.Y <= a.Z {
		axis = NewVector3(0, 1, 0)
	} else if a.Z < a.X && a.Z < a.Y {
		axis = NewVector3(0, 0, 1)
	}

	// Gram-Schmidt against n
	u = axis.Sub(n.Mul(axis.Dot(n))).Normalize()
	v = n.Cross(u).Normalize()
	return u, v, true
}

// Foot returns the point of the plane closest to the origin. A degenerate
// plane returns the origin.
func (p Plane) Foot() Vector3 {
	lengthSq := p.Normal.Dot(p.Normal)
	if lengthSq == 0 {
		return Vector3{}
	}
	return p.Normal.Mul(-p.D / lengthSq)
}
