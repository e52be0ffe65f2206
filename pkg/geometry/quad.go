package geometry

import (
	"math"
	"sort"
)

const (
	// QuadScale sizes a reference quad relative to the largest box dimension
	QuadScale = 0.7
	// FaceQuadScale sizes a face-derived quad relative to the box extents
	FaceQuadScale = 0.5
)

// GenerateQuad builds the reference quad for a plane: a square parallel to the
// plane, centered at the plane-local origin, with corners at ±s along both
// in-plane axes where s is QuadScale times the largest box dimension.
// PlaceQuad moves the result onto the plane.
//
// Corners are ordered counter-clockwise when seen from the normal side.
// A plane with a zero normal yields nil.
func GenerateQuad(plane Plane, box BoundingBox) []Vector3 {
	u, v, ok := plane.Basis()
	if !ok {
		return nil
	}

	size := box.MaxExtent() * QuadScale
	su := u.Mul(size)
	sv := v.Mul(size)
	center := Vector3{}

	return []Vector3{
		center.Sub(su).Sub(sv),
		center.Add(su).Sub(sv),
		center.Add(su).Add(sv),
		center.Sub(su).Add(sv),
	}
}

// PlaceQuad moves a quad built at the plane-local origin onto the plane by
// translating it to the plane's foot point
func PlaceQuad(plane Plane, quad []Vector3) []Vector3 {
	if len(quad) == 0 {
		return quad
	}
	foot := plane.Foot()
	placed := make([]Vector3, len(quad))
	for i, p := range quad {
		placed[i] = p.Add(foot)
	}
	return placed
}

// GenerateFaceQuad builds a quad for a plane picked from a model face. The
// quad is centered at position and spans FaceQuadScale of the box extents
// projected onto each in-plane axis, so flat boxes give rectangular quads.
// Corners are sorted counter-clockwise around the normal.
func GenerateFaceQuad(plane Plane, position Vector3, box BoundingBox) []Vector3 {
	u, v, ok := plane.Basis()
	if !ok {
		return nil
	}

	extents := box.Extents()
	halfU := u.Abs().Dot(extents) * FaceQuadScale
	halfV := v.Abs().Dot(extents) * FaceQuadScale
	du := u.Mul(halfU)
	dv := v.Mul(halfV)

	corners := []Vector3{
		position.Add(du).Add(dv),
		position.Sub(du).Sub(dv),
		position.Sub(du).Add(dv),
		position.Add(du).Sub(dv),
	}
	sortCounterClockwise(corners, position, u, v)
	return corners
}

// PlaneBoxCenter returns the box center offset by the plane's foot point
// from the origin: center + n̂·(−d/|n|). A zero normal returns the center.
func PlaneBoxCenter(plane Plane, box BoundingBox) Vector3 {
	center := box.Center()
	length := plane.Normal.Length()
	if length == 0 {
		return center
	}
	normal := plane.Normal.Normalize()
	offset := normal.Mul(-plane.D / length)
	return center.Add(offset)
}

// PlaneBoxIntersection returns the polygon where the plane cuts the box,
// sorted counter-clockwise around the normal. It returns nil when the plane
// misses the box, only touches it, or is degenerate.
func PlaneBoxIntersection(plane Plane, box BoundingBox) []Vector3 {
	u, v, ok := plane.Basis()
	if !ok || box.IsEmpty() {
		return nil
	}

	corners := box.Corners()
	var dist [8]float64
	for i, c := range corners {
		dist[i] = plane.SignedDistance(c)
	}

	eps := Epsilon * math.Max(1, box.Diagonal())
	var points []Vector3
	add := func(p Vector3) {
		for _, q := range points {
			if q.ApproxEqual(p, eps) {
				return
			}
		}
		points = append(points, p)
	}

	for _, edge := range boxEdges {
		a, b := edge[0], edge[1]
		da, db := dist[a], dist[b]
		switch {
		case math.Abs(da) <= eps:
			add(corners[a])
			if math.Abs(db) <= eps {
				add(corners[b])
			}
		case math.Abs(db) <= eps:
			add(corners[b])
		case (da < 0) != (db < 0):
			t := da / (da - db)
			add(corners[a].Add(corners[b].Sub(corners[a]).Mul(t)))
		}
	}

	if len(points) < 3 {
		return nil
	}

	var centroid Vector3
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float64(len(points)))
	sortCounterClockwise(points, centroid, u, v)
	return points
}

// sortCounterClockwise orders points by angle around origin in the (u, v) frame
func sortCounterClockwise(points []Vector3, origin, u, v Vector3) {
	angle := func(p Vector3) float64 {
		d := p.Sub(origin)
		return math.Atan2(d.Dot(v), d.Dot(u))
	}
	sort.SliceStable(points, func(i, j int) bool {
		return angle(points[i]) < angle(points[j])
	})
}
