package analysis

import (
	"fmt"
	"math"

	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

// planeEpsilon is the distance below which a vertex counts as on a plane
const planeEpsilon = 1e-9

// Summary contains the measurements of an STL model
type Summary struct {
	BoundingBox   geometry.BoundingBox
	Dimensions    geometry.Vector3
	Volume        float64
	SurfaceArea   float64
	TriangleCount int
	EdgeCount     int
	MinEdgeLength float64
	MaxEdgeLength float64
	AvgEdgeLength float64
}

// Summarize measures a model
func Summarize(model *stl.Model) *Summary {
	result := &Summary{
		BoundingBox:   model.BoundingBox(),
		SurfaceArea:   model.SurfaceArea(),
		TriangleCount: model.TriangleCount(),
	}

	result.Dimensions = result.BoundingBox.Size()
	result.Volume = result.BoundingBox.Volume()

	minLength := math.MaxFloat64
	maxLength := 0.0
	totalLength := 0.0

	for _, triangle := range model.Triangles {
		for _, edge := range [3][2]geometry.Vector3{
			{triangle.V1, triangle.V2},
			{triangle.V2, triangle.V3},
			{triangle.V3, triangle.V1},
		} {
			length := edge[0].Distance(edge[1])
			totalLength += length
			minLength = math.Min(minLength, length)
			maxLength = math.Max(maxLength, length)
			result.EdgeCount++
		}
	}

	if result.EdgeCount > 0 {
		result.MinEdgeLength = minLength
		result.MaxEdgeLength = maxLength
		result.AvgEdgeLength = totalLength / float64(result.EdgeCount)
	}

	return result
}

// Segment is the part of one triangle lying on a cutting plane
type Segment struct {
	Start      geometry.Vector3
	End        geometry.Vector3
	TriangleID int
}

// CrossSection describes where a plane cuts a model
type CrossSection struct {
	Plane    geometry.Plane
	Segments []Segment
	// Perimeter is the total length of all segments
	Perimeter float64
	// Bounds encloses the segments; empty when the plane misses the model
	Bounds geometry.BoundingBox

	// Above and Below count triangles entirely on one side of the plane
	Above int
	Below int
	// Coplanar counts triangles lying in the plane
	Coplanar int
}

// Cut intersects every triangle of the model with the plane. Triangles
// that only touch the plane in a vertex contribute no segment.
func Cut(model *stl.Model, plane geometry.Plane) (*CrossSection, error) {
	if plane.IsDegenerate() {
		return nil, fmt.Errorf("cannot cut with a degenerate plane")
	}

	result := &CrossSection{Plane: plane, Bounds: geometry.NewBoundingBox()}
	for i, triangle := range model.Triangles {
		vertices := [3]geometry.Vector3{triangle.V1, triangle.V2, triangle.V3}
		var distances [3]float64
		above, below := 0, 0
		for j, v := range vertices {
			distances[j] = plane.SignedDistance(v)
			switch {
			case distances[j] > planeEpsilon:
				above++
			case distances[j] < -planeEpsilon:
				below++
			}
		}

		switch {
		case above == 3:
			result.Above++
			continue
		case below == 3:
			result.Below++
			continue
		case above == 0 && below == 0:
			result.Coplanar++
			continue
		}

		points := intersect(vertices, distances)
		if len(points) != 2 {
			if above == 0 {
				result.Below++
			} else if below == 0 {
				result.Above++
			}
			continue
		}

		segment := Segment{Start: points[0], End: points[1], TriangleID: i}
		result.Segments = append(result.Segments, segment)
		result.Perimeter += segment.Start.Distance(segment.End)
		result.Bounds.Extend(segment.Start)
		result.Bounds.Extend(segment.End)
	}

	return result, nil
}

// intersect collects the vertices on the plane and the crossings of edges
// whose ends lie on opposite sides
func intersect(vertices [3]geometry.Vector3, distances [3]float64) []geometry.Vector3 {
	var points []geometry.Vector3
	for j := 0; j < 3; j++ {
		k := (j + 1) % 3
		a, b := distances[j], distances[k]

		if math.Abs(a) <= planeEpsilon {
			points = append(points, vertices[j])
			continue
		}
		if math.Abs(b) > planeEpsilon && (a > 0) != (b > 0) {
			t := a / (a - b)
			points = append(points, vertices[j].Add(vertices[k].Sub(vertices[j]).Mul(t)))
		}
	}
	return points
}

// FormatVector formats a 3D vector
func FormatVector(v geometry.Vector3) string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", v.X, v.Y, v.Z)
}
