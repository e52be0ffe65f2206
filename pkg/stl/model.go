package stl

import (
	"github.com/philipparndt/gosection/pkg/geometry"
)

// Model represents a complete STL model
type Model struct {
	Name      string
	Triangles []geometry.Triangle
}

// NewModel creates a new STL model
func NewModel(name string) *Model {
	return &Model{
		Name:      name,
		Triangles: make([]geometry.Triangle, 0),
	}
}

// AddTriangle adds a triangle to the model
func (m *Model) AddTriangle(triangle geometry.Triangle) {
	m.Triangles = append(m.Triangles, triangle)
}

// TriangleCount returns the number of triangles in the model
func (m *Model) TriangleCount() int {
	return len(m.Triangles)
}

// BoundingBox calculates the bounding box of the entire model
func (m *Model) BoundingBox() geometry.BoundingBox {
	bbox := geometry.NewBoundingBox()
	for _, triangle := range m.Triangles {
		bbox.Extend(triangle.V1)
		bbox.Extend(triangle.V2)
		bbox.Extend(triangle.V3)
	}
	return bbox
}

// SurfaceArea calculates the total surface area of the model
func (m *Model) SurfaceArea() float64 {
	totalArea := 0.0
	for _, triangle := range m.Triangles {
		totalArea += triangle.Area()
	}
	return totalArea
}

// boxFaces lists the corner indices of each box face, counter-clockwise
// seen from outside
var boxFaces = [6][4]int{
	{0, 2, 3, 1}, // -Z
	{4, 5, 7, 6}, // +Z
	{0, 1, 5, 4}, // -Y
	{2, 6, 7, 3}, // +Y
	{0, 4, 6, 2}, // -X
	{1, 3, 7, 5}, // +X
}

// NewBox creates a closed axis-aligned box with outward facing normals
func NewBox(name string, lo, hi geometry.Vector3) *Model {
	box := geometry.NewBoundingBoxFromPoints(lo, hi)
	corners := box.Corners()

	model := NewModel(name)
	for _, face := range boxFaces {
		a, b, c, d := corners[face[0]], corners[face[1]], corners[face[2]], corners[face[3]]
		model.AddTriangle(facet(a, b, c))
		model.AddTriangle(facet(a, c, d))
	}
	return model
}

// FromPolygon triangulates a convex polygon as a fan around its first
// point. Fewer than three points give an empty model.
func FromPolygon(name string, points []geometry.Vector3) *Model {
	model := NewModel(name)
	for i := 1; i+1 < len(points); i++ {
		model.AddTriangle(facet(points[0], points[i], points[i+1]))
	}
	return model
}

// facet builds a triangle whose normal follows the vertex winding
func facet(a, b, c geometry.Vector3) geometry.Triangle {
	t := geometry.Triangle{V1: a, V2: b, V3: c}
	t.Normal = t.CalculateNormal()
	return t
}
