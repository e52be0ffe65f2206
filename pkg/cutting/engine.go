package cutting

import (
	"context"

	"github.com/philipparndt/gosection/pkg/geometry"
)

// VisualPayload carries the visual properties passed to the engine with a plane
type VisualPayload struct {
	Color     *Color
	LineColor *Color
	Opacity   *float64
}

// EnginePlane is the engine's representation of a cutting plane
type EnginePlane struct {
	Plane             geometry.Plane
	ReferenceGeometry []geometry.Vector3
	Color             *Color
	LineColor         *Color
	Opacity           *float64
}

// Visual returns the plane's visual properties
func (p EnginePlane) Visual() VisualPayload {
	return VisualPayload{Color: p.Color, LineColor: p.LineColor, Opacity: p.Opacity}
}

// Manager is the engine's cutting manager. Blocking methods take a context
// and complete when the engine has applied the change.
type Manager interface {
	CuttingSectionCount() int
	// CuttingSection returns nil when there is no section at index
	CuttingSection(index int) Section

	CappingGeometryVisibility() bool
	SetCappingGeometryVisibility(ctx context.Context, visible bool) error
	// CappingFaceColor returns nil when no color is set
	CappingFaceColor() *Color
	SetCappingFaceColor(ctx context.Context, color *Color) error
	// CappingLineColor returns nil when no color is set
	CappingLineColor() *Color
	SetCappingLineColor(ctx context.Context, color *Color) error

	Model() Model
	SelectionManager() SelectionManager

	// SetCallbacks registers the handler slots of cb. The same pointer must
	// be passed to UnsetCallbacks to remove them.
	SetCallbacks(cb *Callbacks)
	UnsetCallbacks(cb *Callbacks)
}

// Section is a cutting section handle owned by the engine
type Section interface {
	IsActive() bool
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	// Count returns the number of planes in the section
	Count() int
	// Capacity returns the maximum number of planes the section accepts
	Capacity() int
	CuttingPlanes() []EnginePlane
	// AddPlane returns false when the engine did not accept the plane
	AddPlane(ctx context.Context, plane geometry.Plane, referenceGeometry []geometry.Vector3, visual VisualPayload) (bool, error)
	RemovePlane(ctx context.Context, index int) error
	SetPlane(ctx context.Context, index int, plane geometry.Plane, referenceGeometry []geometry.Vector3, visual VisualPayload) error
	SetPlaneColor(index int, color Color)
	SetPlaneLineColor(index int, color Color)
	SetPlaneOpacity(index int, opacity float64)
	Clear(ctx context.Context) error
}

// Model gives access to the loaded model
type Model interface {
	// ModelBounding computes the model bounds. tight requests exact bounds
	// and visibleOnly excludes hidden parts.
	ModelBounding(ctx context.Context, tight, visibleOnly bool) (geometry.BoundingBox, error)
}

// SelectionManager exposes the engine's selection
type SelectionManager interface {
	// Last returns the most recent selection or nil
	Last() Selection
}

// Selection is a single selection item
type Selection interface {
	IsFaceSelection() bool
	Position() geometry.Vector3
	// FaceNormal is only meaningful for face selections
	FaceNormal() geometry.Vector3
}

// Callbacks is the set of engine notification slots. Nil slots are skipped.
type Callbacks struct {
	ModelSwitched         func()
	ModelStructureReady   func()
	CuttingSectionsLoaded func()
	RemoveCuttingSection  func()
	AddCuttingSection     func()
	CuttingPlaneDragEnd   func(section, planeIndex int)
	VisibilityChanged     func()
	SelectionArray        func()
}
