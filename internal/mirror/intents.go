package mirror

import (
	"context"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// intent is a consumer request against one section
type intent struct {
	op      string
	section int
	plane   int

	// patch is applied to the mirrored plane before the engine call
	patch func(p *cutting.CuttingPlane)
	// sync runs on the event loop, for the engine's synchronous setters
	sync func(b Backend) error
	// async runs on a worker with the snapshot taken when it started
	async func(ctx context.Context, b Backend, snap *Snapshot) error
	// keepPatch skips the resync after a successful async call
	keepPatch bool
}

func (in intent) fail(err error) *OpError {
	return &OpError{Op: in.op, Section: in.section, Plane: in.plane, Err: err}
}

func (m *Mirror) send(in intent) {
	m.queue.push(in)
}

// Init moves the mirror to the ready state with the given bounding box and
// loads every section
func (m *Mirror) Init(box geometry.BoundingBox) {
	m.queue.push(initEvent{box: box})
}

// Resync reloads every section from the service
func (m *Mirror) Resync() {
	m.queue.push(resyncEvent{})
}

// AddPlane adds a plane to a section
func (m *Mirror) AddPlane(sectionIndex int, plane cutting.CuttingPlane) {
	m.send(intent{
		op:      "add plane",
		section: sectionIndex,
		plane:   -1,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.AddCuttingPlane(ctx, sectionIndex, plane)
		},
	})
}

// AddPlaneFromFace adds a plane through the selected face
func (m *Mirror) AddPlaneFromFace(sectionIndex int) {
	m.send(intent{
		op:      "add plane from face",
		section: sectionIndex,
		plane:   -1,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.AddPlaneFromSelectedFace(ctx, sectionIndex)
		},
	})
}

// RemovePlane removes a plane
func (m *Mirror) RemovePlane(sectionIndex, planeIndex int) {
	m.send(intent{
		op:      "remove plane",
		section: sectionIndex,
		plane:   planeIndex,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.RemoveCuttingPlane(ctx, sectionIndex, planeIndex)
		},
	})
}

// UpdatePlane applies a partial plane update
func (m *Mirror) UpdatePlane(sectionIndex, planeIndex int, patch cutting.PlanePatch) {
	m.send(intent{
		op:      "update plane",
		section: sectionIndex,
		plane:   planeIndex,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.UpdateCuttingPlane(ctx, sectionIndex, planeIndex, patch)
		},
	})
}

// SetPlaneVisibility shows or hides a plane's reference geometry
func (m *Mirror) SetPlaneVisibility(sectionIndex, planeIndex int, visible bool) {
	m.send(intent{
		op:      "set plane visibility",
		section: sectionIndex,
		plane:   planeIndex,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.SetCuttingPlaneVisibility(ctx, sectionIndex, planeIndex, visible)
		},
	})
}

// SetSectionVisibility shows or hides the reference geometry of a section
func (m *Mirror) SetSectionVisibility(sectionIndex int, visible bool) {
	m.send(intent{
		op:      "set section visibility",
		section: sectionIndex,
		plane:   -1,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.SetSectionGeometryVisibility(ctx, sectionIndex, visible)
		},
	})
}

// ActivateSection activates a section
func (m *Mirror) ActivateSection(sectionIndex int) {
	m.send(intent{
		op:      "activate section",
		section: sectionIndex,
		plane:   -1,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.ActivateCuttingSection(ctx, sectionIndex)
		},
	})
}

// DeactivateSection deactivates a section
func (m *Mirror) DeactivateSection(sectionIndex int) {
	m.send(intent{
		op:      "deactivate section",
		section: sectionIndex,
		plane:   -1,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.DeactivateCuttingSection(ctx, sectionIndex)
		},
	})
}

// ClearSection removes every plane of a section
func (m *Mirror) ClearSection(sectionIndex int) {
	m.send(intent{
		op:      "clear section",
		section: sectionIndex,
		plane:   -1,
		async: func(ctx context.Context, b Backend, _ *Snapshot) error {
			return b.ClearCuttingSection(ctx, sectionIndex)
		},
	})
}

// SetPlaneColor sets a plane's fill color
func (m *Mirror) SetPlaneColor(sectionIndex, planeIndex int, color cutting.Color) {
	m.send(intent{
		op:      "set plane color",
		section: sectionIndex,
		plane:   planeIndex,
		patch:   func(p *cutting.CuttingPlane) { p.Color = cutting.ColorPtr(color) },
		sync: func(b Backend) error {
			return b.SetCuttingPlaneColor(sectionIndex, planeIndex, color)
		},
	})
}

// SetPlaneLineColor sets a plane's outline color
func (m *Mirror) SetPlaneLineColor(sectionIndex, planeIndex int, color cutting.Color) {
	m.send(intent{
		op:      "set plane line color",
		section: sectionIndex,
		plane:   planeIndex,
		patch:   func(p *cutting.CuttingPlane) { p.LineColor = cutting.ColorPtr(color) },
		sync: func(b Backend) error {
			return b.SetCuttingPlaneLineColor(sectionIndex, planeIndex, color)
		},
	})
}

// SetPlaneOpacity sets a plane's opacity
func (m *Mirror) SetPlaneOpacity(sectionIndex, planeIndex int, opacity float64) {
	m.send(intent{
		op:      "set plane opacity",
		section: sectionIndex,
		plane:   planeIndex,
		patch:   func(p *cutting.CuttingPlane) { p.Opacity = cutting.Float64Ptr(opacity) },
		sync: func(b Backend) error {
			return b.SetCuttingPlaneOpacity(sectionIndex, planeIndex, opacity)
		},
	})
}

// InvertPlane flips the side a plane cuts away. The mirror shows the
// inverted plane immediately; the engine is updated in the background and
// the section is only reloaded if that fails.
func (m *Mirror) InvertPlane(sectionIndex, planeIndex int) {
	m.send(intent{
		op:        "invert plane",
		section:   sectionIndex,
		plane:     planeIndex,
		patch:     func(p *cutting.CuttingPlane) { p.Plane = p.Plane.Inverted() },
		keepPatch: true,
		async: func(ctx context.Context, b Backend, snap *Snapshot) error {
			current, ok := snap.Plane(sectionIndex, planeIndex)
			if !ok {
				return cutting.PlaneIndexError(sectionIndex, planeIndex)
			}
			inverted := current.Plane
			patch := cutting.PlanePatch{Plane: &inverted}
			// the quad covers the same points, keep it as mirrored
			if len(current.ReferenceGeometry) > 0 {
				patch.ReferenceGeometry = current.ReferenceGeometry
			}
			return b.UpdateCuttingPlane(ctx, sectionIndex, planeIndex, patch)
		},
	})
}
