package cutting

import (
	"fmt"

	"github.com/jinzhu/copier"

	"github.com/philipparndt/gosection/pkg/geometry"
)

// CuttingPlane is a plane plus its visual properties.
// HideReferenceGeometry is true exactly when ReferenceGeometry is absent.
type CuttingPlane struct {
	Plane             geometry.Plane
	ReferenceGeometry []geometry.Vector3 // quad lying in Plane, nil when hidden
	Color             *Color
	LineColor         *Color
	Opacity           *float64
	// HideReferenceGeometry mirrors the absence of ReferenceGeometry
	HideReferenceGeometry bool
}

// Visual returns the engine payload for the plane's visual properties
func (p CuttingPlane) Visual() VisualPayload {
	return VisualPayload{Color: p.Color, LineColor: p.LineColor, Opacity: p.Opacity}
}

// CuttingSection is an activatable group of cutting planes.
// HideReferenceGeometry remembers the last bulk show/hide request for the
// section; the engine does not store it.
type CuttingSection struct {
	CuttingPlanes         []CuttingPlane
	Active                bool
	HideReferenceGeometry bool
}

// SelectedFace is the face currently picked in the engine
type SelectedFace struct {
	Position geometry.Vector3
	Normal   geometry.Vector3
}

// PlanePatch is a partial update of a cutting plane. Nil fields are left
// unchanged.
type PlanePatch struct {
	Plane             *geometry.Plane
	ReferenceGeometry []geometry.Vector3
	Color             *Color
	LineColor         *Color
	Opacity           *float64
}

// AffectsGeometry reports whether applying the patch requires new
// reference geometry
func (p PlanePatch) AffectsGeometry() bool {
	return p.Plane != nil || p.ReferenceGeometry != nil
}

// IsEmpty reports whether the patch changes nothing
func (p PlanePatch) IsEmpty() bool {
	return !p.AffectsGeometry() && p.Color == nil && p.LineColor == nil && p.Opacity == nil
}

// Float64Ptr returns a pointer to a copy of f
func Float64Ptr(f float64) *float64 {
	return &f
}

// CloneSections deep-copies a section list so the copy shares no slices or
// pointers with the original
func CloneSections(sections []CuttingSection) ([]CuttingSection, error) {
	if sections == nil {
		return nil, nil
	}
	out := make([]CuttingSection, 0, len(sections))
	if err := copier.CopyWithOption(&out, &sections, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to clone cutting sections: %w", err)
	}
	for i := range out {
		keepNil(&out[i], sections[i])
	}
	return out, nil
}

// CloneSection deep-copies a single section
func CloneSection(section CuttingSection) (CuttingSection, error) {
	var out CuttingSection
	if err := copier.CopyWithOption(&out, &section, copier.Option{DeepCopy: true}); err != nil {
		return CuttingSection{}, fmt.Errorf("failed to clone cutting section: %w", err)
	}
	keepNil(&out, section)
	return out, nil
}

// keepNil restores nil slices that the copy turned into empty ones, so a
// clone compares equal to its original
func keepNil(out *CuttingSection, from CuttingSection) {
	if from.CuttingPlanes == nil {
		out.CuttingPlanes = nil
		return
	}
	for i := range out.CuttingPlanes {
		if from.CuttingPlanes[i].ReferenceGeometry == nil {
			out.CuttingPlanes[i].ReferenceGeometry = nil
		}
	}
}
