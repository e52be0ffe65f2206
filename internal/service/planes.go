package service

import (
	"context"
	"fmt"
	"math"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// CuttingPlaneCount returns the number of planes in the section, 0 when
// the section does not exist
func (s *Service) CuttingPlaneCount(sectionIndex int) int {
	section := s.lookupSection(sectionIndex)
	if section == nil {
		return 0
	}
	return section.Count()
}

// CuttingPlanes returns fresh snapshots of the section's planes
func (s *Service) CuttingPlanes(sectionIndex int) []cutting.CuttingPlane {
	section, ok := s.CuttingSection(sectionIndex)
	if !ok {
		return nil
	}
	return section.CuttingPlanes
}

// CuttingPlane returns a fresh snapshot of one plane
func (s *Service) CuttingPlane(sectionIndex, planeIndex int) (plane cutting.CuttingPlane, ok bool) {
	planes := s.CuttingPlanes(sectionIndex)
	if planeIndex < 0 || planeIndex >= len(planes) {
		return cutting.CuttingPlane{}, false
	}
	return planes[planeIndex], true
}

// AddCuttingPlane adds a plane to the section. Reference geometry given on
// the plane is used as is; otherwise it is generated from the cached
// bounding box, unless the plane or its section hides reference geometry.
// An inactive section is activated afterwards.
func (s *Service) AddCuttingPlane(ctx context.Context, sectionIndex int, plane cutting.CuttingPlane) error {
	section, err := s.section(sectionIndex)
	if err != nil {
		return err
	}
	if plane.Opacity != nil {
		if err := checkOpacity(*plane.Opacity); err != nil {
			return err
		}
	}

	geo := plane.ReferenceGeometry
	if len(geo) == 0 && !plane.HideReferenceGeometry && !s.isHidden(sectionIndex) {
		geo = referenceQuad(plane.Plane, s.BoundingBox())
	}
	if plane.HideReferenceGeometry {
		geo = nil
	}

	added, err := section.AddPlane(ctx, plane.Plane, geo, plane.Visual())
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%w: section %d holds %d of %d planes",
			cutting.ErrSectionFull, sectionIndex, section.Count(), section.Capacity())
	}
	s.emit(cutting.Event{Type: cutting.EventPlaneAdded, SectionIndex: sectionIndex})

	if !section.IsActive() {
		if err := section.Activate(ctx); err != nil {
			return err
		}
		s.logger.Debug("activated section after adding a plane", "section", sectionIndex)
		s.emit(cutting.Event{Type: cutting.EventSectionChange, SectionIndex: sectionIndex})
	}
	return nil
}

// AddPlaneFromSelectedFace adds a plane through the selected face, facing
// along the face normal, with reference geometry centered on the picked
// position
func (s *Service) AddPlaneFromSelectedFace(ctx context.Context, sectionIndex int) error {
	face, ok := s.SelectedFace()
	if !ok {
		return cutting.ErrNoFaceSelected
	}

	plane := geometry.PlaneFromPointNormal(face.Position, face.Normal)
	geo := geometry.GenerateFaceQuad(plane, face.Position, s.BoundingBox())
	return s.AddCuttingPlane(ctx, sectionIndex, cutting.CuttingPlane{
		Plane:                 plane,
		ReferenceGeometry:     geo,
		HideReferenceGeometry: len(geo) == 0,
	})
}

// RemoveCuttingPlane removes a plane, checked against the section's
// current plane count
func (s *Service) RemoveCuttingPlane(ctx context.Context, sectionIndex, planeIndex int) error {
	section, err := s.section(sectionIndex)
	if err != nil {
		return err
	}
	if planeIndex < 0 || planeIndex >= section.Count() {
		return cutting.PlaneIndexError(sectionIndex, planeIndex)
	}
	if err := section.RemovePlane(ctx, planeIndex); err != nil {
		return err
	}
	s.emit(cutting.Event{Type: cutting.EventPlaneRemoved, SectionIndex: sectionIndex, PlaneIndex: planeIndex})
	return nil
}

// UpdateCuttingPlane applies a partial update.
//
// When the patch carries a plane equation or reference geometry, the plane
// is written in one engine call: explicit geometry is used as is, otherwise
// geometry is regenerated from the new equation if the plane showed any,
// and unspecified visual properties keep their previous values. A plane
// whose reference geometry is hidden stays hidden when only its equation
// changes; SetCuttingPlaneVisibility shows it again. A patch of only color,
// line color or opacity goes through the narrow setters and leaves the
// geometry alone.
func (s *Service) UpdateCuttingPlane(ctx context.Context, sectionIndex, planeIndex int, patch cutting.PlanePatch) error {
	section, prev, err := s.plane(sectionIndex, planeIndex)
	if err != nil {
		return err
	}
	if patch.Opacity != nil {
		if err := checkOpacity(*patch.Opacity); err != nil {
			return err
		}
	}

	if patch.AffectsGeometry() {
		plane := prev.Plane
		if patch.Plane != nil {
			plane = *patch.Plane
		}

		geo := patch.ReferenceGeometry
		if geo == nil && len(prev.ReferenceGeometry) > 0 {
			geo = referenceQuad(plane, s.BoundingBox())
		}

		visual := prev.Visual()
		if patch.Color != nil {
			visual.Color = patch.Color
		}
		if patch.LineColor != nil {
			visual.LineColor = patch.LineColor
		}
		if patch.Opacity != nil {
			visual.Opacity = patch.Opacity
		}

		if err := section.SetPlane(ctx, planeIndex, plane, geo, visual); err != nil {
			return err
		}
	} else {
		if patch.Color != nil {
			section.SetPlaneColor(planeIndex, *patch.Color)
		}
		if patch.LineColor != nil {
			section.SetPlaneLineColor(planeIndex, *patch.LineColor)
		}
		if patch.Opacity != nil {
			section.SetPlaneOpacity(planeIndex, *patch.Opacity)
		}
	}

	s.emit(cutting.Event{Type: cutting.EventPlaneChange, SectionIndex: sectionIndex, PlaneIndex: planeIndex})
	return nil
}

// SetCuttingPlaneVisibility shows or hides a plane's reference geometry.
// Showing always regenerates the quad from the plane equation.
func (s *Service) SetCuttingPlaneVisibility(ctx context.Context, sectionIndex, planeIndex int, visible bool) error {
	section, prev, err := s.plane(sectionIndex, planeIndex)
	if err != nil {
		return err
	}

	var geo []geometry.Vector3
	if visible {
		geo = referenceQuad(prev.Plane, s.BoundingBox())
	}
	if err := section.SetPlane(ctx, planeIndex, prev.Plane, geo, prev.Visual()); err != nil {
		return err
	}

	s.emit(cutting.Event{Type: cutting.EventPlaneChange, SectionIndex: sectionIndex, PlaneIndex: planeIndex})
	return nil
}

// SetCuttingPlaneColor sets a plane's fill color
func (s *Service) SetCuttingPlaneColor(sectionIndex, planeIndex int, color cutting.Color) error {
	section, _, err := s.plane(sectionIndex, planeIndex)
	if err != nil {
		return err
	}
	section.SetPlaneColor(planeIndex, color)
	s.emit(cutting.Event{Type: cutting.EventPlaneChange, SectionIndex: sectionIndex, PlaneIndex: planeIndex})
	return nil
}

// SetCuttingPlaneLineColor sets a plane's outline color
func (s *Service) SetCuttingPlaneLineColor(sectionIndex, planeIndex int, color cutting.Color) error {
	section, _, err := s.plane(sectionIndex, planeIndex)
	if err != nil {
		return err
	}
	section.SetPlaneLineColor(planeIndex, color)
	s.emit(cutting.Event{Type: cutting.EventPlaneChange, SectionIndex: sectionIndex, PlaneIndex: planeIndex})
	return nil
}

// SetCuttingPlaneOpacity sets a plane's opacity in [0, 1]
func (s *Service) SetCuttingPlaneOpacity(sectionIndex, planeIndex int, opacity float64) error {
	if err := checkOpacity(opacity); err != nil {
		return err
	}
	section, _, err := s.plane(sectionIndex, planeIndex)
	if err != nil {
		return err
	}
	section.SetPlaneOpacity(planeIndex, opacity)
	s.emit(cutting.Event{Type: cutting.EventPlaneChange, SectionIndex: sectionIndex, PlaneIndex: planeIndex})
	return nil
}

func checkOpacity(opacity float64) error {
	if math.IsNaN(opacity) || opacity < 0 || opacity > 1 {
		return fmt.Errorf("%w: %v", cutting.ErrInvalidOpacity, opacity)
	}
	return nil
}

// referenceQuad generates a plane's reference quad and places it on the
// plane
func referenceQuad(plane geometry.Plane, box geometry.BoundingBox) []geometry.Vector3 {
	return geometry.PlaceQuad(plane, geometry.GenerateQuad(plane, box))
}
