package service

import (
	"context"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// CuttingSectionCount returns the number of sections, 0 without a manager
func (s *Service) CuttingSectionCount() int {
	m := s.currentManager()
	if m == nil {
		return 0
	}
	return m.CuttingSectionCount()
}

// CuttingSections returns a fresh snapshot of every section
func (s *Service) CuttingSections() []cutting.CuttingSection {
	m := s.currentManager()
	if m == nil {
		return nil
	}
	return cutting.ToDomainSections(m, s.hiddenFlags())
}

// CuttingSection returns a fresh snapshot of one section. ok is false when
// the index is out of range or no manager is attached.
func (s *Service) CuttingSection(index int) (section cutting.CuttingSection, ok bool) {
	engineSection := s.lookupSection(index)
	if engineSection == nil {
		return cutting.CuttingSection{}, false
	}
	return cutting.ToDomainSection(engineSection, s.isHidden(index)), true
}

// CuttingSectionCapacity returns how many planes the section accepts
func (s *Service) CuttingSectionCapacity(index int) int {
	section := s.lookupSection(index)
	if section == nil {
		return 0
	}
	return section.Capacity()
}

// IsCuttingSectionActive reports whether the section is active
func (s *Service) IsCuttingSectionActive(index int) bool {
	section := s.lookupSection(index)
	return section != nil && section.IsActive()
}

// ClearCuttingSection removes every plane of the section
func (s *Service) ClearCuttingSection(ctx context.Context, index int) error {
	section, err := s.section(index)
	if err != nil {
		return err
	}
	if err := section.Clear(ctx); err != nil {
		return err
	}
	s.emit(cutting.Event{Type: cutting.EventSectionChange, SectionIndex: index})
	return nil
}

// ActivateCuttingSection activates the section
func (s *Service) ActivateCuttingSection(ctx context.Context, index int) error {
	section, err := s.section(index)
	if err != nil {
		return err
	}
	if err := section.Activate(ctx); err != nil {
		return err
	}
	s.emit(cutting.Event{Type: cutting.EventSectionChange, SectionIndex: index})
	return nil
}

// DeactivateCuttingSection deactivates the section
func (s *Service) DeactivateCuttingSection(ctx context.Context, index int) error {
	section, err := s.section(index)
	if err != nil {
		return err
	}
	if err := section.Deactivate(ctx); err != nil {
		return err
	}
	s.emit(cutting.Event{Type: cutting.EventSectionChange, SectionIndex: index})
	return nil
}

// SetSectionGeometryVisibility shows or hides the reference geometry of
// every plane in the section. Showing only generates geometry for planes
// that have none, so existing quads keep their placement. Hiding clears it
// on every plane. Exactly one section-change event is emitted.
func (s *Service) SetSectionGeometryVisibility(ctx context.Context, index int, visible bool) error {
	section, err := s.section(index)
	if err != nil {
		return err
	}

	box := s.BoundingBox()
	for i, p := range section.CuttingPlanes() {
		var geo []geometry.Vector3
		if visible {
			if len(p.ReferenceGeometry) > 0 {
				continue
			}
			geo = referenceQuad(p.Plane, box)
		}
		if err := section.SetPlane(ctx, i, p.Plane, geo, p.Visual()); err != nil {
			return err
		}
	}

	s.setHidden(index, !visible)
	s.logger.Debug("section reference geometry updated", "section", index, "visible", visible)
	s.emit(cutting.Event{Type: cutting.EventSectionChange, SectionIndex: index})
	return nil
}
