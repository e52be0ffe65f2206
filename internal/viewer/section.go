package viewer

import (
	"context"
	"fmt"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// Section is a cutting section owned by a Viewer. All state is guarded by
// the viewer's lock.
type Section struct {
	viewer *Viewer
	active bool
	planes []cutting.EnginePlane
}

// IsActive implements cutting.Section
func (s *Section) IsActive() bool {
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	return s.active
}

// Activate implements cutting.Section
func (s *Section) Activate(ctx context.Context) error {
	return s.setActive(ctx, true)
}

// Deactivate implements cutting.Section
func (s *Section) Deactivate(ctx context.Context) error {
	return s.setActive(ctx, false)
}

func (s *Section) setActive(ctx context.Context, active bool) error {
	if err := s.viewer.await(ctx); err != nil {
		return err
	}
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	s.active = active
	return nil
}

// Count implements cutting.Section
func (s *Section) Count() int {
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	return len(s.planes)
}

// Capacity implements cutting.Section
func (s *Section) Capacity() int {
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	return s.viewer.capacity
}

// CuttingPlanes implements cutting.Section. The result shares no memory
// with the section.
func (s *Section) CuttingPlanes() []cutting.EnginePlane {
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	planes := make([]cutting.EnginePlane, len(s.planes))
	for i, p := range s.planes {
		planes[i] = copyPlane(p)
	}
	return planes
}

// AddPlane implements cutting.Section. It reports false when the section
// is at capacity.
func (s *Section) AddPlane(ctx context.Context, plane geometry.Plane, referenceGeometry []geometry.Vector3, visual cutting.VisualPayload) (bool, error) {
	if err := s.viewer.await(ctx); err != nil {
		return false, err
	}
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	if len(s.planes) >= s.viewer.capacity {
		return false, nil
	}
	s.planes = append(s.planes, newPlane(plane, referenceGeometry, visual))
	return true, nil
}

// RemovePlane implements cutting.Section
func (s *Section) RemovePlane(ctx context.Context, index int) error {
	if err := s.viewer.await(ctx); err != nil {
		return err
	}
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	if index < 0 || index >= len(s.planes) {
		return fmt.Errorf("plane index %d out of range", index)
	}
	s.planes = append(s.planes[:index], s.planes[index+1:]...)
	return nil
}

// SetPlane implements cutting.Section
func (s *Section) SetPlane(ctx context.Context, index int, plane geometry.Plane, referenceGeometry []geometry.Vector3, visual cutting.VisualPayload) error {
	if err := s.viewer.await(ctx); err != nil {
		return err
	}
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	if index < 0 || index >= len(s.planes) {
		return fmt.Errorf("plane index %d out of range", index)
	}
	s.planes[index] = newPlane(plane, referenceGeometry, visual)
	return nil
}

// SetPlaneColor implements cutting.Section
func (s *Section) SetPlaneColor(index int, color cutting.Color) {
	s.update(index, func(p *cutting.EnginePlane) { p.Color = cutting.ColorPtr(color) })
}

// SetPlaneLineColor implements cutting.Section
func (s *Section) SetPlaneLineColor(index int, color cutting.Color) {
	s.update(index, func(p *cutting.EnginePlane) { p.LineColor = cutting.ColorPtr(color) })
}

// SetPlaneOpacity implements cutting.Section
func (s *Section) SetPlaneOpacity(index int, opacity float64) {
	s.update(index, func(p *cutting.EnginePlane) { p.Opacity = cutting.Float64Ptr(opacity) })
}

// update applies fn to one plane. Out of range indices are ignored, like
// the engine's synchronous setters.
func (s *Section) update(index int, fn func(p *cutting.EnginePlane)) {
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	if index < 0 || index >= len(s.planes) {
		return
	}
	fn(&s.planes[index])
}

// Clear implements cutting.Section
func (s *Section) Clear(ctx context.Context) error {
	if err := s.viewer.await(ctx); err != nil {
		return err
	}
	s.viewer.mu.Lock()
	defer s.viewer.mu.Unlock()
	s.planes = nil
	return nil
}

func newPlane(plane geometry.Plane, referenceGeometry []geometry.Vector3, visual cutting.VisualPayload) cutting.EnginePlane {
	return cutting.EnginePlane{
		Plane:             plane,
		ReferenceGeometry: copyGeometry(referenceGeometry),
		Color:             copyColor(visual.Color),
		LineColor:         copyColor(visual.LineColor),
		Opacity:           copyFloat(visual.Opacity),
	}
}

func copyPlane(p cutting.EnginePlane) cutting.EnginePlane {
	return newPlane(p.Plane, p.ReferenceGeometry, p.Visual())
}
