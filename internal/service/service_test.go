package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipparndt/gosection/internal/service"
	"github.com/philipparndt/gosection/internal/viewer"
	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

var allEvents = []cutting.EventType{
	cutting.EventSectionsChange,
	cutting.EventSectionAdded,
	cutting.EventSectionRemoved,
	cutting.EventSectionChange,
	cutting.EventPlaneAdded,
	cutting.EventPlaneRemoved,
	cutting.EventPlaneChange,
	cutting.EventCappingVisibilityChanged,
	cutting.EventCappingFaceColorChanged,
	cutting.EventCappingLineColorChanged,
	cutting.EventFaceSelectionChange,
	cutting.EventServiceReset,
	cutting.EventBoundingBoxChange,
	cutting.EventError,
}

// recorder collects every event emitted by a service
type recorder struct {
	mu     sync.Mutex
	events []cutting.Event
}

func record(s *service.Service) *recorder {
	r := &recorder{}
	for _, typ := range allEvents {
		s.On(typ, func(ev cutting.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
		})
	}
	return r
}

func (r *recorder) types() []cutting.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]cutting.EventType, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}

func (r *recorder) count(typ cutting.EventType) int {
	n := 0
	for _, t := range r.types() {
		if t == typ {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func cube() *stl.Model {
	return stl.NewBox("cube", geometry.NewVector3(0, 0, 0), geometry.NewVector3(10, 10, 10))
}

// setup attaches a fresh viewer with a loaded cube
func setup(t *testing.T, opts ...viewer.Option) (*service.Service, *viewer.Viewer) {
	t.Helper()
	v := viewer.New(opts...)
	s := service.New()
	t.Cleanup(s.Close)
	s.SetManager(v)
	v.LoadModel(cube())
	return s, v
}

func zPlane(d float64) cutting.CuttingPlane {
	return cutting.CuttingPlane{Plane: geometry.NewPlane(geometry.NewVector3(0, 0, 1), d)}
}

func assertInPlane(t *testing.T, plane geometry.Plane, points []geometry.Vector3) {
	t.Helper()
	for _, p := range points {
		assert.InDelta(t, 0, plane.SignedDistance(p), 1e-9, "point %v is off the plane", p)
	}
}

func TestDetachedFallbacks(t *testing.T) {
	s := service.New()
	ctx := context.Background()

	assert.True(t, s.CappingGeometryVisibility())
	assert.Equal(t, cutting.DefaultCappingColor, s.CappingFaceColor())
	assert.Equal(t, cutting.DefaultCappingColor, s.CappingLineColor())
	assert.Zero(t, s.CuttingSectionCount())
	assert.Nil(t, s.CuttingSections())
	assert.False(t, s.IsCuttingSectionActive(0))

	err := s.AddCuttingPlane(ctx, 0, zPlane(0))
	assert.ErrorIs(t, err, cutting.ErrNotAttached)
	assert.EqualError(t, err, "Cutting manager not set")
	assert.ErrorIs(t, s.SetCappingGeometryVisibility(ctx, false), cutting.ErrNotAttached)
	assert.ErrorIs(t, s.ResetConfiguration(ctx, nil), cutting.ErrNotAttached)
}

func TestBoundingBoxFollowsModel(t *testing.T) {
	s, v := setup(t)
	r := record(s)

	assert.Equal(t, cube().BoundingBox(), s.BoundingBox())

	far := stl.NewBox("far", geometry.NewVector3(20, 0, 0), geometry.NewVector3(30, 10, 10))
	index := v.AddModel(far)
	assert.Equal(t, geometry.NewVector3(30, 10, 10), s.BoundingBox().Max)

	require.NoError(t, v.SetModelVisibility(index, false))
	assert.Equal(t, geometry.NewVector3(10, 10, 10), s.BoundingBox().Max)
	assert.Equal(t, 2, r.count(cutting.EventBoundingBoxChange))
}

func TestAddPlaneActivatesSection(t *testing.T) {
	s, _ := setup(t)
	r := record(s)
	ctx := context.Background()

	require.False(t, s.IsCuttingSectionActive(0))
	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-5)))

	assert.True(t, s.IsCuttingSectionActive(0))
	assert.Equal(t, []cutting.EventType{cutting.EventPlaneAdded, cutting.EventSectionChange}, r.types())

	plane, ok := s.CuttingPlane(0, 0)
	require.True(t, ok)
	assert.False(t, plane.HideReferenceGeometry)
	require.Len(t, plane.ReferenceGeometry, 4)
	assertInPlane(t, plane.Plane, plane.ReferenceGeometry)

	// Adding to an active section does not touch activation again
	r.reset()
	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-6)))
	assert.Equal(t, []cutting.EventType{cutting.EventPlaneAdded}, r.types())
}

func TestAddPlaneHiddenGeometry(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	p := zPlane(-5)
	p.HideReferenceGeometry = true
	require.NoError(t, s.AddCuttingPlane(ctx, 0, p))

	plane, ok := s.CuttingPlane(0, 0)
	require.True(t, ok)
	assert.True(t, plane.HideReferenceGeometry)
	assert.Empty(t, plane.ReferenceGeometry)
}

func TestAddPlaneSectionFull(t *testing.T) {
	s, _ := setup(t, viewer.WithCapacity(1))
	ctx := context.Background()

	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-1)))
	err := s.AddCuttingPlane(ctx, 0, zPlane(-2))
	assert.ErrorIs(t, err, cutting.ErrSectionFull)
	assert.Equal(t, 1, s.CuttingPlaneCount(0))
}

func TestAddPlaneEngineFailure(t *testing.T) {
	s, v := setup(t)
	r := record(s)
	boom := errors.New("boom")

	v.FailNext(boom)
	err := s.AddCuttingPlane(context.Background(), 0, zPlane(-1))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.types())
	assert.Zero(t, s.CuttingPlaneCount(0))
}

func TestAddPlaneInvalidSection(t *testing.T) {
	s, _ := setup(t)

	err := s.AddCuttingPlane(context.Background(), 42, zPlane(0))
	assert.ErrorIs(t, err, cutting.ErrIndexOutOfRange)
	assert.EqualError(t, err, "No cutting section at index 42")
}

func TestRemovePlaneOutOfRange(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-5)))
	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-6)))

	err := s.RemoveCuttingPlane(ctx, 0, 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No cutting plane at index 999")
	assert.ErrorIs(t, err, cutting.ErrIndexOutOfRange)

	require.NoError(t, s.RemoveCuttingPlane(ctx, 0, 0))
	assert.Equal(t, 1, s.CuttingPlaneCount(0))
	remaining, _ := s.CuttingPlane(0, 0)
	assert.Equal(t, -6.0, remaining.Plane.D)
}

func TestUpdateOpacityOnly(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	red := cutting.NewColor(255, 0, 0)
	p := zPlane(-5)
	p.Color = &red
	require.NoError(t, s.AddCuttingPlane(ctx, 0, p))
	before, _ := s.CuttingPlane(0, 0)

	require.NoError(t, s.UpdateCuttingPlane(ctx, 0, 0, cutting.PlanePatch{Opacity: cutting.Float64Ptr(0.5)}))

	after, _ := s.CuttingPlane(0, 0)
	require.NotNil(t, after.Opacity)
	assert.Equal(t, 0.5, *after.Opacity)
	assert.Equal(t, before.Plane, after.Plane)
	assert.Equal(t, before.ReferenceGeometry, after.ReferenceGeometry)
	assert.Equal(t, before.Color, after.Color)
	assert.Nil(t, after.LineColor)
}

func TestUpdatePlaneRegeneratesGeometry(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	blue := cutting.NewColor(0, 0, 255)
	p := zPlane(-5)
	p.Color = &blue
	require.NoError(t, s.AddCuttingPlane(ctx, 0, p))

	moved := geometry.NewPlane(geometry.NewVector3(1, 0, 0), -3)
	require.NoError(t, s.UpdateCuttingPlane(ctx, 0, 0, cutting.PlanePatch{Plane: &moved}))

	after, _ := s.CuttingPlane(0, 0)
	assert.Equal(t, moved, after.Plane)
	require.Len(t, after.ReferenceGeometry, 4)
	assertInPlane(t, moved, after.ReferenceGeometry)
	assert.Equal(t, &blue, after.Color)
}

func TestUpdateHiddenPlaneStaysHidden(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	p := zPlane(-5)
	p.HideReferenceGeometry = true
	require.NoError(t, s.AddCuttingPlane(ctx, 0, p))

	moved := geometry.NewPlane(geometry.NewVector3(0, 0, 1), -7)
	require.NoError(t, s.UpdateCuttingPlane(ctx, 0, 0, cutting.PlanePatch{Plane: &moved}))

	after, _ := s.CuttingPlane(0, 0)
	assert.True(t, after.HideReferenceGeometry)
	assert.Equal(t, moved, after.Plane)
}

func TestInvalidOpacity(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-5)))

	assert.ErrorIs(t, s.SetCuttingPlaneOpacity(0, 0, 1.5), cutting.ErrInvalidOpacity)
	err := s.UpdateCuttingPlane(ctx, 0, 0, cutting.PlanePatch{Opacity: cutting.Float64Ptr(-0.1)})
	assert.ErrorIs(t, err, cutting.ErrInvalidOpacity)

	p := zPlane(-6)
	p.Opacity = cutting.Float64Ptr(5)
	assert.ErrorIs(t, s.AddCuttingPlane(ctx, 0, p), cutting.ErrInvalidOpacity)
	assert.Equal(t, 1, s.CuttingPlaneCount(0), "a rejected plane is not added")
}

func TestGeneratedQuadsLieOnTiltedPlanes(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	tilted := geometry.NewPlane(geometry.NewVector3(1, 2, 2), -9)

	require.NoError(t, s.AddCuttingPlane(ctx, 0, cutting.CuttingPlane{Plane: tilted}))
	plane, _ := s.CuttingPlane(0, 0)
	require.Len(t, plane.ReferenceGeometry, 4)
	assertInPlane(t, tilted, plane.ReferenceGeometry)

	moved := geometry.NewPlane(geometry.NewVector3(1, 2, 2), -15)
	require.NoError(t, s.UpdateCuttingPlane(ctx, 0, 0, cutting.PlanePatch{Plane: &moved}))
	plane, _ = s.CuttingPlane(0, 0)
	require.Len(t, plane.ReferenceGeometry, 4)
	assertInPlane(t, moved, plane.ReferenceGeometry)

	require.NoError(t, s.SetSectionGeometryVisibility(ctx, 0, false))
	require.NoError(t, s.SetSectionGeometryVisibility(ctx, 0, true))
	plane, _ = s.CuttingPlane(0, 0)
	require.Len(t, plane.ReferenceGeometry, 4)
	assertInPlane(t, moved, plane.ReferenceGeometry)
}

func TestPlaneVisibility(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-5)))

	require.NoError(t, s.SetCuttingPlaneVisibility(ctx, 0, 0, false))
	plane, _ := s.CuttingPlane(0, 0)
	assert.True(t, plane.HideReferenceGeometry)

	require.NoError(t, s.SetCuttingPlaneVisibility(ctx, 0, 0, true))
	plane, _ = s.CuttingPlane(0, 0)
	assert.False(t, plane.HideReferenceGeometry)
	assertInPlane(t, plane.Plane, plane.ReferenceGeometry)
}

func TestSectionGeometryVisibility(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	require.NoError(t, s.AddCuttingPlane(ctx, 1, zPlane(-2)))
	require.NoError(t, s.AddCuttingPlane(ctx, 1, zPlane(-8)))

	r := record(s)
	require.NoError(t, s.SetSectionGeometryVisibility(ctx, 1, false))
	assert.Equal(t, []cutting.EventType{cutting.EventSectionChange}, r.types())

	section, ok := s.CuttingSection(1)
	require.True(t, ok)
	assert.True(t, section.HideReferenceGeometry)
	require.Len(t, section.CuttingPlanes, 2)
	for _, p := range section.CuttingPlanes {
		assert.True(t, p.HideReferenceGeometry)
		assert.Empty(t, p.ReferenceGeometry)
	}

	// New planes in a hidden section start without geometry
	require.NoError(t, s.AddCuttingPlane(ctx, 1, zPlane(-5)))
	added, _ := s.CuttingPlane(1, 2)
	assert.True(t, added.HideReferenceGeometry)

	r.reset()
	require.NoError(t, s.SetSectionGeometryVisibility(ctx, 1, true))
	assert.Equal(t, []cutting.EventType{cutting.EventSectionChange}, r.types())

	section, _ = s.CuttingSection(1)
	assert.False(t, section.HideReferenceGeometry)
	for _, p := range section.CuttingPlanes {
		require.Len(t, p.ReferenceGeometry, 4)
		assertInPlane(t, p.Plane, p.ReferenceGeometry)
	}
}

func TestSectionActivation(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	r := record(s)

	require.NoError(t, s.ActivateCuttingSection(ctx, 2))
	assert.True(t, s.IsCuttingSectionActive(2))
	require.NoError(t, s.DeactivateCuttingSection(ctx, 2))
	assert.False(t, s.IsCuttingSectionActive(2))

	require.NoError(t, s.AddCuttingPlane(ctx, 2, zPlane(-1)))
	require.NoError(t, s.ClearCuttingSection(ctx, 2))
	assert.Zero(t, s.CuttingPlaneCount(2))
	assert.Equal(t, 4, r.count(cutting.EventSectionChange))

	assert.ErrorIs(t, s.ActivateCuttingSection(ctx, -1), cutting.ErrIndexOutOfRange)
}

func TestFaceSelection(t *testing.T) {
	s, v := setup(t)
	ctx := context.Background()
	r := record(s)

	_, ok := s.SelectedFace()
	assert.False(t, ok)
	assert.ErrorIs(t, s.AddPlaneFromSelectedFace(ctx, 0), cutting.ErrNoFaceSelected)

	// Triangle 2 lies on the +Z face of the cube
	require.NoError(t, v.SelectFace(0, 2))
	assert.Equal(t, 1, r.count(cutting.EventFaceSelectionChange))

	face, ok := s.SelectedFace()
	require.True(t, ok)
	assert.True(t, face.Normal.ApproxEqual(geometry.NewVector3(0, 0, 1), 1e-9))

	require.NoError(t, s.AddPlaneFromSelectedFace(ctx, 0))
	plane, ok := s.CuttingPlane(0, 0)
	require.True(t, ok)
	assert.True(t, plane.Plane.Normal.ApproxEqual(face.Normal, 1e-9))
	assert.True(t, plane.Plane.Contains(face.Position, 1e-9))
	require.Len(t, plane.ReferenceGeometry, 4)
	assertInPlane(t, plane.Plane, plane.ReferenceGeometry)

	v.SelectPoint(geometry.NewVector3(1, 2, 3))
	_, ok = s.SelectedFace()
	assert.False(t, ok)
	assert.Equal(t, 2, r.count(cutting.EventFaceSelectionChange))
}

func TestFaceSelectionRoundTrip(t *testing.T) {
	s, v := setup(t)

	v.SelectFaceAt(geometry.NewVector3(1, 2, 3), geometry.NewVector3(0, 0, 1))
	face, ok := s.SelectedFace()
	require.True(t, ok)
	assert.Equal(t, cutting.SelectedFace{
		Position: geometry.NewVector3(1, 2, 3),
		Normal:   geometry.NewVector3(0, 0, 1),
	}, face)

	v.ClearSelection()
	_, ok = s.SelectedFace()
	assert.False(t, ok)

	// A model switch drops the cached face
	v.SelectFaceAt(geometry.NewVector3(1, 2, 3), geometry.NewVector3(0, 0, 1))
	v.SwitchModel(cube())
	_, ok = s.SelectedFace()
	assert.False(t, ok)
}

func TestCappingConfiguration(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	r := record(s)

	require.NoError(t, s.SetCappingFaceColor(ctx, "#ff0000"))
	assert.Equal(t, "#ff0000", s.CappingFaceColor())
	require.NoError(t, s.SetCappingLineColor(ctx, ""))
	assert.Equal(t, "", s.CappingLineColor())
	require.NoError(t, s.SetCappingGeometryVisibility(ctx, false))
	assert.False(t, s.CappingGeometryVisibility())

	assert.Equal(t, []cutting.EventType{
		cutting.EventCappingFaceColorChanged,
		cutting.EventCappingLineColorChanged,
		cutting.EventCappingVisibilityChanged,
	}, r.types())

	assert.Error(t, s.SetCappingFaceColor(ctx, "red"))
}

func TestResetConfigurationClearsOmittedColors(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, s.ResetConfigurationFromMap(ctx, map[string]any{
		cutting.KeyCappingGeometryVisibility: false,
	}))
	assert.False(t, s.CappingGeometryVisibility())
	assert.Equal(t, "", s.CappingFaceColor())
	assert.Equal(t, "", s.CappingLineColor())

	require.NoError(t, s.ResetConfigurationFromMap(ctx, map[string]any{
		cutting.KeyCappingGeometryVisibility: true,
		cutting.KeyCappingFaceColor:          "#00ff00",
		cutting.KeyCappingLineColor:          "#0000ff",
	}))
	assert.True(t, s.CappingGeometryVisibility())
	assert.Equal(t, "#00ff00", s.CappingFaceColor())
	assert.Equal(t, "#0000ff", s.CappingLineColor())

	require.NoError(t, s.ResetConfiguration(ctx, nil))
	assert.True(t, s.CappingGeometryVisibility())
	assert.Equal(t, "", s.CappingFaceColor())
}

func TestResetConfigurationInvalid(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	err := s.ResetConfigurationFromMap(ctx, map[string]any{
		cutting.KeyCappingGeometryVisibility: "yes",
	})
	assert.ErrorIs(t, err, cutting.ErrInvalidConfiguration)
	assert.Equal(t, cutting.DefaultCappingColor, s.CappingFaceColor())

	err = s.ResetConfigurationFromMap(ctx, map[string]any{
		cutting.KeyCappingGeometryVisibility: true,
		cutting.KeyCappingFaceColor:          42,
	})
	assert.ErrorIs(t, err, cutting.ErrInvalidConfiguration)
}

// countingManager counts callback registrations
type countingManager struct {
	*viewer.Viewer
	binds   int
	unbinds int
}

func (c *countingManager) SetCallbacks(cb *cutting.Callbacks) {
	c.binds++
	c.Viewer.SetCallbacks(cb)
}

func (c *countingManager) UnsetCallbacks(cb *cutting.Callbacks) {
	c.unbinds++
	c.Viewer.UnsetCallbacks(cb)
}

func TestManagerSwap(t *testing.T) {
	s := service.New()
	r := record(s)

	first := &countingManager{Viewer: viewer.New()}
	second := &countingManager{Viewer: viewer.New()}

	s.SetManager(first)
	r.reset()
	s.SetManager(second)

	assert.Equal(t, 1, first.binds)
	assert.Equal(t, 1, first.unbinds)
	assert.Equal(t, 1, second.binds)
	assert.Zero(t, second.unbinds)
	assert.Zero(t, first.CallbackCount())
	assert.Equal(t, 1, second.CallbackCount())
	assert.Equal(t, []cutting.EventType{cutting.EventServiceReset}, r.types())

	// The detached engine no longer reaches the service
	r.reset()
	first.LoadModel(cube())
	assert.Empty(t, r.types())

	s.SetManager(nil)
	assert.Equal(t, 1, second.unbinds)
	assert.Equal(t, 1, r.count(cutting.EventServiceReset))
}

func TestEngineNotifications(t *testing.T) {
	s, v := setup(t)
	ctx := context.Background()
	require.NoError(t, s.AddCuttingPlane(ctx, 0, zPlane(-5)))
	r := record(s)

	require.NoError(t, v.DragPlane(0, 0, geometry.NewPlane(geometry.NewVector3(0, 0, 1), -4)))
	require.Len(t, r.types(), 1)
	assert.Equal(t, cutting.Event{Type: cutting.EventPlaneChange, SectionIndex: 0, PlaneIndex: 0}, r.events[0])

	r.reset()
	v.AddSection()
	assert.Equal(t, []cutting.EventType{cutting.EventSectionAdded}, r.types())
	assert.Equal(t, viewer.DefaultSections+1, s.CuttingSectionCount())

	r.reset()
	require.NoError(t, v.RemoveSection(0))
	assert.Equal(t, []cutting.EventType{cutting.EventSectionRemoved}, r.types())

	r.reset()
	v.LoadSections(2)
	assert.Equal(t, []cutting.EventType{cutting.EventSectionsChange}, r.types())
	assert.Len(t, s.CuttingSections(), 2)

	r.reset()
	v.SwitchModel(cube())
	assert.Equal(t, []cutting.EventType{cutting.EventBoundingBoxChange, cutting.EventSectionsChange}, r.types())
}

func TestBoundingBoxFailureEmitsError(t *testing.T) {
	s, v := setup(t)
	r := record(s)

	v.FailNext(errors.New("engine busy"))
	require.NoError(t, v.SetModelVisibility(0, true))

	assert.Equal(t, []cutting.EventType{cutting.EventError}, r.types())
	assert.Equal(t, cube().BoundingBox(), s.BoundingBox())
}
