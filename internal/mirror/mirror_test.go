package mirror_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipparndt/gosection/internal/mirror"
	"github.com/philipparndt/gosection/internal/service"
	"github.com/philipparndt/gosection/internal/viewer"
	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) add(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *errorLog) all() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}

type fixture struct {
	mirror  *mirror.Mirror
	service *service.Service
	viewer  *viewer.Viewer
	errors  *errorLog
}

func cube() *stl.Model {
	return stl.NewBox("cube", geometry.NewVector3(0, 0, 0), geometry.NewVector3(10, 10, 10))
}

func newFixture(t *testing.T, wrap func(*service.Service) mirror.Backend, opts ...viewer.Option) *fixture {
	t.Helper()
	v := viewer.New(opts...)
	s := service.New()
	s.SetManager(v)
	v.LoadModel(cube())

	var backend mirror.Backend = s
	if wrap != nil {
		backend = wrap(s)
	}
	m := mirror.New(backend)
	errs := &errorLog{}
	m.OnError(errs.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		m.Close()
		s.Close()
	})

	return &fixture{mirror: m, service: s, viewer: v, errors: errs}
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	f.mirror.Init(f.service.BoundingBox())
	f.waitIdle(t)
}

func (f *fixture) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.mirror.WaitIdle(ctx))
}

// assertInSync checks the mirror against the service's authoritative view
func (f *fixture) assertInSync(t *testing.T) {
	t.Helper()
	assert.Equal(t, f.service.CuttingSections(), f.mirror.Snapshot().Sections)
}

func zPlane(d float64) cutting.CuttingPlane {
	return cutting.CuttingPlane{Plane: geometry.NewPlane(geometry.NewVector3(0, 0, 1), d)}
}

func TestIntentBeforeInit(t *testing.T) {
	f := newFixture(t, nil)

	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)

	errs := f.errors.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], mirror.ErrNotReady)
	var opErr *mirror.OpError
	require.ErrorAs(t, errs[0], &opErr)
	assert.Equal(t, "add plane", opErr.Op)

	assert.Equal(t, mirror.StateUninitialized, f.mirror.Snapshot().State)
	assert.Zero(t, f.service.CuttingPlaneCount(0))
}

func TestInit(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	snap := f.mirror.Snapshot()
	assert.Equal(t, mirror.StateReady, snap.State)
	assert.Equal(t, cube().BoundingBox(), snap.BoundingBox)
	assert.Len(t, snap.Sections, viewer.DefaultSections)
	assert.Nil(t, snap.SelectedFace)
	assert.NotZero(t, snap.Version)
}

func TestAddPlane(t *testing.T) {
	f := newFixture(t, nil, viewer.WithLatency(5*time.Millisecond))
	f.init(t)

	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)

	snap := f.mirror.Snapshot()
	section, ok := snap.Section(0)
	require.True(t, ok)
	assert.True(t, section.Active)
	require.Len(t, section.CuttingPlanes, 1)
	assert.Len(t, section.CuttingPlanes[0].ReferenceGeometry, 4)
	assert.Empty(t, f.errors.all())
	f.assertInSync(t)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)
	before := f.mirror.Snapshot()

	f.mirror.SetPlaneColor(0, 0, cutting.NewColor(255, 0, 0))
	f.waitIdle(t)
	after := f.mirror.Snapshot()

	plane, _ := before.Plane(0, 0)
	assert.Nil(t, plane.Color)
	plane, _ = after.Plane(0, 0)
	require.NotNil(t, plane.Color)
	assert.Equal(t, "#ff0000", plane.Color.Hex())
	assert.Greater(t, after.Version, before.Version)
}

func TestOptimisticPatches(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)

	var seen []*mirror.Snapshot
	var mu sync.Mutex
	remove := f.mirror.Subscribe(func(s *mirror.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})
	defer remove()

	f.mirror.SetPlaneOpacity(0, 0, 0.25)
	f.waitIdle(t)

	// The first snapshot after the intent already carries the new value
	mu.Lock()
	require.NotEmpty(t, seen)
	first, _ := seen[0].Plane(0, 0)
	mu.Unlock()
	require.NotNil(t, first.Opacity)
	assert.Equal(t, 0.25, *first.Opacity)

	f.mirror.SetPlaneLineColor(0, 0, cutting.NewColor(0, 0, 255))
	f.waitIdle(t)
	f.assertInSync(t)
}

func TestOptimisticPatchRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)

	f.mirror.SetPlaneOpacity(0, 0, 2)
	f.waitIdle(t)

	errs := f.errors.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], cutting.ErrInvalidOpacity)

	plane, ok := f.mirror.Snapshot().Plane(0, 0)
	require.True(t, ok)
	assert.Nil(t, plane.Opacity)
	f.assertInSync(t)
}

func TestInvertPlane(t *testing.T) {
	f := newFixture(t, nil, viewer.WithLatency(5*time.Millisecond))
	f.init(t)
	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)
	original, _ := f.mirror.Snapshot().Plane(0, 0)

	f.mirror.InvertPlane(0, 0)
	f.waitIdle(t)

	mirrored, _ := f.mirror.Snapshot().Plane(0, 0)
	assert.Equal(t, original.Plane.Inverted(), mirrored.Plane)

	engine, ok := f.service.CuttingPlane(0, 0)
	require.True(t, ok)
	assert.Equal(t, original.Plane.Inverted(), engine.Plane)
	assert.Equal(t, original.ReferenceGeometry, engine.ReferenceGeometry, "the quad is kept")
	for _, p := range engine.ReferenceGeometry {
		assert.InDelta(t, 0, engine.Plane.SignedDistance(p), 1e-9)
	}
	f.assertInSync(t)
	assert.Empty(t, f.errors.all())
}

func TestInvertHiddenPlane(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	p := zPlane(-5)
	p.HideReferenceGeometry = true
	f.mirror.AddPlane(0, p)
	f.mirror.InvertPlane(0, 0)
	f.waitIdle(t)

	engine, ok := f.service.CuttingPlane(0, 0)
	require.True(t, ok)
	assert.True(t, engine.HideReferenceGeometry)
	assert.Empty(t, engine.ReferenceGeometry)
	f.assertInSync(t)
	assert.Empty(t, f.errors.all())
}

func TestInvertMissingPlane(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	f.mirror.InvertPlane(0, 3)
	f.waitIdle(t)

	errs := f.errors.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], cutting.ErrIndexOutOfRange)
}

func TestFailedIntentResyncs(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	boom := errors.New("engine rejected the plane")

	f.viewer.FailNext(boom)
	f.mirror.AddPlane(1, zPlane(-2))
	f.waitIdle(t)

	errs := f.errors.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	assert.Contains(t, errs[0].Error(), "add plane on section 1")
	assert.Zero(t, f.mirror.Snapshot().PlaneCount(1))
	f.assertInSync(t)
}

// probe records how many engine operations run at once per section
type probe struct {
	*service.Service
	mu      sync.Mutex
	running map[int]int
	peak    map[int]int
}

func newProbe(s *service.Service) mirror.Backend {
	return &probe{Service: s, running: make(map[int]int), peak: make(map[int]int)}
}

func (p *probe) enter(section int) (leave func()) {
	p.mu.Lock()
	p.running[section]++
	p.peak[section] = max(p.peak[section], p.running[section])
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		p.running[section]--
		p.mu.Unlock()
	}
}

func (p *probe) AddCuttingPlane(ctx context.Context, sectionIndex int, plane cutting.CuttingPlane) error {
	defer p.enter(sectionIndex)()
	return p.Service.AddCuttingPlane(ctx, sectionIndex, plane)
}

func (p *probe) UpdateCuttingPlane(ctx context.Context, sectionIndex, planeIndex int, patch cutting.PlanePatch) error {
	defer p.enter(sectionIndex)()
	return p.Service.UpdateCuttingPlane(ctx, sectionIndex, planeIndex, patch)
}

func (p *probe) RemoveCuttingPlane(ctx context.Context, sectionIndex, planeIndex int) error {
	defer p.enter(sectionIndex)()
	return p.Service.RemoveCuttingPlane(ctx, sectionIndex, planeIndex)
}

func TestMutationsSerializedPerSection(t *testing.T) {
	var pr *probe
	f := newFixture(t, func(s *service.Service) mirror.Backend {
		b := newProbe(s)
		pr = b.(*probe)
		return b
	}, viewer.WithLatency(3*time.Millisecond))
	f.init(t)

	moved := geometry.NewPlane(geometry.NewVector3(1, 0, 0), -4)
	f.mirror.AddPlane(0, zPlane(-2))
	f.mirror.AddPlane(0, zPlane(-8))
	f.mirror.AddPlane(1, zPlane(-3))
	f.mirror.UpdatePlane(0, 0, cutting.PlanePatch{Plane: &moved})
	f.mirror.SetPlaneColor(0, 1, cutting.NewColor(0, 255, 0))
	f.mirror.RemovePlane(1, 0)
	f.waitIdle(t)

	assert.Empty(t, f.errors.all())
	pr.mu.Lock()
	assert.Equal(t, 1, pr.peak[0])
	assert.Equal(t, 1, pr.peak[1])
	pr.mu.Unlock()

	snap := f.mirror.Snapshot()
	require.Equal(t, 2, snap.PlaneCount(0))
	first, _ := snap.Plane(0, 0)
	assert.Equal(t, moved, first.Plane)
	second, _ := snap.Plane(0, 1)
	require.NotNil(t, second.Color)
	assert.Equal(t, "#00ff00", second.Color.Hex())
	assert.Zero(t, snap.PlaneCount(1))
	f.assertInSync(t)
}

func TestSectionVisibility(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	f.mirror.AddPlane(2, zPlane(-2))
	f.mirror.AddPlane(2, zPlane(-7))
	f.mirror.SetSectionVisibility(2, false)
	f.waitIdle(t)

	section, _ := f.mirror.Snapshot().Section(2)
	assert.True(t, section.HideReferenceGeometry)
	for _, p := range section.CuttingPlanes {
		assert.True(t, p.HideReferenceGeometry)
	}

	f.mirror.SetSectionVisibility(2, true)
	f.mirror.SetPlaneVisibility(2, 0, false)
	f.waitIdle(t)

	section, _ = f.mirror.Snapshot().Section(2)
	assert.False(t, section.HideReferenceGeometry)
	assert.True(t, section.CuttingPlanes[0].HideReferenceGeometry)
	assert.Len(t, section.CuttingPlanes[1].ReferenceGeometry, 4)
	f.assertInSync(t)
}

func TestSectionLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)

	f.mirror.ActivateSection(3)
	f.waitIdle(t)
	section, _ := f.mirror.Snapshot().Section(3)
	assert.True(t, section.Active)

	f.mirror.AddPlane(3, zPlane(-1))
	f.mirror.ClearSection(3)
	f.mirror.DeactivateSection(3)
	f.waitIdle(t)
	section, _ = f.mirror.Snapshot().Section(3)
	assert.False(t, section.Active)
	assert.Empty(t, section.CuttingPlanes)
	f.assertInSync(t)
}

func TestEngineChangesReachMirror(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)

	dragged := geometry.NewPlane(geometry.NewVector3(0, 0, 1), -6)
	require.NoError(t, f.viewer.DragPlane(0, 0, dragged))
	f.waitIdle(t)
	plane, _ := f.mirror.Snapshot().Plane(0, 0)
	assert.Equal(t, dragged, plane.Plane)

	f.viewer.AddSection()
	f.waitIdle(t)
	assert.Len(t, f.mirror.Snapshot().Sections, viewer.DefaultSections+1)

	require.NoError(t, f.viewer.SelectFace(0, 2))
	f.waitIdle(t)
	require.NotNil(t, f.mirror.Snapshot().SelectedFace)

	f.mirror.AddPlaneFromFace(1)
	f.waitIdle(t)
	assert.Equal(t, 1, f.mirror.Snapshot().PlaneCount(1))

	big := stl.NewBox("big", geometry.NewVector3(-10, -10, -10), geometry.NewVector3(20, 20, 20))
	f.viewer.SwitchModel(big)
	f.waitIdle(t)
	snap := f.mirror.Snapshot()
	assert.Equal(t, big.BoundingBox(), snap.BoundingBox)
	assert.Nil(t, snap.SelectedFace)
	assert.Zero(t, snap.PlaneCount(0))
	f.assertInSync(t)
}

func TestManagerSwapResyncs(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	f.mirror.AddPlane(0, zPlane(-5))
	f.waitIdle(t)

	f.service.SetManager(viewer.New(viewer.WithSections(2)))
	f.waitIdle(t)

	snap := f.mirror.Snapshot()
	assert.Len(t, snap.Sections, 2)
	assert.Zero(t, snap.PlaneCount(0))
}

func TestEngineErrorsReported(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	boom := errors.New("bounds unavailable")

	f.viewer.FailNext(boom)
	require.NoError(t, f.viewer.SetModelVisibility(0, true))
	f.waitIdle(t)

	errs := f.errors.all()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}

func TestResync(t *testing.T) {
	f := newFixture(t, nil)
	f.init(t)
	version := f.mirror.Snapshot().Version

	f.mirror.Resync()
	f.waitIdle(t)
	assert.Greater(t, f.mirror.Snapshot().Version, version)
	f.assertInSync(t)
}
