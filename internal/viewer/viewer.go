// Package viewer is an in-memory 3D engine exposing the cutting manager
// port. It holds loaded STL models, cutting sections and a selection, and
// raises the same notifications a rendering engine would. Operations can
// be delayed and made to fail to exercise asynchronous callers.
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

const (
	// DefaultSections is the number of cutting sections a new viewer has
	DefaultSections = 4
	// DefaultCapacity is the number of planes a section accepts
	DefaultCapacity = 6
)

// node is a model loaded into the scene
type node struct {
	model   *stl.Model
	visible bool
}

type cappingState struct {
	visible   bool
	faceColor *cutting.Color
	lineColor *cutting.Color
}

// Viewer implements cutting.Manager over a set of loaded models
type Viewer struct {
	mu        sync.Mutex
	sections  []*Section
	capacity  int
	capping   cappingState
	nodes     []node
	selection cutting.Selection
	callbacks []*cutting.Callbacks
	latency   time.Duration
	failures  []error
	logger    *slog.Logger
}

// Option configures a Viewer
type Option func(*Viewer)

// WithSections sets the initial number of cutting sections
func WithSections(n int) Option {
	return func(v *Viewer) {
		v.sections = make([]*Section, 0, n)
		for i := 0; i < n; i++ {
			v.sections = append(v.sections, &Section{viewer: v})
		}
	}
}

// WithCapacity sets how many planes each section accepts
func WithCapacity(n int) Option {
	return func(v *Viewer) {
		if n > 0 {
			v.capacity = n
		}
	}
}

// WithLatency delays every blocking engine operation
func WithLatency(d time.Duration) Option {
	return func(v *Viewer) {
		v.latency = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(v *Viewer) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates an empty viewer
func New(opts ...Option) *Viewer {
	gray, _ := cutting.ParseHexColor(cutting.DefaultCappingColor)
	v := &Viewer{
		capacity: DefaultCapacity,
		capping: cappingState{
			visible:   true,
			faceColor: cutting.ColorPtr(gray),
			lineColor: cutting.ColorPtr(gray),
		},
		logger: slog.New(slog.DiscardHandler),
	}
	WithSections(DefaultSections)(v)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetLatency changes the delay of blocking operations
func (v *Viewer) SetLatency(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.latency = d
}

// FailNext makes the next blocking operation fail with err. Calls queue up.
func (v *Viewer) FailNext(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures = append(v.failures, err)
}

// await simulates the asynchronous completion of an engine operation
func (v *Viewer) await(ctx context.Context) error {
	v.mu.Lock()
	latency := v.latency
	var failure error
	if len(v.failures) > 0 {
		failure = v.failures[0]
		v.failures = v.failures[1:]
	}
	v.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	return failure
}

// fire invokes a notification on every registered callback set, outside the lock
func (v *Viewer) fire(name string, call func(cb *cutting.Callbacks)) {
	v.mu.Lock()
	registered := append([]*cutting.Callbacks(nil), v.callbacks...)
	v.mu.Unlock()

	v.logger.Debug("engine notification", "callback", name, "listeners", len(registered))
	for _, cb := range registered {
		call(cb)
	}
}

// SetCallbacks implements cutting.Manager
func (v *Viewer) SetCallbacks(cb *cutting.Callbacks) {
	if cb == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.callbacks = append(v.callbacks, cb)
}

// UnsetCallbacks implements cutting.Manager
func (v *Viewer) UnsetCallbacks(cb *cutting.Callbacks) {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.callbacks[:0]
	for _, registered := range v.callbacks {
		if registered != cb {
			kept = append(kept, registered)
		}
	}
	v.callbacks = kept
}

// CallbackCount returns the number of registered callback sets
func (v *Viewer) CallbackCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.callbacks)
}

// CuttingSectionCount implements cutting.Manager
func (v *Viewer) CuttingSectionCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.sections)
}

// CuttingSection implements cutting.Manager
func (v *Viewer) CuttingSection(index int) cutting.Section {
	v.mu.Lock()
	defer v.mu.Unlock()
	if index < 0 || index >= len(v.sections) {
		return nil
	}
	return v.sections[index]
}

// CappingGeometryVisibility implements cutting.Manager
func (v *Viewer) CappingGeometryVisibility() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.capping.visible
}

// SetCappingGeometryVisibility implements cutting.Manager
func (v *Viewer) SetCappingGeometryVisibility(ctx context.Context, visible bool) error {
	if err := v.await(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.capping.visible = visible
	return nil
}

// CappingFaceColor implements cutting.Manager
func (v *Viewer) CappingFaceColor() *cutting.Color {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyColor(v.capping.faceColor)
}

// SetCappingFaceColor implements cutting.Manager
func (v *Viewer) SetCappingFaceColor(ctx context.Context, color *cutting.Color) error {
	if err := v.await(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.capping.faceColor = copyColor(color)
	return nil
}

// CappingLineColor implements cutting.Manager
func (v *Viewer) CappingLineColor() *cutting.Color {
	v.mu.Lock()
	defer v.mu.Unlock()
	return copyColor(v.capping.lineColor)
}

// SetCappingLineColor implements cutting.Manager
func (v *Viewer) SetCappingLineColor(ctx context.Context, color *cutting.Color) error {
	if err := v.await(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.capping.lineColor = copyColor(color)
	return nil
}

// Model implements cutting.Manager
func (v *Viewer) Model() cutting.Model {
	return v
}

// SelectionManager implements cutting.Manager
func (v *Viewer) SelectionManager() cutting.SelectionManager {
	return v
}

// ModelBounding implements cutting.Model. Bounds are always exact, so
// tight is accepted for compatibility only.
func (v *Viewer) ModelBounding(ctx context.Context, tight, visibleOnly bool) (geometry.BoundingBox, error) {
	if err := v.await(ctx); err != nil {
		return geometry.BoundingBox{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	box := geometry.NewBoundingBox()
	for _, n := range v.nodes {
		if visibleOnly && !n.visible {
			continue
		}
		box.Union(n.model.BoundingBox())
	}
	if box.IsEmpty() {
		return geometry.BoundingBox{}, nil
	}
	return box, nil
}

// Last implements cutting.SelectionManager
func (v *Viewer) Last() cutting.Selection {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection
}

// LoadModel replaces the scene with a single model and reports the new
// structure
func (v *Viewer) LoadModel(model *stl.Model) {
	v.mu.Lock()
	v.nodes = []node{{model: model, visible: true}}
	v.selection = nil
	v.mu.Unlock()

	v.logger.Info("model loaded", "name", model.Name, "triangles", model.TriangleCount())
	v.fire("modelStructureReady", func(cb *cutting.Callbacks) {
		if cb.ModelStructureReady != nil {
			cb.ModelStructureReady()
		}
	})
}

// AddModel adds a model next to the loaded ones and returns its node index
func (v *Viewer) AddModel(model *stl.Model) int {
	v.mu.Lock()
	v.nodes = append(v.nodes, node{model: model, visible: true})
	index := len(v.nodes) - 1
	v.mu.Unlock()

	v.fire("modelStructureReady", func(cb *cutting.Callbacks) {
		if cb.ModelStructureReady != nil {
			cb.ModelStructureReady()
		}
	})
	return index
}

// SwitchModel replaces the scene with another model. Cutting sections are
// emptied and deactivated, like an engine does when switching models.
func (v *Viewer) SwitchModel(model *stl.Model) {
	v.mu.Lock()
	v.nodes = []node{{model: model, visible: true}}
	v.selection = nil
	for _, s := range v.sections {
		s.active = false
		s.planes = nil
	}
	v.mu.Unlock()

	v.logger.Info("model switched", "name", model.Name, "triangles", model.TriangleCount())
	v.fire("modelSwitched", func(cb *cutting.Callbacks) {
		if cb.ModelSwitched != nil {
			cb.ModelSwitched()
		}
	})
}

// SetModelVisibility shows or hides a loaded model
func (v *Viewer) SetModelVisibility(index int, visible bool) error {
	v.mu.Lock()
	if index < 0 || index >= len(v.nodes) {
		v.mu.Unlock()
		return fmt.Errorf("no model at index %d", index)
	}
	v.nodes[index].visible = visible
	v.mu.Unlock()

	v.fire("visibilityChanged", func(cb *cutting.Callbacks) {
		if cb.VisibilityChanged != nil {
			cb.VisibilityChanged()
		}
	})
	return nil
}

// LoadSections replaces all cutting sections with n empty ones
func (v *Viewer) LoadSections(n int) {
	v.mu.Lock()
	v.sections = make([]*Section, 0, n)
	for i := 0; i < n; i++ {
		v.sections = append(v.sections, &Section{viewer: v})
	}
	v.mu.Unlock()

	v.fire("cuttingSectionsLoaded", func(cb *cutting.Callbacks) {
		if cb.CuttingSectionsLoaded != nil {
			cb.CuttingSectionsLoaded()
		}
	})
}

// AddSection appends an empty cutting section and returns its index
func (v *Viewer) AddSection() int {
	v.mu.Lock()
	v.sections = append(v.sections, &Section{viewer: v})
	index := len(v.sections) - 1
	v.mu.Unlock()

	v.fire("addCuttingSection", func(cb *cutting.Callbacks) {
		if cb.AddCuttingSection != nil {
			cb.AddCuttingSection()
		}
	})
	return index
}

// RemoveSection removes a cutting section
func (v *Viewer) RemoveSection(index int) error {
	v.mu.Lock()
	if index < 0 || index >= len(v.sections) {
		v.mu.Unlock()
		return fmt.Errorf("no cutting section at index %d", index)
	}
	v.sections = append(v.sections[:index], v.sections[index+1:]...)
	v.mu.Unlock()

	v.fire("removeCuttingSection", func(cb *cutting.Callbacks) {
		if cb.RemoveCuttingSection != nil {
			cb.RemoveCuttingSection()
		}
	})
	return nil
}

// DragPlane moves a plane the way an interactive drag does and reports the
// drag end. Reference geometry is left where it was.
func (v *Viewer) DragPlane(sectionIndex, planeIndex int, plane geometry.Plane) error {
	v.mu.Lock()
	if sectionIndex < 0 || sectionIndex >= len(v.sections) {
		v.mu.Unlock()
		return fmt.Errorf("no cutting section at index %d", sectionIndex)
	}
	section := v.sections[sectionIndex]
	if planeIndex < 0 || planeIndex >= len(section.planes) {
		v.mu.Unlock()
		return fmt.Errorf("no cutting plane at index %d in section %d", planeIndex, sectionIndex)
	}
	section.planes[planeIndex].Plane = plane
	v.mu.Unlock()

	v.fire("cuttingPlaneDragEnd", func(cb *cutting.Callbacks) {
		if cb.CuttingPlaneDragEnd != nil {
			cb.CuttingPlaneDragEnd(sectionIndex, planeIndex)
		}
	})
	return nil
}

func copyColor(c *cutting.Color) *cutting.Color {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}

func copyGeometry(points []geometry.Vector3) []geometry.Vector3 {
	if len(points) == 0 {
		return nil
	}
	return append([]geometry.Vector3(nil), points...)
}
