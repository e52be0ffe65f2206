package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/philipparndt/gosection/internal/loader"
	"github.com/philipparndt/gosection/internal/mirror"
	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

// Runner executes scripts step by step against a started session
type Runner struct {
	session *Session
	loader  *loader.Loader
	out     io.Writer
	logger  *slog.Logger
	loaded  []*loader.Result
}

// NewRunner creates a runner. print steps write to out.
func NewRunner(session *Session, ld *loader.Loader, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{session: session, loader: ld, out: out, logger: logger}
}

// Run loads the script's model, if any, and applies every step. Each step
// waits for the mirror to settle before the next one starts. It stops at
// the first step whose outcome differs from the script's expectation.
func (r *Runner) Run(ctx context.Context, sc *Script) error {
	if sc.Model != "" || sc.Box != nil {
		model, err := r.model(ctx, sc, sc.Model, sc.Box)
		if err != nil {
			return err
		}
		if err := r.session.Load(ctx, model); err != nil {
			return err
		}
	}
	if !r.session.Loaded() {
		return errors.New("no model loaded: the script needs a model or a box")
	}
	if err := r.session.TakeErrors(); err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	for i, st := range sc.Steps {
		if err := r.step(ctx, sc, i, st); err != nil {
			return err
		}
	}
	r.logger.Info("script finished", "name", sc.Name, "steps", len(sc.Steps))
	return nil
}

func (r *Runner) step(ctx context.Context, sc *Script, i int, st Step) error {
	name := fmt.Sprintf("step %d (%s)", i+1, st.Op)
	r.logger.Debug("running step", "step", i+1, "op", st.Op, "section", st.Section, "plane", st.Plane)

	err := r.apply(ctx, sc, st)
	if waitErr := r.session.Mirror.WaitIdle(ctx); waitErr != nil {
		return fmt.Errorf("%s: %w", name, waitErr)
	}
	err = errors.Join(err, r.session.TakeErrors())

	switch {
	case st.Fails && err == nil:
		return fmt.Errorf("%s: expected the step to fail", name)
	case st.Fails:
		r.logger.Info("step failed as expected", "step", i+1, "op", st.Op, "error", err)
	case err != nil:
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, sc *Script, st Step) error {
	m := r.session.Mirror
	v := r.session.Viewer

	switch st.Op {
	case OpAddPlane:
		plane := cutting.CuttingPlane{Plane: st.plane(), HideReferenceGeometry: st.Hidden}
		var err error
		if plane.Color, err = optionalColor(st.Color); err != nil {
			return err
		}
		if plane.LineColor, err = optionalColor(st.LineColor); err != nil {
			return err
		}
		plane.Opacity = st.Opacity
		m.AddPlane(st.Section, plane)
	case OpAddPlaneFromFace:
		m.AddPlaneFromFace(st.Section)
	case OpRemovePlane:
		m.RemovePlane(st.Section, st.Plane)
	case OpUpdatePlane:
		patch, err := r.patch(st)
		if err != nil {
			return err
		}
		m.UpdatePlane(st.Section, st.Plane, patch)
	case OpInvertPlane:
		m.InvertPlane(st.Section, st.Plane)
	case OpPlaneColor:
		color, err := cutting.ParseHexColor(*st.Color)
		if err != nil {
			return err
		}
		m.SetPlaneColor(st.Section, st.Plane, color)
	case OpPlaneLineColor:
		color, err := cutting.ParseHexColor(*st.LineColor)
		if err != nil {
			return err
		}
		m.SetPlaneLineColor(st.Section, st.Plane, color)
	case OpPlaneOpacity:
		m.SetPlaneOpacity(st.Section, st.Plane, *st.Opacity)
	case OpPlaneVisibility:
		m.SetPlaneVisibility(st.Section, st.Plane, *st.Visible)
	case OpSectionVisibility:
		m.SetSectionVisibility(st.Section, *st.Visible)
	case OpActivate:
		m.ActivateSection(st.Section)
	case OpDeactivate:
		m.DeactivateSection(st.Section)
	case OpClear:
		m.ClearSection(st.Section)
	case OpSelectFace:
		v.SelectFaceAt(vector(*st.Position), vector(*st.Normal))
	case OpClearSelection:
		v.ClearSelection()
	case OpDrag:
		return v.DragPlane(st.Section, st.Plane, st.plane())
	case OpCapping:
		return r.capping(ctx, st)
	case OpModelVisibility:
		return v.SetModelVisibility(st.Node, *st.Visible)
	case OpSwitchModel:
		model, err := r.model(ctx, sc, st.Model, st.Box)
		if err != nil {
			return err
		}
		return r.session.Load(ctx, model)
	case OpAddSection:
		v.AddSection()
	case OpRemoveSection:
		return v.RemoveSection(st.Section)
	case OpExpect:
		return check(m.Snapshot(), st)
	case OpPrint:
		Print(r.out, m.Snapshot())
	}
	return nil
}

// patch builds an update from the step. An offset without a normal keeps
// the mirrored plane's normal.
func (r *Runner) patch(st Step) (cutting.PlanePatch, error) {
	var patch cutting.PlanePatch
	switch {
	case st.Normal != nil:
		plane := st.plane()
		patch.Plane = &plane
	case st.D != nil:
		current, ok := r.session.Mirror.Snapshot().Plane(st.Section, st.Plane)
		if !ok {
			return patch, cutting.PlaneIndexError(st.Section, st.Plane)
		}
		plane := geometry.NewPlane(current.Plane.Normal, *st.D)
		patch.Plane = &plane
	}

	var err error
	if patch.Color, err = optionalColor(st.Color); err != nil {
		return patch, err
	}
	if patch.LineColor, err = optionalColor(st.LineColor); err != nil {
		return patch, err
	}
	patch.Opacity = st.Opacity
	if patch.IsEmpty() {
		return patch, errors.New("update changes nothing")
	}
	return patch, nil
}

// capping applies the capping settings present on the step. An empty color
// clears it.
func (r *Runner) capping(ctx context.Context, st Step) error {
	svc := r.session.Service
	if st.Visible != nil {
		if err := svc.SetCappingGeometryVisibility(ctx, *st.Visible); err != nil {
			return err
		}
	}
	if st.Color != nil {
		if err := svc.SetCappingFaceColor(ctx, *st.Color); err != nil {
			return err
		}
	}
	if st.LineColor != nil {
		if err := svc.SetCappingLineColor(ctx, *st.LineColor); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) model(ctx context.Context, sc *Script, path string, box *Box) (*stl.Model, error) {
	if path == "" {
		lo, hi := box.bounds()
		return stl.NewBox("box", lo, hi), nil
	}
	res, err := r.loader.Load(ctx, sc.resolve(path))
	if err != nil {
		return nil, err
	}
	r.loaded = append(r.loaded, res)
	return res.Model, nil
}

// Close removes temporary files of rendered models
func (r *Runner) Close() error {
	var errs []error
	for _, res := range r.loaded {
		errs = append(errs, res.Close())
	}
	r.loaded = nil
	return errors.Join(errs...)
}

func optionalColor(hex *string) (*cutting.Color, error) {
	if hex == nil || *hex == "" {
		return nil, nil
	}
	color, err := cutting.ParseHexColor(*hex)
	if err != nil {
		return nil, err
	}
	return &color, nil
}

// check compares the snapshot with the step's expectations and reports
// every mismatch
func check(snap *mirror.Snapshot, st Step) error {
	e := st.Expect
	var problems []string
	mismatch := func(what string, want, got any) {
		problems = append(problems, fmt.Sprintf("%s: expected %v, got %v", what, want, got))
	}

	if e.Sections != nil && len(snap.Sections) != *e.Sections {
		mismatch("sections", *e.Sections, len(snap.Sections))
	}
	if e.Face != nil && (snap.SelectedFace != nil) != *e.Face {
		mismatch("face selected", *e.Face, snap.SelectedFace != nil)
	}

	if e.Planes != nil || e.Active != nil || e.Hidden != nil {
		section, ok := snap.Section(st.Section)
		if !ok {
			return cutting.SectionIndexError(st.Section)
		}
		if e.Planes != nil && len(section.CuttingPlanes) != *e.Planes {
			mismatch("planes", *e.Planes, len(section.CuttingPlanes))
		}
		if e.Active != nil && section.Active != *e.Active {
			mismatch("active", *e.Active, section.Active)
		}
		if e.Hidden != nil && section.HideReferenceGeometry != *e.Hidden {
			mismatch("hidden", *e.Hidden, section.HideReferenceGeometry)
		}
	}

	if e.Opacity != nil || e.Color != nil || e.D != nil {
		plane, ok := snap.Plane(st.Section, st.Plane)
		if !ok {
			return cutting.PlaneIndexError(st.Section, st.Plane)
		}
		if e.Opacity != nil && (plane.Opacity == nil || *plane.Opacity != *e.Opacity) {
			mismatch("opacity", *e.Opacity, formatFloat(plane.Opacity))
		}
		if e.Color != nil && formatColor(plane.Color) != strings.ToLower(*e.Color) {
			mismatch("color", *e.Color, formatColor(plane.Color))
		}
		if e.D != nil && !approx(plane.Plane.D, *e.D) {
			mismatch("d", *e.D, plane.Plane.D)
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func approx(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}
