package service

import (
	"context"
	"fmt"

	"github.com/philipparndt/gosection/pkg/cutting"
)

// newCallbacks builds the notification slots bound to m. Every slot checks
// that m is still the attached manager before touching any state.
func (s *Service) newCallbacks(m cutting.Manager) *cutting.Callbacks {
	guard := func(name string, fn func()) func() {
		return func() {
			if !s.isCurrent(m) {
				s.logger.Debug("ignoring notification from detached manager", "callback", name)
				return
			}
			fn()
		}
	}

	return &cutting.Callbacks{
		ModelSwitched: guard("modelSwitched", func() {
			// a face of the previous model is no longer pickable
			s.mu.Lock()
			s.face = nil
			s.mu.Unlock()
			s.refreshBoundingBoxFrom(m)
			s.resizeHidden(m.CuttingSectionCount(), true)
			s.emit(cutting.Event{Type: cutting.EventSectionsChange})
		}),
		ModelStructureReady: guard("modelStructureReady", func() {
			s.refreshBoundingBoxFrom(m)
		}),
		VisibilityChanged: guard("visibilityChanged", func() {
			s.refreshBoundingBoxFrom(m)
		}),
		CuttingSectionsLoaded: guard("cuttingSectionsLoaded", func() {
			s.resizeHidden(m.CuttingSectionCount(), true)
			s.emit(cutting.Event{Type: cutting.EventSectionsChange})
		}),
		AddCuttingSection: guard("addCuttingSection", func() {
			s.resizeHidden(m.CuttingSectionCount(), false)
			s.emit(cutting.Event{Type: cutting.EventSectionAdded})
		}),
		RemoveCuttingSection: guard("removeCuttingSection", func() {
			s.resizeHidden(m.CuttingSectionCount(), false)
			s.emit(cutting.Event{Type: cutting.EventSectionRemoved})
		}),
		CuttingPlaneDragEnd: func(section, planeIndex int) {
			if !s.isCurrent(m) {
				return
			}
			s.emit(cutting.Event{Type: cutting.EventPlaneChange, SectionIndex: section, PlaneIndex: planeIndex})
		},
		SelectionArray: guard("selectionArray", func() {
			s.updateSelectedFace(m)
		}),
	}
}

// SelectedFace returns the face currently selected in the engine
func (s *Service) SelectedFace() (face cutting.SelectedFace, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.face == nil {
		return cutting.SelectedFace{}, false
	}
	return *s.face, true
}

// updateSelectedFace re-reads the engine selection. The event is emitted
// even when the face did not change.
func (s *Service) updateSelectedFace(m cutting.Manager) {
	var face *cutting.SelectedFace
	if sm := m.SelectionManager(); sm != nil {
		if sel := sm.Last(); sel != nil && sel.IsFaceSelection() {
			face = &cutting.SelectedFace{Position: sel.Position(), Normal: sel.FaceNormal()}
		}
	}

	s.mu.Lock()
	s.face = face
	s.mu.Unlock()

	s.emit(cutting.Event{Type: cutting.EventFaceSelectionChange})
}

// RefreshBoundingBox recomputes the cached bounding box from the visible
// parts of the model
func (s *Service) RefreshBoundingBox(ctx context.Context) error {
	m, err := s.attached()
	if err != nil {
		return err
	}
	return s.refreshBoundingBox(ctx, m)
}

func (s *Service) refreshBoundingBox(ctx context.Context, m cutting.Manager) error {
	model := m.Model()
	if model == nil {
		return fmt.Errorf("engine has no model")
	}
	box, err := model.ModelBounding(ctx, true, true)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.manager != m {
		s.mu.Unlock()
		return nil
	}
	s.box = box
	s.mu.Unlock()

	s.logger.Debug("bounding box updated", "min", box.Min.String(), "max", box.Max.String())
	s.emit(cutting.Event{Type: cutting.EventBoundingBoxChange, Value: box})
	return nil
}

// refreshBoundingBoxFrom runs a refresh for a notification. Failures have
// no caller to return to, so they are logged and emitted as error events.
func (s *Service) refreshBoundingBoxFrom(m cutting.Manager) {
	if err := s.refreshBoundingBox(s.ctx, m); err != nil {
		s.logger.Warn("failed to update bounding box", "error", err)
		s.emit(cutting.Event{Type: cutting.EventError, Value: fmt.Errorf("failed to update bounding box: %w", err)})
	}
}
