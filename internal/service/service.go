// Package service synchronizes the cutting domain model with an engine's
// cutting manager. It validates requests, caches the model bounding box,
// the selected face and the per-section reference geometry flags, and
// translates engine notifications into domain events.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// Service mediates between the cutting domain model and an engine manager.
// It is safe for concurrent use. Engine calls are not made while the
// internal lock is held, since the engine may notify synchronously. The
// exception is SetManager, which unbinds, binds and counts sections under
// the lock so that the swap is atomic with the reference update.
type Service struct {
	mu        sync.Mutex
	manager   cutting.Manager
	callbacks *cutting.Callbacks
	box       geometry.BoundingBox
	face      *cutting.SelectedFace
	hidden    []bool
	capping   cutting.Configuration

	listeners cutting.Listeners
	logger    *slog.Logger

	// ctx bounds engine calls made from engine notifications
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBoundingBox seeds the bounding box used before the engine reports one
func WithBoundingBox(box geometry.BoundingBox) Option {
	return func(s *Service) {
		s.box = box
	}
}

// New creates a service without an attached manager
func New(opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		logger:  slog.New(slog.DiscardHandler),
		capping: cutting.DefaultConfiguration(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close detaches the manager and cancels pending notification work
func (s *Service) Close() {
	s.SetManager(nil)
	s.cancel()
}

// On registers fn for events of the given type
func (s *Service) On(typ cutting.EventType, fn func(cutting.Event)) (remove func()) {
	return s.listeners.Add(typ, fn)
}

func (s *Service) emit(ev cutting.Event) {
	s.listeners.Call(ev)
}

// Manager returns the attached manager or nil
func (s *Service) Manager() cutting.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// SetManager swaps the engine manager. Callbacks of the previous manager
// are removed before the reference changes and the new manager's are bound
// in the same critical section. A service-reset event is always emitted,
// also when detaching with nil.
func (s *Service) SetManager(m cutting.Manager) {
	s.mu.Lock()
	if s.manager != nil && s.callbacks != nil {
		s.manager.UnsetCallbacks(s.callbacks)
		s.logger.Debug("unbound cutting manager")
	}

	s.manager = m
	s.callbacks = nil
	s.face = nil
	s.hidden = nil
	if m != nil {
		s.callbacks = s.newCallbacks(m)
		m.SetCallbacks(s.callbacks)
		s.hidden = make([]bool, m.CuttingSectionCount())
		s.logger.Debug("bound cutting manager", "sections", len(s.hidden))
	}
	s.mu.Unlock()

	s.emit(cutting.Event{Type: cutting.EventServiceReset})
}

// currentManager returns the attached manager or nil
func (s *Service) currentManager() cutting.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager
}

// isCurrent reports whether m is still the attached manager
func (s *Service) isCurrent(m cutting.Manager) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manager == m
}

// attached returns the manager or ErrNotAttached
func (s *Service) attached() (cutting.Manager, error) {
	m := s.currentManager()
	if m == nil {
		return nil, cutting.ErrNotAttached
	}
	return m, nil
}

// section resolves a section for a mutating call
func (s *Service) section(index int) (cutting.Section, error) {
	m, err := s.attached()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= m.CuttingSectionCount() {
		return nil, cutting.SectionIndexError(index)
	}
	section := m.CuttingSection(index)
	if section == nil {
		return nil, cutting.SectionIndexError(index)
	}
	return section, nil
}

// plane resolves a section and one of its planes for a mutating call
func (s *Service) plane(sectionIndex, planeIndex int) (cutting.Section, cutting.EnginePlane, error) {
	section, err := s.section(sectionIndex)
	if err != nil {
		return nil, cutting.EnginePlane{}, err
	}
	planes := section.CuttingPlanes()
	if planeIndex < 0 || planeIndex >= len(planes) {
		return nil, cutting.EnginePlane{}, cutting.PlaneIndexError(sectionIndex, planeIndex)
	}
	return section, planes[planeIndex], nil
}

// lookupSection resolves a section for a read-only query; nil when missing
func (s *Service) lookupSection(index int) cutting.Section {
	m := s.currentManager()
	if m == nil || index < 0 || index >= m.CuttingSectionCount() {
		return nil
	}
	return m.CuttingSection(index)
}

// BoundingBox returns the cached model bounding box
func (s *Service) BoundingBox() geometry.BoundingBox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.box
}

// hiddenFlags returns a copy of the per-section hidden flags
func (s *Service) hiddenFlags() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.hidden...)
}

func (s *Service) isHidden(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return index >= 0 && index < len(s.hidden) && s.hidden[index]
}

func (s *Service) setHidden(index int, hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.hidden) <= index {
		s.hidden = append(s.hidden, false)
	}
	s.hidden[index] = hidden
}

// resizeHidden grows or shrinks the flags to count, optionally clearing them
func (s *Service) resizeHidden(count int, reset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reset {
		s.hidden = make([]bool, count)
		return
	}
	for len(s.hidden) < count {
		s.hidden = append(s.hidden, false)
	}
	s.hidden = s.hidden[:count]
}
