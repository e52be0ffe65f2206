// Package mirror keeps a consumer-side snapshot of the cutting sections in
// step with the synchronization service. All updates run on a single event
// loop: intents from the consumer, service events, and completions of
// engine operations are queued and handled one at a time.
//
// Three update strategies keep the snapshot current. Structural changes
// replace every section. Section and plane changes, and the completion of
// every asynchronous intent, replace the one affected section with the
// service's authoritative copy. Color, line color, opacity and plane
// inversion are patched into the snapshot right away.
//
// Intents against a section with an operation in flight wait until it
// settles, so a completion never overwrites a newer edit.
package mirror

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/geometry"
)

// Backend is the synchronization service as seen by the mirror
type Backend interface {
	On(typ cutting.EventType, fn func(cutting.Event)) (remove func())

	CuttingSections() []cutting.CuttingSection
	CuttingSection(index int) (cutting.CuttingSection, bool)
	SelectedFace() (cutting.SelectedFace, bool)

	AddCuttingPlane(ctx context.Context, sectionIndex int, plane cutting.CuttingPlane) error
	AddPlaneFromSelectedFace(ctx context.Context, sectionIndex int) error
	RemoveCuttingPlane(ctx context.Context, sectionIndex, planeIndex int) error
	UpdateCuttingPlane(ctx context.Context, sectionIndex, planeIndex int, patch cutting.PlanePatch) error
	SetCuttingPlaneVisibility(ctx context.Context, sectionIndex, planeIndex int, visible bool) error
	SetSectionGeometryVisibility(ctx context.Context, sectionIndex int, visible bool) error
	ActivateCuttingSection(ctx context.Context, sectionIndex int) error
	DeactivateCuttingSection(ctx context.Context, sectionIndex int) error
	ClearCuttingSection(ctx context.Context, sectionIndex int) error

	SetCuttingPlaneColor(sectionIndex, planeIndex int, color cutting.Color) error
	SetCuttingPlaneLineColor(sectionIndex, planeIndex int, color cutting.Color) error
	SetCuttingPlaneOpacity(sectionIndex, planeIndex int, opacity float64) error
}

// Mirror owns the snapshot and its event loop
type Mirror struct {
	backend Backend
	logger  *slog.Logger
	queue   *queue
	snap    atomic.Pointer[Snapshot]
	seq     atomic.Uint64
	remove  []func()

	subMu     sync.Mutex
	nextSubID int
	snapSubs  map[int]func(*Snapshot)
	errorSubs map[int]func(error)

	// owned by the loop goroutine
	ctx      context.Context
	inflight map[int]bool
	skipped  map[int]uint64
	pending  map[int][]intent
	waiters  []chan struct{}
	workers  sync.WaitGroup
}

// Option configures a Mirror
type Option func(*Mirror)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a mirror subscribed to the backend's events. Events are
// queued until Run is called.
func New(backend Backend, opts ...Option) *Mirror {
	m := &Mirror{
		backend:   backend,
		logger:    slog.New(slog.DiscardHandler),
		queue:     newQueue(),
		snapSubs:  make(map[int]func(*Snapshot)),
		errorSubs: make(map[int]func(error)),
		inflight:  make(map[int]bool),
		skipped:   make(map[int]uint64),
		pending:   make(map[int][]intent),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.snap.Store(&Snapshot{State: StateUninitialized})

	for _, typ := range []cutting.EventType{
		cutting.EventSectionsChange,
		cutting.EventSectionAdded,
		cutting.EventSectionRemoved,
		cutting.EventServiceReset,
		cutting.EventSectionChange,
		cutting.EventPlaneAdded,
		cutting.EventPlaneRemoved,
		cutting.EventPlaneChange,
		cutting.EventBoundingBoxChange,
		cutting.EventFaceSelectionChange,
		cutting.EventError,
	} {
		m.remove = append(m.remove, backend.On(typ, func(ev cutting.Event) {
			m.queue.push(serviceEvent{ev: ev, seq: m.seq.Add(1)})
		}))
	}
	return m
}

// Close unsubscribes from the backend
func (m *Mirror) Close() {
	for _, remove := range m.remove {
		remove()
	}
	m.remove = nil
}

// Snapshot returns the current snapshot
func (m *Mirror) Snapshot() *Snapshot {
	return m.snap.Load()
}

// Subscribe registers fn to receive every new snapshot. fn runs on the
// event loop and must not block.
func (m *Mirror) Subscribe(fn func(*Snapshot)) (remove func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextSubID++
	id := m.nextSubID
	m.snapSubs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.snapSubs, id)
	}
}

// OnError registers fn to receive failed intents and engine errors
func (m *Mirror) OnError(fn func(error)) (remove func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextSubID++
	id := m.nextSubID
	m.errorSubs[id] = fn
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.errorSubs, id)
	}
}

// WaitIdle blocks until every queued event is handled and no engine
// operation is in flight
func (m *Mirror) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	m.queue.push(barrierEvent{done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run handles events until ctx is done. It must be called once. Engine
// operations still running are waited for before it returns.
func (m *Mirror) Run(ctx context.Context) error {
	m.ctx = ctx
	defer m.workers.Wait()

	m.logger.Debug("mirror loop started")
	for {
		ev, ok := m.queue.pop(ctx)
		if !ok {
			m.logger.Debug("mirror loop stopped")
			return ctx.Err()
		}
		m.handle(ev)
		m.checkIdle()
	}
}

type event any

type initEvent struct {
	box geometry.BoundingBox
}

// serviceEvent is numbered in the order the service emitted it
type serviceEvent struct {
	ev  cutting.Event
	seq uint64
}

// resultEvent carries the section as read right after the engine call.
// seen is the last service event number issued before that read.
type resultEvent struct {
	in      intent
	section cutting.CuttingSection
	found   bool
	seen    uint64
	err     error
}

type resyncEvent struct{}

type barrierEvent struct {
	done chan struct{}
}

func (m *Mirror) handle(ev event) {
	switch ev := ev.(type) {
	case initEvent:
		m.handleInit(ev.box)
	case intent:
		m.handleIntent(ev)
	case resultEvent:
		m.handleResult(ev)
	case serviceEvent:
		m.handleServiceEvent(ev)
	case resyncEvent:
		if m.ready() {
			m.fullResync("requested")
		}
	case barrierEvent:
		m.waiters = append(m.waiters, ev.done)
	}
}

func (m *Mirror) checkIdle() {
	if len(m.waiters) == 0 || len(m.inflight) > 0 || m.queue.len() > 0 {
		return
	}
	for _, done := range m.waiters {
		close(done)
	}
	m.waiters = nil
}

func (m *Mirror) ready() bool {
	return m.Snapshot().State == StateReady
}

func (m *Mirror) handleInit(box geometry.BoundingBox) {
	if m.ready() {
		m.logger.Debug("mirror already initialized, resyncing")
	}
	sections := m.backend.CuttingSections()
	face := selectedFace(m.backend)
	m.publish(func(s *Snapshot) {
		s.State = StateReady
		s.BoundingBox = box
		s.Sections = sections
		s.SelectedFace = face
	})
	m.logger.Info("mirror ready", "sections", len(sections))
}

func (m *Mirror) handleServiceEvent(se serviceEvent) {
	if !m.ready() {
		return
	}

	ev := se.ev

	switch ev.Type {
	case cutting.EventSectionsChange, cutting.EventSectionAdded, cutting.EventSectionRemoved, cutting.EventServiceReset:
		m.fullResync(string(ev.Type))

	case cutting.EventSectionChange, cutting.EventPlaneAdded, cutting.EventPlaneRemoved, cutting.EventPlaneChange:
		if m.inflight[ev.SectionIndex] {
			// the completion of the running operation resyncs the section
			m.skipped[ev.SectionIndex] = max(m.skipped[ev.SectionIndex], se.seq)
			return
		}
		m.resyncSection(ev.SectionIndex)

	case cutting.EventBoundingBoxChange:
		if box, ok := ev.Value.(geometry.BoundingBox); ok {
			m.publish(func(s *Snapshot) { s.BoundingBox = box })
		}

	case cutting.EventFaceSelectionChange:
		face := selectedFace(m.backend)
		m.publish(func(s *Snapshot) { s.SelectedFace = face })

	case cutting.EventError:
		err, _ := ev.Value.(error)
		m.reportError(&OpError{Op: "engine notification", Section: -1, Plane: -1, Err: err})
	}
}

func (m *Mirror) handleIntent(in intent) {
	if !m.ready() {
		m.reportError(in.fail(ErrNotReady))
		return
	}
	if m.inflight[in.section] {
		m.logger.Debug("intent queued behind running operation", "op", in.op, "section", in.section)
		m.pending[in.section] = append(m.pending[in.section], in)
		return
	}
	m.start(in)
}

// start applies the optimistic patch and runs the engine call of in
func (m *Mirror) start(in intent) {
	if in.patch != nil {
		m.patchPlane(in.section, in.plane, in.patch)
	}

	if in.sync != nil {
		if err := in.sync(m.backend); err != nil {
			m.reportError(in.fail(err))
			m.resyncSection(in.section)
		}
		return
	}

	m.inflight[in.section] = true
	ctx := m.ctx
	snap := m.Snapshot()
	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		err := in.async(ctx, m.backend, snap)
		seen := m.seq.Load()
		section, found := m.backend.CuttingSection(in.section)
		m.queue.push(resultEvent{in: in, section: section, found: found, seen: seen, err: err})
	}()
}

func (m *Mirror) handleResult(r resultEvent) {
	index := r.in.section
	delete(m.inflight, index)
	stale := m.skipped[index] > r.seen
	delete(m.skipped, index)

	if r.err != nil {
		m.reportError(r.in.fail(r.err))
	}
	switch {
	case r.err == nil && r.in.keepPatch && !stale:
	case stale:
		// the section may have changed after the worker read it
		m.resyncSection(index)
	default:
		m.replaceSection(index, r.section, r.found)
	}

	m.drain(index)
}

// drain starts queued intents of a section until one goes in flight
func (m *Mirror) drain(index int) {
	for len(m.pending[index]) > 0 && !m.inflight[index] {
		next := m.pending[index][0]
		m.pending[index] = m.pending[index][1:]
		m.start(next)
	}
	if len(m.pending[index]) == 0 {
		delete(m.pending, index)
	}
}

func (m *Mirror) fullResync(reason string) {
	sections := m.backend.CuttingSections()
	face := selectedFace(m.backend)
	m.publish(func(s *Snapshot) {
		s.Sections = sections
		s.SelectedFace = face
	})
	m.logger.Debug("mirror resynced", "reason", reason, "sections", len(sections))
}

func (m *Mirror) resyncSection(index int) {
	section, found := m.backend.CuttingSection(index)
	m.replaceSection(index, section, found)
}

// replaceSection swaps one section of the snapshot. A section the mirror
// or the service does not know about means the layout changed, so
// everything is reloaded instead.
func (m *Mirror) replaceSection(index int, section cutting.CuttingSection, found bool) {
	if index < 0 {
		return
	}
	if !found || index >= len(m.Snapshot().Sections) {
		m.fullResync("section layout changed")
		return
	}
	m.publish(func(s *Snapshot) {
		sections := append([]cutting.CuttingSection(nil), s.Sections...)
		sections[index] = section
		s.Sections = sections
	})
	m.logger.Debug("section resynced", "section", index, "planes", len(section.CuttingPlanes))
}

// patchPlane applies fn to a copy of one mirrored plane
func (m *Mirror) patchPlane(sectionIndex, planeIndex int, fn func(p *cutting.CuttingPlane)) {
	cur := m.Snapshot()
	if _, ok := cur.Plane(sectionIndex, planeIndex); !ok {
		return
	}
	section, err := cutting.CloneSection(cur.Sections[sectionIndex])
	if err != nil {
		m.logger.Warn("failed to patch plane", "section", sectionIndex, "plane", planeIndex, "error", err)
		return
	}
	fn(&section.CuttingPlanes[planeIndex])

	m.publish(func(s *Snapshot) {
		sections := append([]cutting.CuttingSection(nil), s.Sections...)
		sections[sectionIndex] = section
		s.Sections = sections
	})
}

// publish derives the next snapshot from the current one and notifies
// subscribers
func (m *Mirror) publish(fn func(s *Snapshot)) {
	cur := m.snap.Load()
	next := *cur
	fn(&next)
	next.Version = cur.Version + 1
	m.snap.Store(&next)

	m.subMu.Lock()
	subs := make([]func(*Snapshot), 0, len(m.snapSubs))
	for _, fn := range m.snapSubs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(&next)
	}
}

func (m *Mirror) reportError(err error) {
	m.logger.Warn("cutting operation failed", "error", err)

	m.subMu.Lock()
	subs := make([]func(error), 0, len(m.errorSubs))
	for _, fn := range m.errorSubs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(err)
	}
}

func selectedFace(b Backend) *cutting.SelectedFace {
	face, ok := b.SelectedFace()
	if !ok {
		return nil
	}
	return &face
}
