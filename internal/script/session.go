package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/philipparndt/gosection/internal/config"
	"github.com/philipparndt/gosection/internal/mirror"
	"github.com/philipparndt/gosection/internal/service"
	"github.com/philipparndt/gosection/internal/viewer"
	"github.com/philipparndt/gosection/pkg/cutting"
	"github.com/philipparndt/gosection/pkg/stl"
)

// Session wires an in-memory viewer to the synchronization service and a
// mirror of its sections.
type Session struct {
	// ID tags every log line of the session
	ID      string
	Viewer  *viewer.Viewer
	Service *service.Service
	Mirror  *mirror.Mirror

	logger  *slog.Logger
	capping cutting.Configuration
	loaded  bool

	mu   sync.Mutex
	errs []error

	cancel context.CancelFunc
	done   chan error
}

// NewSession builds a session from the configuration. Start must be called
// before the first model is loaded.
func NewSession(cfg config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	capping, err := cfg.CuttingConfiguration()
	if err != nil {
		return nil, err
	}
	id := uuid.Must(uuid.NewV7()).String()
	logger = logger.With("session", id)

	v := viewer.New(
		viewer.WithSections(cfg.Viewer.Sections),
		viewer.WithCapacity(cfg.Viewer.Capacity),
		viewer.WithLatency(cfg.Viewer.Latency),
		viewer.WithLogger(logger.With("component", "viewer")),
	)
	svc := service.New(service.WithLogger(logger.With("component", "service")))
	svc.SetManager(v)
	m := mirror.New(svc, mirror.WithLogger(logger.With("component", "mirror")))

	s := &Session{
		ID:      id,
		Viewer:  v,
		Service: svc,
		Mirror:  m,
		logger:  logger,
		capping: capping,
	}
	m.OnError(s.record)
	return s, nil
}

// Start runs the mirror loop until ctx is done or Close is called
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan error, 1)
	go func() { s.done <- s.Mirror.Run(ctx) }()
}

// Load shows model in the viewer. The first model also applies the capping
// configuration and initializes the mirror; later ones switch the model,
// which empties every section.
func (s *Session) Load(ctx context.Context, model *stl.Model) error {
	if !s.loaded {
		s.Viewer.LoadModel(model)
		if err := s.Service.ResetConfiguration(ctx, &s.capping); err != nil {
			return fmt.Errorf("failed to apply capping configuration: %w", err)
		}
		s.Mirror.Init(s.Service.BoundingBox())
		s.loaded = true
	} else {
		s.Viewer.SwitchModel(model)
	}
	return s.Mirror.WaitIdle(ctx)
}

// Loaded reports whether a model was loaded
func (s *Session) Loaded() bool {
	return s.loaded
}

func (s *Session) record(err error) {
	s.logger.Debug("session error", "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// TakeErrors returns the errors reported since the last call, joined
func (s *Session) TakeErrors() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.errs...)
	s.errs = nil
	return err
}

// Close stops the mirror loop and detaches the service
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.Mirror.Close()
	s.Service.Close()
}
