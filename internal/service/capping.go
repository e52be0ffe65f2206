package service

import (
	"context"

	"github.com/philipparndt/gosection/pkg/cutting"
)

// CappingGeometryVisibility reports whether capping geometry is shown.
// Without a manager it reports true.
func (s *Service) CappingGeometryVisibility() bool {
	m := s.currentManager()
	if m == nil {
		return true
	}
	return m.CappingGeometryVisibility()
}

// CappingFaceColor returns the capping face color as "#rrggbb", or "" when
// cleared. Without a manager it reports the default gray.
func (s *Service) CappingFaceColor() string {
	m := s.currentManager()
	if m == nil {
		return cutting.DefaultCappingColor
	}
	return hexOrEmpty(m.CappingFaceColor())
}

// CappingLineColor returns the capping line color as "#rrggbb", or "" when
// cleared. Without a manager it reports the default gray.
func (s *Service) CappingLineColor() string {
	m := s.currentManager()
	if m == nil {
		return cutting.DefaultCappingColor
	}
	return hexOrEmpty(m.CappingLineColor())
}

// CappingConfiguration returns the last capping values applied through
// this service
func (s *Service) CappingConfiguration() cutting.Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capping
}

// SetCappingGeometryVisibility shows or hides capping geometry
func (s *Service) SetCappingGeometryVisibility(ctx context.Context, visible bool) error {
	m, err := s.attached()
	if err != nil {
		return err
	}
	if err := m.SetCappingGeometryVisibility(ctx, visible); err != nil {
		return err
	}

	s.mu.Lock()
	s.capping.CappingGeometryVisibility = visible
	s.mu.Unlock()

	s.emit(cutting.Event{Type: cutting.EventCappingVisibilityChanged, Value: visible})
	return nil
}

// SetCappingFaceColor sets the capping face color from a hex string.
// An empty string clears the color.
func (s *Service) SetCappingFaceColor(ctx context.Context, hex string) error {
	color, err := parseOptionalHex(hex)
	if err != nil {
		return err
	}
	return s.setCappingFaceColor(ctx, color)
}

func (s *Service) setCappingFaceColor(ctx context.Context, color *cutting.Color) error {
	m, err := s.attached()
	if err != nil {
		return err
	}
	if err := m.SetCappingFaceColor(ctx, color); err != nil {
		return err
	}

	s.mu.Lock()
	s.capping.CappingFaceColor = color
	s.mu.Unlock()

	s.emit(cutting.Event{Type: cutting.EventCappingFaceColorChanged, Value: hexOrEmpty(color)})
	return nil
}

// SetCappingLineColor sets the capping line color from a hex string.
// An empty string clears the color.
func (s *Service) SetCappingLineColor(ctx context.Context, hex string) error {
	color, err := parseOptionalHex(hex)
	if err != nil {
		return err
	}
	return s.setCappingLineColor(ctx, color)
}

func (s *Service) setCappingLineColor(ctx context.Context, color *cutting.Color) error {
	m, err := s.attached()
	if err != nil {
		return err
	}
	if err := m.SetCappingLineColor(ctx, color); err != nil {
		return err
	}

	s.mu.Lock()
	s.capping.CappingLineColor = color
	s.mu.Unlock()

	s.emit(cutting.Event{Type: cutting.EventCappingLineColorChanged, Value: hexOrEmpty(color)})
	return nil
}

// ResetConfiguration applies all three capping settings. Colors that are
// nil in cfg are cleared, not left unchanged. A nil cfg shows capping
// geometry and clears both colors.
func (s *Service) ResetConfiguration(ctx context.Context, cfg *cutting.Configuration) error {
	if _, err := s.attached(); err != nil {
		return err
	}

	applied := cutting.Configuration{CappingGeometryVisibility: true}
	if cfg != nil {
		applied = *cfg
	}

	if err := s.SetCappingGeometryVisibility(ctx, applied.CappingGeometryVisibility); err != nil {
		return err
	}
	if err := s.setCappingFaceColor(ctx, applied.CappingFaceColor); err != nil {
		return err
	}
	return s.setCappingLineColor(ctx, applied.CappingLineColor)
}

// ResetConfigurationFromMap parses a loosely typed configuration object and
// applies it with ResetConfiguration. Malformed input fails with an error
// wrapping cutting.ErrInvalidConfiguration before anything is applied.
func (s *Service) ResetConfigurationFromMap(ctx context.Context, raw map[string]any) error {
	if raw == nil {
		return s.ResetConfiguration(ctx, nil)
	}
	cfg, err := cutting.ParseConfiguration(raw)
	if err != nil {
		return err
	}
	return s.ResetConfiguration(ctx, &cfg)
}

func parseOptionalHex(hex string) (*cutting.Color, error) {
	if hex == "" {
		return nil, nil
	}
	color, err := cutting.ParseHexColor(hex)
	if err != nil {
		return nil, err
	}
	return &color, nil
}

func hexOrEmpty(c *cutting.Color) string {
	if c == nil {
		return ""
	}
	return c.Hex()
}
