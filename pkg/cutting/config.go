package cutting

import "fmt"

// DefaultCappingColor is reported for capping colors when no engine is attached
const DefaultCappingColor = "#808080"

// Configuration holds the capping settings of the cutting service.
// Nil colors mean "cleared".
type Configuration struct {
	CappingGeometryVisibility bool
	CappingFaceColor          *Color
	CappingLineColor          *Color
}

// DefaultConfiguration returns the settings reported without an engine
func DefaultConfiguration() Configuration {
	gray, _ := ParseHexColor(DefaultCappingColor)
	return Configuration{
		CappingGeometryVisibility: true,
		CappingFaceColor:          ColorPtr(gray),
		CappingLineColor:          ColorPtr(gray),
	}
}

// Configuration keys accepted by ParseConfiguration
const (
	KeyCappingGeometryVisibility = "cappingGeometryVisibility"
	KeyCappingFaceColor          = "cappingFaceColor"
	KeyCappingLineColor          = "cappingLineColor"
)

// ParseConfiguration turns a loosely typed object (decoded YAML or JSON)
// into a Configuration. cappingGeometryVisibility must be a bool; the colors
// must be absent, nil, or hex color strings. Absent colors parse as cleared.
func ParseConfiguration(raw map[string]any) (Configuration, error) {
	if raw == nil {
		return Configuration{}, &ConfigurationError{Reason: "is nil"}
	}

	var cfg Configuration
	visible, ok := raw[KeyCappingGeometryVisibility].(bool)
	if !ok {
		return Configuration{}, &ConfigurationError{
			Field:  KeyCappingGeometryVisibility,
			Reason: fmt.Sprintf("must be a boolean, got %T", raw[KeyCappingGeometryVisibility]),
		}
	}
	cfg.CappingGeometryVisibility = visible

	var err error
	if cfg.CappingFaceColor, err = parseOptionalColor(raw, KeyCappingFaceColor); err != nil {
		return Configuration{}, err
	}
	if cfg.CappingLineColor, err = parseOptionalColor(raw, KeyCappingLineColor); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func parseOptionalColor(raw map[string]any, key string) (*Color, error) {
	value, present := raw[key]
	if !present || value == nil {
		return nil, nil
	}
	s, ok := value.(string)
	if !ok {
		return nil, &ConfigurationError{Field: key, Reason: fmt.Sprintf("must be a string, got %T", value)}
	}
	color, err := ParseHexColor(s)
	if err != nil {
		return nil, &ConfigurationError{Field: key, Reason: err.Error()}
	}
	return &color, nil
}

// Map renders the configuration in the loosely typed form accepted by
// ParseConfiguration
func (c Configuration) Map() map[string]any {
	out := map[string]any{KeyCappingGeometryVisibility: c.CappingGeometryVisibility}
	if c.CappingFaceColor != nil {
		out[KeyCappingFaceColor] = c.CappingFaceColor.Hex()
	}
	if c.CappingLineColor != nil {
		out[KeyCappingLineColor] = c.CappingLineColor.Hex()
	}
	return out
}
