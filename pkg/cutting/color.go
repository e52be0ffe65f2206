package cutting

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB color
type Color struct {
	R, G, B uint8
}

// NewColor creates a color from its components
func NewColor(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// ParseHexColor parses "#rrggbb" or "#rgb"
func ParseHexColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return Color{}, fmt.Errorf("invalid hex color %q", s)
	}

	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return Color{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value)}, nil
}

// Hex formats the color as "#rrggbb"
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String implements fmt.Stringer
func (c Color) String() string {
	return c.Hex()
}

// ColorPtr returns a pointer to a copy of c
func ColorPtr(c Color) *Color {
	return &c
}
