// Package script runs YAML session scripts against a cutting session.
//
// A script names a model and a list of steps. Each step is one user
// action: a cutting intent sent through the mirror, an engine-side
// interaction such as a plane drag or face pick, or an expectation checked
// against the mirrored snapshot.
//
//	model: part.stl
//	steps:
//	  - op: add-plane
//	    section: 0
//	    normal: [0, 0, 1]
//	    d: -5
//	  - op: expect
//	    section: 0
//	    expect: {planes: 1, active: true}
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/philipparndt/gosection/pkg/geometry"
)

// Step operations
const (
	OpAddPlane          = "add-plane"
	OpAddPlaneFromFace  = "add-plane-from-face"
	OpRemovePlane       = "remove-plane"
	OpUpdatePlane       = "update-plane"
	OpInvertPlane       = "invert-plane"
	OpPlaneColor        = "plane-color"
	OpPlaneLineColor    = "plane-line-color"
	OpPlaneOpacity      = "plane-opacity"
	OpPlaneVisibility   = "plane-visibility"
	OpSectionVisibility = "section-visibility"
	OpActivate          = "activate"
	OpDeactivate        = "deactivate"
	OpClear             = "clear"
	OpSelectFace        = "select-face"
	OpClearSelection    = "clear-selection"
	OpDrag              = "drag"
	OpCapping           = "capping"
	OpModelVisibility   = "model-visibility"
	OpSwitchModel       = "switch-model"
	OpAddSection        = "add-section"
	OpRemoveSection     = "remove-section"
	OpExpect            = "expect"
	OpPrint             = "print"
)

// Script is a parsed session script
type Script struct {
	Name string `yaml:"name"`
	// Model is a .stl or .scad path, relative to the script
	Model string `yaml:"model"`
	// Box is used when no model file is given
	Box   *Box   `yaml:"box"`
	Steps []Step `yaml:"steps"`

	// dir resolves relative model paths
	dir string
}

// Box describes a box-shaped model
type Box struct {
	Min [3]float64 `yaml:"min"`
	Max [3]float64 `yaml:"max"`
}

// Step is one scripted action. Fields not used by Op are ignored.
type Step struct {
	Op      string `yaml:"op"`
	Section int    `yaml:"section"`
	Plane   int    `yaml:"plane"`
	// Node is the model index for model-visibility
	Node int `yaml:"node"`

	Normal   *[3]float64 `yaml:"normal"`
	D        *float64    `yaml:"d"`
	Position *[3]float64 `yaml:"position"`

	Color     *string  `yaml:"color"`
	LineColor *string  `yaml:"lineColor"`
	Opacity   *float64 `yaml:"opacity"`
	Visible   *bool    `yaml:"visible"`
	Hidden    bool     `yaml:"hidden"`

	Model string `yaml:"model"`
	Box   *Box   `yaml:"box"`

	Expect *Expect `yaml:"expect"`
	// Fails marks a step that must be rejected
	Fails bool `yaml:"fails"`
}

// Expect is checked against the mirrored snapshot
type Expect struct {
	Sections *int     `yaml:"sections"`
	Planes   *int     `yaml:"planes"`
	Active   *bool    `yaml:"active"`
	Hidden   *bool    `yaml:"hidden"`
	Face     *bool    `yaml:"face"`
	Opacity  *float64 `yaml:"opacity"`
	Color    *string  `yaml:"color"`
	// D is the plane offset of the plane at Step.Plane
	D *float64 `yaml:"d"`
}

// Load reads a script file
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	sc.dir = filepath.Dir(path)
	return sc, nil
}

// Parse decodes a script, rejecting unknown keys and operations
func Parse(data []byte) (*Script, error) {
	var sc Script
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

// ModelPath resolves the script's model against the script directory
func (s *Script) ModelPath() string {
	return s.resolve(s.Model)
}

func (s *Script) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.dir, path)
}

func (st Step) validate() error {
	switch st.Op {
	case OpAddPlane, OpDrag:
		if st.Normal == nil {
			return fmt.Errorf("%s needs a normal", st.Op)
		}
	case OpSelectFace:
		if st.Position == nil || st.Normal == nil {
			return fmt.Errorf("%s needs a position and a normal", st.Op)
		}
	case OpPlaneColor:
		if st.Color == nil {
			return fmt.Errorf("%s needs a color", st.Op)
		}
	case OpPlaneLineColor:
		if st.LineColor == nil {
			return fmt.Errorf("%s needs a lineColor", st.Op)
		}
	case OpPlaneOpacity:
		if st.Opacity == nil {
			return fmt.Errorf("%s needs an opacity", st.Op)
		}
	case OpPlaneVisibility, OpSectionVisibility, OpModelVisibility:
		if st.Visible == nil {
			return fmt.Errorf("%s needs visible", st.Op)
		}
	case OpSwitchModel:
		if st.Model == "" && st.Box == nil {
			return fmt.Errorf("%s needs a model or a box", st.Op)
		}
	case OpExpect:
		if st.Expect == nil {
			return fmt.Errorf("%s needs expect", st.Op)
		}
	case OpAddPlaneFromFace, OpRemovePlane, OpUpdatePlane, OpInvertPlane,
		OpActivate, OpDeactivate, OpClear, OpClearSelection, OpCapping,
		OpAddSection, OpRemoveSection, OpPrint:
	case "":
		return errors.New("missing op")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

func (st Step) plane() geometry.Plane {
	var d float64
	if st.D != nil {
		d = *st.D
	}
	return geometry.NewPlane(vector(*st.Normal), d)
}

func vector(v [3]float64) geometry.Vector3 {
	return geometry.NewVector3(v[0], v[1], v[2])
}

func (b Box) bounds() (lo, hi geometry.Vector3) {
	return vector(b.Min), vector(b.Max)
}
