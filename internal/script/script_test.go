package script

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipparndt/gosection/internal/config"
	"github.com/philipparndt/gosection/internal/loader"
	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

const walkthrough = `
name: walkthrough
box: {min: [0, 0, 0], max: [10, 10, 10]}
steps:
  - op: add-plane
    section: 0
    normal: [0, 0, 1]
    d: -5
    color: "#ff0000"
  - op: expect
    section: 0
    expect: {planes: 1, active: true, color: "#ff0000", d: -5}
  - op: plane-opacity
    section: 0
    opacity: 0.5
  - op: update-plane
    section: 0
    d: -3
  - op: invert-plane
    section: 0
  - op: expect
    section: 0
    expect: {opacity: 0.5, d: 3}
  - op: select-face
    position: [5, 5, 10]
    normal: [0, 0, 1]
  - op: add-plane-from-face
    section: 1
  - op: expect
    section: 1
    expect: {planes: 1, face: true, d: -10}
  - op: plane-opacity
    section: 0
    opacity: 2
    fails: true
  - op: remove-plane
    section: 0
    plane: 7
    fails: true
  - op: clear
    section: 0
  - op: expect
    section: 0
    expect: {planes: 0}
  - op: print
`

type harness struct {
	session *Session
	runner  *Runner
	out     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	session, err := NewSession(config.Default(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	session.Start(ctx)

	out := &bytes.Buffer{}
	runner := NewRunner(session, loader.New("", nil), out, nil)
	t.Cleanup(func() {
		runner.Close()
		session.Close()
		cancel()
	})
	return &harness{session: session, runner: runner, out: out}
}

func run(t *testing.T, h *harness, sc *Script) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.runner.Run(ctx, sc)
}

func TestRunWalkthrough(t *testing.T) {
	sc, err := Parse([]byte(walkthrough))
	require.NoError(t, err)
	assert.Equal(t, "walkthrough", sc.Name)
	require.Len(t, sc.Steps, 14)

	h := newHarness(t)
	require.NoError(t, run(t, h, sc))

	out := h.out.String()
	assert.Contains(t, out, "State: ready")
	assert.Contains(t, out, "Section 0: active, 0 plane(s)")
	assert.Contains(t, out, "Section 1: active, 1 plane(s)")
	assert.Contains(t, out, "Selected face:")

	assert.Equal(t, h.session.Service.CuttingSections(), h.session.Mirror.Snapshot().Sections)
}

func TestRunReportsMismatch(t *testing.T) {
	sc, err := Parse([]byte(`
box: {min: [0, 0, 0], max: [1, 1, 1]}
steps:
  - op: add-plane
    normal: [1, 0, 0]
  - op: expect
    expect: {planes: 3, active: false}
`))
	require.NoError(t, err)

	err = run(t, newHarness(t), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2 (expect) failed")
	assert.Contains(t, err.Error(), "planes: expected 3, got 1")
	assert.Contains(t, err.Error(), "active: expected false, got true")
}

func TestRunExpectedFailureThatSucceeds(t *testing.T) {
	sc, err := Parse([]byte(`
box: {min: [0, 0, 0], max: [1, 1, 1]}
steps:
  - op: add-plane
    normal: [1, 0, 0]
    fails: true
`))
	require.NoError(t, err)

	err = run(t, newHarness(t), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected the step to fail")
}

func TestRunWithoutModel(t *testing.T) {
	err := run(t, newHarness(t), &Script{})
	assert.ErrorContains(t, err, "no model loaded")
}

func TestRunSwitchModel(t *testing.T) {
	sc, err := Parse([]byte(`
box: {min: [0, 0, 0], max: [1, 1, 1]}
steps:
  - op: add-plane
    normal: [1, 0, 0]
    d: -0.5
  - op: switch-model
    box: {min: [0, 0, 0], max: [20, 20, 20]}
  - op: expect
    expect: {planes: 0, active: false}
`))
	require.NoError(t, err)

	h := newHarness(t)
	require.NoError(t, run(t, h, sc))
	assert.Equal(t, geometry.NewVector3(20, 20, 20), h.session.Mirror.Snapshot().BoundingBox.Max)
}

func TestRunCappingAndDrag(t *testing.T) {
	sc, err := Parse([]byte(`
box: {min: [0, 0, 0], max: [4, 4, 4]}
steps:
  - op: capping
    visible: false
    color: "#00ff00"
    lineColor: ""
  - op: add-plane
    normal: [0, 1, 0]
    d: -1
  - op: drag
    normal: [0, 1, 0]
    d: -2
  - op: expect
    expect: {d: -2}
  - op: capping
    color: "green"
    fails: true
`))
	require.NoError(t, err)

	h := newHarness(t)
	require.NoError(t, run(t, h, sc))

	svc := h.session.Service
	assert.False(t, svc.CappingGeometryVisibility())
	assert.Equal(t, "#00ff00", svc.CappingFaceColor())
	assert.Equal(t, "", svc.CappingLineColor())
}

func TestLoadResolvesModelPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, stl.WriteFile(filepath.Join(dir, "cube.stl"),
		stl.NewBox("cube", geometry.NewVector3(0, 0, 0), geometry.NewVector3(2, 2, 2))))
	scriptPath := filepath.Join(dir, "session.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`
model: cube.stl
steps:
  - op: add-plane
    normal: [0, 0, 1]
    d: -1
  - op: expect
    expect: {planes: 1, sections: 4}
`), 0o644))

	sc, err := Load(scriptPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cube.stl"), sc.ModelPath())

	require.NoError(t, run(t, newHarness(t), sc))
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown op":     "steps:\n  - op: explode\n",
		"missing op":     "steps:\n  - section: 1\n",
		"missing normal": "steps:\n  - op: add-plane\n",
		"unknown key":    "steps:\n  - op: print\n    colour: red\n",
		"bad vector":     "steps:\n  - op: add-plane\n    normal: [1, 0]\n",
		"missing expect": "steps:\n  - op: expect\n",
		"switch nothing": "steps:\n  - op: switch-model\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestSessionLoadAppliesCapping(t *testing.T) {
	cfg := config.Default()
	cfg.Capping.Visible = false
	cfg.Capping.LineColor = ""

	session, err := NewSession(cfg, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session.Start(ctx)
	defer session.Close()

	require.NoError(t, session.Load(ctx, stl.NewBox("cube", geometry.NewVector3(0, 0, 0), geometry.NewVector3(1, 1, 1))))
	assert.True(t, session.Loaded())
	assert.False(t, session.Service.CappingGeometryVisibility())
	assert.Equal(t, "", session.Service.CappingLineColor())
	assert.NoError(t, session.TakeErrors())
}
