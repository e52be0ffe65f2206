package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/philipparndt/gosection/pkg/geometry"
	"github.com/philipparndt/gosection/pkg/stl"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeCube(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "cube.stl")
	require.NoError(t, stl.WriteFile(path, stl.NewBox("cube", geometry.NewVector3(0, 0, 0), geometry.NewVector3(10, 10, 10))))
	return path
}

func TestQuadCommand(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "quad.stl")

	out := execute(t, "quad", "--plane", "0,0,1,-5", "--box", "0,0,0,10,10,10", "--intersection", "-o", output)

	assert.Contains(t, out, "Center: (5.000000, 5.000000, 10.000000)")
	assert.Contains(t, out, "Quad:\n  0:")
	assert.Contains(t, out, "Intersection:\n  0:")
	assert.Contains(t, out, "  3: ")

	quad, err := stl.Parse(output)
	require.NoError(t, err)
	assert.Equal(t, 2, quad.TriangleCount())
}

func TestInfoCommand(t *testing.T) {
	path := writeCube(t, t.TempDir())

	out := execute(t, "info", path, "--cut", "0,0,1,-5")

	assert.Contains(t, out, "Triangles: 12")
	assert.Contains(t, out, "Volume: 1000.000000 cubic units")
	assert.Contains(t, out, "Segments: 8")
	assert.Contains(t, out, "Perimeter: 40.000000 units")
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	writeCube(t, dir)
	scriptPath := filepath.Join(dir, "session.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`
model: cube.stl
steps:
  - op: add-plane
    section: 2
    normal: [1, 0, 0]
    d: -4
  - op: expect
    section: 2
    expect: {planes: 1, active: true}
`), 0o644))

	out := execute(t, "run", scriptPath, "--print")

	assert.Contains(t, out, "State: ready")
	assert.Contains(t, out, "Section 2: active, 1 plane(s)")
}
