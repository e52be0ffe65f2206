package openscad

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveDependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.scad"), strings.Join([]string{
		"use <lib/shapes.scad>",
		"include <./params.scad>",
		"// use <ignored.scad>",
		"cube(10);",
	}, "\n"))
	writeFile(t, filepath.Join(dir, "lib", "shapes.scad"), "include <../params.scad>\n")
	writeFile(t, filepath.Join(dir, "params.scad"), "size = 10;\n")

	r := NewRenderer(dir)
	deps, err := r.ResolveDependencies("main.scad")
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "main.scad"),
		filepath.Join(dir, "lib", "shapes.scad"),
		filepath.Join(dir, "params.scad"),
	}, deps)
}

func TestResolveDependenciesCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.scad"), "use <./b.scad>\n")
	writeFile(t, filepath.Join(dir, "b.scad"), "use <./a.scad>\n")

	deps, err := NewRenderer(dir).ResolveDependencies("a.scad")
	require.NoError(t, err)
	assert.Len(t, deps, 2)
}

func TestResolveDependenciesMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.scad"), "use <./missing.scad>\n")

	_, err := NewRenderer(dir).ResolveDependencies("main.scad")
	assert.Error(t, err)
}

func TestRenderMissingBinary(t *testing.T) {
	r := NewRenderer(t.TempDir(), WithBinary("openscad-does-not-exist"))
	assert.False(t, r.Available())

	err := r.RenderToSTL(context.Background(), "main.scad", "out.stl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openscad-does-not-exist not found")
}
