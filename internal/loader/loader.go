// Package loader turns .stl and .scad files into models for the viewer.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/philipparndt/gosection/internal/logging"
	"github.com/philipparndt/gosection/pkg/openscad"
	"github.com/philipparndt/gosection/pkg/stl"
)

// Loader loads model files, rendering OpenSCAD sources on the way.
type Loader struct {
	binary string
	logger *slog.Logger
}

// Result is a loaded model and the files whose changes invalidate it.
type Result struct {
	Model *stl.Model
	// Source is the absolute path that was loaded.
	Source string
	// Watch lists Source and, for OpenSCAD, every used or included file.
	Watch []string

	tempFile string
}

// New creates a Loader. An empty binary uses openscad from PATH.
func New(binary string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{binary: binary, logger: logger}
}

// Load reads path. STL files are parsed directly; OpenSCAD files are
// rendered to a temporary STL first.
func (l *Loader) Load(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(abs)); ext {
	case ".stl":
		model, err := stl.Parse(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to parse STL file: %w", err)
		}
		l.logger.Info("model loaded", "file", abs, "triangles", model.TriangleCount())
		return &Result{Model: model, Source: abs, Watch: []string{abs}}, nil

	case ".scad":
		return l.loadSCAD(ctx, abs)

	default:
		return nil, fmt.Errorf("unsupported file type: %s (expected .stl or .scad)", ext)
	}
}

func (l *Loader) loadSCAD(ctx context.Context, path string) (*Result, error) {
	renderer := openscad.NewRenderer(filepath.Dir(path),
		openscad.WithBinary(l.binary),
		openscad.WithLogger(l.logger),
		openscad.WithOutput(logging.NewWriter(l.logger, "openscad")),
	)

	deps, err := renderer.ResolveDependencies(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependencies: %w", err)
	}

	temp, err := os.CreateTemp("", "gosection_*.stl")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := temp.Name()
	temp.Close()

	l.logger.Info("rendering OpenSCAD file", "file", path, "dependencies", len(deps)-1)
	if err := renderer.RenderToSTL(ctx, path, tempFile); err != nil {
		os.Remove(tempFile)
		return nil, fmt.Errorf("failed to render OpenSCAD file: %w", err)
	}

	model, err := stl.Parse(tempFile)
	if err != nil {
		os.Remove(tempFile)
		return nil, fmt.Errorf("failed to parse rendered STL: %w", err)
	}
	model.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	l.logger.Info("model loaded", "file", path, "triangles", model.TriangleCount())
	return &Result{Model: model, Source: path, Watch: deps, tempFile: tempFile}, nil
}

// Close removes the temporary STL of a rendered OpenSCAD model.
func (r *Result) Close() error {
	if r.tempFile == "" {
		return nil
	}
	err := os.Remove(r.tempFile)
	r.tempFile = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
